package quote

import (
	"fmt"
	"path"
	"strings"

	"github.com/sbtplatform/quote-splitter/internal/constants"
	"golang.org/x/text/unicode/norm"
)

// ParseBlobName extracts the timestamp and quote id from a blob name of the
// form {timestamp}_{quoteId}.json. It returns empty strings when the name
// does not follow that convention.
func ParseBlobName(name string) (timestamp, quoteID string) {
	base := strings.TrimSuffix(path.Base(name), constants.QuoteExt)

	parts := strings.Split(base, "_")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}

	return "", ""
}

// ExtractFileName derives the name of an extract file:
// {timestamp}_{keyValue}_{ObjectName}.json.
//
// The key value is NFKC-normalized and path-hostile runes are replaced so the
// name stays a single path segment whatever the upstream system put in the key.
func ExtractFileName(timestamp, keyValue, objectName string) string {
	return fmt.Sprintf("%s_%s_%s%s", timestamp, sanitize(keyValue), objectName, constants.QuoteExt)
}

func sanitize(value string) string {
	value = norm.NFKC.String(value)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		default:
			return r
		}
	}, value)
}
