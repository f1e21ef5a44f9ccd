package quote

import (
	"path"
	"strings"

	"github.com/sbtplatform/quote-splitter/internal/constants"
)

// Skip reasons returned by Eligible.
const (
	SkipArchived      = "already archived"
	SkipExtractFolder = "extract object folder"
	SkipAlreadySplit  = "already split"
)

// Eligible decides whether a listed blob path is a quote to process.
//
// A path is skipped when it sits under the archive folder, under any
// configured extract-object subfolder, or when its filename already carries
// an _{ObjectName} suffix from a prior split. The filename check is kept on
// top of the folder checks for compatibility with already-deployed layouts.
// The path is relative to the source prefix. No side effects.
func Eligible(blobPath string, extractObjects []string) (eligible bool, reason string) {
	folder, _, nested := strings.Cut(path.Clean(blobPath), "/")
	if nested {
		if folder == constants.OriginalFolder {
			return false, SkipArchived
		}
		for _, obj := range extractObjects {
			if folder == obj {
				return false, SkipExtractFolder
			}
		}
	}

	base := strings.TrimSuffix(path.Base(blobPath), constants.QuoteExt)
	for _, obj := range extractObjects {
		if strings.Contains(base, "_"+obj) {
			return false, SkipAlreadySplit
		}
	}

	return true, ""
}
