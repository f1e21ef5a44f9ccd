// Package quote provides the quote document model for the splitter.
// It includes functions to parse documents, locate the key field, apply
// emptiness rules and build extract file payloads.
package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sbtplatform/quote-splitter/internal/constants"
)

var (
	// ErrInvalidDocument is returned when a document is not a JSON object.
	ErrInvalidDocument = errors.New("document is not a valid JSON object")

	// ErrKeyMissing is returned when the key field is absent or empty.
	ErrKeyMissing = errors.New("key field is missing or empty")
)

// Document represents a parsed quote document.
//
// Tracking is kept apart so extract payloads can propagate it verbatim;
// every other field lands in Fields untouched.
type Document struct {
	Tracking json.RawMessage            `mapstructure:"Tracking"`
	Fields   map[string]json.RawMessage `mapstructure:",remain"`
}

// Parse decodes data into a Document.
func Parse(data []byte) (*Document, error) {
	var jsonData map[string]any
	if err := json.Unmarshal(data, &jsonData); err != nil {
		return nil, errors.Join(ErrInvalidDocument, err)
	}

	doc := &Document{}
	decoder, err := mapstructure.NewDecoder(decoderConfig(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %v", err)
	}

	if err := decoder.Decode(jsonData); err != nil {
		return nil, errors.Join(ErrInvalidDocument, err)
	}

	return doc, nil
}

// Key returns the key field value as a string usable in filenames.
//
// It returns ErrKeyMissing when the field is absent, null or empty per the
// emptiness rules. Scalar values are rendered as-is; anything else keeps its
// JSON encoding.
func (d *Document) Key(keyField string) (string, error) {
	raw, ok := d.Fields[keyField]
	if keyField == constants.TrackingField {
		raw, ok = d.Tracking, d.Tracking != nil
	}
	if !ok || IsEmpty(raw) {
		return "", ErrKeyMissing
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("failed to decode key field %q: %v", keyField, err)
	}

	switch value := v.(type) {
	case string:
		return value, nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return string(raw), nil
	}
}

// Object returns the raw value of a named field and whether it is present.
func (d *Document) Object(name string) (json.RawMessage, bool) {
	raw, ok := d.Fields[name]
	return raw, ok
}

// IsEmpty reports whether a raw value counts as empty: absent, null, an empty
// string, an empty array or an empty mapping. Numbers and booleans are never empty.
func IsEmpty(raw json.RawMessage) bool {
	if raw == nil {
		return true
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}

	switch value := v.(type) {
	case nil:
		return true
	case string:
		return value == ""
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

func decoderConfig(target any) *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			// This hook converts any decoded value to json.RawMessage
			func(from reflect.Type, to reflect.Type, data any) (any, error) {
				if to != reflect.TypeOf(json.RawMessage{}) {
					return data, nil
				}

				// Marshal the data back to JSON bytes
				jsonBytes, err := json.Marshal(data)
				if err != nil {
					return nil, err
				}

				return json.RawMessage(jsonBytes), nil
			},
		),
		WeaklyTypedInput: true,
		Result:           target,
	}
}
