package quote

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sbtplatform/quote-splitter/internal/constants"
)

// BuildExtract builds the payload of an extract file:
// the key field, the named object and, when present, the tracking info.
//
// Fields keep the upstream order (key first, object, tracking last) so the
// produced files diff cleanly against the previous deployment's output.
func (d *Document) BuildExtract(keyField string, objectName string) ([]byte, error) {
	keyValue, ok := d.Fields[keyField]
	if !ok {
		return nil, ErrKeyMissing
	}
	objectValue, ok := d.Fields[objectName]
	if !ok {
		return nil, fmt.Errorf("object %q not present in document", objectName)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, keyField, keyValue); err != nil {
		return nil, err
	}
	buf.WriteByte(',')
	if err := writeField(&buf, objectName, objectValue); err != nil {
		return nil, err
	}
	if d.Tracking != nil {
		buf.WriteByte(',')
		if err := writeField(&buf, constants.TrackingField, d.Tracking); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("failed to format extract payload: %v", err)
	}
	return out.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name string, value json.RawMessage) error {
	encodedName, err := json.Marshal(name)
	if err != nil {
		return fmt.Errorf("failed to encode field name %q: %v", name, err)
	}
	buf.Write(encodedName)
	buf.WriteByte(':')
	buf.Write(value)
	return nil
}
