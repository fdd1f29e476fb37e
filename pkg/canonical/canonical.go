// Package canonical provides deterministic JSON serialization.
//
// Audit checksums and webhook signatures both hash serialized payloads, so
// the byte form must be reproducible regardless of the in-memory
// representation: object keys are emitted in sorted order and number
// literals are preserved exactly as decoded. Re-canonicalizing canonical
// output is a no-op.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal serializes v into canonical JSON. v may be any JSON-marshalable
// value; json.RawMessage and []byte inputs are decoded first so that
// already-serialized payloads normalize to the same bytes.
func Marshal(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonical marshal: %w", err)
		}
		raw = encoded
	}
	return Normalize(raw)
}

// Normalize rewrites a JSON document into its canonical form.
func Normalize(raw []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	// Preserve number literals; float64 round-tripping would reformat them.
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("canonical decode: trailing data after JSON value")
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, value any) error {
	switch t := value.(type) {
	case map[string]any:
		return writeObject(buf, t)
	case []any:
		return writeArray(buf, t)
	case json.Number:
		buf.WriteString(t.String())
		return nil
	default:
		// Strings, bools, and null have a single JSON representation.
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("canonical encode: %w", err)
		}
		buf.Write(encoded)
		return nil
	}
}

func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(k)
		if err != nil {
			return fmt.Errorf("canonical encode key: %w", err)
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		if err := writeValue(buf, obj[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, item := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, item); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
