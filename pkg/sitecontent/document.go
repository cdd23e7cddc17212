package sitecontent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// DefaultDocumentKey names the document the public site renders from.
const DefaultDocumentKey = "site-content"

// Document is a JSON object. Values are map[string]interface{},
// []interface{}, string, json.Number, bool or nil, which is exactly what
// DecodeDocument produces.
type Document map[string]interface{}

// DecodeDocument parses a JSON object from r. Numbers are kept as
// json.Number so that re-encoding never changes their textual form.
func DecodeDocument(r io.Reader) (Document, error) {
	v, err := DecodeValue(r)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top level must be a JSON object", ErrMalformedPayload)
	}
	return Document(obj), nil
}

// DecodeValue parses exactly one JSON value of any kind from r.
func DecodeValue(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedPayload)
	}
	return v, nil
}

// ParseDocument is DecodeDocument for a byte slice.
func ParseDocument(data []byte) (Document, error) {
	return DecodeDocument(bytes.NewReader(data))
}

// Encode renders the document the way it is persisted: two-space indented
// JSON with a trailing newline, keys sorted.
func (d Document) Encode() ([]byte, error) {
	if d == nil {
		d = Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}(d)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sections returns the top-level keys in sorted order.
func (d Document) Sections() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneObject(d))
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneObject(t)
	case Document:
		return cloneObject(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneObject(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
