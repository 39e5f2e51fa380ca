package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known submitted field names.
const (
	FieldName         = "name"
	FieldAge          = "age"
	FieldAddress      = "address"
	FieldDocument     = "epic_id"
	FieldMobile       = "mobile"
	FieldConstituency = "constituency"
	FieldState        = "state"
)

// Fields is the free-form submitted data of a request. JSON numbers and
// booleans are kept in their literal text form so "age": 17 and "age": "17"
// read the same.
type Fields map[string]string

func (f Fields) Get(key string) string {
	return strings.TrimSpace(f[key])
}

func (f *Fields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0, bytes.Equal(v, []byte("null")):
			continue
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out[k] = s
		case v[0] == '{' || v[0] == '[':
			return fmt.Errorf("field %q must be a scalar", k)
		default:
			out[k] = string(v)
		}
	}
	*f = out
	return nil
}
