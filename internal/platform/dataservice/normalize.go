package dataservice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Normalize rewrites a response payload into its canonical shape. The
// upstream warehouse wraps some scalars as {"value": x}; every object whose
// only key is "value" is replaced by x, at any depth. Number precision is
// preserved.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(unwrapValues(v))
}

func unwrapValues(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if inner, ok := t["value"]; ok && len(t) == 1 {
			return unwrapValues(inner)
		}
		for k, val := range t {
			t[k] = unwrapValues(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = unwrapValues(val)
		}
		return t
	}
	return v
}

// Int accepts a JSON number or numeric string and truncates fractions.
// Null and empty strings decode as zero.
type Int int64

func (n *Int) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*n = 0
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = Int(i)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", string(b))
	}
	*n = Int(f)
	return nil
}

// Float accepts a JSON number or numeric string. Null decodes as zero.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(b))
	}
	*f = Float(v)
	return nil
}

// String accepts a JSON string or number and yields its text.
type String string

func (s *String) UnmarshalJSON(b []byte) error {
	t := strings.TrimSpace(string(b))
	if t == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(t, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = String(str)
		return nil
	}
	*s = String(t)
	return nil
}
