package dataservice

import (
	"encoding/json"
	"testing"
)

func TestNormalize_FlattensNestedValueObjects(t *testing.T) {
	in := json.RawMessage(`{"rows":[{"a":{"value":{"value":3}},"b":{"value":null}}],"c":{"value":1,"other":2}}`)
	out, err := Normalize(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("invalid output: %v", err)
	}
	row := got["rows"].([]interface{})[0].(map[string]interface{})
	if row["a"] != float64(3) {
		t.Errorf("expected a=3, got %v", row["a"])
	}
	if row["b"] != nil {
		t.Errorf("expected b=nil, got %v", row["b"])
	}
	c := got["c"].(map[string]interface{})
	if c["value"] != float64(1) || c["other"] != float64(2) {
		t.Errorf("multi-key objects must be left alone, got %v", c)
	}
}

func TestNormalize_PreservesLargeIntegers(t *testing.T) {
	out, err := Normalize(json.RawMessage(`{"npi":{"value":1234567890123456789}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"npi":1234567890123456789}` {
		t.Errorf("unexpected output %s", out)
	}
}

func TestNormalize_RejectsInvalidJSON(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`{`)); err == nil {
		t.Error("expected error")
	}
}

func TestLenientScalars(t *testing.T) {
	var v struct {
		A Int    `json:"a"`
		B Int    `json:"b"`
		C Int    `json:"c"`
		D Float  `json:"d"`
		E String `json:"e"`
		F String `json:"f"`
		G Int    `json:"g"`
	}
	raw := `{"a":"42","b":7.9,"c":null,"d":"3.5","e":17031,"f":"Cook","g":""}`
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.A != 42 || v.B != 7 || v.C != 0 || v.D != 3.5 || v.E != "17031" || v.F != "Cook" || v.G != 0 {
		t.Errorf("unexpected decode %+v", v)
	}

	var bad struct {
		A Int `json:"a"`
	}
	if err := json.Unmarshal([]byte(`{"a":"many"}`), &bad); err == nil {
		t.Error("expected error for non-numeric integer")
	}
}
