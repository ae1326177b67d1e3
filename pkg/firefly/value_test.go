package firefly

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		wantErr  bool
	}{
		{"null", "null", KindNull, false},
		{"bool", "true", KindBool, false},
		{"number", "12345678901234567890", KindNumber, false},
		{"string", `"EUR"`, KindString, false},
		{"array", `[1,"a",null]`, KindArray, false},
		{"object", `{"data":{"id":"1"}}`, KindObject, false},
		{"surrounding whitespace", "  {}\n", KindObject, false},
		{"trailing garbage", `{} x`, KindNull, true},
		{"two documents", `{}{}`, KindNull, true},
		{"html", "<html>", KindNull, true},
		{"truncated", `{"a":`, KindNull, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseValue([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseValue(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && v.Kind() != tt.wantKind {
				t.Errorf("kind = %s, want %s", v.Kind(), tt.wantKind)
			}
		})
	}
}

func TestValue_NumbersKeepPrecision(t *testing.T) {
	v, err := ParseValue([]byte(`{"amount":"0.1","id":12345678901234567890,"rate":0.30000000000000004}`))
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}
	if n, _ := v.Get("id").AsNumber(); n.String() != "12345678901234567890" {
		t.Errorf("id = %s", n)
	}
	if n, _ := v.Get("rate").AsNumber(); n.String() != "0.30000000000000004" {
		t.Errorf("rate = %s", n)
	}
	if s, ok := v.Get("amount").AsString(); !ok || s != "0.1" {
		t.Errorf("amount = %q (ok=%v)", s, ok)
	}
}

func TestValue_NavigationOnWrongKindIsNull(t *testing.T) {
	v := String("x")
	if !v.Get("a").IsNull() {
		t.Error("Get on string should be null")
	}
	if !v.Index(0).IsNull() {
		t.Error("Index on string should be null")
	}
	arr := Array(Bool(true))
	if !arr.Index(5).IsNull() || !arr.Index(-1).IsNull() {
		t.Error("out of range Index should be null")
	}
	if b, ok := arr.Index(0).AsBool(); !ok || !b {
		t.Error("Index(0) should be true")
	}
	if _, ok := v.AsArray(); ok {
		t.Error("AsArray on string should report false")
	}
}

func TestValue_Keys(t *testing.T) {
	v := Object(map[string]Value{"b": Null(), "a": Null(), "c": Null()})
	if got := v.Keys(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if v.Len() != 3 {
		t.Errorf("Len() = %d", v.Len())
	}
}

func TestValue_Equal(t *testing.T) {
	a, _ := ParseValue([]byte(`{"x":[1,2,{"y":null}],"z":"s"}`))
	b, _ := ParseValue([]byte(`{"z":"s","x":[1,2,{"y":null}]}`))
	c, _ := ParseValue([]byte(`{"z":"s","x":[1,2,{"y":false}]}`))

	if !a.Equal(b) {
		t.Error("member order should not matter")
	}
	if a.Equal(c) {
		t.Error("different leaves should not be equal")
	}
	if Number("1").Equal(String("1")) {
		t.Error("number and string should differ")
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	in := `{"data":[{"attributes":{"active":true,"balance":"10.00","order":3}}],"meta":null}`
	v, err := ParseValue([]byte(in))
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Value
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !v.Equal(back) {
		t.Errorf("round trip changed value: %s vs %s", v, back)
	}
}

func TestFromInterface(t *testing.T) {
	v, err := FromInterface(map[string]any{
		"f":   1.5,
		"arr": []any{"a", nil},
	})
	if err != nil {
		t.Fatalf("FromInterface: %v", err)
	}
	if n, _ := v.Get("f").AsNumber(); n.String() != "1.5" {
		t.Errorf("f = %s", n)
	}
	if v.Get("arr").Len() != 2 || !v.Get("arr").Index(1).IsNull() {
		t.Errorf("arr = %s", v.Get("arr"))
	}

	if _, err := FromInterface(struct{}{}); err == nil {
		t.Error("unsupported type should fail")
	}
}

func TestNullValue_String(t *testing.T) {
	if got := Null().String(); got != "null" {
		t.Errorf("Null().String() = %q", got)
	}
}
