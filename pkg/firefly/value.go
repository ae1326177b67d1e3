package firefly

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Kind identifies which member of the Value union is set.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a decoded JSON document of unknown shape. The zero Value is null.
// Numbers keep their textual form so large identifiers and amounts are not
// rounded through float64.
type Value struct {
	kind Kind
	b    bool
	n    json.Number
	s    string
	a    []Value
	o    map[string]Value
}

func Null() Value { return Value{} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func Number(n json.Number) Value { return Value{kind: KindNumber, n: n} }

func String(s string) Value { return Value{kind: KindString, s: s} }

func Array(items ...Value) Value {
	return Value{kind: KindArray, a: append([]Value{}, items...)}
}

func Object(m map[string]Value) Value {
	o := make(map[string]Value, len(m))
	for k, v := range m {
		o[k] = v
	}
	return Value{kind: KindObject, o: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsNumber() (json.Number, bool) { return v.n, v.kind == KindNumber }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsArray returns the elements of an array value.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.a, true
}

// AsObject returns the members of an object value.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.o, true
}

// Get returns the member key of an object, or null when v is not an object
// or has no such member. Calls chain: v.Get("data").Index(0).Get("id").
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Value{}
	}
	return v.o[key]
}

// Index returns element i of an array, or null when out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.a) {
		return Value{}
	}
	return v.a[i]
}

// Len is the number of elements or members; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.a)
	case KindObject:
		return len(v.o)
	default:
		return 0
	}
}

// Keys returns object member names in sorted order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.o))
	for k := range v.o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Interface converts v to the plain Go form produced by encoding/json with
// UseNumber: nil, bool, json.Number, string, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.a))
		for i, item := range v.a {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.o))
		for k, item := range v.o {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports deep equality. Numbers compare by their textual form.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.a) != len(other.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(other.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.o) != len(other.o) {
			return false
		}
		for k, item := range v.o {
			o, ok := other.o[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes exactly one JSON document.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("invalid data after top-level value")
	}
	return FromInterface(raw)
}

// FromInterface converts the output of encoding/json into a Value.
func FromInterface(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return Number(x), nil
	case float64:
		return Number(json.Number(fmt.Sprint(x))), nil
	case string:
		return String(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindArray, a: items}, nil
	case map[string]any:
		members := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			members[k] = v
		}
		return Value{kind: KindObject, o: members}, nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %T", raw)
	}
}
