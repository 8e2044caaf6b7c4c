// Package jsonvalue models arbitrary JSON as a tagged variant so that merging
// and validation can recurse over it structurally.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is one JSON node. The zero Value is null. Scalars hold bool,
// json.Number or string. Objects keep key insertion order.
type Value struct {
	kind   Kind
	scalar any
	array  []Value
	object *orderedmap.OrderedMap[string, Value]
}

func Null() Value { return Value{} }

// Scalar wraps a bool, string or number. Go numeric types are stored as json.Number.
func Scalar(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool, string, json.Number:
		return Value{kind: KindScalar, scalar: t}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Value{kind: KindScalar, scalar: json.Number(fmt.Sprint(t))}
	default:
		return Value{kind: KindScalar, scalar: fmt.Sprint(t)}
	}
}

func Array(elems ...Value) Value {
	return Value{kind: KindArray, array: append([]Value{}, elems...)}
}

func Object() Value {
	return Value{kind: KindObject, object: orderedmap.New[string, Value]()}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsObject() bool { return v.kind == KindObject }
func (v Value) IsArray() bool  { return v.kind == KindArray }

// Raw returns the scalar payload, or nil for non-scalars.
func (v Value) Raw() any { return v.scalar }

// Elements returns a copy of the array elements.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value{}, v.array...)
}

// Len is the element count of an array or the key count of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.array)
	case KindObject:
		return v.object.Len()
	default:
		return 0
	}
}

// Keys returns object keys in insertion order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, v.object.Len())
	for pair := v.object.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Get looks up an object key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.object.Get(key)
}

// Set stores key on an object value. It panics on non-objects, which is a
// programming error.
func (v Value) Set(key string, child Value) {
	if v.kind != KindObject {
		panic("jsonvalue: Set on " + v.kind.String())
	}
	v.object.Set(key, child)
}

// Clone deep-copies v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.array))
		for i, e := range v.array {
			out[i] = e.Clone()
		}
		return Value{kind: KindArray, array: out}
	case KindObject:
		out := Object()
		for pair := v.object.Oldest(); pair != nil; pair = pair.Next() {
			out.object.Set(pair.Key, pair.Value.Clone())
		}
		return out
	default:
		return v
	}
}

// Parse decodes JSON text. Trailing data after the first value is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key must be a string, got %v", keyTok)
				}
				child, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj.object.Set(key, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Value{kind: KindArray, array: []Value{}}
			for dec.More() {
				child, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr.array = append(arr.array, child)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case nil:
		return Null(), nil
	default:
		return Value{kind: KindScalar, scalar: t}, nil
	}
}

// FromGo converts any JSON-marshalable Go value.
func FromGo(v any) (Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Parse(data)
}

// Decode unmarshals v into out.
func (v Value) Decode(out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) write(buf *bytes.Buffer, sortKeys bool) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindScalar:
		data, err := json.Marshal(v.scalar)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.write(buf, sortKeys); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		keys := v.Keys()
		if sortKeys {
			sort.Strings(keys)
		}
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			child, _ := v.object.Get(k)
			if err := child.write(buf, sortKeys); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// canonical is an order-insensitive encoding used for equality.
func (v Value) canonical() string {
	var buf bytes.Buffer
	_ = v.write(&buf, true)
	return buf.String()
}

// Equal reports structural equality; object key order is ignored.
func Equal(a, b Value) bool {
	return a.canonical() == b.canonical()
}
