package knowledge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"

	"github.com/habiliai/docstore/errors"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// Value is an attribute value: a string, a number, a boolean or a map of
// values. Values are immutable once built.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    map[string]Value
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Map(m map[string]Value) Value {
	return Value{kind: KindMap, m: maps.Clone(m)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsMap() (map[string]Value, bool) {
	return maps.Clone(v.m), v.kind == KindMap
}

// Any converts v to plain Go values: string, float64, bool or map[string]any.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, child := range v.m {
			out[k] = child.Any()
		}
		return out
	default:
		return nil
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindMap:
		return maps.EqualFunc(v.m, other.m, Value.Equal)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInvalid:
		return "<invalid>"
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// FromAny builds a Value from decoded JSON or YAML data. Integers of any
// width become numbers; nil, slices and other types are rejected.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		if !t.IsValid() {
			return Value{}, errors.Wrapf(errors.ErrInvalidParams, "invalid value")
		}
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return number(t)
	case float32:
		return number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(errors.ErrInvalidParams, "number %s: %v", t, err)
		}
		return number(f)
	case map[string]Value:
		for k, child := range t {
			if !child.IsValid() {
				return Value{}, errors.Wrapf(errors.ErrInvalidParams, "attribute %s: invalid value", k)
			}
		}
		return Map(t), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, child := range t {
			cv, err := FromAny(child)
			if err != nil {
				return Value{}, errors.Wrapf(err, "attribute %s", k)
			}
			m[k] = cv
		}
		return Value{kind: KindMap, m: m}, nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint())), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			cv, err := FromAny(iter.Value().Interface())
			if err != nil {
				return Value{}, errors.Wrapf(err, "attribute %s", iter.Key().String())
			}
			m[iter.Key().String()] = cv
		}
		return Value{kind: KindMap, m: m}, nil
	}
	return Value{}, errors.Wrapf(errors.ErrInvalidParams, "unsupported attribute value %T", x)
}

func number(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.Wrapf(errors.ErrInvalidParams, "number %v is not finite", f)
	}
	return Number(f), nil
}

// Attributes converts a decoded attribute map into Values.
func Attributes(raw map[string]any) (map[string]Value, error) {
	attrs := make(map[string]Value, len(raw))
	for k, x := range raw {
		v, err := FromAny(x)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s", k)
		}
		attrs[k] = v
	}
	return attrs, nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("knowledge: cannot marshal invalid value")
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	parsed, err := FromAny(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// checkCompatible fails with ErrTypeConflict when next would change the kind
// of an existing value. Maps are compared key by key, so a nested attribute
// may not change kind either.
func checkCompatible(path string, prev, next Value) error {
	if prev.kind != next.kind {
		return errors.Wrapf(errors.ErrTypeConflict, "attribute %s is a %s, got a %s", path, prev.kind, next.kind)
	}
	if prev.kind != KindMap {
		return nil
	}
	for _, k := range slices.Sorted(maps.Keys(next.m)) {
		old, ok := prev.m[k]
		if !ok {
			continue
		}
		if err := checkCompatible(path+"."+k, old, next.m[k]); err != nil {
			return err
		}
	}
	return nil
}
