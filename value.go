package signalr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType identifies the variant held by a Value.
type ValueType int

const (
	NullType ValueType = iota
	BoolType
	Float64Type
	StringType
	ArrayType
	MapType
	BinaryType
)

func (t ValueType) String() string {
	switch t {
	case NullType:
		return "null"
	case BoolType:
		return "boolean"
	case Float64Type:
		return "float64"
	case StringType:
		return "string"
	case ArrayType:
		return "array"
	case MapType:
		return "map"
	case BinaryType:
		return "binary"
	}
	return "(unknown)"
}

// Value is a dynamic tree of hub argument and result data. The zero Value is
// null. All numbers are carried as float64; the JSON codec emits integral
// values as integer literals when they fit a 64-bit range, because the server
// compares certain fields (such as the protocol version) as integers.
type Value struct {
	t   ValueType
	b   bool
	f   float64
	s   string
	arr []Value
	obj map[string]Value
	bin []byte
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{t: BoolType, b: v} }

// Float64 returns a numeric Value.
func Float64(v float64) Value { return Value{t: Float64Type, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{t: StringType, s: v} }

// Array returns an array Value holding the given items.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{t: ArrayType, arr: items}
}

// Map returns a map Value. Key order is irrelevant; keys are unique.
func Map(entries map[string]Value) Value {
	if entries == nil {
		entries = map[string]Value{}
	}
	return Value{t: MapType, obj: entries}
}

// Binary returns a byte-sequence Value. Only the MessagePack protocol carries
// it natively; the JSON protocol base64-encodes it to a string.
func Binary(data []byte) Value { return Value{t: BinaryType, bin: data} }

// Type reports the variant held by the value.
func (v Value) Type() ValueType { return v.t }

func (v Value) IsNull() bool   { return v.t == NullType }
func (v Value) IsBool() bool   { return v.t == BoolType }
func (v Value) IsNumber() bool { return v.t == Float64Type }
func (v Value) IsString() bool { return v.t == StringType }
func (v Value) IsArray() bool  { return v.t == ArrayType }
func (v Value) IsMap() bool    { return v.t == MapType }
func (v Value) IsBinary() bool { return v.t == BinaryType }

// AsBool returns the boolean content or a ValueTypeError.
func (v Value) AsBool() (bool, error) {
	if v.t != BoolType {
		return false, &ValueTypeError{Actual: v.t, Expected: BoolType}
	}
	return v.b, nil
}

// AsFloat64 returns the numeric content or a ValueTypeError.
func (v Value) AsFloat64() (float64, error) {
	if v.t != Float64Type {
		return 0, &ValueTypeError{Actual: v.t, Expected: Float64Type}
	}
	return v.f, nil
}

// AsString returns the string content or a ValueTypeError.
func (v Value) AsString() (string, error) {
	if v.t != StringType {
		return "", &ValueTypeError{Actual: v.t, Expected: StringType}
	}
	return v.s, nil
}

// AsArray returns the array items or a ValueTypeError.
func (v Value) AsArray() ([]Value, error) {
	if v.t != ArrayType {
		return nil, &ValueTypeError{Actual: v.t, Expected: ArrayType}
	}
	return v.arr, nil
}

// AsMap returns the map entries or a ValueTypeError.
func (v Value) AsMap() (map[string]Value, error) {
	if v.t != MapType {
		return nil, &ValueTypeError{Actual: v.t, Expected: MapType}
	}
	return v.obj, nil
}

// AsBinary returns the byte content or a ValueTypeError.
func (v Value) AsBinary() ([]byte, error) {
	if v.t != BinaryType {
		return nil, &ValueTypeError{Actual: v.t, Expected: BinaryType}
	}
	return v.bin, nil
}

// Clone returns a deep copy: nested arrays, maps and binary data are not
// shared with the receiver.
func (v Value) Clone() Value {
	switch v.t {
	case ArrayType:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = item.Clone()
		}
		return Value{t: ArrayType, arr: items}
	case MapType:
		entries := make(map[string]Value, len(v.obj))
		for k, item := range v.obj {
			entries[k] = item.Clone()
		}
		return Value{t: MapType, obj: entries}
	case BinaryType:
		data := make([]byte, len(v.bin))
		copy(data, v.bin)
		return Value{t: BinaryType, bin: data}
	default:
		return v
	}
}

// Equal reports structural equality.
func (v Value) Equal(other Value) bool {
	if v.t != other.t {
		return false
	}
	switch v.t {
	case NullType:
		return true
	case BoolType:
		return v.b == other.b
	case Float64Type:
		return v.f == other.f
	case StringType:
		return v.s == other.s
	case ArrayType:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case MapType:
		if len(v.obj) != len(other.obj) {
			return false
		}
		for k, item := range v.obj {
			o, ok := other.obj[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	case BinaryType:
		return bytes.Equal(v.bin, other.bin)
	}
	return false
}

// MarshalJSON renders the value as JSON. Integral float64 values are emitted
// as int64 when they fit [math.MinInt64, -1] and as uint64 when they fit
// [0, math.MaxUint64]; everything else stays a double.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.t {
	case NullType:
		return []byte("null"), nil
	case BoolType:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Float64Type:
		return appendJSONNumber(nil, v.f), nil
	case StringType:
		return json.Marshal(v.s)
	case ArrayType:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case MapType:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	case BinaryType:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.bin))
	}
	return nil, fmt.Errorf("cannot marshal value of type %s", v.t)
}

func appendJSONNumber(dst []byte, f float64) []byte {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		if f < 0 {
			if f >= math.MinInt64 {
				return strconv.AppendInt(dst, int64(f), 10)
			}
		} else if f < math.MaxUint64 {
			// Strictly below 2^64; the conversion cannot overflow.
			return strconv.AppendUint(dst, uint64(f), 10)
		}
	}
	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

// UnmarshalJSON parses arbitrary JSON into the value tree. Numbers become
// float64; binary never appears (it stays a base64 string).
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), err
		}
		return Float64(f), nil
	case float64:
		return Float64(t), nil
	case int64:
		return Float64(float64(t)), nil
	case uint64:
		return Float64(float64(t)), nil
	case int8:
		return Float64(float64(t)), nil
	case int16:
		return Float64(float64(t)), nil
	case int32:
		return Float64(float64(t)), nil
	case uint8:
		return Float64(float64(t)), nil
	case uint16:
		return Float64(float64(t)), nil
	case uint32:
		return Float64(float64(t)), nil
	case float32:
		return Float64(float64(t)), nil
	case string:
		return String(t), nil
	case []byte:
		return Binary(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			parsed, err := valueFromInterface(item)
			if err != nil {
				return Null(), err
			}
			items[i] = parsed
		}
		return Value{t: ArrayType, arr: items}, nil
	case map[string]interface{}:
		entries := make(map[string]Value, len(t))
		for k, item := range t {
			parsed, err := valueFromInterface(item)
			if err != nil {
				return Null(), err
			}
			entries[k] = parsed
		}
		return Value{t: MapType, obj: entries}, nil
	}
	return Null(), fmt.Errorf("unsupported value of type %T", raw)
}
