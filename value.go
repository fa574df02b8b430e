package settings

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is one of the six primitive kinds a Settings store can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindLong
	KindString
	KindFloat
	KindDouble
	KindBool

	maxKind = KindBool
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInt:     "int",
	KindLong:    "long",
	KindString:  "string",
	KindFloat:   "float",
	KindDouble:  "double",
	KindBool:    "bool",
}

func (k Kind) String() string {
	if k > maxKind {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

func (k Kind) Valid() bool {
	return k > KindInvalid && k <= maxKind
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindInt; k <= maxKind; k++ {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown kind %q", s)
}

// Value is a single primitive stored under one key.
//
// Numeric and boolean payloads are carried as a 64-bit pattern: ints are
// sign-extended, floats use their IEEE-754 bits, bools are 0 or 1. Converting
// to and from the bit pattern is exact, NaN payloads included.
type Value struct {
	kind Kind
	bits uint64
	str  string
}

func IntValue(v int32) Value     { return Value{kind: KindInt, bits: uint64(int64(v))} }
func LongValue(v int64) Value    { return Value{kind: KindLong, bits: uint64(v)} }
func StringValue(v string) Value { return Value{kind: KindString, str: v} }
func FloatValue(v float32) Value { return Value{kind: KindFloat, bits: uint64(math.Float32bits(v))} }
func DoubleValue(v float64) Value {
	return Value{kind: KindDouble, bits: math.Float64bits(v)}
}
func BoolValue(v bool) Value {
	if v {
		return Value{kind: KindBool, bits: 1}
	}
	return Value{kind: KindBool}
}

// ValueFromBits rebuilds a numeric or boolean value from the pattern returned
// by Bits. Backends that only have an integer slot use this pair.
func ValueFromBits(kind Kind, bits uint64) Value {
	switch kind {
	case KindInt:
		return IntValue(int32(bits))
	case KindLong, KindDouble:
		return Value{kind: kind, bits: bits}
	case KindFloat:
		return Value{kind: KindFloat, bits: bits & 0xFFFF_FFFF}
	case KindBool:
		return BoolValue(bits != 0)
	default:
		panic(fmt.Errorf("ValueFromBits: %v has no bit representation", kind))
	}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsValid() bool   { return v.kind.Valid() }
func (v Value) Bits() uint64    { return v.bits }
func (v Value) Int() int32      { return int32(v.bits) }
func (v Value) Long() int64     { return int64(v.bits) }
func (v Value) Float() float32  { return math.Float32frombits(uint32(v.bits)) }
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }
func (v Value) Bool() bool      { return v.bits != 0 }
func (v Value) Str() string     { return v.str }

// Equal compares kinds and bit patterns, so two NaNs with the same payload
// are equal.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.bits == o.bits && v.str == o.str
}

// Text returns the canonical text form, accepted back by ParseValue.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.Int()), 10)
	case KindLong:
		return strconv.FormatInt(v.Long(), 10)
	case KindString:
		return v.str
	case KindFloat:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return ""
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindInvalid:
		return "<invalid>"
	default:
		return v.Text()
	}
}

func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int32(n)), nil
	case KindLong:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return LongValue(n), nil
	case KindString:
		return StringValue(s), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, err
		}
		return FloatValue(float32(f)), nil
	case KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return DoubleValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	default:
		return Value{}, fmt.Errorf("cannot parse value of kind %v", kind)
	}
}

// Get reads key as the given kind. The codec reads every primitive through
// this function.
func Get(s Settings, key string, kind Kind) (Value, bool) {
	switch kind {
	case KindInt:
		v, ok := s.LookupInt(key)
		return IntValue(v), ok
	case KindLong:
		v, ok := s.LookupLong(key)
		return LongValue(v), ok
	case KindString:
		v, ok := s.LookupString(key)
		return StringValue(v), ok
	case KindFloat:
		v, ok := s.LookupFloat(key)
		return FloatValue(v), ok
	case KindDouble:
		v, ok := s.LookupDouble(key)
		return DoubleValue(v), ok
	case KindBool:
		v, ok := s.LookupBool(key)
		return BoolValue(v), ok
	default:
		panic(fmt.Errorf("settings.Get: invalid kind %v", kind))
	}
}

// Put writes v under key using the setter matching v's kind.
func Put(s Settings, key string, v Value) {
	switch v.kind {
	case KindInt:
		s.PutInt(key, v.Int())
	case KindLong:
		s.PutLong(key, v.Long())
	case KindString:
		s.PutString(key, v.str)
	case KindFloat:
		s.PutFloat(key, v.Float())
	case KindDouble:
		s.PutDouble(key, v.Double())
	case KindBool:
		s.PutBool(key, v.Bool())
	default:
		panic(fmt.Errorf("settings.Put(%q): invalid value kind %v", key, v.kind))
	}
}

// probeOrder is used by LookupAny on foreign stores; narrower kinds come
// after wider ones so that an adapter that widens on read still reports
// something sensible.
var probeOrder = [...]Kind{KindString, KindBool, KindLong, KindInt, KindDouble, KindFloat}

// LookupAny returns whatever is stored under key together with its kind.
func LookupAny(s Settings, key string) (Value, bool) {
	if vs, ok := s.(valueStore); ok {
		return vs.loadValue(key)
	}
	if !s.HasKey(key) {
		return Value{}, false
	}
	for _, k := range probeOrder {
		if v, ok := Get(s, key, k); ok {
			return v, true
		}
	}
	return Value{}, false
}
