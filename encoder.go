package settings

import (
	"cmp"
	"encoding"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// encoder writes a value under its root key. Writes are not atomic: a
// failure halfway leaves whatever was already written.
type encoder struct {
	s Settings
	c cursor
}

func newEncoder(s Settings, key string) *encoder {
	return &encoder{s: s, c: makeCursor(key)}
}

func (e *encoder) encode(d *Descriptor, v reflect.Value) {
	// MarshalText may panic halfway through
	defer e.c.reset()
	e.value(d, v)
}

func (e *encoder) value(d *Descriptor, v reflect.Value) {
	path := e.c.path()
	if d.nullable {
		if v.IsNil() {
			e.s.Remove(path)
			e.s.PutBool(path+presenceSuffix, false)
			return
		}
		e.s.PutBool(path+presenceSuffix, true)
		if d.ptr {
			v = v.Elem()
		}
		d = d.base
	} else if d.shape.Structured() && e.c.depth > 0 {
		e.s.PutBool(path+presenceSuffix, true)
	}

	switch d.shape {
	case ShapePrimitive, ShapeEnum:
		Put(e.s, path, primitiveValue(d, v))

	case ShapeRecord:
		e.c.begin()
		for {
			i := e.c.next()
			if i >= len(d.fields) {
				break
			}
			f := d.fields[i]
			e.c.push(f.name)
			e.value(f.desc, v.FieldByIndex(f.index))
			e.c.pop()
		}
		e.c.end()

	case ShapeList:
		n := v.Len()
		e.c.begin()
		e.s.PutInt(path+sizeSuffix, int32(n))
		for {
			i := e.c.next()
			if i >= n {
				break
			}
			e.c.push(strconv.Itoa(i))
			e.value(d.elem, v.Index(i))
			e.c.pop()
		}
		e.c.end()

	case ShapeMap:
		keys := sortedMapKeys(v)
		e.c.begin()
		e.s.PutInt(path+sizeSuffix, int32(len(keys)))
		for {
			i := e.c.next()
			if i >= 2*len(keys) {
				break
			}
			e.c.push(strconv.Itoa(i))
			k := keys[i/2]
			if i%2 == 0 {
				e.value(d.key, k)
			} else {
				e.value(d.elem, v.MapIndex(k))
			}
			e.c.pop()
		}
		e.c.end()
	}
}

// primitiveValue converts a Go primitive into its stored form. Narrow
// integers widen to Int; enums use their ordinal.
func primitiveValue(d *Descriptor, v reflect.Value) Value {
	if d.text {
		raw, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			panic(fmt.Errorf("settings: %v.MarshalText: %w", d, err))
		}
		return StringValue(string(raw))
	}
	switch d.kind {
	case KindInt:
		return IntValue(int32(intOf(v)))
	case KindLong:
		return LongValue(intOf(v))
	case KindString:
		return StringValue(v.String())
	case KindFloat:
		return FloatValue(float32(v.Float()))
	case KindDouble:
		return DoubleValue(v.Float())
	case KindBool:
		return BoolValue(v.Bool())
	default:
		panic(fmt.Errorf("settings: %v has no primitive kind", d))
	}
}

func intOf(v reflect.Value) int64 {
	if v.CanInt() {
		return v.Int()
	}
	return int64(v.Uint())
}

// sortedMapKeys orders map entries so that encoding the same map always
// produces the same keys.
func sortedMapKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		return cmp.Compare(boolRank(a.Bool()), boolRank(b.Bool()))
	default:
		// text-marshaled keys such as time.Time
		return cmp.Compare(keyText(a), keyText(b))
	}
}

func keyText(v reflect.Value) string {
	raw, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		panic(fmt.Errorf("settings: %v.MarshalText: %w", v.Type(), err))
	}
	return string(raw)
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
