package settings

import (
	"encoding"
	"fmt"
	"reflect"
	"sync"
)

var (
	enumType            = reflect.TypeFor[Enum]()
	defaulterType       = reflect.TypeFor[Defaulter]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

var (
	descriptorCache sync.Map
	deriveMu        sync.Mutex
)

// DescriptorOf derives the descriptor of T. See DescriptorFor.
func DescriptorOf[T any]() *Descriptor {
	return DescriptorFor(reflect.TypeFor[T]())
}

// DescriptorFor derives a descriptor from a Go type and caches it:
//
//   - bool, string, float32 and float64 map to the kinds of the same name;
//   - int8, int16, int32, uint8 and uint16 are stored as Int, other integers
//     as Long;
//   - integer types implementing Enum are stored as their Int ordinal;
//   - types implementing encoding.TextMarshaler (with a TextUnmarshaler
//     pointer) are stored as String;
//   - *T is a nullable T;
//   - slices and arrays are lists, maps are maps;
//   - structs are records of their exported fields, see the settings tag.
//
// Other types panic.
func DescriptorFor(typ reflect.Type) *Descriptor {
	if v, ok := descriptorCache.Load(typ); ok {
		return v.(*Descriptor)
	}

	deriveMu.Lock()
	defer deriveMu.Unlock()
	if v, ok := descriptorCache.Load(typ); ok {
		return v.(*Descriptor)
	}

	dv := &deriver{building: make(map[reflect.Type]*Descriptor)}
	d := dv.derive(typ)
	for t, bd := range dv.building {
		descriptorCache.Store(t, bd)
	}
	return d
}

// deriver holds descriptors that are still being filled in, so that
// recursive types resolve to the same instance.
type deriver struct {
	building map[reflect.Type]*Descriptor
}

func (dv *deriver) derive(typ reflect.Type) *Descriptor {
	if v, ok := descriptorCache.Load(typ); ok {
		return v.(*Descriptor)
	}
	if d := dv.building[typ]; d != nil {
		return d
	}

	if typ.Kind() == reflect.Pointer {
		if typ.Elem().Kind() == reflect.Pointer {
			panic(fmt.Errorf("settings: unsupported type %v", typ))
		}
		d := Nullable(dv.derive(typ.Elem()))
		dv.building[typ] = d
		return d
	}

	d := &Descriptor{
		name:     typ.String(),
		typ:      typ,
		arrayLen: -1,
	}
	dv.building[typ] = d

	switch {
	case typ.Implements(enumType):
		if !isInteger(typ.Kind()) {
			panic(fmt.Errorf("settings: enum %v must have an integer kind", typ))
		}
		d.shape = ShapeEnum
		d.kind = KindInt
		d.enumNames = reflect.Zero(typ).Interface().(Enum).EnumNames()
		return d
	case typ.Implements(textMarshalerType) && reflect.PointerTo(typ).Implements(textUnmarshalerType):
		d.shape = ShapePrimitive
		d.kind = KindString
		d.text = true
		return d
	}

	switch typ.Kind() {
	case reflect.Bool:
		d.kind = KindBool
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		d.kind = KindInt
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		d.kind = KindLong
	case reflect.Float32:
		d.kind = KindFloat
	case reflect.Float64:
		d.kind = KindDouble
	case reflect.String:
		d.kind = KindString
	case reflect.Slice:
		d.shape = ShapeList
		d.elem = dv.derive(typ.Elem())
	case reflect.Array:
		d.shape = ShapeList
		d.elem = dv.derive(typ.Elem())
		d.arrayLen = typ.Len()
	case reflect.Map:
		d.shape = ShapeMap
		d.key = dv.derive(typ.Key())
		checkMapKey(d.key)
		d.elem = dv.derive(typ.Elem())
	case reflect.Struct:
		d.shape = ShapeRecord
		d.defaults = reflect.PointerTo(typ).Implements(defaulterType)
		dv.deriveFields(d)
	default:
		panic(fmt.Errorf("settings: unsupported type %v", typ))
	}
	return d
}

func (dv *deriver) deriveFields(d *Descriptor) {
	typ := d.typ
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := parseFieldTag(sf)
		if tag.skip {
			continue
		}
		fd := dv.derive(sf.Type)
		if tag.nilIsNull {
			fd = nilNullable(fd)
		}
		d.addField(&Field{
			name:     tag.name,
			index:    sf.Index,
			desc:     fd,
			optional: tag.optional,
		})
	}
}

func isInteger(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}
