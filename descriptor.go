package settings

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

type Shape uint8

const (
	ShapePrimitive Shape = iota
	ShapeEnum
	ShapeRecord
	ShapeList
	ShapeMap
)

var shapeNames = [...]string{
	ShapePrimitive: "primitive",
	ShapeEnum:      "enum",
	ShapeRecord:    "record",
	ShapeList:      "list",
	ShapeMap:       "map",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// Structured reports whether values of this shape open a nested level of
// keys (and therefore carry a presence marker when nested).
func (s Shape) Structured() bool {
	return s >= ShapeRecord
}

// Enum is implemented by integer types stored as an ordinal. EnumNames is
// called on the zero value and must list every valid ordinal.
type Enum interface {
	EnumNames() []string
}

// Defaulter is implemented by record pointers that want non-zero defaults
// for fields skipped during decoding.
type Defaulter interface {
	SetDefaults()
}

// Descriptor is the immutable shape of a Go type as laid out in a flat
// store. Obtain one with DescriptorOf, DescriptorFor, DescribeRecord,
// ListOf, MapOf or Nullable.
type Descriptor struct {
	name      string
	shape     Shape
	kind      Kind
	typ       reflect.Type
	fields    []*Field
	elem      *Descriptor
	key       *Descriptor
	enumNames []string
	arrayLen  int
	text      bool
	defaults  bool

	nullable bool
	ptr      bool
	base     *Descriptor
}

// Field is one named element of a record.
type Field struct {
	name     string
	index    []int
	desc     *Descriptor
	optional bool
}

func (f *Field) Name() string            { return f.name }
func (f *Field) Descriptor() *Descriptor { return f.desc }
func (f *Field) Optional() bool          { return f.optional }
func (f *Field) String() string          { return f.name + ": " + f.desc.String() }

func (d *Descriptor) target() *Descriptor {
	if d.base != nil {
		return d.base
	}
	return d
}

func (d *Descriptor) Name() string       { return d.name }
func (d *Descriptor) String() string     { return d.name }
func (d *Descriptor) Shape() Shape       { return d.target().shape }
func (d *Descriptor) Nullable() bool     { return d.nullable }
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Kind is the stored kind of a primitive or enum, KindInvalid otherwise.
func (d *Descriptor) Kind() Kind { return d.target().kind }

// Base returns the non-nullable descriptor wrapped by a nullable one.
func (d *Descriptor) Base() *Descriptor { return d.target() }

func (d *Descriptor) Elem() *Descriptor   { return d.target().elem }
func (d *Descriptor) Key() *Descriptor    { return d.target().key }
func (d *Descriptor) EnumNames() []string { return slices.Clone(d.target().enumNames) }
func (d *Descriptor) Fields() []*Field    { return slices.Clone(d.target().fields) }

// NumElements is the fixed element count of a record, or of an array-backed
// list. Other lists and maps have a stored size and report -1.
func (d *Descriptor) NumElements() int {
	t := d.target()
	switch t.shape {
	case ShapeRecord:
		return len(t.fields)
	case ShapeList:
		return t.arrayLen
	default:
		return -1
	}
}

// ElementName is the key segment of the i-th child: the field name for
// records, the decimal index for lists and maps.
func (d *Descriptor) ElementName(i int) string {
	t := d.target()
	if t.shape == ShapeRecord {
		return t.fields[i].name
	}
	return strconv.Itoa(i)
}

// ElementDescriptor returns the shape of the i-th child. Map children
// alternate between key (even) and value (odd).
func (d *Descriptor) ElementDescriptor(i int) *Descriptor {
	t := d.target()
	switch t.shape {
	case ShapeRecord:
		return t.fields[i].desc
	case ShapeList:
		return t.elem
	case ShapeMap:
		if i%2 == 0 {
			return t.key
		}
		return t.elem
	default:
		panic(fmt.Errorf("%v: %v has no elements", d, t.shape))
	}
}

func (d *Descriptor) ElementOptional(i int) bool {
	t := d.target()
	return t.shape == ShapeRecord && t.fields[i].optional
}

// Nullable wraps desc so that its Go representation is *T and a nil
// pointer is stored as a false presence marker.
func Nullable(desc *Descriptor) *Descriptor {
	if desc.nullable {
		return desc
	}
	return &Descriptor{
		name:     desc.name + "?",
		typ:      reflect.PointerTo(desc.typ),
		nullable: true,
		ptr:      true,
		base:     desc,
	}
}

// nilNullable treats a nil slice or map as null without a pointer.
func nilNullable(desc *Descriptor) *Descriptor {
	if desc.nullable {
		return desc
	}
	if k := desc.typ.Kind(); k != reflect.Slice && k != reflect.Map {
		panic(fmt.Errorf("%v: only slices and maps can use nil as null", desc))
	}
	return &Descriptor{
		name:     desc.name + "?",
		typ:      desc.typ,
		nullable: true,
		base:     desc,
	}
}

// ListOf describes a []T whose elements use elem.
func ListOf(elem *Descriptor) *Descriptor {
	typ := reflect.SliceOf(elem.typ)
	return &Descriptor{
		name:     typ.String(),
		shape:    ShapeList,
		typ:      typ,
		elem:     elem,
		arrayLen: -1,
	}
}

// MapOf describes a map[K]V whose keys use key and values use elem. Keys
// must be non-nullable primitives or enums.
func MapOf(key, elem *Descriptor) *Descriptor {
	checkMapKey(key)
	typ := reflect.MapOf(key.typ, elem.typ)
	return &Descriptor{
		name:     typ.String(),
		shape:    ShapeMap,
		typ:      typ,
		key:      key,
		elem:     elem,
		arrayLen: -1,
	}
}

func checkMapKey(key *Descriptor) {
	if key.nullable || (key.shape != ShapePrimitive && key.shape != ShapeEnum) {
		panic(fmt.Errorf("settings: map key %v must be a primitive or an enum", key))
	}
}

type FieldOption int

const (
	// Optional lets the decoder skip the field when neither its key nor a
	// true presence marker is stored.
	Optional FieldOption = 1 << iota

	// NilIsNull makes a nil slice or map field nullable.
	NilIsNull
)

// RecordBuilder collects the fields of a manually described record.
type RecordBuilder struct {
	d *Descriptor
}

// DescribeRecord builds a record descriptor for struct type T with the
// fields added by build, in the order they are added.
func DescribeRecord[T any](build func(b *RecordBuilder)) *Descriptor {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("DescribeRecord: %v is not a struct", typ))
	}
	d := newRecordDescriptor(typ)
	build(&RecordBuilder{d: d})
	return d
}

func newRecordDescriptor(typ reflect.Type) *Descriptor {
	return &Descriptor{
		name:     typ.String(),
		shape:    ShapeRecord,
		typ:      typ,
		arrayLen: -1,
		defaults: reflect.PointerTo(typ).Implements(defaulterType),
	}
}

// Field adds a field whose descriptor is derived from the Go field type.
func (b *RecordBuilder) Field(name, goFieldName string, opts ...FieldOption) *RecordBuilder {
	sf := b.structField(goFieldName)
	return b.FieldWith(name, goFieldName, DescriptorFor(sf.Type), opts...)
}

// FieldWith adds a field with an explicit descriptor.
func (b *RecordBuilder) FieldWith(name, goFieldName string, desc *Descriptor, opts ...FieldOption) *RecordBuilder {
	sf := b.structField(goFieldName)
	var o FieldOption
	for _, opt := range opts {
		o |= opt
	}
	if o&NilIsNull != 0 {
		desc = nilNullable(desc)
	}
	if desc.typ != sf.Type {
		panic(fmt.Errorf("%v.%s: descriptor %v is for %v, field is %v", b.d.typ, goFieldName, desc, desc.typ, sf.Type))
	}
	b.d.addField(&Field{
		name:     name,
		index:    sf.Index,
		desc:     desc,
		optional: o&Optional != 0,
	})
	return b
}

func (b *RecordBuilder) structField(goFieldName string) reflect.StructField {
	sf, ok := b.d.typ.FieldByName(goFieldName)
	if !ok {
		panic(fmt.Errorf("%v has no field %s", b.d.typ, goFieldName))
	}
	if !sf.IsExported() {
		panic(fmt.Errorf("%v.%s is not exported", b.d.typ, goFieldName))
	}
	return sf
}

func (d *Descriptor) addField(f *Field) {
	if !validKeySegment(f.name) {
		panic(fmt.Errorf("%v: invalid field name %q", d, f.name))
	}
	for _, g := range d.fields {
		if g.name == f.name {
			panic(fmt.Errorf("%v: duplicate field name %q", d, f.name))
		}
	}
	d.fields = append(d.fields, f)
}
