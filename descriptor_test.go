package settings

import (
	"reflect"
	"testing"
	"time"
)

type color int

const (
	red color = iota
	green
	blue
)

func (color) EnumNames() []string { return []string{"red", "green", "blue"} }

type tagged struct {
	Plain    string
	Renamed  int32    `settings:"other"`
	Opt      bool     `settings:",optional"`
	NilSlice []string `settings:"list,nullable,optional"`
	Skipped  int      `settings:"-"`
	hidden   int
}

type node struct {
	Value    int32
	Children []node
	Next     *node `settings:",optional"`
}

func TestDescriptorFor_primitives(t *testing.T) {
	tests := []struct {
		typ   reflect.Type
		shape Shape
		kind  Kind
	}{
		{reflect.TypeFor[bool](), ShapePrimitive, KindBool},
		{reflect.TypeFor[int8](), ShapePrimitive, KindInt},
		{reflect.TypeFor[uint16](), ShapePrimitive, KindInt},
		{reflect.TypeFor[int32](), ShapePrimitive, KindInt},
		{reflect.TypeFor[int](), ShapePrimitive, KindLong},
		{reflect.TypeFor[uint32](), ShapePrimitive, KindLong},
		{reflect.TypeFor[float32](), ShapePrimitive, KindFloat},
		{reflect.TypeFor[float64](), ShapePrimitive, KindDouble},
		{reflect.TypeFor[string](), ShapePrimitive, KindString},
		{reflect.TypeFor[time.Time](), ShapePrimitive, KindString},
		{reflect.TypeFor[color](), ShapeEnum, KindInt},
		{reflect.TypeFor[[]int](), ShapeList, KindInvalid},
		{reflect.TypeFor[[3]int](), ShapeList, KindInvalid},
		{reflect.TypeFor[map[string]bool](), ShapeMap, KindInvalid},
		{reflect.TypeFor[tagged](), ShapeRecord, KindInvalid},
	}
	for _, tt := range tests {
		d := DescriptorFor(tt.typ)
		if d.Shape() != tt.shape || d.Kind() != tt.kind {
			t.Errorf("%v: shape %v kind %v, wanted %v %v", tt.typ, d.Shape(), d.Kind(), tt.shape, tt.kind)
		}
		if d.Type() != tt.typ {
			t.Errorf("%v: Type() = %v", tt.typ, d.Type())
		}
	}

	eq(t, DescriptorOf[[3]int]().NumElements(), 3)
	eq(t, DescriptorOf[[]int]().NumElements(), -1)
	deepEqual(t, DescriptorOf[color]().EnumNames(), []string{"red", "green", "blue"})
}

func TestDescriptorFor_cached(t *testing.T) {
	if DescriptorOf[tagged]() != DescriptorOf[tagged]() {
		t.Errorf("DescriptorOf returned different instances")
	}
}

func TestDescriptorFor_tags(t *testing.T) {
	d := DescriptorOf[tagged]()
	var names []string
	for _, f := range d.Fields() {
		names = append(names, f.Name())
	}
	deepEqual(t, names, []string{"plain", "other", "opt", "list"})
	eq(t, d.NumElements(), 4)

	eq(t, d.ElementOptional(0), false)
	eq(t, d.ElementOptional(2), true)

	list := d.Fields()[3].Descriptor()
	eq(t, list.Nullable(), true)
	eq(t, list.Shape(), ShapeList)
	eq(t, list.Type(), reflect.TypeFor[[]string]())
	eq(t, d.ElementName(1), "other")
}

func TestDescriptorFor_recursive(t *testing.T) {
	d := DescriptorOf[node]()
	children := d.Fields()[1].Descriptor()
	eq(t, children.Elem(), d)

	next := d.Fields()[2].Descriptor()
	eq(t, next.Nullable(), true)
	eq(t, next.Base(), d)
	eq(t, DescriptorOf[*node](), next)
}

func TestDescriptorFor_pointer(t *testing.T) {
	d := DescriptorOf[*int32]()
	eq(t, d.Nullable(), true)
	eq(t, d.Shape(), ShapePrimitive)
	eq(t, d.Kind(), KindInt)
	eq(t, d.Base(), DescriptorOf[int32]())
}

func TestDescriptorFor_unsupported(t *testing.T) {
	assertPanics(t, func() { DescriptorOf[chan int]() })
	assertPanics(t, func() { DescriptorOf[**int]() })
	assertPanics(t, func() { DescriptorOf[complex64]() })
	assertPanics(t, func() {
		type badTag struct {
			A int `settings:",sometimes"`
		}
		DescriptorOf[badTag]()
	})
	assertPanics(t, func() {
		type dotted struct {
			A int `settings:"a.b"`
		}
		DescriptorOf[dotted]()
	})
	assertPanics(t, func() {
		type dup struct {
			A int `settings:"x"`
			B int `settings:"x"`
		}
		DescriptorOf[dup]()
	})
}

func TestDescriptorFor_mapKeys(t *testing.T) {
	eq(t, DescriptorOf[map[color]int]().Key().Shape(), ShapeEnum)
	eq(t, DescriptorOf[map[time.Time]int]().Key().Kind(), KindString)

	assertPanics(t, func() { DescriptorOf[map[*int]int]() })
	assertPanics(t, func() { DescriptorOf[map[[2]int]int]() })
	assertPanics(t, func() {
		type pair struct{ A, B int }
		DescriptorOf[map[pair]int]()
	})
	assertPanics(t, func() { MapOf(Nullable(DescriptorOf[string]()), DescriptorOf[int]()) })
}

func TestMapAndListElements(t *testing.T) {
	d := DescriptorOf[map[string]float64]()
	eq(t, d.ElementDescriptor(0), DescriptorOf[string]())
	eq(t, d.ElementDescriptor(1), DescriptorOf[float64]())
	eq(t, d.ElementName(5), "5")
	eq(t, d.Key(), DescriptorOf[string]())

	l := ListOf(DescriptorOf[bool]())
	eq(t, l.Type(), reflect.TypeFor[[]bool]())
	eq(t, l.ElementDescriptor(3), DescriptorOf[bool]())

	m := MapOf(DescriptorOf[int32](), l)
	eq(t, m.Type(), reflect.TypeFor[map[int32][]bool]())
	eq(t, m.Shape(), ShapeMap)
}

type manual struct {
	Title string
	Count int64
	Tags  []string
	Inner *manualInner
}

type manualInner struct {
	X float32
}

func TestDescribeRecord(t *testing.T) {
	inner := DescribeRecord[manualInner](func(b *RecordBuilder) {
		b.Field("ex", "X")
	})
	d := DescribeRecord[manual](func(b *RecordBuilder) {
		b.Field("title", "Title").
			Field("n", "Count", Optional).
			Field("tags", "Tags", NilIsNull).
			FieldWith("inner", "Inner", Nullable(inner))
	})
	eq(t, d.NumElements(), 4)
	eq(t, d.ElementName(1), "n")
	eq(t, d.ElementOptional(1), true)
	eq(t, d.Fields()[2].Descriptor().Nullable(), true)
	eq(t, d.Fields()[3].Descriptor().Base(), inner)

	assertPanics(t, func() {
		DescribeRecord[manual](func(b *RecordBuilder) { b.Field("x", "Missing") })
	})
	assertPanics(t, func() {
		DescribeRecord[manual](func(b *RecordBuilder) { b.FieldWith("x", "Title", DescriptorOf[int32]()) })
	})
	assertPanics(t, func() {
		DescribeRecord[manual](func(b *RecordBuilder) { b.Field("x", "Count", NilIsNull) })
	})
	assertPanics(t, func() {
		DescribeRecord[int](func(b *RecordBuilder) {})
	})
}
