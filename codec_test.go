package settings

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"
)

type foo struct {
	Bar string
	Baz int32
}

type myClass struct {
	MyProperty *int32
}

type testClass struct {
	List []string `settings:",nullable"`
}

type point struct {
	X, Y int32
}

type holder struct {
	Inner *point
}

type prefs struct {
	Theme  string
	Volume float64  `settings:",optional"`
	Items  []string `settings:",optional"`
	Level  color    `settings:",optional"`
}

func (p *prefs) SetDefaults() {
	p.Volume = 0.5
	p.Items = []string{"default"}
}

type everything struct {
	Name     string
	Flag     bool
	Small    int8
	Big      uint64
	Ratio    float32
	Precise  float64
	Color    color
	Opt      *int64
	Missing  *int64
	Point    point
	Points   []point
	Matrix   [][]int32
	Fixed    [2]string
	ByName   map[string]point
	ByNum    map[int32]*string
	Nilable  []bool `settings:",nullable"`
	At       time.Time
	Children []everything `settings:",optional"`
}

func sampleEverything() everything {
	opt := int64(-7)
	s := "five"
	return everything{
		Name:    "root",
		Flag:    true,
		Small:   -3,
		Big:     1 << 63,
		Ratio:   1.5,
		Precise: math.Pi,
		Color:   blue,
		Opt:     &opt,
		Point:   point{1, 2},
		Points:  []point{{3, 4}, {5, 6}},
		Matrix:  [][]int32{{1}, {}, {2, 3}},
		Fixed:   [2]string{"a", "b"},
		ByName:  map[string]point{"z": {9, 9}, "a": {0, 1}},
		ByNum:   map[int32]*string{5: &s, 1: nil},
		At:      time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC),
		Children: []everything{
			{Name: "child", Points: []point{}, Matrix: [][]int32{}, ByName: map[string]point{}, ByNum: map[int32]*string{}, Nilable: []bool{false}, Children: []everything{}},
		},
	}
}

func snapshot(s *MapSettings) map[string]Value {
	return s.Snapshot()
}

func TestCodec_foo(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "foo", foo{"hello", 43110})
	deepEqual(t, snapshot(s), map[string]Value{
		"foo.bar": StringValue("hello"),
		"foo.baz": IntValue(43110),
	})

	eq(t, Decode(s, "foo", foo{}), foo{"hello", 43110})
}

func TestCodec_nullableField(t *testing.T) {
	s := NewMapSettings()
	v := int32(42)
	Encode(s, "myClass", myClass{&v})
	deepEqual(t, snapshot(s), map[string]Value{
		"myClass.myProperty":  IntValue(42),
		"myClass.myProperty?": BoolValue(true),
	})
	a := Decode(s, "myClass", myClass{})
	isnonnil(t, a.MyProperty)
	eq(t, *a.MyProperty, int32(42))

	Encode(s, "myClass", myClass{nil})
	deepEqual(t, snapshot(s), map[string]Value{
		"myClass.myProperty?": BoolValue(false),
	})
	a, err := TryDecode[myClass](s, "myClass")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	isnil(t, a.MyProperty)
}

func TestCodec_nullableList(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "testClass", testClass{[]string{"foo", "bar", "baz"}})
	deepEqual(t, snapshot(s), map[string]Value{
		"testClass.list?":     BoolValue(true),
		"testClass.list.size": IntValue(3),
		"testClass.list.0":    StringValue("foo"),
		"testClass.list.1":    StringValue("bar"),
		"testClass.list.2":    StringValue("baz"),
	})
	deepEqual(t, Decode(s, "testClass", testClass{}).List, []string{"foo", "bar", "baz"})

	s.Clear()
	Encode(s, "testClass", testClass{})
	deepEqual(t, snapshot(s), map[string]Value{
		"testClass.list?": BoolValue(false),
	})
	eq(t, Contains[testClass](s, "testClass"), true)
	if a := Decode(s, "testClass", testClass{List: []string{"def"}}).List; a != nil {
		t.Errorf("List = %q, wanted nil", a)
	}
}

func TestCodec_roundTrip(t *testing.T) {
	s := NewMapSettings()
	e := sampleEverything()
	Encode(s, "e", e)

	a, err := TryDecode[everything](s, "e")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	if !a.At.Equal(e.At) {
		t.Errorf("At = %v, wanted %v", a.At, e.At)
	}
	a.At, e.At = time.Time{}, time.Time{}
	for i := range a.Children {
		a.Children[i].At = time.Time{}
	}
	deepEqual(t, a, e)
}

func TestCodec_roundTripRoots(t *testing.T) {
	s := NewMapSettings()

	Encode[int32](s, "n", 5)
	deepEqual(t, snapshot(s), map[string]Value{"n": IntValue(5)})
	eq(t, Decode[int32](s, "n", 0), 5)

	s.Clear()
	Encode(s, "l", []string{"x"})
	deepEqual(t, snapshot(s), map[string]Value{
		"l.size": IntValue(1),
		"l.0":    StringValue("x"),
	})

	s.Clear()
	Encode[*point](s, "p", nil)
	deepEqual(t, snapshot(s), map[string]Value{"p?": BoolValue(false)})
	p, err := TryDecode[*point](s, "p")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	isnil(t, p)

	Encode(s, "p", &point{1, 2})
	deepEqual(t, snapshot(s), map[string]Value{
		"p?":  BoolValue(true),
		"p.x": IntValue(1),
		"p.y": IntValue(2),
	})
	p, err = TryDecode[*point](s, "p")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	eq(t, *p, point{1, 2})

	s.Clear()
	Encode(s, "pts", []point{{1, 2}})
	deepEqual(t, snapshot(s), map[string]Value{
		"pts.size": IntValue(1),
		"pts.0?":   BoolValue(true),
		"pts.0.x":  IntValue(1),
		"pts.0.y":  IntValue(2),
	})
}

func TestCodec_containsNullRoot(t *testing.T) {
	s := NewMapSettings()
	Encode[*point](s, "p", nil)
	eq(t, Contains[*point](s, "p"), false)

	Remove[*point](s, "p", true)
	deepEqual(t, snapshot(s), map[string]Value{"p?": BoolValue(false)})
	Remove[*point](s, "p", false)
	isempty(t, s.Keys())

	Encode(s, "p", &point{1, 2})
	eq(t, Contains[*point](s, "p"), true)
	Remove[*point](s, "p", true)
	isempty(t, s.Keys())

	Encode(s, "l", &[]int32{})
	eq(t, Contains[*[]int32](s, "l"), true)
}

func TestCodec_defaultOnEmptyStore(t *testing.T) {
	s := NewMapSettings()
	def := sampleEverything()
	a := Decode(s, "e", def)
	deepEqual(t, a, def)
	isnil(t, DecodeOrNil[everything](s, "e"))
	eq(t, Contains[everything](s, "e"), false)
	isempty(t, s.Keys())

	_, err := TryDecode[foo](s, "foo")
	if !errors.Is(err, ErrMissing) {
		t.Errorf("TryDecode err = %v, wanted ErrMissing", err)
	}
	var de *DecodeError
	if errors.As(err, &de) {
		eq(t, de.Key, "foo.bar")
	} else {
		t.Errorf("err = %T, wanted *DecodeError", err)
	}
}

func TestCodec_partialValueIsMissing(t *testing.T) {
	s := NewMapSettings()
	s.PutString("foo.bar", "hello")
	eq(t, Decode(s, "foo", foo{"def", 1}), foo{"def", 1})

	s.PutLong("foo.baz", 5)
	_, err := TryDecode[foo](s, "foo")
	if !errors.Is(err, ErrMissing) {
		t.Errorf("wrong kind: err = %v, wanted ErrMissing", err)
	}

	s.PutInt("foo.baz", 5)
	eq(t, Decode(s, "foo", foo{}), foo{"hello", 5})
}

func TestCodec_optionalMissing(t *testing.T) {
	s := NewMapSettings()
	s.PutString("p.theme", "dark")

	a, err := TryDecode[prefs](s, "p")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	deepEqual(t, a, prefs{Theme: "dark", Volume: 0.5, Items: []string{"default"}})

	s.PutDouble("p.volume", 0.9)
	s.PutInt("p.level", int32(green))
	a = Decode(s, "p", prefs{})
	eq(t, a.Volume, 0.9)
	eq(t, a.Level, green)
}

func TestCodec_zeroLengthVersusAbsentList(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "p", prefs{Theme: "x", Items: []string{}})
	eq(t, s.GetBool("p.items?", false), true)
	eq(t, s.GetInt("p.items.size", -1), int32(0))

	// present and empty
	deepEqual(t, Decode(s, "p", prefs{}).Items, []string{})

	// a size without a true marker counts as missing
	s.Remove("p.items?")
	deepEqual(t, Decode(s, "p", prefs{}).Items, []string{"default"})

	s.PutBool("p.items?", false)
	deepEqual(t, Decode(s, "p", prefs{}).Items, []string{"default"})

	// absent entirely
	s.Remove("p.items?")
	s.Remove("p.items.size")
	deepEqual(t, Decode(s, "p", prefs{}).Items, []string{"default"})

	// a true marker commits to decoding, so the size is required
	s.PutBool("p.items?", true)
	_, err := TryDecode[prefs](s, "p")
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, ErrMissing) {
		t.Fatalf("err = %v, wanted missing size", err)
	}
	eq(t, de.Key, "p.items.size")
}

func TestCodec_staleDescendants(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "h", holder{&point{1, 2}})
	Encode(s, "h", holder{nil})

	deepEqual(t, snapshot(s), map[string]Value{
		"h.inner?":  BoolValue(false),
		"h.inner.x": IntValue(1),
		"h.inner.y": IntValue(2),
	})
	isnil(t, Decode(s, "h", holder{&point{}}).Inner)
	deepEqual(t, KeysOf[holder](s, "h"), []string{"h.inner?"})

	Remove[holder](s, "h", false)
	deepEqual(t, s.Keys(), []string{"h.inner.x", "h.inner.y"})
}

type note struct {
	Title string
	Body  *string `settings:",optional"`
}

func TestCodec_nullOptionalFieldMarkerSurvivesRemove(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "n", note{Title: "t"})
	deepEqual(t, snapshot(s), map[string]Value{
		"n.title": StringValue("t"),
		"n.body?": BoolValue(false),
	})
	deepEqual(t, KeysOf[note](s, "n"), []string{"n.title"})
	eq(t, Contains[note](s, "n"), true)

	Remove[note](s, "n", false)
	deepEqual(t, snapshot(s), map[string]Value{"n.body?": BoolValue(false)})
	isnil(t, DecodeOrNil[note](s, "n"))

	body := "b"
	Encode(s, "n", note{Title: "t", Body: &body})
	deepEqual(t, KeysOf[note](s, "n"), []string{"n.title", "n.body?", "n.body"})
	Remove[note](s, "n", false)
	isempty(t, s.Keys())
}

func TestCodec_enumeratedKeysMatchWrites(t *testing.T) {
	values := map[string]everything{
		"full":  sampleEverything(),
		"zero":  {},
		"empty": {Points: []point{}, ByName: map[string]point{}, Nilable: []bool{}},
	}
	for name, v := range values {
		t.Run(name, func(t *testing.T) {
			s := NewMapSettings()
			Encode(s, "e", v)

			keys := KeysOf[everything](s, "e")
			slices.Sort(keys)
			deepEqual(t, keys, s.Keys())

			Remove[everything](s, "e", false)
			isempty(t, s.Keys())

			Remove[everything](s, "e", false)
			isempty(t, s.Keys())
		})
	}
}

func TestCodec_enumerationOrder(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "t", testClass{[]string{"a", "b"}})
	deepEqual(t, KeysOf[testClass](s, "t"), []string{"t.list?", "t.list.size", "t.list.0", "t.list.1"})
}

func TestCodec_removeIdempotent(t *testing.T) {
	s := NewMapSettings()
	s.PutString("other", "kept")
	Encode(s, "foo", foo{"a", 1})

	Remove[foo](s, "foo", false)
	once := snapshot(s)
	Remove[foo](s, "foo", false)
	deepEqual(t, snapshot(s), once)
	deepEqual(t, s.Keys(), []string{"other"})
}

func TestCodec_removeIgnorePartial(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "foo", foo{"a", 1})
	s.Remove("foo.baz")

	Remove[foo](s, "foo", true)
	deepEqual(t, s.Keys(), []string{"foo.bar"})

	Remove[foo](s, "foo", false)
	isempty(t, s.Keys())
}

func TestCodec_enumOutOfRange(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "c", green)
	eq(t, s.GetInt("c", -1), int32(1))

	for _, ord := range []int32{3, -1} {
		s.PutInt("c", ord)
		_, err := TryDecode[color](s, "c")
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("ordinal %d: err = %v, wanted ErrInvalid", ord, err)
		}
		eq(t, Decode(s, "c", red), red)
	}
}

func TestCodec_arraySize(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "a", [2]int32{7, 8})
	eq(t, Decode(s, "a", [2]int32{}), [2]int32{7, 8})

	s.PutInt("a.size", 3)
	_, err := TryDecode[[2]int32](s, "a")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, wanted ErrInvalid", err)
	}

	s.PutInt("a.size", -1)
	_, err = TryDecode[[]int32](s, "a")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("negative size: err = %v, wanted ErrInvalid", err)
	}
}

func TestCodec_mapOrdering(t *testing.T) {
	s := NewMapSettings()
	Encode(s, "m", map[string]int32{"b": 2, "a": 1, "c": 3})
	deepEqual(t, snapshot(s), map[string]Value{
		"m.size": IntValue(3),
		"m.0":    StringValue("a"),
		"m.1":    IntValue(1),
		"m.2":    StringValue("b"),
		"m.3":    IntValue(2),
		"m.4":    StringValue("c"),
		"m.5":    IntValue(3),
	})

	s.Clear()
	Encode(s, "m", map[int64]bool{10: true, 2: false, -1: true})
	eq(t, s.GetLong("m.0", 0), int64(-1))
	eq(t, s.GetLong("m.2", 0), int64(2))
	eq(t, s.GetLong("m.4", 0), int64(10))
	deepEqual(t, Decode[map[int64]bool](s, "m", nil), map[int64]bool{10: true, 2: false, -1: true})
}

func TestCodec_mapOrderingTextKeys(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	s := NewMapSettings()
	Encode(s, "m", map[time.Time]int32{day(20): 20, day(3): 3, day(11): 11})
	eq(t, s.GetString("m.0", ""), "2024-03-03T00:00:00Z")
	eq(t, s.GetString("m.2", ""), "2024-03-11T00:00:00Z")
	eq(t, s.GetString("m.4", ""), "2024-03-20T00:00:00Z")
	eq(t, s.GetInt("m.5", 0), int32(20))
}

func TestCodec_oversizedSize(t *testing.T) {
	s := NewMapSettings()
	s.PutInt("l.size", math.MaxInt32)
	s.PutString("l.0", "x")
	deepEqual(t, Decode(s, "l", []string{"def"}), []string{"def"})
	_, err := TryDecode[[]string](s, "l")
	if !errors.Is(err, ErrMissing) {
		t.Errorf("TryDecode err = %v, wanted ErrMissing", err)
	}
	deepEqual(t, KeysOf[[]string](s, "l"), []string{"l.size", "l.0"})

	s.PutInt("m.size", math.MaxInt32)
	deepEqual(t, Decode[map[string]int32](s, "m", nil), map[string]int32(nil))
	deepEqual(t, KeysOf[map[string]int32](s, "m"), []string{"m.size"})

	Remove[[]string](s, "l", false)
	Remove[map[string]int32](s, "m", false)
	isempty(t, s.Keys())
}

func TestCodec_largeList(t *testing.T) {
	s := NewMapSettings()
	l := make([]int32, 3000)
	for i := range l {
		l[i] = int32(i * 7)
	}
	Encode(s, "l", l)
	deepEqual(t, Decode[[]int32](s, "l", nil), l)
	eq(t, len(KeysOf[[]int32](s, "l")), 3001)
}

func TestCodec_narrowing(t *testing.T) {
	type narrow struct {
		B int8
		U uint16
	}
	s := NewMapSettings()
	Encode(s, "n", narrow{-3, 65535})
	eq(t, s.GetInt("n.b", 0), int32(-3))
	eq(t, s.GetInt("n.u", 0), int32(65535))
	eq(t, Decode(s, "n", narrow{}), narrow{-3, 65535})

	s.PutInt("n.b", 300)
	eq(t, Decode(s, "n", narrow{}).B, int8(44))
}

func TestCodec_manualDescriptor(t *testing.T) {
	d := DescribeRecord[foo](func(b *RecordBuilder) {
		b.Field("title", "Bar").Field("count", "Baz", Optional)
	})
	c := NewCodec[foo](d)
	eq(t, c.Descriptor(), d)

	s := NewMapSettings()
	c.Encode(s, "f", foo{"x", 3})
	deepEqual(t, snapshot(s), map[string]Value{
		"f.title": StringValue("x"),
		"f.count": IntValue(3),
	})

	s.Remove("f.count")
	eq(t, c.Decode(s, "f", foo{}), foo{"x", 0})
	eq(t, c.Contains(s, "f"), true)

	assertPanics(t, func() { NewCodec[point](d) })
}

func TestCodec_reuseAfterFailure(t *testing.T) {
	s := NewMapSettings()
	c := CodecOf[everything]()
	dc := newDecoder(s, "e")

	Encode(s, "e", sampleEverything())
	s.Remove("e.points.1.y")
	if _, err := c.decodeWith(dc); err == nil {
		t.Fatalf("decode succeeded with a missing key")
	}
	eq(t, dc.c.atRest(), true)

	s.PutInt("e.points.1.y", 6)
	a, err := c.decodeWith(dc)
	if err != nil {
		t.Fatalf("decode after repair: %v", err)
	}
	eq(t, a.Points[1], point{5, 6})
	eq(t, dc.c.atRest(), true)

	e := newEncoder(s, "e")
	c.encodeWith(e, everything{})
	eq(t, e.c.atRest(), true)

	r := newRemover(s, "e")
	r.enumerate(c.desc)
	eq(t, r.c.atRest(), true)
}

type badText struct{}

func (badText) MarshalText() ([]byte, error) { return nil, errors.New("nope") }
func (*badText) UnmarshalText([]byte) error  { return errors.New("nope") }

func TestCodec_textErrors(t *testing.T) {
	s := NewMapSettings()
	e := newEncoder(s, "t")
	assertPanics(t, func() { CodecOf[badText]().encodeWith(e, badText{}) })
	eq(t, e.c.atRest(), true)

	s.PutString("t", "x")
	_, err := TryDecode[badText](s, "t")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, wanted ErrInvalid", err)
	}
}
