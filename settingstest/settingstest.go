// Package settingstest provides a conformance suite and benchmarks for
// settings.ObservableSettings implementations.
//
// Example usage:
//
//	factory := func(t testing.TB, dir string) settings.ObservableSettings {
//		s := NewMyStore(filepath.Join(dir, "my.db"))
//		t.Cleanup(func() { s.Close() })
//		return s
//	}
//	settingstest.Run(t, "MyStore", factory, true)
package settingstest

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/andreyvit/settings"
)

// Factory opens the store kept in dir. In-memory stores ignore dir and
// return a fresh empty store every time.
type Factory func(t testing.TB, dir string) settings.ObservableSettings

// Run runs the suite. Persistent stores additionally get their contents
// checked across close and reopen; they must implement io.Closer.
func Run(t *testing.T, name string, factory Factory, persistent bool) {
	t.Run(name, func(t *testing.T) {
		open := func(t *testing.T) settings.ObservableSettings {
			return factory(t, t.TempDir())
		}

		t.Run("PutGet", func(t *testing.T) {
			testPutGet(t, open(t))
		})
		t.Run("KindMismatch", func(t *testing.T) {
			testKindMismatch(t, open(t))
		})
		t.Run("Remove", func(t *testing.T) {
			testRemove(t, open(t))
		})
		t.Run("KeysSizeClear", func(t *testing.T) {
			testKeysSizeClear(t, open(t))
		})
		t.Run("Listeners", func(t *testing.T) {
			testListeners(t, open(t))
		})
		t.Run("Codec", func(t *testing.T) {
			testCodec(t, open(t))
		})
		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, open(t))
		})
		if persistent {
			t.Run("Reopen", func(t *testing.T) {
				testReopen(t, factory)
			})
		}
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func expectKeys(t testing.TB, s settings.Settings, expected ...string) {
	t.Helper()
	actual := s.Keys()
	if len(actual) == 0 && len(expected) == 0 {
		return
	}
	if !slices.Equal(actual, expected) {
		t.Errorf("Keys() = %q, expected %q", actual, expected)
	}
	if a, e := s.Size(), len(expected); a != e {
		t.Errorf("Size() = %d, expected %d", a, e)
	}
}

type sample struct {
	key   string
	value settings.Value
}

var samples = []sample{
	{"int.zero", settings.IntValue(0)},
	{"int.min", settings.IntValue(math.MinInt32)},
	{"int.max", settings.IntValue(math.MaxInt32)},
	{"long.min", settings.LongValue(math.MinInt64)},
	{"long.max", settings.LongValue(math.MaxInt64)},
	{"string.empty", settings.StringValue("")},
	{"string.unicode", settings.StringValue("héllo, 世界\x00tail")},
	{"float.small", settings.FloatValue(math.SmallestNonzeroFloat32)},
	{"float.nan", settings.FloatValue(float32(math.NaN()))},
	{"double.negzero", settings.DoubleValue(math.Copysign(0, -1))},
	{"double.inf", settings.DoubleValue(math.Inf(-1))},
	{"bool.true", settings.BoolValue(true)},
	{"bool.false", settings.BoolValue(false)},
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s settings.ObservableSettings) {
	for _, smp := range samples {
		settings.Put(s, smp.key, smp.value)
	}
	for _, smp := range samples {
		v, ok := settings.Get(s, smp.key, smp.value.Kind())
		if !ok {
			t.Errorf("%s: missing after Put", smp.key)
			continue
		}
		if !v.Equal(smp.value) {
			t.Errorf("%s = %v, expected %v", smp.key, v, smp.value)
		}
		if !s.HasKey(smp.key) {
			t.Errorf("HasKey(%q) = false after Put", smp.key)
		}
	}

	s.PutString("overwrite", "first")
	s.PutString("overwrite", "second")
	if a, e := s.GetString("overwrite", ""), "second"; a != e {
		t.Errorf("GetString(overwrite) = %q, expected %q", a, e)
	}

	if a, e := s.GetLong("absent", 42), int64(42); a != e {
		t.Errorf("GetLong(absent) = %v, expected default %v", a, e)
	}
	if _, ok := s.LookupBool("absent"); ok {
		t.Errorf("LookupBool(absent) reported presence")
	}
}

func testKindMismatch(t *testing.T, s settings.ObservableSettings) {
	s.PutInt("n", 5)
	if _, ok := s.LookupString("n"); ok {
		t.Errorf("LookupString on an int key reported presence")
	}
	if a, e := s.GetLong("n", -1), int64(-1); a != e {
		t.Errorf("GetLong on an int key = %v, expected default %v", a, e)
	}
	if !s.HasKey("n") {
		t.Errorf("HasKey(n) = false")
	}

	s.PutString("n", "five")
	if _, ok := s.LookupInt("n"); ok {
		t.Errorf("LookupInt after overwriting with a string reported presence")
	}
	if a, e := s.GetString("n", ""), "five"; a != e {
		t.Errorf("GetString(n) = %q, expected %q", a, e)
	}
	if v, ok := settings.LookupAny(s, "n"); !ok || v.Kind() != settings.KindString {
		t.Errorf("LookupAny(n) = %v, %v, expected a string", v, ok)
	}
}

func testRemove(t *testing.T, s settings.ObservableSettings) {
	s.PutBool("a", true)
	s.PutBool("b", true)

	s.Remove("a")
	if s.HasKey("a") {
		t.Errorf("HasKey(a) after Remove")
	}
	if !s.HasKey("b") {
		t.Errorf("Remove(a) removed b")
	}

	s.Remove("a")
	s.Remove("never-existed")
	expectKeys(t, s, "b")
}

func testKeysSizeClear(t *testing.T, s settings.ObservableSettings) {
	expectKeys(t, s)

	for _, k := range []string{"z", "a.b", "a", "a.size", "a?", "m.10", "m.2"} {
		s.PutInt(k, 1)
	}
	expectKeys(t, s, "a", "a.b", "a.size", "a?", "m.10", "m.2", "z")

	s.Clear()
	expectKeys(t, s)
	if s.HasKey("z") {
		t.Errorf("HasKey(z) after Clear")
	}

	s.PutInt("after", 1)
	expectKeys(t, s, "after")
}

func testListeners(t *testing.T, s settings.ObservableSettings) {
	var calls []string
	la := s.AddListener("a", func() { calls = append(calls, "a1") })
	s.AddListener("a", func() { calls = append(calls, "a2") })
	s.AddListener("b", func() { calls = append(calls, "b") })

	s.PutInt("a", 1)
	s.PutInt("a", 1)
	s.PutInt("c", 1)
	if e := []string{"a1", "a2"}; !slices.Equal(calls, e) {
		t.Errorf("after puts: calls = %q, expected %q", calls, e)
	}

	calls = nil
	la.Deactivate()
	la.Deactivate()
	s.PutInt("a", 2)
	s.Remove("b")
	s.PutInt("b", 1)
	s.Remove("b")
	if e := []string{"a2", "b", "b"}; !slices.Equal(calls, e) {
		t.Errorf("after deactivate: calls = %q, expected %q", calls, e)
	}

	calls = nil
	s.PutInt("b", 1)
	calls = nil
	s.Clear()
	slices.Sort(calls)
	if e := []string{"a2", "b"}; !slices.Equal(calls, e) {
		t.Errorf("after clear: calls = %q, expected %q", calls, e)
	}

	var seen []settings.Value
	settings.Observe(s, "x", settings.KindDouble, func(v settings.Value, ok bool) {
		if ok {
			seen = append(seen, v)
		}
	})
	s.PutDouble("x", 1.5)
	if len(seen) != 1 || seen[0].Double() != 1.5 {
		t.Errorf("Observe saw %v, expected [1.5]", seen)
	}
}

type level int

func (level) EnumNames() []string { return []string{"low", "mid", "high"} }

type profile struct {
	Name   string
	Level  level
	Tags   []string
	Limits map[string]int64
	Parent *profile `settings:",optional"`
}

func testCodec(t *testing.T, s settings.ObservableSettings) {
	p := profile{
		Name:   "root",
		Level:  2,
		Tags:   []string{"x", "y"},
		Limits: map[string]int64{"daily": 10, "monthly": 300},
		Parent: &profile{Name: "parent", Tags: []string{}},
	}
	settings.Encode(s, "p", p)

	actual, err := settings.TryDecode[profile](s, "p")
	if err != nil {
		t.Fatalf("TryDecode: %v", err)
	}
	if actual.Name != "root" || actual.Level != 2 || !slices.Equal(actual.Tags, p.Tags) {
		t.Errorf("decoded %+v, expected %+v", actual, p)
	}
	if actual.Limits["daily"] != 10 || actual.Limits["monthly"] != 300 || len(actual.Limits) != 2 {
		t.Errorf("decoded limits %v, expected %v", actual.Limits, p.Limits)
	}
	if actual.Parent == nil || actual.Parent.Name != "parent" || actual.Parent.Parent != nil {
		t.Errorf("decoded parent %+v, expected %+v", actual.Parent, p.Parent)
	}

	// The null optional p.parent.parent is written as a false marker but is
	// not part of the enumerated value, so Remove leaves the marker behind.
	const nullMarker = "p.parent.parent?"
	keys := settings.KeysOf[profile](s, "p")
	if slices.Contains(keys, nullMarker) {
		t.Errorf("KeysOf lists %s", nullMarker)
	}
	keys = append(keys, nullMarker)
	slices.Sort(keys)
	expectKeys(t, s, keys...)

	settings.Remove[profile](s, "p", false)
	expectKeys(t, s, nullMarker)
}

func testConcurrent(t *testing.T, s settings.ObservableSettings) {
	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				key := fmt.Sprintf("w%d.k%d", w, i)
				s.PutLong(key, int64(w*perWorker+i))
				if _, ok := s.LookupLong(key); !ok {
					t.Errorf("%s missing right after Put", key)
				}
			}
		}()
	}
	wg.Wait()

	if a, e := s.Size(), workers*perWorker; a != e {
		t.Errorf("Size() = %d, expected %d", a, e)
	}
	if a, e := s.GetLong("w3.k7", -1), int64(3*perWorker+7); a != e {
		t.Errorf("w3.k7 = %d, expected %d", a, e)
	}
}

func testReopen(t *testing.T, factory Factory) {
	dir := t.TempDir()

	s := factory(t, dir)
	for _, smp := range samples {
		settings.Put(s, smp.key, smp.value)
	}
	s.Remove("int.zero")
	s.PutString("string.empty", "no longer empty")
	closeStore(t, s)

	s = factory(t, dir)
	defer closeStore(t, s)
	for _, smp := range samples {
		v, ok := settings.Get(s, smp.key, smp.value.Kind())
		switch smp.key {
		case "int.zero":
			if ok {
				t.Errorf("%s: survived Remove across reopen", smp.key)
			}
		case "string.empty":
			if v.Str() != "no longer empty" {
				t.Errorf("%s = %v after reopen", smp.key, v)
			}
		default:
			if !ok || !v.Equal(smp.value) {
				t.Errorf("%s = %v, %v after reopen, expected %v", smp.key, v, ok, smp.value)
			}
		}
	}
	expectKeysLen(t, s, len(samples)-1)
}

func expectKeysLen(t testing.TB, s settings.Settings, n int) {
	t.Helper()
	if a := len(s.Keys()); a != n {
		t.Errorf("len(Keys()) = %d, expected %d", a, n)
	}
}

func closeStore(t testing.TB, s settings.Settings) {
	t.Helper()
	c, ok := s.(io.Closer)
	if !ok {
		t.Fatalf("%T does not implement io.Closer", s)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
