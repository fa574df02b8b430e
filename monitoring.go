package settings

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Instrumented wraps a store and counts its traffic.
type Instrumented struct {
	accessors
	inner Settings
	name  string
	set   *metrics.Set

	reads   *metrics.Counter
	misses  *metrics.Counter
	writes  *metrics.Counter
	removes *metrics.Counter
}

var (
	_ Settings   = (*Instrumented)(nil)
	_ valueStore = (*Instrumented)(nil)
)

// Instrument returns a wrapper around s whose metrics are labelled
// store="name". If s is observable, so is the wrapper.
func Instrument(s Settings, name string) *Instrumented {
	set := metrics.NewSet()
	label := func(metric string) string {
		return fmt.Sprintf(`%s{store=%q}`, metric, name)
	}
	in := &Instrumented{
		inner:   s,
		name:    name,
		set:     set,
		reads:   set.NewCounter(label("settings_reads_total")),
		misses:  set.NewCounter(label("settings_misses_total")),
		writes:  set.NewCounter(label("settings_writes_total")),
		removes: set.NewCounter(label("settings_removes_total")),
	}
	in.accessors = accessors{in}
	set.NewGauge(label("settings_keys"), func() float64 {
		return float64(s.Size())
	})
	return in
}

func (in *Instrumented) Inner() Settings { return in.inner }
func (in *Instrumented) String() string  { return in.name }

func (in *Instrumented) loadValue(key string) (Value, bool) {
	in.reads.Inc()
	v, ok := LookupAny(in.inner, key)
	if !ok {
		in.misses.Inc()
	}
	return v, ok
}

func (in *Instrumented) storeValue(key string, v Value) {
	in.writes.Inc()
	Put(in.inner, key, v)
}

func (in *Instrumented) Keys() []string         { return in.inner.Keys() }
func (in *Instrumented) Size() int              { return in.inner.Size() }
func (in *Instrumented) HasKey(key string) bool { return in.inner.HasKey(key) }

func (in *Instrumented) Remove(key string) {
	in.removes.Inc()
	in.inner.Remove(key)
}

func (in *Instrumented) Clear() {
	in.removes.Add(in.inner.Size())
	in.inner.Clear()
}

// AddListener panics unless the wrapped store is observable.
func (in *Instrumented) AddListener(key string, fn func()) Listener {
	obs, ok := in.inner.(ObservableSettings)
	if !ok {
		panic(fmt.Errorf("settings: %T is not observable", in.inner))
	}
	return obs.AddListener(key, fn)
}

// Counts returns the current counter values.
func (in *Instrumented) Counts() (reads, misses, writes, removes uint64) {
	return in.reads.Get(), in.misses.Get(), in.writes.Get(), in.removes.Get()
}

func (in *Instrumented) WritePrometheus(w io.Writer) {
	in.set.WritePrometheus(w)
}

// Stats summarizes the contents of a store.
type Stats struct {
	Keys        int
	ByKind      map[Kind]int
	StringBytes int
}

func StatsOf(s Settings) Stats {
	st := Stats{ByKind: make(map[Kind]int)}
	for _, k := range s.Keys() {
		v, ok := LookupAny(s, k)
		if !ok {
			continue
		}
		st.Keys++
		st.ByKind[v.kind]++
		if v.kind == KindString {
			st.StringBytes += len(v.str)
		}
	}
	return st
}
