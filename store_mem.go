package settings

import (
	"maps"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"
)

// MapSettings is an in-memory store, safe for concurrent use. It backs
// FileSettings and is handy in tests.
type MapSettings struct {
	accessors
	m         *xsync.MapOf[string, Value]
	listeners listenerRegistry
}

var (
	_ ObservableSettings = (*MapSettings)(nil)
	_ valueStore         = (*MapSettings)(nil)
)

func NewMapSettings() *MapSettings {
	s := &MapSettings{
		m: xsync.NewMapOf[string, Value](),
	}
	s.accessors = accessors{s}
	s.listeners.init()
	return s
}

// NewMapSettingsFrom copies initial contents; invalid values are skipped.
func NewMapSettingsFrom(initial map[string]Value) *MapSettings {
	s := NewMapSettings()
	for k, v := range initial {
		if v.IsValid() {
			s.m.Store(k, v)
		}
	}
	return s
}

func (s *MapSettings) loadValue(key string) (Value, bool) {
	return s.m.Load(key)
}

func (s *MapSettings) storeValue(key string, v Value) {
	if s.put(key, v) {
		s.listeners.notify(key)
	}
}

func (s *MapSettings) put(key string, v Value) (changed bool) {
	prev, loaded := s.m.LoadAndStore(key, v)
	return !loaded || !prev.Equal(v)
}

func (s *MapSettings) delete(key string) (changed bool) {
	_, loaded := s.m.LoadAndDelete(key)
	return loaded
}

func (s *MapSettings) clear() []string {
	keys := s.Keys()
	s.m.Clear()
	return keys
}

func (s *MapSettings) Keys() []string {
	keys := make([]string, 0, s.m.Size())
	s.m.Range(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	slices.Sort(keys)
	return keys
}

func (s *MapSettings) Size() int {
	return s.m.Size()
}

func (s *MapSettings) Clear() {
	s.listeners.notify(s.clear()...)
}

func (s *MapSettings) Remove(key string) {
	if s.delete(key) {
		s.listeners.notify(key)
	}
}

func (s *MapSettings) HasKey(key string) bool {
	_, ok := s.m.Load(key)
	return ok
}

func (s *MapSettings) AddListener(key string, fn func()) Listener {
	return s.listeners.add(key, fn)
}

// Snapshot returns a copy of the current contents.
func (s *MapSettings) Snapshot() map[string]Value {
	m := make(map[string]Value, s.m.Size())
	s.m.Range(func(k string, v Value) bool {
		m[k] = v
		return true
	})
	return m
}

// Equal reports whether both stores hold the same keys and values.
func (s *MapSettings) Equal(o *MapSettings) bool {
	return maps.EqualFunc(s.Snapshot(), o.Snapshot(), Value.Equal)
}
