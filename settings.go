package settings

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Settings is a flat key-value store holding one primitive per string key.
//
// GetX returns the default when the key is absent or holds another kind;
// LookupX reports presence instead. Writes are assumed to succeed.
type Settings interface {
	// Keys returns all keys, sorted.
	Keys() []string
	Size() int
	Clear()
	Remove(key string)
	HasKey(key string) bool

	PutInt(key string, value int32)
	GetInt(key string, defaultValue int32) int32
	LookupInt(key string) (int32, bool)

	PutLong(key string, value int64)
	GetLong(key string, defaultValue int64) int64
	LookupLong(key string) (int64, bool)

	PutString(key string, value string)
	GetString(key string, defaultValue string) string
	LookupString(key string) (string, bool)

	PutFloat(key string, value float32)
	GetFloat(key string, defaultValue float32) float32
	LookupFloat(key string) (float32, bool)

	PutDouble(key string, value float64)
	GetDouble(key string, defaultValue float64) float64
	LookupDouble(key string) (float64, bool)

	PutBool(key string, value bool)
	GetBool(key string, defaultValue bool) bool
	LookupBool(key string) (bool, bool)
}

// ObservableSettings notifies listeners when the value under a key changes.
type ObservableSettings interface {
	Settings
	AddListener(key string, fn func()) Listener
}

type Listener interface {
	// Deactivate stops further notifications. Safe to call more than once.
	Deactivate()
}

// Observe calls fn with the current value of key (as the given kind) every
// time it changes.
func Observe(s ObservableSettings, key string, kind Kind, fn func(v Value, ok bool)) Listener {
	return s.AddListener(key, func() {
		v, ok := Get(s, key, kind)
		fn(v, ok)
	})
}

// valueStore is the narrow contract backends implement; accessors turns it
// into the full typed Settings surface.
type valueStore interface {
	loadValue(key string) (Value, bool)
	storeValue(key string, v Value)
}

type accessors struct {
	vs valueStore
}

func (a accessors) lookup(key string, kind Kind) (Value, bool) {
	v, ok := a.vs.loadValue(key)
	if !ok || v.kind != kind {
		return Value{}, false
	}
	return v, true
}

func (a accessors) PutInt(key string, value int32) { a.vs.storeValue(key, IntValue(value)) }
func (a accessors) GetInt(key string, defaultValue int32) int32 {
	if v, ok := a.LookupInt(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupInt(key string) (int32, bool) {
	v, ok := a.lookup(key, KindInt)
	return v.Int(), ok
}

func (a accessors) PutLong(key string, value int64) { a.vs.storeValue(key, LongValue(value)) }
func (a accessors) GetLong(key string, defaultValue int64) int64 {
	if v, ok := a.LookupLong(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupLong(key string) (int64, bool) {
	v, ok := a.lookup(key, KindLong)
	return v.Long(), ok
}

func (a accessors) PutString(key string, value string) { a.vs.storeValue(key, StringValue(value)) }
func (a accessors) GetString(key string, defaultValue string) string {
	if v, ok := a.LookupString(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupString(key string) (string, bool) {
	v, ok := a.lookup(key, KindString)
	return v.Str(), ok
}

func (a accessors) PutFloat(key string, value float32) { a.vs.storeValue(key, FloatValue(value)) }
func (a accessors) GetFloat(key string, defaultValue float32) float32 {
	if v, ok := a.LookupFloat(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupFloat(key string) (float32, bool) {
	v, ok := a.lookup(key, KindFloat)
	return v.Float(), ok
}

func (a accessors) PutDouble(key string, value float64) { a.vs.storeValue(key, DoubleValue(value)) }
func (a accessors) GetDouble(key string, defaultValue float64) float64 {
	if v, ok := a.LookupDouble(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupDouble(key string) (float64, bool) {
	v, ok := a.lookup(key, KindDouble)
	return v.Double(), ok
}

func (a accessors) PutBool(key string, value bool) { a.vs.storeValue(key, BoolValue(value)) }
func (a accessors) GetBool(key string, defaultValue bool) bool {
	if v, ok := a.LookupBool(key); ok {
		return v
	}
	return defaultValue
}
func (a accessors) LookupBool(key string) (bool, bool) {
	v, ok := a.lookup(key, KindBool)
	return v.Bool(), ok
}

// listenerRegistry is shared by all backends that implement
// ObservableSettings.
type listenerRegistry struct {
	lastID atomic.Uint64
	byID   *xsync.MapOf[uint64, *keyListener]
}

type keyListener struct {
	reg    *listenerRegistry
	id     uint64
	key    string
	fn     func()
	active atomic.Bool
}

func (l *keyListener) Deactivate() {
	if l.active.CompareAndSwap(true, false) {
		l.reg.byID.Delete(l.id)
	}
}

func (r *listenerRegistry) add(key string, fn func()) Listener {
	if r.byID == nil {
		panic("listenerRegistry not initialized")
	}
	l := &keyListener{
		reg: r,
		id:  r.lastID.Add(1),
		key: key,
		fn:  fn,
	}
	l.active.Store(true)
	r.byID.Store(l.id, l)
	return l
}

func (r *listenerRegistry) init() {
	r.byID = xsync.NewMapOf[uint64, *keyListener]()
}

func (r *listenerRegistry) empty() bool {
	return r.byID.Size() == 0
}

// notify runs listeners of the given keys in registration order.
func (r *listenerRegistry) notify(keys ...string) {
	if r.empty() || len(keys) == 0 {
		return
	}
	var fire []*keyListener
	r.byID.Range(func(_ uint64, l *keyListener) bool {
		for _, k := range keys {
			if l.key == k {
				fire = append(fire, l)
				break
			}
		}
		return true
	})
	sort.Slice(fire, func(i, j int) bool { return fire[i].id < fire[j].id })
	for _, l := range fire {
		if l.active.Load() {
			l.fn()
		}
	}
}
