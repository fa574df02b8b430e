package settings

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const DefaultBucket = "settings"

type BoltOptions struct {
	// Bucket defaults to DefaultBucket.
	Bucket   string
	Timeout  time.Duration
	ReadOnly bool
	NoSync   bool
	Logger   *slog.Logger
}

// BoltSettings keeps settings in one bucket of a Bolt database. Every call
// is its own transaction. Failed writes panic with *StoreError.
type BoltSettings struct {
	accessors
	bdb       *bbolt.DB
	bucket    []byte
	name      string
	owned     bool
	logger    *slog.Logger
	listeners listenerRegistry
}

var (
	_ ObservableSettings = (*BoltSettings)(nil)
	_ valueStore         = (*BoltSettings)(nil)
)

// OpenBolt opens (creating if needed) a Bolt file. Close closes the file.
func OpenBolt(path string, o BoltOptions) (*BoltSettings, error) {
	bdb, err := bbolt.Open(path, 0o666, &bbolt.Options{
		Timeout:  o.Timeout,
		ReadOnly: o.ReadOnly,
		NoSync:   o.NoSync,
	})
	if err != nil {
		return nil, err
	}
	s, err := NewBoltSettings(bdb, o)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewBoltSettings uses a bucket of an already open database, which the
// caller keeps ownership of.
func NewBoltSettings(bdb *bbolt.DB, o BoltOptions) (*BoltSettings, error) {
	if o.Bucket == "" {
		o.Bucket = DefaultBucket
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	s := &BoltSettings{
		bdb:    bdb,
		bucket: []byte(o.Bucket),
		name:   "bolt:" + o.Bucket,
		logger: o.Logger,
	}
	s.accessors = accessors{s}
	s.listeners.init()

	if !bdb.IsReadOnly() {
		err := bdb.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(s.bucket)
			return err
		})
		if err != nil {
			return nil, storeErr(s.name, "create bucket", "", err)
		}
	}
	return s, nil
}

func (s *BoltSettings) DB() *bbolt.DB { return s.bdb }

func (s *BoltSettings) String() string { return s.name }

func (s *BoltSettings) Close() error {
	if !s.owned {
		return nil
	}
	return s.bdb.Close()
}

func (s *BoltSettings) view(f func(b *bbolt.Bucket)) {
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(s.bucket); b != nil {
			f(b)
		}
		return nil
	})
	if err != nil {
		panic(storeErr(s.name, "read", "", err))
	}
}

func (s *BoltSettings) update(op, key string, f func(b *bbolt.Bucket) error) {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return f(b)
	})
	if err != nil {
		panic(storeErr(s.name, op, key, err))
	}
}

func (s *BoltSettings) loadValue(key string) (v Value, found bool) {
	s.view(func(b *bbolt.Bucket) {
		raw := b.Get(unsafeBytesFromString(key))
		if raw == nil {
			return
		}
		var err error
		v, err = decodeStoredValue(raw)
		if err != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelWarn, "settings: ignoring malformed value", slog.String("store", s.name), slog.String("key", key), hexAttr("raw", raw), slog.Any("err", err))
			return
		}
		found = true
	})
	return
}

func (s *BoltSettings) storeValue(key string, v Value) {
	buf := appendStoredValue(storedValueBytesPool.Get().([]byte), v)
	defer releaseStoredValueBytes(buf)

	var changed bool
	s.update("put", key, func(b *bbolt.Bucket) error {
		k := unsafeBytesFromString(key)
		changed = !bytes.Equal(b.Get(k), buf)
		if !changed {
			return nil
		}
		return b.Put(k, buf)
	})
	if changed {
		s.listeners.notify(key)
	}
}

func (s *BoltSettings) Remove(key string) {
	var changed bool
	s.update("remove", key, func(b *bbolt.Bucket) error {
		k := unsafeBytesFromString(key)
		if b.Get(k) == nil {
			return nil
		}
		changed = true
		return b.Delete(k)
	})
	if changed {
		s.listeners.notify(key)
	}
}

func (s *BoltSettings) Clear() {
	var keys []string
	s.update("clear", "", func(b *bbolt.Bucket) error {
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.First() {
			keys = append(keys, string(k))
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	s.listeners.notify(keys...)
}

func (s *BoltSettings) Keys() []string {
	var keys []string
	s.view(func(b *bbolt.Bucket) {
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
	})
	return keys
}

func (s *BoltSettings) Size() int {
	var n int
	s.view(func(b *bbolt.Bucket) {
		n = b.Stats().KeyN
	})
	return n
}

func (s *BoltSettings) HasKey(key string) bool {
	var found bool
	s.view(func(b *bbolt.Bucket) {
		found = b.Get(unsafeBytesFromString(key)) != nil
	})
	return found
}

func (s *BoltSettings) AddListener(key string, fn func()) Listener {
	return s.listeners.add(key, fn)
}
