package settings

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/settings/journal"
)

type FileOptions struct {
	// SyncWrites fsyncs the journal after every change.
	SyncWrites bool

	// CompactRatio triggers compaction once the journal holds more than
	// CompactRatio records per live key. Defaults to DefaultCompactRatio;
	// negative disables automatic compaction.
	CompactRatio float64

	// MinCompactRecords is the journal length below which automatic
	// compaction never runs. Defaults to DefaultMinCompactRecords.
	MinCompactRecords int

	Logger *slog.Logger
}

const (
	DefaultCompactRatio      = 4
	DefaultMinCompactRecords = 1024
)

var fileInvariant = [32]byte{'a', 'n', 'd', 'r', 'e', 'y', 'v', 'i', 't', '/', 's', 'e', 't', 't', 'i', 'n', 'g', 's', ' ', 'v', '1'}

type changeOp uint8

const (
	opPut changeOp = iota + 1
	opRemove
	opClear
)

// changeRecord is one journal entry.
type changeRecord struct {
	Op   changeOp `msgpack:"o"`
	Key  string   `msgpack:"k,omitempty"`
	Kind Kind     `msgpack:"t,omitempty"`
	Bits uint64   `msgpack:"b,omitempty"`
	Str  string   `msgpack:"s,omitempty"`
}

func (rec *changeRecord) value() (Value, error) {
	switch {
	case rec.Kind == KindString:
		return StringValue(rec.Str), nil
	case rec.Kind.Valid():
		return ValueFromBits(rec.Kind, rec.Bits), nil
	default:
		return Value{}, fmt.Errorf("put %q: invalid kind %d", rec.Key, rec.Kind)
	}
}

// FileSettings keeps everything in memory and logs each change to a
// journal file, which is replayed on open.
type FileSettings struct {
	accessors
	mem    *MapSettings
	j      *journal.Journal
	logger *slog.Logger
	name   string

	compactRatio      float64
	minCompactRecords int

	mu sync.Mutex
}

var (
	_ ObservableSettings = (*FileSettings)(nil)
	_ valueStore         = (*FileSettings)(nil)
)

func OpenFile(path string, o FileOptions) (*FileSettings, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.CompactRatio == 0 {
		o.CompactRatio = DefaultCompactRatio
	}
	if o.MinCompactRecords == 0 {
		o.MinCompactRecords = DefaultMinCompactRecords
	}
	j, err := journal.Open(path, journal.Options{
		Invariant:  fileInvariant,
		SyncWrites: o.SyncWrites,
		DebugName:  "settings:" + path,
		Logger:     o.Logger,
	})
	if err != nil {
		return nil, err
	}

	s := &FileSettings{
		mem:               NewMapSettings(),
		j:                 j,
		logger:            o.Logger,
		name:              "file:" + path,
		compactRatio:      o.CompactRatio,
		minCompactRecords: o.MinCompactRecords,
	}
	s.accessors = accessors{s}

	var rec changeRecord
	err = j.Replay(func(data []byte) error {
		rec = changeRecord{}
		if err := msgpack.Unmarshal(data, &rec); err != nil {
			return dataErrf(data, 0, err, "failed to decode change record")
		}
		return s.apply(&rec)
	})
	if err != nil {
		j.Close()
		return nil, storeErr(s.name, "replay", "", err)
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "settings: loaded", slog.String("store", s.name), slog.Int("keys", s.mem.Size()), slog.Int("records", j.Records()))
	return s, nil
}

func (s *FileSettings) apply(rec *changeRecord) error {
	switch rec.Op {
	case opPut:
		v, err := rec.value()
		if err != nil {
			return err
		}
		s.mem.put(rec.Key, v)
	case opRemove:
		s.mem.delete(rec.Key)
	case opClear:
		s.mem.clear()
	default:
		return fmt.Errorf("unknown change op %d", rec.Op)
	}
	return nil
}

func (s *FileSettings) String() string { return s.name }

func (s *FileSettings) loadValue(key string) (Value, bool) {
	return s.mem.loadValue(key)
}

func (s *FileSettings) storeValue(key string, v Value) {
	if s.put(key, v) {
		s.mem.listeners.notify(key)
	}
}

func (s *FileSettings) Remove(key string) {
	if s.delete(key) {
		s.mem.listeners.notify(key)
	}
}

func (s *FileSettings) Clear() {
	if keys := s.clear(); len(keys) > 0 {
		s.mem.listeners.notify(keys...)
	}
}

func (s *FileSettings) put(key string, v Value) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.mem.loadValue(key); ok && prev.Equal(v) {
		return false
	}
	s.log(&changeRecord{Op: opPut, Key: key, Kind: v.kind, Bits: v.bits, Str: v.str})
	s.mem.put(key, v)
	s.maybeCompact()
	return true
}

func (s *FileSettings) delete(key string) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mem.HasKey(key) {
		return false
	}
	s.log(&changeRecord{Op: opRemove, Key: key})
	s.mem.delete(key)
	s.maybeCompact()
	return true
}

func (s *FileSettings) clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem.Size() == 0 {
		return nil
	}
	s.log(&changeRecord{Op: opClear})
	keys := s.mem.clear()
	s.maybeCompact()
	return keys
}

func (s *FileSettings) Keys() []string             { return s.mem.Keys() }
func (s *FileSettings) Size() int                  { return s.mem.Size() }
func (s *FileSettings) HasKey(key string) bool     { return s.mem.HasKey(key) }
func (s *FileSettings) Snapshot() map[string]Value { return s.mem.Snapshot() }

func (s *FileSettings) AddListener(key string, fn func()) Listener {
	return s.mem.AddListener(key, fn)
}

// log appends rec to the journal. Must hold s.mu.
func (s *FileSettings) log(rec *changeRecord) {
	buf := changeBufPool.Get().(*bytes.Buffer)
	defer releaseChangeBuf(buf)

	enc := msgpack.GetEncoder()
	enc.Reset(buf)
	err := enc.Encode(rec)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode change record using MsgPack: %w", err))
	}

	if err := s.j.Append(buf.Bytes()); err != nil {
		panic(storeErr(s.name, "append", rec.Key, err))
	}
}

// maybeCompact runs after the in-memory state has caught up with the
// journal. Must hold s.mu.
func (s *FileSettings) maybeCompact() {
	if s.compactRatio <= 0 {
		return
	}
	records, live := s.j.Records(), s.mem.Size()
	if records < s.minCompactRecords || float64(records) <= s.compactRatio*float64(max(live, 1)) {
		return
	}
	if err := s.compact(); err != nil {
		s.logger.LogAttrs(context.Background(), slog.LevelWarn, "settings: compaction failed", slog.String("store", s.name), slog.Any("err", err))
	}
}

// Compact rewrites the journal as one record per live key.
func (s *FileSettings) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compact()
}

func (s *FileSettings) compact() error {
	snap := s.mem.Snapshot()
	keys := s.mem.Keys()
	before := s.j.Records()

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	err := s.j.Rewrite(func(w *journal.Writer) error {
		for _, k := range keys {
			v, ok := snap[k]
			if !ok {
				continue
			}
			buf.Reset()
			if err := enc.Encode(&changeRecord{Op: opPut, Key: k, Kind: v.kind, Bits: v.bits, Str: v.str}); err != nil {
				return err
			}
			if err := w.Append(buf.Bytes()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr(s.name, "compact", "", err)
	}
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "settings: compacted", slog.String("store", s.name), slog.Int("records_before", before), slog.Int("records_after", s.j.Records()))
	return nil
}

// JournalRecords is the number of change records in the journal file.
func (s *FileSettings) JournalRecords() int {
	return s.j.Records()
}

func (s *FileSettings) Sync() error {
	return s.j.Sync()
}

func (s *FileSettings) Close() error {
	return s.j.Close()
}
