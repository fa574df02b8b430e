// Package journal implements a single-file append-only record log.
//
// Features:
//
//  1. Records of any size, each followed by a checksum of the whole file up
//     to that point, so a record is only accepted if everything before it
//     is intact.
//
//  2. Crash-resistant (if followed by an fsync). Opening a file trims it
//     after the first corrupted or incomplete record.
//
//  3. Atomic rewrites: Rewrite builds a replacement file next to the
//     original and renames it into place.
//
// File format:
//
//   - file = header record*
//   - header = magic:64 version:8 pad:8 flags:16 pad:32 invariant:64*4 reserved:64 checksum:64
//   - record = size:uvarint bytes* checksum:64
//
// All fixed-width integers are little-endian. Checksums are xxhash64 of
// every byte of the file preceding them, earlier checksums included.
package journal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrIncompatible       = errors.New("incompatible journal")
	ErrUnsupportedVersion = errors.New("unsupported journal version")
	ErrClosed             = errors.New("journal closed")
	errCorrupted          = errors.New("corrupted journal")
)

type Options struct {
	Context context.Context

	// Invariant identifies what the file stores. Opening a file written with
	// a different invariant fails with ErrIncompatible.
	Invariant [32]byte

	// SyncWrites fsyncs after every Append.
	SyncWrites bool

	// MaxRecordSize bounds the size field accepted when reading; a larger
	// one is treated as corruption. Defaults to DefaultMaxRecordSize.
	MaxRecordSize int

	DebugName string
	Logger    *slog.Logger
}

const DefaultMaxRecordSize = 64 * 1024 * 1024

const (
	magic          = 0x474f4c4e52554f4a // "JOURNLOG" as little-endian uint64
	version0 uint8 = 0
)

const (
	headerSize   = 8 * 8
	checksumSize = 8
)

type fileHeader struct {
	Magic     uint64
	Version   uint8
	_         uint8
	Flags     uint16
	_         uint32
	Invariant [32]byte
	_         uint64
	Checksum  uint64
}

// Journal is safe for concurrent use.
type Journal struct {
	context       context.Context
	path          string
	debugName     string
	logger        *slog.Logger
	invariant     [32]byte
	syncWrites    bool
	maxRecordSize int

	mu      sync.Mutex
	f       *os.File
	hash    xxhash.Digest
	size    int64
	records int
	err     error
	closed  bool
}

// Open opens or creates the journal file at path, validates it, and trims
// any corrupted tail so that new records can be appended.
func Open(path string, o Options) (*Journal, error) {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.DebugName == "" {
		o.DebugName = "journal"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxRecordSize <= 0 {
		o.MaxRecordSize = DefaultMaxRecordSize
	}
	j := &Journal{
		context:       o.Context,
		path:          path,
		debugName:     o.DebugName,
		logger:        o.Logger,
		invariant:     o.Invariant,
		syncWrites:    o.SyncWrites,
		maxRecordSize: o.MaxRecordSize,
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	var ok bool
	defer closeUnlessOK(f, &ok)

	if err := j.load(f); err != nil {
		return nil, err
	}
	j.f = f
	ok = true
	return j, nil
}

func (j *Journal) load(f *os.File) error {
	stat, err := f.Stat()
	if err != nil {
		return err
	}
	fileSize := stat.Size()

	j.hash.Reset()
	if fileSize < headerSize {
		if fileSize > 0 {
			j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: discarding incomplete header", slog.String("jrnl", j.debugName), slog.String("file", j.path), slog.Int64("size", fileSize))
		}
		if err := f.Truncate(0); err != nil {
			return err
		}
		var hbuf [headerSize]byte
		fillHeader(hbuf[:], j.invariant, &j.hash)
		if _, err := f.WriteAt(hbuf[:], 0); err != nil {
			return err
		}
		j.size = headerSize
		j.records = 0
		return nil
	}

	r := bufio.NewReader(io.NewSectionReader(f, 0, fileSize))
	if err := readHeader(r, j.invariant, &j.hash); err != nil {
		return fmt.Errorf("%s: %w", j.debugName, err)
	}
	end, n, err := scanRecords(r, &j.hash, j.maxRecordSize, nil)
	end += headerSize
	if err == errCorrupted {
		j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: trimming corrupted tail", slog.String("jrnl", j.debugName), slog.String("file", j.path), slog.Int64("size", fileSize), slog.Int64("valid", end), slog.Int("records", n))
		if err := f.Truncate(end); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	j.size = end
	j.records = n
	return nil
}

func (j *Journal) String() string {
	return j.debugName
}

func (j *Journal) Path() string {
	return j.path
}

// Size is the current file size in bytes.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Records is the number of records in the file.
func (j *Journal) Records() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records
}

// Replay calls fn for every record in order. The slice passed to fn is only
// valid during the call. An error from fn stops the replay and is returned.
func (j *Journal) Replay(fn func(data []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	r := bufio.NewReader(io.NewSectionReader(j.f, 0, j.size))
	var h xxhash.Digest
	h.Reset()
	if err := readHeader(r, j.invariant, &h); err != nil {
		return err
	}
	_, _, err := scanRecords(r, &h, j.maxRecordSize, fn)
	return err
}

// Append writes one record. Empty records are ignored.
func (j *Journal) Append(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if j.err != nil {
		return j.err
	}

	buf := appendRecord(make([]byte, 0, binary.MaxVarintLen64+len(data)+checksumSize), data, &j.hash)
	if _, err := j.f.WriteAt(buf, j.size); err != nil {
		return j.fail(err)
	}
	j.size += int64(len(buf))
	j.records++
	if j.syncWrites {
		return j.fail(datasync(j.f))
	}
	return nil
}

func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.fail(datasync(j.f))
}

// Rewrite replaces the whole journal with the records written by fn. The
// original stays in place if fn or any write fails.
func (j *Journal) Rewrite(fn func(w *Writer) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	w := &Writer{bw: bufio.NewWriter(f)}
	w.hash.Reset()
	var hbuf [headerSize]byte
	fillHeader(hbuf[:], j.invariant, &w.hash)
	w.write(hbuf[:])

	if err := fn(w); err != nil {
		return err
	}
	if w.err == nil {
		w.err = w.bw.Flush()
	}
	if w.err != nil {
		return w.err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return err
	}
	ok = true

	old := j.f
	j.f = f
	j.hash = w.hash
	j.size = w.size
	j.records = w.records
	j.err = nil
	if err := old.Close(); err != nil {
		j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: closing replaced file", slog.String("jrnl", j.debugName), slog.Any("err", err))
	}
	j.logger.LogAttrs(j.context, slog.LevelDebug, "journal: rewritten", slog.String("jrnl", j.debugName), slog.Int("records", j.records), slog.Int64("size", j.size))
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	err := j.f.Sync()
	if cerr := j.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}
	j.logger.LogAttrs(j.context, slog.LevelError, "journal: failed", slog.String("jrnl", j.debugName), slog.Any("err", err))
	if j.err == nil {
		j.err = err
	}
	return err
}

// Writer appends records to a journal being rewritten.
type Writer struct {
	bw      *bufio.Writer
	hash    xxhash.Digest
	size    int64
	records int
	err     error
	buf     []byte
}

func (w *Writer) Append(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	w.buf = appendRecord(w.buf[:0], data, &w.hash)
	w.write(w.buf)
	if w.err == nil {
		w.records++
	}
	return w.err
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.bw.Write(b)
	w.size += int64(n)
	w.err = err
}

func appendRecord(buf []byte, data []byte, hash *xxhash.Digest) []byte {
	start := len(buf)
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	hash.Write(buf[start:])
	buf = binary.LittleEndian.AppendUint64(buf, hash.Sum64())
	hash.Write(buf[len(buf)-checksumSize:])
	return buf
}

// scanRecords reads records until EOF. On corruption it returns
// errCorrupted together with the length of the intact prefix; hash then
// covers exactly that prefix.
func scanRecords(r *bufio.Reader, hash *xxhash.Digest, maxSize int, fn func([]byte) error) (valid int64, n int, err error) {
	var sizeBuf [binary.MaxVarintLen64]byte
	var sumBuf [checksumSize]byte
	var data []byte
	for {
		var sizeLen int
		var size uint64
		var shift uint
		for {
			b, err := r.ReadByte()
			if err == io.EOF && sizeLen == 0 {
				return valid, n, nil
			} else if err == io.EOF {
				return valid, n, errCorrupted
			} else if err != nil {
				return valid, n, err
			}
			if sizeLen == len(sizeBuf) {
				return valid, n, errCorrupted
			}
			sizeBuf[sizeLen] = b
			sizeLen++
			size |= uint64(b&0x7f) << shift
			shift += 7
			if b < 0x80 {
				break
			}
		}
		if size == 0 || size > uint64(maxSize) {
			return valid, n, errCorrupted
		}

		if cap(data) < int(size) {
			data = make([]byte, size)
		}
		data = data[:size]
		if _, err := io.ReadFull(r, data); err != nil {
			return valid, n, truncatedAsCorrupted(err)
		}
		if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
			return valid, n, truncatedAsCorrupted(err)
		}

		h := *hash
		h.Write(sizeBuf[:sizeLen])
		h.Write(data)
		if binary.LittleEndian.Uint64(sumBuf[:]) != h.Sum64() {
			return valid, n, errCorrupted
		}
		h.Write(sumBuf[:])
		*hash = h

		if fn != nil {
			if err := fn(data); err != nil {
				return valid, n, err
			}
		}
		valid += int64(sizeLen) + int64(size) + checksumSize
		n++
	}
}

func truncatedAsCorrupted(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errCorrupted
	}
	return err
}

func readHeader(r io.Reader, invariant [32]byte, hash *xxhash.Digest) error {
	var buf [headerSize]byte
	_, err := io.ReadFull(r, buf[:])
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return errCorrupted
	} else if err != nil {
		return err
	}
	var h fileHeader
	n, err := binary.Decode(buf[:], binary.LittleEndian, &h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}

	if h.Magic != magic {
		return errCorrupted
	}
	hash.Write(buf[:headerSize-checksumSize])
	if hash.Sum64() != h.Checksum {
		return errCorrupted
	}
	hash.Write(buf[headerSize-checksumSize:])
	if h.Version > version0 {
		return ErrUnsupportedVersion
	}
	if h.Invariant != invariant {
		return ErrIncompatible
	}
	return nil
}

func fillHeader(buf []byte, invariant [32]byte, hash *xxhash.Digest) {
	h := fileHeader{
		Magic:     magic,
		Version:   version0,
		Invariant: invariant,
	}
	n, err := binary.Encode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != headerSize {
		panic("internal size mismatch")
	}
	hash.Write(buf[:headerSize-checksumSize])
	binary.LittleEndian.PutUint64(buf[headerSize-checksumSize:], hash.Sum64())
	hash.Write(buf[headerSize-checksumSize : headerSize])
}

func closeUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}
