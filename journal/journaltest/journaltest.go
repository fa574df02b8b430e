// Package journaltest helps tests create, corrupt and inspect journal files.
package journaltest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/andreyvit/settings/journal"
)

type TestJournal struct {
	*journal.Journal

	T    testing.TB
	Dir  string
	Path string
	Opts journal.Options
}

// Open creates a journal in a fresh temporary directory, logging through t.
func Open(t testing.TB, o journal.Options) *TestJournal {
	dir := t.TempDir()
	j := &TestJournal{
		T:    t,
		Dir:  dir,
		Path: filepath.Join(dir, "test.journal"),
	}
	if o.Logger == nil {
		o.Logger = TestLogger(t)
	}
	if o.DebugName == "" {
		o.DebugName = "test"
	}
	j.Opts = o
	j.Journal = must(journal.Open(j.Path, o))
	t.Cleanup(func() {
		if err := j.Journal.Close(); err != nil {
			t.Error(err)
		}
	})
	return j
}

// TestLogger routes slog output to t.Log.
func TestLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}))
}

// Reopen closes the journal and opens the same file again.
func (j *TestJournal) Reopen() error {
	j.T.Helper()
	if err := j.Journal.Close(); err != nil {
		return err
	}
	jj, err := journal.Open(j.Path, j.Opts)
	if err != nil {
		return err
	}
	j.Journal = jj
	return nil
}

// Eq compares the file contents with the Expand-ed specs.
func (j *TestJournal) Eq(expected ...string) {
	j.T.Helper()
	BytesEq(j.T, j.Data(), Expand(expected...))
}

// Put overwrites the file contents; call Reopen afterwards.
func (j *TestJournal) Put(expected ...string) {
	ensure(os.WriteFile(j.Path, Expand(expected...), 0o644))
}

// AppendRaw adds raw bytes to the end of the file, bypassing the journal.
func (j *TestJournal) AppendRaw(b []byte) {
	f := must(os.OpenFile(j.Path, os.O_WRONLY|os.O_APPEND, 0))
	defer f.Close()
	must(f.Write(b))
}

// Truncate cuts the file to n bytes, bypassing the journal.
func (j *TestJournal) Truncate(n int64) {
	ensure(os.Truncate(j.Path, n))
}

func (j *TestJournal) Data() []byte {
	b, err := os.ReadFile(j.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		j.T.Fatalf("when reading %v: %v", j.Path, err)
	}
	return b
}

// ReplayAll returns all records as strings.
func (j *TestJournal) ReplayAll() []string {
	j.T.Helper()
	var recs []string
	err := j.Replay(func(data []byte) error {
		recs = append(recs, string(data))
		return nil
	})
	if err != nil {
		j.T.Fatalf("Replay: %v", err)
	}
	return recs
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// Expand builds bytes from whitespace-separated elements: hex digits
// (bytes optionally separated by _), #N for a uvarint, 'text for literal
// text. A trailing ... or .. zero-pads the element to 8 or 4 bytes, *N
// repeats it, and anything after / is a comment.
func Expand(specs ...string) []byte {
	var b []byte
	for _, spec := range specs {
		for _, elem := range strings.Fields(spec) {
			base, _, _ := strings.Cut(elem, "/") // comment
			if base == "" {
				continue
			}

			base, repStr, _ := strings.Cut(base, "*")

			rep := 1
			if repStr != "" {
				var err error
				rep, err = strconv.Atoi(repStr)
				if err != nil {
					panic(fmt.Sprintf("invalid repeat count %q in element %q", repStr, elem))
				}
			}

			base, right, padTo8 := strings.Cut(base, "...")
			var padTo4 bool
			if !padTo8 {
				base, right, padTo4 = strings.Cut(base, "..")
			}

			baseBytes, err := appendHexDecoding(nil, base)
			if err != nil {
				panic(fmt.Errorf("%w in element %q", err, elem))
			}

			rightBytes, err := appendHexDecoding(nil, right)
			if err != nil {
				panic(fmt.Errorf("%w in element %q", err, elem))
			}

			for range rep {
				b = append(b, baseBytes...)

				n := len(baseBytes) + len(rightBytes)
				if padTo8 && n < 8 {
					for range 8 - n {
						b = append(b, 0)
					}
				} else if padTo4 && n < 4 {
					for range 4 - n {
						b = append(b, 0)
					}
				}

				b = append(b, rightBytes...)
			}
		}
	}
	return b
}

func appendHexDecoding(data []byte, hex string) ([]byte, error) {
	const none byte = 0xFF

	if decimal, ok := strings.CutPrefix(hex, "#"); ok {
		v, err := strconv.ParseUint(decimal, 10, 64)
		if err != nil {
			return nil, err
		}
		return binary.AppendUvarint(data, v), nil
	} else if alpha, ok := strings.CutPrefix(hex, "'"); ok {
		return append(data, alpha...), nil
	}

	prev := none
	for _, b := range []byte(hex) {
		var half byte
		switch b {
		case '_', ' ':
			if prev != none {
				data = append(data, prev)
				prev = none
			}
			continue
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			half = b - '0'
		case 'a', 'b', 'c', 'd', 'e', 'f':
			half = b - 'a' + 10
		case 'A', 'B', 'C', 'D', 'E', 'F':
			half = b - 'A' + 10
		default:
			return nil, fmt.Errorf("invalid char '%c'", b)
		}
		if prev == none {
			prev = half
		} else {
			data = append(data, prev<<4|half)
			prev = none
		}
	}
	if prev != none {
		data = append(data, prev)
	}
	return data, nil
}

func HexDump(b []byte, highlightOff int) string {
	var buf strings.Builder
	var off int
	n := len(b)
	for {
		fmt.Fprintf(&buf, "%08x", off)
		if off >= n {
			buf.WriteByte('\n')
			break
		}
		buf.WriteByte(' ')
		for i := range 8 {
			if off+i >= n {
				buf.WriteByte(' ')
				buf.WriteByte(' ')
				buf.WriteByte(' ')
			} else {
				if highlightOff >= 0 && off+i == highlightOff {
					buf.WriteByte('>')
				} else {
					buf.WriteByte(' ')
				}
				fmt.Fprintf(&buf, "%02x", b[off+i])
			}
		}
		buf.WriteByte(' ')
		buf.WriteByte(' ')
		buf.WriteByte('|')
		for i := range 8 {
			if off+i < n {
				v := b[off+i]
				if v >= 32 && v <= 126 {
					buf.WriteByte(v)
				} else {
					buf.WriteByte('.')
				}
			}
		}
		off += 8
		buf.WriteByte('|')
		buf.WriteByte('\n')
		if off >= n {
			break
		}
	}
	return buf.String()
}

func BytesEq(t testing.TB, a, e []byte) bool {
	if !bytes.Equal(a, e) {
		an, en := len(a), len(e)
		off := min(an, en)
		for i := range min(an, en) {
			if a[i] != e[i] {
				off = i
				break
			}
		}

		t.Helper()
		t.Errorf("** got:\n%v\nwanted:\n%v\nfirst difference offset: 0x%x (%d)", HexDump(a, off), HexDump(e, off), off, off)
		return false
	}
	return true
}
