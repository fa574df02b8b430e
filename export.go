package settings

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the encoding used by Export and Import.
type Format int

const (
	JSON Format = iota
	MsgPack
	CBOR
)

var formatNames = [...]string{
	JSON:    "json",
	MsgPack: "msgpack",
	CBOR:    "cbor",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return formatNames[f]
}

func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if strings.EqualFold(name, s) {
			return Format(f), nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", s)
}

// entry is the exported form of one key. Values use the canonical text form
// so that every format carries exactly the same information.
type entry struct {
	Key   string `json:"key" msgpack:"key" cbor:"key"`
	Kind  string `json:"kind" msgpack:"kind" cbor:"kind"`
	Value string `json:"value" msgpack:"value" cbor:"value"`
}

func (f Format) encode(w io.Writer, entries []entry) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case MsgPack:
		return msgpack.NewEncoder(w).Encode(entries)
	case CBOR:
		return cbor.NewEncoder(w).Encode(entries)
	default:
		panic("unsupported format")
	}
}

func (f Format) decode(r io.Reader) ([]entry, error) {
	var entries []entry
	var err error
	switch f {
	case JSON:
		err = json.NewDecoder(r).Decode(&entries)
	case MsgPack:
		err = msgpack.NewDecoder(r).Decode(&entries)
	case CBOR:
		err = cbor.NewDecoder(r).Decode(&entries)
	default:
		panic("unsupported format")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %v: %w", f, err)
	}
	return entries, nil
}

// Export writes every key of s, sorted, in the given format.
func Export(s Settings, w io.Writer, f Format) error {
	keys := s.Keys()
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		v, ok := LookupAny(s, k)
		if !ok {
			continue
		}
		entries = append(entries, entry{k, v.kind.String(), v.Text()})
	}
	return f.encode(w, entries)
}

// Import reads entries written by Export and stores them into s, returning
// the number of keys written. Nothing is written if any entry is invalid.
func Import(s Settings, r io.Reader, f Format) (int, error) {
	entries, err := f.decode(r)
	if err != nil {
		return 0, err
	}
	values := make([]Value, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return 0, fmt.Errorf("entry %d: empty key", i)
		}
		kind, err := ParseKind(e.Kind)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", e.Key, err)
		}
		values[i], err = ParseValue(kind, e.Value)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid %v value %q: %w", e.Key, kind, e.Value, err)
		}
	}
	for i, e := range entries {
		Put(s, e.Key, values[i])
	}
	return len(entries), nil
}
