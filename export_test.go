package settings

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestExportImport(t *testing.T) {
	src := NewMapSettings()
	src.PutInt("i", -5)
	src.PutLong("l", math.MaxInt64)
	src.PutString("s", "héllo\nworld")
	src.PutFloat("f", 0.1)
	src.PutDouble("d", math.Inf(1))
	src.PutBool("b", true)
	Encode(src, "e", sampleEverything())

	for _, f := range []Format{JSON, MsgPack, CBOR} {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Export(src, &buf, f); err != nil {
				t.Fatalf("Export: %v", err)
			}

			dst := NewMapSettings()
			dst.PutString("preexisting", "kept")
			n, err := Import(dst, &buf, f)
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			eq(t, n, src.Size())

			dst.Remove("preexisting")
			if !dst.Equal(src) {
				t.Errorf("imported store differs:\n%s\nwanted:\n%s", Dump(dst), Dump(src))
			}
		})
	}
}

func TestExport_jsonLayout(t *testing.T) {
	s := NewMapSettings()
	s.PutInt("b", 2)
	s.PutString("a", "x")

	var buf bytes.Buffer
	if err := Export(s, &buf, JSON); err != nil {
		t.Fatal(err)
	}
	var entries []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	deepEqual(t, entries, []map[string]string{
		{"key": "a", "kind": "string", "value": "x"},
		{"key": "b", "kind": "int", "value": "2"},
	})
}

func TestImport_rejectsInvalidEntries(t *testing.T) {
	tests := []string{
		`[{"key": "a", "kind": "int", "value": "x"}]`,
		`[{"key": "a", "kind": "bogus", "value": "1"}]`,
		`[{"key": "", "kind": "int", "value": "1"}]`,
		`{"key": "a"}`,
	}
	for _, tt := range tests {
		s := NewMapSettings()
		_, err := Import(s, strings.NewReader(tt), JSON)
		if err == nil {
			t.Errorf("Import(%s) succeeded", tt)
		}
		isempty(t, s.Keys())
	}

	s := NewMapSettings()
	_, err := Import(s, strings.NewReader(`[{"key": "ok", "kind": "bool", "value": "true"}, {"key": "bad", "kind": "int", "value": "x"}]`), JSON)
	if err == nil {
		t.Errorf("Import with one bad entry succeeded")
	}
	isempty(t, s.Keys())
}

func TestParseFormat(t *testing.T) {
	for _, f := range []Format{JSON, MsgPack, CBOR} {
		a, err := ParseFormat(f.String())
		if err != nil || a != f {
			t.Errorf("ParseFormat(%q) = %v, %v", f.String(), a, err)
		}
	}
	if a, err := ParseFormat("MsgPack"); err != nil || a != MsgPack {
		t.Errorf("ParseFormat is case-sensitive: %v, %v", a, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Errorf("ParseFormat(xml) succeeded")
	}
}
