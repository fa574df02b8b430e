package settings

import (
	"encoding/hex"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func TestSplitByte(t *testing.T) {
	a, b, ok := splitByte("a,b", ',')
	if !ok || a != "a" || b != "b" {
		t.Fatalf("splitByte = (%q, %q, %v), wanted (\"a\", \"b\", true)", a, b, ok)
	}

	a, b, ok = splitByte("ab", ',')
	if ok || a != "ab" || b != "" {
		t.Fatalf("splitByte(no sep) = (%q, %q, %v), wanted (\"ab\", \"\", false)", a, b, ok)
	}
}

func TestLowerFirst(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"NickName", "nickName"},
		{"URL", "uRL"},
		{"x", "x"},
		{"Ä", "ä"},
		{"", ""},
	}
	for _, tt := range tests {
		if a := lowerFirst(tt.input); a != tt.expected {
			t.Errorf("lowerFirst(%q) = %q, wanted %q", tt.input, a, tt.expected)
		}
	}
}

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAA, 0xBB}); got != "aabb" {
		t.Fatalf("hexstr = %q, wanted aabb", got)
	}
	a := hexAttr("k", []byte{0xAA})
	if a.Key != "k" || a.Value.Kind() != slog.KindString {
		t.Fatalf("hexAttr returned unexpected attr: %+v", a)
	}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil %T, wanted non-nil", a)
	}
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Helper()
			t.Errorf("** expected a panic")
		}
	}()
	fn()
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func x(data string) []byte {
	data = strings.ReplaceAll(data, " ", "")
	return must(hex.DecodeString(data))
}
