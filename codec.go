package settings

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
)

// Codec stores values of type T in a flat store under dotted key paths.
//
// Encoding Foo{Bar: "hello", Baz: 43110} under "foo" writes
//
//	foo.bar = "hello"
//	foo.baz = 43110
//
// Nested records, lists and maps add segments ("foo.inner.x", "foo.list.0"),
// lists and maps add a "<path>.size" count, and nullable or nested values
// add a "<path>?" presence marker.
type Codec[T any] struct {
	desc *Descriptor
}

// CodecOf returns a codec with the descriptor derived from T.
func CodecOf[T any]() *Codec[T] {
	return &Codec[T]{desc: DescriptorOf[T]()}
}

// NewCodec returns a codec using a manually built descriptor, which must
// describe T.
func NewCodec[T any](desc *Descriptor) *Codec[T] {
	if typ := reflect.TypeFor[T](); desc.typ != typ {
		panic(fmt.Errorf("NewCodec[%v]: descriptor %v is for %v", typ, desc, desc.typ))
	}
	return &Codec[T]{desc: desc}
}

func (c *Codec[T]) Descriptor() *Descriptor {
	return c.desc
}

func (c *Codec[T]) Encode(s Settings, key string, value T) {
	c.encodeWith(newEncoder(s, key), value)
}

// Decode returns the stored value, or def if any part of it is missing.
func (c *Codec[T]) Decode(s Settings, key string, def T) T {
	v, err := c.decodeWith(newDecoder(s, key))
	if err != nil {
		logDecodeFailure(key, err)
		return def
	}
	return v
}

// DecodeOrNil returns nil instead of a default.
func (c *Codec[T]) DecodeOrNil(s Settings, key string) *T {
	v, err := c.decodeWith(newDecoder(s, key))
	if err != nil {
		logDecodeFailure(key, err)
		return nil
	}
	return &v
}

// TryDecode reports why decoding failed. The error is a *DecodeError
// wrapping ErrMissing or ErrInvalid.
func (c *Codec[T]) TryDecode(s Settings, key string) (T, error) {
	return c.decodeWith(newDecoder(s, key))
}

// Contains reports whether a complete value is stored under key. A nullable
// value stored as null is not contained.
func (c *Codec[T]) Contains(s Settings, key string) bool {
	v, err := c.decodeWith(newDecoder(s, key))
	if err != nil {
		return false
	}
	return !c.desc.nullable || !reflect.ValueOf(&v).Elem().IsZero()
}

// Keys lists every key the value stored under key occupies, including
// presence markers and sizes.
func (c *Codec[T]) Keys(s Settings, key string) []string {
	return newRemover(s, key).enumerate(c.desc)
}

// Remove deletes the keys of the value stored under key. With
// ignorePartial, nothing is removed unless a complete value is stored.
func (c *Codec[T]) Remove(s Settings, key string, ignorePartial bool) {
	if ignorePartial && !c.Contains(s, key) {
		return
	}
	c.removeWith(newRemover(s, key))
}

func (c *Codec[T]) encodeWith(e *encoder, value T) {
	e.encode(c.desc, reflect.ValueOf(&value).Elem())
}

func (c *Codec[T]) decodeWith(dc *decoder) (T, error) {
	p := new(T)
	if err := dc.decode(c.desc, reflect.ValueOf(p).Elem()); err != nil {
		var zero T
		return zero, err
	}
	return *p, nil
}

func (c *Codec[T]) removeWith(r *remover) {
	for _, k := range r.enumerate(c.desc) {
		r.s.Remove(k)
	}
}

func logDecodeFailure(key string, err error) {
	slog.Default().LogAttrs(context.Background(), slog.LevelDebug, "settings: decode failed, using default", slog.String("key", key), slog.Any("err", err))
}

func Encode[T any](s Settings, key string, value T) {
	CodecOf[T]().Encode(s, key, value)
}

func Decode[T any](s Settings, key string, def T) T {
	return CodecOf[T]().Decode(s, key, def)
}

func DecodeOrNil[T any](s Settings, key string) *T {
	return CodecOf[T]().DecodeOrNil(s, key)
}

func TryDecode[T any](s Settings, key string) (T, error) {
	return CodecOf[T]().TryDecode(s, key)
}

func Remove[T any](s Settings, key string, ignorePartial bool) {
	CodecOf[T]().Remove(s, key, ignorePartial)
}

func Contains[T any](s Settings, key string) bool {
	return CodecOf[T]().Contains(s, key)
}

func KeysOf[T any](s Settings, key string) []string {
	return CodecOf[T]().Keys(s, key)
}
