package settings

import (
	"encoding"
	"reflect"
	"strconv"
)

// maxPrealloc caps the capacity reserved from a stored size, which may be
// corrupt; larger collections grow as their elements decode.
const maxPrealloc = 1024

// decoder reads a value back from under its root key. Any missing primitive,
// size or presence marker fails the whole decode.
type decoder struct {
	s Settings
	c cursor
}

func newDecoder(s Settings, key string) *decoder {
	return &decoder{s: s, c: makeCursor(key)}
}

func (dc *decoder) decode(d *Descriptor, dst reflect.Value) error {
	err := dc.value(d, dst)
	if err != nil {
		dc.c.reset()
	}
	return err
}

func (dc *decoder) value(d *Descriptor, dst reflect.Value) error {
	path := dc.c.path()
	if d.nullable {
		present, ok := dc.s.LookupBool(path + presenceSuffix)
		if !ok {
			return decodeErrf(path+presenceSuffix, ErrMissing, "")
		}
		if !present {
			dst.SetZero()
			return nil
		}
		if d.ptr {
			p := reflect.New(d.base.typ)
			if err := dc.value(d.base, p.Elem()); err != nil {
				return err
			}
			dst.Set(p)
			return nil
		}
		d = d.base
	}

	switch d.shape {
	case ShapePrimitive:
		val, ok := Get(dc.s, path, d.kind)
		if !ok {
			return decodeErrf(path, ErrMissing, "")
		}
		return setPrimitive(d, path, dst, val)

	case ShapeEnum:
		val, ok := dc.s.LookupInt(path)
		if !ok {
			return decodeErrf(path, ErrMissing, "")
		}
		ord := int(val)
		if ord < 0 || ord >= len(d.enumNames) {
			return decodeErrf(path, ErrInvalid, "ordinal %d out of range for %v", ord, d)
		}
		setInt(dst, int64(ord))
		return nil

	case ShapeRecord:
		dst.SetZero()
		if d.defaults {
			dst.Addr().Interface().(Defaulter).SetDefaults()
		}
		dc.c.begin()
		for {
			i, ok := dc.nextChild(d, len(d.fields))
			if !ok {
				break
			}
			f := d.fields[i]
			dc.c.push(f.name)
			err := dc.value(f.desc, dst.FieldByIndex(f.index))
			dc.c.pop()
			if err != nil {
				return err
			}
		}
		dc.c.end()
		return nil

	case ShapeList:
		n, err := dc.size(path)
		if err != nil {
			return err
		}
		if d.arrayLen >= 0 {
			if n != d.arrayLen {
				return decodeErrf(path+sizeSuffix, ErrInvalid, "size %d, %v wants %d", n, d, d.arrayLen)
			}
		} else {
			dst.Set(reflect.MakeSlice(d.typ, 0, min(n, maxPrealloc)))
		}
		dc.c.begin()
		for {
			i, ok := dc.nextChild(d, n)
			if !ok {
				break
			}
			dc.c.push(strconv.Itoa(i))
			var elem reflect.Value
			if d.arrayLen >= 0 {
				elem = dst.Index(i)
			} else {
				elem = reflect.New(d.elem.typ).Elem()
			}
			err := dc.value(d.elem, elem)
			dc.c.pop()
			if err != nil {
				return err
			}
			if d.arrayLen < 0 {
				dst.Set(reflect.Append(dst, elem))
			}
		}
		dc.c.end()
		return nil

	case ShapeMap:
		n, err := dc.size(path)
		if err != nil {
			return err
		}
		m := reflect.MakeMapWithSize(d.typ, min(n, maxPrealloc))
		var k reflect.Value
		dc.c.begin()
		for {
			i, ok := dc.nextChild(d, 2*n)
			if !ok {
				break
			}
			dc.c.push(strconv.Itoa(i))
			if i%2 == 0 {
				k = reflect.New(d.key.typ).Elem()
				err = dc.value(d.key, k)
			} else {
				v := reflect.New(d.elem.typ).Elem()
				err = dc.value(d.elem, v)
				if err == nil {
					m.SetMapIndex(k, v)
				}
			}
			dc.c.pop()
			if err != nil {
				return err
			}
		}
		dc.c.end()
		dst.Set(m)
		return nil

	default:
		panic("unreachable")
	}
}

// nextChild advances past children that are missing and optional.
func (dc *decoder) nextChild(d *Descriptor, n int) (int, bool) {
	for {
		i := dc.c.next()
		if i >= n {
			return i, false
		}
		if d.ElementOptional(i) && missingOptional(dc.s, dc.c.childPath(d.ElementName(i))) {
			continue
		}
		return i, true
	}
}

func (dc *decoder) size(path string) (int, error) {
	n, ok := dc.s.LookupInt(path + sizeSuffix)
	if !ok {
		return 0, decodeErrf(path+sizeSuffix, ErrMissing, "")
	}
	if n < 0 {
		return 0, decodeErrf(path+sizeSuffix, ErrInvalid, "negative size %d", n)
	}
	return int(n), nil
}

// missingOptional reports whether an optional child can be skipped: its key
// is absent and its presence marker is not true. Structures have no key of
// their own, so for them only the marker counts.
func missingOptional(s Settings, child string) bool {
	if s.HasKey(child) {
		return false
	}
	marker, ok := s.LookupBool(child + presenceSuffix)
	return !(ok && marker)
}

func setPrimitive(d *Descriptor, path string, dst reflect.Value, val Value) error {
	if d.text {
		p := reflect.New(d.typ)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(val.Str())); err != nil {
			return decodeErrf(path, ErrInvalid, "%v: %v", d, err)
		}
		dst.Set(p.Elem())
		return nil
	}
	switch val.kind {
	case KindInt:
		setInt(dst, int64(val.Int()))
	case KindLong:
		setInt(dst, val.Long())
	case KindString:
		dst.SetString(val.Str())
	case KindFloat:
		dst.SetFloat(float64(val.Float()))
	case KindDouble:
		dst.SetFloat(val.Double())
	case KindBool:
		dst.SetBool(val.Bool())
	}
	return nil
}

// setInt truncates to the width of dst.
func setInt(dst reflect.Value, n int64) {
	if dst.CanInt() {
		dst.SetInt(n)
	} else {
		dst.SetUint(uint64(n))
	}
}
