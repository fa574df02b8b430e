package settings

import (
	"encoding/binary"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

// Stored value layout, used by BoltSettings:
//
//	kind:8 bits:64be      for int, long, float, double, bool
//	kind:8 bytes*         for string
const storedBitsLen = 1 + 8

func appendStoredValue(buf []byte, v Value) []byte {
	switch v.kind {
	case KindString:
		off, buf := grow(buf, 1+len(v.str))
		buf[off] = byte(v.kind)
		copy(buf[off+1:], v.str)
		return buf
	case KindInvalid:
		panic("appendStoredValue: invalid value")
	default:
		off, buf := grow(buf, storedBitsLen)
		buf[off] = byte(v.kind)
		binary.BigEndian.PutUint64(buf[off+1:], v.bits)
		return buf
	}
}

func decodeStoredValue(data []byte) (Value, error) {
	d := makeByteDecoder(data)
	b, err := d.Byte()
	if err != nil {
		return Value{}, err
	}
	kind := Kind(b)
	switch {
	case kind == KindString:
		return StringValue(string(d.Buf)), nil
	case kind.Valid():
		raw, err := d.Raw(8)
		if err != nil {
			return Value{}, err
		}
		if len(d.Buf) != 0 {
			return Value{}, dataErrf(d.Orig, d.Off(), nil, "%d trailing bytes", len(d.Buf))
		}
		return ValueFromBits(kind, binary.BigEndian.Uint64(raw)), nil
	default:
		return Value{}, dataErrf(d.Orig, 0, nil, "unknown kind tag %d", b)
	}
}

type byteDecoder struct {
	Orig []byte
	Buf  []byte
}

func makeByteDecoder(buf []byte) byteDecoder {
	return byteDecoder{buf, buf}
}

func (d *byteDecoder) Off() int {
	return len(d.Orig) - len(d.Buf)
}

func (d *byteDecoder) Byte() (byte, error) {
	if len(d.Buf) == 0 {
		return 0, dataErrf(d.Orig, d.Off(), nil, "not enough data")
	}
	v := d.Buf[0]
	d.Buf = d.Buf[1:]
	return v, nil
}

func (d *byteDecoder) Raw(n int) ([]byte, error) {
	if len(d.Buf) < n {
		return nil, dataErrf(d.Orig, d.Off(), nil, "not enough data: %d bytes remaining, %d wanted", len(d.Buf), n)
	}
	v := d.Buf[:n]
	d.Buf = d.Buf[n:]
	return v, nil
}
