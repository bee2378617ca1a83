package registry

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies the representation held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBytes
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a tagged piece of application data: raw bytes, a fixed-width integer
// or a string. The zero Value is invalid.
type Value struct {
	kind Kind
	b    []byte
	i    int64
	size uint8 // integer width in bytes: 1, 2, 4 or 8
	s    string
}

// Bytes returns a byte Value. The slice is copied.
func Bytes(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBytes, b: c}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Int returns an integer Value encoded in size bytes (1, 2, 4 or 8).
// Any other size panics.
func Int(v int64, size int) Value {
	switch size {
	case 1, 2, 4, 8:
	default:
		panic(fmt.Sprintf("registry: invalid integer size %d", size))
	}
	return Value{kind: KindInt, i: v, size: uint8(size)}
}

func Uint8(v uint8) Value   { return Int(int64(v), 1) }
func Int8(v int8) Value     { return Int(int64(v), 1) }
func Uint16(v uint16) Value { return Int(int64(v), 2) }
func Int16(v int16) Value   { return Int(int64(v), 2) }
func Uint32(v uint32) Value { return Int(int64(v), 4) }
func Int32(v int32) Value   { return Int(int64(v), 4) }
func Int64(v int64) Value   { return Int(v, 8) }

// Kind returns the value's representation.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by one of the constructors.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Size returns the integer width in bytes, or 0 for non-integer values.
func (v Value) Size() int { return int(v.size) }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsString returns the string held by v. Byte values are converted.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindBytes:
		return string(v.b), true
	default:
		return "", false
	}
}

// AsBytes returns the wire encoding of v; see Encode.
func (v Value) AsBytes() []byte { return v.Encode() }

// Encode returns the GATT attribute bytes for v: bytes unchanged, strings as
// UTF-8 without a terminator, integers little-endian in their declared width.
func (v Value) Encode() []byte {
	switch v.kind {
	case KindBytes:
		c := make([]byte, len(v.b))
		copy(c, v.b)
		return c
	case KindString:
		return []byte(v.s)
	case KindInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.i))
		return buf[:v.size]
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBytes:
		return string(v.b) == string(o.b)
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i && v.size == o.size
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBytes:
		return fmt.Sprintf("bytes[% X]", v.b)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindInt:
		return fmt.Sprintf("int%d(%d)", int(v.size)*8, v.i)
	default:
		return "<invalid>"
	}
}

// DecodeAs interprets raw attribute bytes using the shape of like. Integer
// values require exactly like.Size() little-endian bytes; signed selects sign
// extension.
func DecodeAs(like Value, raw []byte, signed bool) (Value, error) {
	switch like.kind {
	case KindBytes:
		return Bytes(raw), nil
	case KindString:
		return String(string(raw)), nil
	case KindInt:
		return DecodeInt(raw, like.Size(), signed)
	default:
		return Value{}, fmt.Errorf("cannot decode into %s value", like.kind)
	}
}

// DecodeInt decodes a little-endian integer of the given width.
func DecodeInt(raw []byte, size int, signed bool) (Value, error) {
	if len(raw) != size {
		return Value{}, fmt.Errorf("integer value must be %d bytes, got %d", size, len(raw))
	}
	var u uint64
	switch size {
	case 1:
		u = uint64(raw[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		u = binary.LittleEndian.Uint64(raw)
	default:
		return Value{}, fmt.Errorf("invalid integer size %d", size)
	}
	if !signed || size == 8 {
		return Int(int64(u), size), nil
	}
	shift := uint(64 - size*8)
	return Int(int64(u<<shift)>>shift, size), nil
}
