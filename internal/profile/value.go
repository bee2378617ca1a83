package profile

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/srg/gattsrv/internal/registry"
)

// Value types accepted in profiles.
const (
	TypeBytes  = "bytes"
	TypeString = "string"
	TypeUint8  = "uint8"
	TypeInt8   = "int8"
	TypeUint16 = "uint16"
	TypeInt16  = "int16"
	TypeUint32 = "uint32"
	TypeInt32  = "int32"
	TypeInt64  = "int64"
)

type intType struct {
	size     int
	signed   bool
	min, max int64
}

var intTypes = map[string]intType{
	TypeUint8:  {1, false, 0, math.MaxUint8},
	TypeInt8:   {1, true, math.MinInt8, math.MaxInt8},
	TypeUint16: {2, false, 0, math.MaxUint16},
	TypeInt16:  {2, true, math.MinInt16, math.MaxInt16},
	TypeUint32: {4, false, 0, math.MaxUint32},
	TypeInt32:  {4, true, math.MinInt32, math.MaxInt32},
	TypeInt64:  {8, true, math.MinInt64, math.MaxInt64},
}

func knownType(t string) bool {
	if t == TypeBytes || t == TypeString {
		return true
	}
	_, ok := intTypes[t]
	return ok
}

// signed reports whether wire bytes of type t are sign extended.
func signed(t string) bool { return intTypes[t].signed }

// typeOrDefault returns t, or "string" when unset.
func typeOrDefault(t string) string {
	if t == "" {
		return TypeString
	}
	return t
}

// toValue converts a YAML scalar or sequence to a registry value of type t.
// Bytes accept a hex string ("0a0b", "0x0a0b") or a list of numbers.
func toValue(t string, raw any) (registry.Value, error) {
	t = typeOrDefault(t)
	switch t {
	case TypeString:
		if raw == nil {
			return registry.String(""), nil
		}
		return registry.String(fmt.Sprint(raw)), nil
	case TypeBytes:
		b, err := toBytes(raw)
		if err != nil {
			return registry.Value{}, err
		}
		return registry.Bytes(b), nil
	}

	it, ok := intTypes[t]
	if !ok {
		return registry.Value{}, fmt.Errorf("unknown type %q", t)
	}
	var n int64
	switch v := raw.(type) {
	case nil:
	case int:
		n = int64(v)
	case int64:
		n = v
	case uint64:
		if v > math.MaxInt64 {
			return registry.Value{}, fmt.Errorf("value %d out of range for %s", v, t)
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
		if err != nil {
			return registry.Value{}, fmt.Errorf("invalid %s value %q", t, v)
		}
		n = parsed
	default:
		return registry.Value{}, fmt.Errorf("invalid %s value %v", t, raw)
	}
	if n < it.min || n > it.max {
		return registry.Value{}, fmt.Errorf("value %d out of range for %s", n, t)
	}
	return registry.Int(n, it.size), nil
}

func toBytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case nil:
		return []byte{}, nil
	case string:
		s := strings.TrimPrefix(strings.ReplaceAll(strings.ToLower(v), " ", ""), "0x")
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q", v)
		}
		return b, nil
	case []any:
		out := make([]byte, len(v))
		for i, e := range v {
			n, ok := e.(int)
			if !ok || n < 0 || n > 0xff {
				return nil, fmt.Errorf("byte %d: %v is not in 0..255", i, e)
			}
			out[i] = byte(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid bytes value %v", raw)
	}
}
