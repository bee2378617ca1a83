package gatt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// sigBaseSuffix is the tail of the Bluetooth SIG base UUID used to expand
// 16-bit UUIDs to their 128-bit form.
const sigBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// UUID identifies a GATT attribute type. It is either a 16-bit SIG-assigned
// value or a full 128-bit vendor UUID.
type UUID struct {
	short uint16
	long  string // canonical lowercase 8-4-4-4-12, empty for 16-bit values
}

// UUID16 returns the UUID for a 16-bit SIG-assigned value.
func UUID16(v uint16) UUID { return UUID{short: v} }

// ParseUUID accepts a 16-bit hex value ("180F", "0x180f") or a canonical
// 128-bit string ("00000001-1E3C-FAD4-74E2-97A033F1BFAA").
func ParseUUID(s string) (UUID, error) {
	str := strings.TrimSpace(s)
	switch len(str) {
	case 6:
		if !strings.HasPrefix(strings.ToLower(str), "0x") {
			break
		}
		str = str[2:]
		fallthrough
	case 4:
		v, err := strconv.ParseUint(str, 16, 16)
		if err != nil {
			return UUID{}, fmt.Errorf("invalid 16-bit UUID %q", s)
		}
		return UUID16(uint16(v)), nil
	case 36:
		u, err := uuid.Parse(str)
		if err != nil {
			return UUID{}, fmt.Errorf("invalid 128-bit UUID %q: %w", s, err)
		}
		return UUID{long: u.String()}, nil
	}
	return UUID{}, fmt.Errorf("invalid UUID %q: expected 4 hex digits or 8-4-4-4-12 form", s)
}

// MustParseUUID is like ParseUUID but panics on error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Is16Bit reports whether u is a 16-bit SIG-assigned UUID.
func (u UUID) Is16Bit() bool { return u.long == "" }

// Uint16 returns the 16-bit value, or 0 for 128-bit UUIDs.
func (u UUID) Uint16() uint16 {
	if !u.Is16Bit() {
		return 0
	}
	return u.short
}

// Full returns the canonical 128-bit form, expanding 16-bit values with the
// SIG base UUID.
func (u UUID) Full() string {
	if u.Is16Bit() {
		return fmt.Sprintf("0000%04x%s", u.short, sigBaseSuffix)
	}
	return u.long
}

// String returns "180f" for 16-bit UUIDs and the canonical lowercase form otherwise.
func (u UUID) String() string {
	if u.Is16Bit() {
		return fmt.Sprintf("%04x", u.short)
	}
	return u.long
}

// Equal reports whether u and o name the same attribute type, comparing
// 16-bit values against their SIG base expansion.
func (u UUID) Equal(o UUID) bool {
	return u.Full() == o.Full()
}
