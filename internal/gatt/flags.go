package gatt

import (
	"fmt"
	"strings"
)

// Flag is a capability tag using the BlueZ GATT flag vocabulary.
type Flag string

const (
	FlagBroadcast                 Flag = "broadcast"
	FlagRead                      Flag = "read"
	FlagWriteWithoutResponse      Flag = "write-without-response"
	FlagWrite                     Flag = "write"
	FlagNotify                    Flag = "notify"
	FlagIndicate                  Flag = "indicate"
	FlagAuthenticatedSignedWrites Flag = "authenticated-signed-writes"
	FlagReliableWrite             Flag = "reliable-write"
	FlagWritableAuxiliaries       Flag = "writable-auxiliaries"
	FlagEncryptRead               Flag = "encrypt-read"
	FlagEncryptWrite              Flag = "encrypt-write"
	FlagEncryptAuthenticatedRead  Flag = "encrypt-authenticated-read"
	FlagEncryptAuthenticatedWrite Flag = "encrypt-authenticated-write"
	FlagSecureRead                Flag = "secure-read"
	FlagSecureWrite               Flag = "secure-write"
)

var characteristicFlags = map[Flag]bool{
	FlagBroadcast:                 true,
	FlagRead:                      true,
	FlagWriteWithoutResponse:      true,
	FlagWrite:                     true,
	FlagNotify:                    true,
	FlagIndicate:                  true,
	FlagAuthenticatedSignedWrites: true,
	FlagReliableWrite:             true,
	FlagWritableAuxiliaries:       true,
	FlagEncryptRead:               true,
	FlagEncryptWrite:              true,
	FlagEncryptAuthenticatedRead:  true,
	FlagEncryptAuthenticatedWrite: true,
	FlagSecureRead:                true,
	FlagSecureWrite:               true,
}

var descriptorFlags = map[Flag]bool{
	FlagRead:                      true,
	FlagWrite:                     true,
	FlagEncryptRead:               true,
	FlagEncryptWrite:              true,
	FlagEncryptAuthenticatedRead:  true,
	FlagEncryptAuthenticatedWrite: true,
	FlagSecureRead:                true,
	FlagSecureWrite:               true,
}

var readFlags = []Flag{FlagRead, FlagEncryptRead, FlagEncryptAuthenticatedRead, FlagSecureRead}

var writeFlags = []Flag{
	FlagWrite, FlagWriteWithoutResponse, FlagReliableWrite, FlagAuthenticatedSignedWrites,
	FlagEncryptWrite, FlagEncryptAuthenticatedWrite, FlagSecureWrite,
}

// Flags is the ordered set of capability tags on a node.
type Flags struct {
	tags []Flag
}

// ParseFlags validates tags for a node of the given kind. Duplicates collapse,
// first occurrence wins the position.
func ParseFlags(kind Kind, tags ...string) (Flags, error) {
	allowed := characteristicFlags
	switch kind {
	case KindDescriptor:
		allowed = descriptorFlags
	case KindService:
		if len(tags) > 0 {
			return Flags{}, fmt.Errorf("services take no flags, got %v", tags)
		}
		return Flags{}, nil
	}

	var f Flags
	for _, t := range tags {
		tag := Flag(strings.ToLower(strings.TrimSpace(t)))
		if !allowed[tag] {
			return Flags{}, fmt.Errorf("flag %q is not valid on a %s", t, kind)
		}
		if !f.Has(tag) {
			f.tags = append(f.tags, tag)
		}
	}
	return f, nil
}

// Has reports whether tag is present.
func (f Flags) Has(tag Flag) bool {
	for _, t := range f.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (f Flags) hasAny(tags []Flag) bool {
	for _, t := range tags {
		if f.Has(t) {
			return true
		}
	}
	return false
}

// Readable reports whether any read-class flag is present.
func (f Flags) Readable() bool { return f.hasAny(readFlags) }

// Writable reports whether any write-class flag is present.
func (f Flags) Writable() bool { return f.hasAny(writeFlags) }

// WritableWithResponse reports whether a write-class flag other than
// write-without-response is present.
func (f Flags) WritableWithResponse() bool {
	for _, t := range writeFlags {
		if t != FlagWriteWithoutResponse && f.Has(t) {
			return true
		}
	}
	return false
}

// Notifies reports whether notify or indicate is present.
func (f Flags) Notifies() bool { return f.Has(FlagNotify) || f.Has(FlagIndicate) }

// Strings returns the tags in declaration order.
func (f Flags) Strings() []string {
	out := make([]string, len(f.tags))
	for i, t := range f.tags {
		out[i] = string(t)
	}
	return out
}

func (f Flags) Len() int { return len(f.tags) }

func (f Flags) String() string { return strings.Join(f.Strings(), ",") }
