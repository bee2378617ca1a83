package registry

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
)

// SnapshotVersion is the current version of the Store snapshot format.
const SnapshotVersion = 1

// Store is a concurrency-safe set of named values. Names are fixed by Declare;
// Set only replaces values that were declared, and keeps the declared kind.
//
// Store is meant to be shared between application goroutines and the server's
// processing goroutine: values are replaced whole and never mutated in place.
type Store struct {
	values *hashmap.Map[string, Value]
	logger *logrus.Logger
}

// NewStore creates an empty store.
func NewStore(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		values: hashmap.New[string, Value](),
		logger: logger,
	}
}

// Declare adds name with an initial value, replacing any previous declaration.
func (s *Store) Declare(name string, initial Value) {
	if name == "" || !initial.IsValid() {
		panic(fmt.Sprintf("registry: invalid declaration %q=%s", name, initial))
	}
	s.values.Set(name, initial)
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (Value, bool) {
	return s.values.Get(name)
}

// Set replaces the value stored under name. It fails for undeclared names and
// for values that cannot be converted to the declared kind.
func (s *Store) Set(name string, v Value) bool {
	old, ok := s.values.Get(name)
	if !ok {
		return false
	}
	nv, ok := coerce(old, v)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"name":     name,
			"declared": old.Kind().String(),
			"got":      v.Kind().String(),
		}).Debug("Rejected server data value of the wrong kind")
		return false
	}
	s.values.Set(name, nv)
	return true
}

// Getter returns s.Get as a Getter.
func (s *Store) Getter() Getter { return s.Get }

// Setter returns s.Set as a Setter.
func (s *Store) Setter() Setter { return s.Set }

// Names returns the declared names in lexical order.
func (s *Store) Names() []string {
	names := make([]string, 0, s.values.Len())
	s.values.Range(func(k string, _ Value) bool {
		names = append(names, k)
		return true
	})
	sort.Strings(names)
	return names
}

// coerce converts v to the kind of declared. Integers keep the declared width,
// strings and bytes convert into each other.
func coerce(declared, v Value) (Value, bool) {
	if !v.IsValid() {
		return Value{}, false
	}
	switch declared.Kind() {
	case KindInt:
		i, ok := v.AsInt()
		if !ok {
			return Value{}, false
		}
		return Int(i, declared.Size()), true
	case KindString:
		str, ok := v.AsString()
		if !ok {
			return Value{}, false
		}
		return String(str), true
	case KindBytes:
		if v.Kind() == KindInt {
			return Value{}, false
		}
		return Bytes(v.Encode()), true
	default:
		return Value{}, false
	}
}

type snapshot struct {
	Version int                      `cbor:"version"`
	SavedAt time.Time                `cbor:"saved_at"`
	Values  map[string]snapshotValue `cbor:"values"`
}

type snapshotValue struct {
	Kind  Kind   `cbor:"k"`
	Bytes []byte `cbor:"b,omitempty"`
	Int   int64  `cbor:"i,omitempty"`
	Size  uint8  `cbor:"n,omitempty"`
	Str   string `cbor:"s,omitempty"`
}

// Save writes a CBOR snapshot of every declared value to w.
func (s *Store) Save(w io.Writer) error {
	snap := snapshot{
		Version: SnapshotVersion,
		SavedAt: time.Now().UTC(),
		Values:  make(map[string]snapshotValue, s.values.Len()),
	}
	s.values.Range(func(name string, v Value) bool {
		sv := snapshotValue{Kind: v.Kind(), Size: uint8(v.Size())}
		switch v.Kind() {
		case KindBytes:
			sv.Bytes = v.Encode()
		case KindInt:
			sv.Int, _ = v.AsInt()
		case KindString:
			sv.Str, _ = v.AsString()
		}
		snap.Values[name] = sv
		return true
	})

	if err := cbor.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Load restores values from a snapshot written by Save. Only names that are
// already declared are restored; the rest are skipped. It returns the number of
// values restored.
func (s *Store) Load(r io.Reader) (int, error) {
	var snap snapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return 0, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	restored := 0
	for name, sv := range snap.Values {
		var v Value
		switch sv.Kind {
		case KindBytes:
			v = Bytes(sv.Bytes)
		case KindString:
			v = String(sv.Str)
		case KindInt:
			switch sv.Size {
			case 1, 2, 4, 8:
				v = Int(sv.Int, int(sv.Size))
			}
		}
		if !v.IsValid() {
			s.logger.WithField("name", name).Warn("Skipping malformed snapshot value")
			continue
		}
		if !s.Set(name, v) {
			s.logger.WithField("name", name).Debug("Skipping undeclared snapshot value")
			continue
		}
		restored++
	}
	return restored, nil
}
