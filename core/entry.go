package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"unicode/utf8"
)

// EntryType defines the type of an entry in the memtable or a segment.
type EntryType byte

const (
	// EntryTypePut represents a live value.
	EntryTypePut EntryType = 'P'
	// EntryTypeDelete represents a tombstone for a single key.
	EntryTypeDelete EntryType = 'D'
)

// String returns the one-letter wire tag of the entry type.
func (t EntryType) String() string {
	switch t {
	case EntryTypePut:
		return "P"
	case EntryTypeDelete:
		return "D"
	default:
		return fmt.Sprintf("EntryType(%d)", byte(t))
	}
}

// MarshalJSON encodes the entry type as its wire tag.
func (t EntryType) MarshalJSON() ([]byte, error) {
	switch t {
	case EntryTypePut, EntryTypeDelete:
		return json.Marshal(t.String())
	default:
		return nil, fmt.Errorf("cannot encode unknown entry type %d", byte(t))
	}
}

// UnmarshalJSON decodes a wire tag produced by MarshalJSON.
func (t *EntryType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("entry type must be a string tag: %w", err)
	}
	switch tag {
	case "P":
		*t = EntryTypePut
	case "D":
		*t = EntryTypeDelete
	default:
		return fmt.Errorf("unknown entry type tag %q", tag)
	}
	return nil
}

// Entry is the outcome of the most recent write to a key within one
// generation (the memtable or a single segment): either a value or a tombstone.
type Entry[V any] struct {
	Type  EntryType
	Value V // zero for tombstones
}

// PutEntry wraps a live value.
func PutEntry[V any](v V) Entry[V] {
	return Entry[V]{Type: EntryTypePut, Value: v}
}

// TombstoneEntry returns a deletion marker.
func TombstoneEntry[V any]() Entry[V] {
	return Entry[V]{Type: EntryTypeDelete}
}

// IsTombstone reports whether the entry records a deletion.
func (e Entry[V]) IsTombstone() bool {
	return e.Type == EntryTypeDelete
}

// Resolve turns the entry into a lookup result. A tombstone shadows
// any older value, so it resolves to absent.
func (e Entry[V]) Resolve() (V, bool) {
	if e.IsTombstone() {
		var zero V
		return zero, false
	}
	return e.Value, true
}

// Record is a key paired with its entry, the unit stored in a segment.
type Record[K any, V any] struct {
	Key   K
	Entry Entry[V]
}

// recordWire is the on-disk JSON shape of a Record. encoding/json replaces
// invalid UTF-8 with U+FFFD, so string keys and values that are not valid
// UTF-8 travel as base64 bytes under "kb" and "vb" instead.
type recordWire[K any, V any] struct {
	Key        *K        `json:"k,omitempty"`
	KeyBytes   []byte    `json:"kb,omitempty"`
	Type       EntryType `json:"t"`
	Value      *V        `json:"v,omitempty"`
	ValueBytes []byte    `json:"vb,omitempty"`
}

// MarshalJSON writes {"k":key,"t":"P","v":value} or {"k":key,"t":"D"}.
func (r Record[K, V]) MarshalJSON() ([]byte, error) {
	w := recordWire[K, V]{Type: r.Entry.Type}
	if b, ok := rawString(r.Key); ok {
		w.KeyBytes = b
	} else {
		k := r.Key
		w.Key = &k
	}
	if !r.Entry.IsTombstone() {
		if b, ok := rawString(r.Entry.Value); ok {
			w.ValueBytes = b
		} else {
			v := r.Entry.Value
			w.Value = &v
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the shape written by MarshalJSON.
func (r *Record[K, V]) UnmarshalJSON(data []byte) error {
	var w recordWire[K, V]
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.KeyBytes != nil:
		if err := setRawString(&r.Key, w.KeyBytes); err != nil {
			return fmt.Errorf("record key: %w", err)
		}
	case w.Key != nil:
		r.Key = *w.Key
	default:
		return fmt.Errorf("record is missing its key")
	}
	r.Entry.Type = w.Type
	switch w.Type {
	case EntryTypePut:
		switch {
		case w.ValueBytes != nil:
			if err := setRawString(&r.Entry.Value, w.ValueBytes); err != nil {
				return fmt.Errorf("record value: %w", err)
			}
		case w.Value != nil:
			r.Entry.Value = *w.Value
		default:
			return fmt.Errorf("put record is missing its value")
		}
	case EntryTypeDelete:
		var zero V
		r.Entry.Value = zero
	default:
		return fmt.Errorf("record is missing its entry type")
	}
	return nil
}

// rawString returns the bytes of v when v has a string kind and is not
// valid UTF-8.
func rawString[T any](v T) ([]byte, bool) {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() != reflect.String {
		return nil, false
	}
	str := rv.String()
	if utf8.ValidString(str) {
		return nil, false
	}
	return []byte(str), true
}

func setRawString[T any](dst *T, b []byte) error {
	rv := reflect.ValueOf(dst).Elem()
	if rv.Kind() != reflect.String {
		return fmt.Errorf("raw bytes given for non-string type %s", rv.Type())
	}
	rv.SetString(string(b))
	return nil
}

// ErrUnencodable is wrapped by the error Validate returns.
var ErrUnencodable = errors.New("record cannot be encoded")

// Validate reports whether r can be written to a segment and read back
// unchanged. Floats must be finite; composite values must marshal.
func (r Record[K, V]) Validate() error {
	if err := checkScalar(r.Key); err != nil {
		return fmt.Errorf("key %v: %w", r.Key, err)
	}
	if r.Entry.IsTombstone() {
		return nil
	}
	if err := checkScalar(r.Entry.Value); err != nil {
		return fmt.Errorf("value for key %v: %w", r.Key, err)
	}
	return nil
}

func checkScalar[T any](v T) error {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return nil
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float: %w", ErrUnencodable)
		}
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Errorf("%w: %w", ErrUnencodable, err)
	}
	return nil
}
