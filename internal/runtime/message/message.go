// Package message holds the in-memory representation of a decoded FIX message:
// a Builder that accumulates field occurrences in wire order and the frozen
// Message that serves typed lookups over them.
//
// Repeated tags keep every occurrence in insertion order; the n-th occurrence of
// a tag is addressed by index n. Lookups distinguish three failures: the tag was
// never stored (ErrTagAbsent), the tag has fewer occurrences than requested
// (ErrIndexOutOfRange), and the stored kind differs from the descriptor's
// (ErrTypeMismatch).
package message

import (
	"errors"
	"iter"

	errspkg "github.com/drblury/fixflow/internal/runtime/errors"
	"github.com/drblury/fixflow/internal/runtime/fields"
)

// Message is the frozen, read-only field store. It has no write path, so any
// number of goroutines may read it without locking.
type Message struct {
	values  []fields.Value
	tags    []fields.Tag
	indices map[fields.Tag][]int
	order   []fields.Tag
}

// TagValue returns the first occurrence of tag.
func (m *Message) TagValue(tag fields.Tag) (fields.Value, error) {
	return m.TagValueAt(tag, 0)
}

// TagValueAt returns the index-th occurrence of tag.
func (m *Message) TagValueAt(tag fields.Tag, index int) (fields.Value, error) {
	positions, ok := m.indices[tag]
	if !ok || len(positions) == 0 {
		return fields.Value{}, &errspkg.FieldError{Tag: uint32(tag), Index: index, Reason: errspkg.ErrTagAbsent}
	}
	if index < 0 || index >= len(positions) {
		return fields.Value{}, &errspkg.FieldError{
			Tag:    uint32(tag),
			Index:  index,
			Count:  len(positions),
			Reason: errspkg.ErrIndexOutOfRange,
		}
	}
	return m.values[positions[index]], nil
}

// Count returns how many occurrences of tag are stored.
func (m *Message) Count(tag fields.Tag) int {
	return len(m.indices[tag])
}

// Has reports whether tag occurs at least once.
func (m *Message) Has(tag fields.Tag) bool {
	return m.Count(tag) > 0
}

// Len returns the total number of occurrences across all tags.
func (m *Message) Len() int {
	return len(m.values)
}

// Tags returns the distinct tags in order of first appearance.
func (m *Message) Tags() []fields.Tag {
	out := make([]fields.Tag, len(m.order))
	copy(out, m.order)
	return out
}

// All yields every occurrence in insertion order.
func (m *Message) All() iter.Seq2[fields.Tag, fields.Value] {
	return func(yield func(fields.Tag, fields.Value) bool) {
		for i, v := range m.values {
			if !yield(m.tags[i], v) {
				return
			}
		}
	}
}

// Get returns the first occurrence of f, typed.
func Get[T any](m *Message, f fields.Field[T]) (T, error) {
	return GetAt(m, f, 0)
}

// GetAt returns the index-th occurrence of f, typed. A stored value of another
// kind yields ErrTypeMismatch and is not converted.
func GetAt[T any](m *Message, f fields.Field[T], index int) (T, error) {
	var zero T
	v, err := m.TagValueAt(f.Tag(), index)
	if err != nil {
		return zero, err
	}
	out, ok := f.Extract(v)
	if !ok {
		return zero, &errspkg.FieldError{
			Tag:    uint32(f.Tag()),
			Index:  index,
			Count:  m.Count(f.Tag()),
			Reason: errspkg.ErrTypeMismatch,
			Want:   f.Kind().String(),
			Got:    v.Kind().String(),
		}
	}
	return out, nil
}

// Find looks up an optional field. An absent tag reports ok=false with no
// error; a present field of the wrong kind is still an error.
func Find[T any](m *Message, f fields.Field[T]) (value T, ok bool, err error) {
	value, err = Get(m, f)
	switch {
	case err == nil:
		return value, true, nil
	case errors.Is(err, errspkg.ErrTagAbsent):
		return value, false, nil
	default:
		return value, false, err
	}
}

// GetAll returns every occurrence of f in insertion order, or ErrTagAbsent.
func GetAll[T any](m *Message, f fields.Field[T]) ([]T, error) {
	n := m.Count(f.Tag())
	if n == 0 {
		return nil, &errspkg.FieldError{Tag: uint32(f.Tag()), Reason: errspkg.ErrTagAbsent}
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := GetAt(m, f, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
