package models

import (
	"bytes"
	"encoding/json"
)

// Optional tracks whether a value was supplied at all, so an omitted
// field and a field explicitly set to its zero value can be told apart.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// IsZero makes `omitzero` drop unset fields when encoding.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// UnmarshalJSON is only called when the key is present in the document,
// including for an explicit null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
