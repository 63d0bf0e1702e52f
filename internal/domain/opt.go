package domain

import (
	"bytes"
	"encoding/json"
)

// Opt marks a nullable scalar. A JSON null or a missing key decodes to absent.
type Opt[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, ok: true}
}

func (o Opt[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsZero reports absence, so omitzero drops absent fields.
func (o Opt[T]) IsZero() bool {
	return !o.ok
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.value, o.ok = zero, false
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.value, o.ok = v, true
	return nil
}
