package snapshot

import (
	"encoding/json"
	"sync"
)

// lazy holds a definition body that is compiled on first use.
// A failed compilation is remembered, so a broken body is parsed exactly once.
type lazy[T any] struct {
	once    sync.Once
	raw     json.RawMessage
	compile func([]byte) (*T, error)

	val *T
	err error
}

func newLazy[T any](raw json.RawMessage, compile func([]byte) (*T, error)) *lazy[T] {
	return &lazy[T]{raw: raw, compile: compile}
}

func (l *lazy[T]) get() (*T, error) {
	l.once.Do(func() {
		l.val, l.err = l.compile(l.raw)
		// The body is no longer needed once parsed.
		l.raw = nil
	})
	return l.val, l.err
}
