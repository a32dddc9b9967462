package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrNotReady is reported until the first snapshot has been stored.
var ErrNotReady = errors.New("no snapshot loaded yet")

// Holder publishes the live snapshot to concurrent readers.
// Readers always observe a complete snapshot: either the old one or the new one.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns an empty Holder. Load returns nil until Store is called.
func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the live snapshot, or nil if none has been stored yet.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Store swaps in s and returns the snapshot it replaced.
func (h *Holder) Store(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}

// Name implements observability.Checker.
func (h *Holder) Name() string {
	return "snapshot"
}

// Check implements observability.Checker: the service is ready once a
// snapshot has been loaded.
func (h *Holder) Check(_ context.Context) error {
	if h.Load() == nil {
		return ErrNotReady
	}
	return nil
}
