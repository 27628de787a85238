package session

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when a request arrives while another is in flight.
// The request is dropped, not queued.
var ErrBusy = errors.New("another request is in flight")

// Gate admits at most one request at a time.
type Gate struct {
	busy atomic.Bool
}

// TryEnter takes the slot. It returns false when the slot is taken.
func (g *Gate) TryEnter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave frees the slot.
func (g *Gate) Leave() {
	g.busy.Store(false)
}
