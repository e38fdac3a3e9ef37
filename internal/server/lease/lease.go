// Package lease serializes work on one conversation across concurrent
// requests.
package lease

import (
	"context"
	"errors"
)

// ErrBusy is returned when a lease could not be taken before the context
// ended.
var ErrBusy = errors.New("conversation is busy")

// Locker hands out exclusive leases by key. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Nop grants every lease immediately.
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
