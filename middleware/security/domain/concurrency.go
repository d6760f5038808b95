package domain

import "context"

// SlotPool bounds how many requests run at once.
//
// Acquire blocks until a slot is free or ctx ends, in which case it returns
// ctx.Err(). On success the returned release func must be called exactly
// once.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), err error)
}
