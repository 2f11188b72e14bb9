// Package poll re-fetches a remote list while any item is still being
// processed. One goroutine owns the loop, so fetches never overlap; the
// ticker is released on every exit path.
package poll

import (
	"context"
	"time"

	"github.com/quizdesk/quizdesk/internal/logging"
)

// DefaultInterval between refreshes.
const DefaultInterval = 3 * time.Second

type Config[T any] struct {
	// Fetch returns the current list. Required.
	Fetch func(context.Context) ([]T, error)
	// Pending reports whether an item is still in a non-terminal state.
	// Required.
	Pending func(T) bool
	// Interval between fetches; DefaultInterval when zero.
	Interval time.Duration
	// OnUpdate is called after every successful fetch with the fresh
	// list.
	OnUpdate func([]T)
	// OnError is called on fetch failures. The poller keeps the
	// last-known list and keeps going; only a successful all-terminal
	// fetch or cancellation stops it.
	OnError func(error)
	Log     *logging.Logger
}

// Run fetches immediately, then on the interval while the last result
// holds at least one pending item. It blocks until the list settles or
// ctx is cancelled, returning the last-known list either way.
func Run[T any](ctx context.Context, cfg Config[T]) ([]T, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}

	var last []T
	settled := func() bool {
		items, err := cfg.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			log.Warn("list refresh failed, keeping last result", "err", err)
			if cfg.OnError != nil {
				cfg.OnError(err)
			}
			return false
		}
		last = items
		if cfg.OnUpdate != nil {
			cfg.OnUpdate(items)
		}
		return !anyPending(items, cfg.Pending)
	}

	if settled() {
		return last, nil
	}
	if err := ctx.Err(); err != nil {
		return last, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			if settled() {
				return last, nil
			}
			if err := ctx.Err(); err != nil {
				return last, err
			}
		}
	}
}

func anyPending[T any](items []T, pending func(T) bool) bool {
	for _, it := range items {
		if pending(it) {
			return true
		}
	}
	return false
}
