// Package poll runs a fetch function on a fixed interval until the subscription is closed.
package poll

import (
	"context"
	"sync"
	"time"
)

// Subscription is a running poll loop.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe calls fetch right away and then every interval. Successful results go to deliver;
// the loop stops when deliver returns false, when ctx is done or when Close is called.
// Fetch errors go to onError, which returns false to stop the loop. A nil onError keeps polling.
func Subscribe[T any](
	ctx context.Context,
	interval time.Duration,
	fetch func(ctx context.Context) (T, error),
	deliver func(T) bool,
	onError func(error) bool,
) *Subscription {
	ctx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			value, err := fetch(ctx)

			// Close may have raced with the fetch
			if ctx.Err() != nil {
				return
			}

			if err != nil {
				if onError != nil && !onError(err) {
					return
				}
			} else if !deliver(value) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return sub
}

// Close stops the loop and waits for it to exit. No fetch or deliver runs after Close returns.
// It must not be called from inside deliver or onError.
func (that *Subscription) Close() {
	that.once.Do(that.cancel)
	<-that.done
}

// Done is closed once the loop has exited.
func (that *Subscription) Done() <-chan struct{} {
	return that.done
}
