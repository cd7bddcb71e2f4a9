package docstore

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Subscription is a live, single consumer stream of values. The first value is
// delivered right after subscribing; later values follow store changes. When
// several changes arrive before the consumer reads, only the latest state is
// delivered. The Updates channel is closed after Unsubscribe or when the
// subscribing context is cancelled.
type Subscription[T any] struct {
	updates chan T
	ctx     context.Context
	cancel  context.CancelFunc
}

// Updates returns the value stream.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Unsubscribe stops the subscription. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.cancel()
}

// Done is closed once the subscription has been stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Watch starts a subscription that calls fetch once immediately and again
// every time the hub publishes a change accepted by match.
func Watch[T any](ctx context.Context, hub *Hub, match func(Change) bool, fetch func(context.Context) (T, error)) *Subscription[T] {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		updates: make(chan T),
		ctx:     subCtx,
		cancel:  cancel,
	}

	w := &watcher{match: match, dirty: make(chan struct{}, 1)}
	remove := hub.add(w)
	w.notify()

	go func() {
		defer close(sub.updates)
		defer remove()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-w.dirty:
			}

			for {
				value, err := fetch(subCtx)
				if err != nil {
					if subCtx.Err() != nil {
						return
					}
					log.Warn().Err(err).Msg("subscription refresh failed")
					break
				}

				select {
				case <-subCtx.Done():
					return
				case <-w.dirty:
					// newer state exists, drop the stale value
					continue
				case sub.updates <- value:
				}
				break
			}
		}
	}()

	return sub
}

// Map derives a subscription whose values are fn applied to src's values.
// Unsubscribing the result also unsubscribes src.
func Map[T, U any](src *Subscription[T], fn func(T) U) *Subscription[U] {
	ctx, cancel := context.WithCancel(src.ctx)
	out := &Subscription[U]{
		updates: make(chan U),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		defer close(out.updates)
		defer src.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-src.updates:
				if !ok {
					return
				}
				select {
				case out.updates <- fn(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
