package phraseflow

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Tick returns a Subscriber that dispatches next() every interval until the
// store is torn down.
func Tick[S, A, E any](interval time.Duration, next func() A) Subscriber[S, A, E] {
	return func(ctx context.Context, store *Store[S, A, E], _ E) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !store.Dispatch(next()) {
					return
				}
			}
		}
	}
}

// Poll returns a Subscriber that repeatedly evaluates check against the
// environment, paced by a rate limiter, dispatching any action it yields.
// A check error is transient: the loop keeps polling. The loop stops at
// store teardown or when check reports done.
func Poll[S, A, E any](every time.Duration, check func(ctx context.Context, env E) (action *A, done bool, err error)) Subscriber[S, A, E] {
	return func(ctx context.Context, store *Store[S, A, E], env E) {
		limiter := rate.NewLimiter(rate.Every(every), 1)

		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			action, done, err := check(ctx, env)
			if err != nil {
				continue
			}
			if action != nil {
				if !store.Dispatch(*action) {
					return
				}
			}
			if done {
				return
			}
		}
	}
}
