package phraseflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reducer computes the next state for an action. It must be pure, synchronous
// and total: an action it does not recognize returns the state unchanged.
type Reducer[S, A any] func(state S, action A) S

// Middleware reacts to a dispatched action with asynchronous work. It receives
// the state as it was before the action was reduced, and may return at most one
// follow-up action, which is enqueued behind anything already waiting.
//
// Recoverable failures (network, persistence) must be translated into a domain
// action, not returned as an error. A returned error is treated as programmer
// error: it is reported to the Meter and the chain for this action continues.
type Middleware[S, A, E any] func(ctx context.Context, state S, action A, env E) (*A, error)

// Subscriber bridges a long-lived external source (timer, polling loop,
// change notification) into repeated Dispatch calls. It is invoked once in its
// own goroutine and must return when ctx is cancelled.
type Subscriber[S, A, E any] func(ctx context.Context, store *Store[S, A, E], env E)

// Observer is notified after each committed state transition.
type Observer[S any] func(prev, next S)

// Store owns one state value and serializes every mutation through a single
// processing goroutine. Dispatch is fire-and-forget: actions are applied to
// state in strict FIFO order, one at a time, and middleware effects for an
// action run sequentially after its reduction.
type Store[S, A, E any] struct {
	reducer     Reducer[S, A]
	middlewares []Middleware[S, A, E]
	env         E
	meter       Meter

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []pending[A]
	state     S
	prev      S
	observers []Observer[S]
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	subs   sync.WaitGroup
}

type pending[A any] struct {
	id     string
	action A
}

// Option configures a Store.
type Option[S, A, E any] func(*Store[S, A, E])

// WithMiddleware appends middlewares in registration order.
func WithMiddleware[S, A, E any](mws ...Middleware[S, A, E]) Option[S, A, E] {
	return func(s *Store[S, A, E]) { s.middlewares = append(s.middlewares, mws...) }
}

// WithMeter sets the meter.
func WithMeter[S, A, E any](m Meter) Option[S, A, E] {
	return func(s *Store[S, A, E]) { s.meter = m }
}

// WithObserver registers a state-change observer.
func WithObserver[S, A, E any](obs Observer[S]) Option[S, A, E] {
	return func(s *Store[S, A, E]) { s.observers = append(s.observers, obs) }
}

// New creates a Store with the given initial state, reducer and environment,
// and starts its processing goroutine.
func New[S, A, E any](initial S, reducer Reducer[S, A], env E, opts ...Option[S, A, E]) *Store[S, A, E] {
	if reducer == nil {
		panic("phraseflow: reducer is required")
	}

	s := &Store[S, A, E]{
		reducer: reducer,
		env:     env,
		state:   initial,
		prev:    initial,
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}

	if s.meter == nil {
		s.meter = &noopMeter{}
	}

	go s.run()
	return s
}

// Dispatch enqueues an action and returns immediately. It reports false if the
// store is closed; late dispatches are dropped, never applied.
func (s *Store[S, A, E]) Dispatch(action A) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, pending[A]{id: uuid.New().String(), action: action})
	s.cond.Signal()
	s.mu.Unlock()
	return true
}

// State returns the most recently committed state snapshot.
func (s *Store[S, A, E]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PreviousState returns the state committed before the current one.
func (s *Store[S, A, E]) PreviousState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev
}

// Environment returns the capability bundle the store was built with.
func (s *Store[S, A, E]) Environment() E {
	return s.env
}

// Subscribe starts a subscriber in its own goroutine. Its context is cancelled
// at Close. Subscribing to a closed store is a no-op.
func (s *Store[S, A, E]) Subscribe(sub Subscriber[S, A, E]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.subs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.subs.Done()
		sub(s.ctx, s, s.env)
	}()
}

// OnChange registers an observer invoked after each committed transition,
// inside the store's serialization boundary.
func (s *Store[S, A, E]) OnChange(obs Observer[S]) {
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()
}

// Close stops the store: no further dispatches are accepted, subscriber and
// middleware contexts are cancelled, and Close blocks until the processing
// goroutine and all subscribers have returned. Actions still queued at Close
// are dropped. Must not be called from a reducer, middleware or observer.
func (s *Store[S, A, E]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		s.subs.Wait()
		return
	}
	s.closed = true
	s.cancel()
	s.cond.Signal()
	s.mu.Unlock()

	<-s.done
	s.subs.Wait()
}

func (s *Store[S, A, E]) run() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}

		p := s.queue[0]
		s.queue = s.queue[1:]
		depth := len(s.queue)

		before := s.state
		next := s.reducer(before, p.action)
		s.prev = before
		s.state = next
		observers := s.observers
		s.mu.Unlock()

		s.meter.OnDispatch(DispatchEvent{
			ID:     p.id,
			Action: actionName(p.action),
			Queued: depth,
		})

		for _, obs := range observers {
			obs(before, next)
		}

		for i, mw := range s.middlewares {
			start := time.Now()
			follow, err := mw(s.ctx, before, p.action, s.env)

			ev := EffectEvent{
				ID:       p.id,
				Action:   actionName(p.action),
				Index:    i,
				Duration: time.Since(start),
				Err:      err,
			}
			if err == nil && follow != nil {
				ev.FollowUp = actionName(*follow)
			}
			s.meter.OnEffect(ev)

			if err != nil {
				continue
			}
			if follow != nil {
				s.Dispatch(*follow)
			}
		}
	}
}

func actionName(action any) string {
	return fmt.Sprintf("%T", action)
}
