package phraseflow_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	pf "github.com/isaacakalanne1/phraseflow-core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logState struct {
	Log []string
}

type noEnv struct{}

// appendReducer records every recognized action id; anything else is a no-op.
func appendReducer(known map[string]bool) pf.Reducer[logState, string] {
	return func(s logState, a string) logState {
		if known != nil && !known[a] {
			return s
		}
		next := make([]string, len(s.Log), len(s.Log)+1)
		copy(next, s.Log)
		s.Log = append(next, a)
		return s
	}
}

// watchCommits signals on ch after every committed transition.
func watchCommits(store *pf.Store[logState, string, noEnv]) <-chan logState {
	ch := make(chan logState, 64)
	store.OnChange(func(_, next logState) {
		ch <- next
	})
	return ch
}

func waitForLogLen(t *testing.T, ch <-chan logState, n int) logState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if len(s.Log) >= n {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d committed actions", n)
		}
	}
}

// Test 1: Actions are applied in strict dispatch order
func TestDispatch_OrderPreserved(t *testing.T) {
	store := pf.New(logState{}, appendReducer(nil), noEnv{})
	defer store.Close()

	ch := watchCommits(store)

	want := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	for _, id := range want {
		require.True(t, store.Dispatch(id))
	}

	final := waitForLogLen(t, ch, len(want))
	assert.Equal(t, want, final.Log)
}

// Test 2: Unrecognized actions are a no-op, not an error
func TestReducer_Totality(t *testing.T) {
	known := map[string]bool{"known": true}
	store := pf.New(logState{}, appendReducer(known), noEnv{})
	defer store.Close()

	ch := watchCommits(store)

	store.Dispatch("unknown")
	store.Dispatch("known")

	final := waitForLogLen(t, ch, 1)
	assert.Equal(t, []string{"known"}, final.Log)
}

// Test 3: A middleware follow-up is enqueued at the tail, never the front
func TestMiddleware_FollowUpQueuedAtTail(t *testing.T) {
	gate := make(chan struct{})

	mw := func(ctx context.Context, _ logState, a string, _ noEnv) (*string, error) {
		if a != "a" {
			return nil, nil
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, nil
		}
		follow := "c"
		return &follow, nil
	}

	store := pf.New(logState{}, appendReducer(nil), noEnv{},
		pf.WithMiddleware(mw),
	)
	defer store.Close()

	ch := watchCommits(store)

	store.Dispatch("a")
	store.Dispatch("b")
	close(gate)

	final := waitForLogLen(t, ch, 3)
	assert.Equal(t, []string{"a", "b", "c"}, final.Log)
}

// Test 4: Middlewares for one action run in registration order
func TestMiddleware_RegistrationOrder(t *testing.T) {
	order := make(chan int, 2)

	first := func(context.Context, logState, string, noEnv) (*string, error) {
		order <- 1
		return nil, nil
	}
	second := func(context.Context, logState, string, noEnv) (*string, error) {
		order <- 2
		return nil, nil
	}

	store := pf.New(logState{}, appendReducer(nil), noEnv{},
		pf.WithMiddleware(first, second),
	)
	defer store.Close()

	ch := watchCommits(store)
	store.Dispatch("a")
	waitForLogLen(t, ch, 1)

	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}

// Test 5: Middleware sees the state before reduction
func TestMiddleware_SeesPreReductionState(t *testing.T) {
	seen := make(chan int, 1)

	type countState struct{ Count int }
	reduce := func(s countState, _ string) countState {
		s.Count++
		return s
	}
	mw := func(_ context.Context, s countState, _ string, _ noEnv) (*string, error) {
		seen <- s.Count
		return nil, nil
	}

	store := pf.New(countState{}, reduce, noEnv{}, pf.WithMiddleware(mw))
	defer store.Close()

	store.Dispatch("a")

	select {
	case count := <-seen:
		assert.Equal(t, 0, count)
	case <-time.After(2 * time.Second):
		t.Fatal("middleware never ran")
	}
	assert.Eventually(t, func() bool { return store.State().Count == 1 },
		2*time.Second, 5*time.Millisecond)
}

// Test 6: End-to-end increment/logged scenario
func TestStore_EndToEnd(t *testing.T) {
	type countState struct {
		Count  int
		Logged int
	}

	reduce := func(s countState, a string) countState {
		switch a {
		case "increment":
			s.Count++
		case "logged":
			s.Logged++
		}
		return s
	}

	mw := func(ctx context.Context, _ countState, a string, _ noEnv) (*string, error) {
		if a != "increment" {
			return nil, nil
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, nil
		}
		follow := "logged"
		return &follow, nil
	}

	store := pf.New(countState{}, reduce, noEnv{}, pf.WithMiddleware(mw))
	defer store.Close()

	store.Dispatch("increment")
	store.Dispatch("increment")

	require.Eventually(t, func() bool {
		s := store.State()
		return s.Count == 2 && s.Logged == 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, store.State().Count, "count unaffected by logged actions")
}

// Test 7: Dispatch after Close is dropped, never applied
func TestClose_DropsLateDispatch(t *testing.T) {
	store := pf.New(logState{}, appendReducer(nil), noEnv{})

	ch := watchCommits(store)
	require.True(t, store.Dispatch("a"))
	waitForLogLen(t, ch, 1)

	store.Close()

	assert.False(t, store.Dispatch("b"))
	assert.Equal(t, []string{"a"}, store.State().Log)
}

// Test 8: A middleware cancelled at teardown must not dispatch a follow-up
func TestClose_CancelsInFlightMiddleware(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan struct{})

	mw := func(ctx context.Context, _ logState, a string, _ noEnv) (*string, error) {
		if a != "a" {
			return nil, nil
		}
		close(started)
		<-ctx.Done()
		defer close(finished)
		follow := "late"
		return &follow, nil
	}

	store := pf.New(logState{}, appendReducer(nil), noEnv{}, pf.WithMiddleware(mw))

	store.Dispatch("a")
	<-started
	store.Close()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("middleware never unblocked")
	}

	assert.Equal(t, []string{"a"}, store.State().Log)
}

// Test 9: PreviousState tracks the prior committed snapshot
func TestStore_PreviousState(t *testing.T) {
	store := pf.New(logState{}, appendReducer(nil), noEnv{})
	defer store.Close()

	ch := watchCommits(store)
	store.Dispatch("a")
	store.Dispatch("b")
	waitForLogLen(t, ch, 2)

	assert.Equal(t, []string{"a", "b"}, store.State().Log)
	assert.Equal(t, []string{"a"}, store.PreviousState().Log)
}

// Test 10: A subscriber's dispatches stop at teardown
func TestSubscriber_TickStopsAtClose(t *testing.T) {
	type countState struct{ Count int }
	reduce := func(s countState, _ string) countState {
		s.Count++
		return s
	}

	store := pf.New(countState{}, reduce, noEnv{})
	store.Subscribe(pf.Tick[countState, string, noEnv](2*time.Millisecond, func() string { return "tick" }))

	require.Eventually(t, func() bool { return store.State().Count >= 3 },
		2*time.Second, time.Millisecond)

	store.Close()
	settled := store.State().Count
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, store.State().Count)
}

// Test 11: Poll keeps polling through transient errors and stops when done
func TestSubscriber_Poll(t *testing.T) {
	type countState struct{ Count int }
	reduce := func(s countState, _ string) countState {
		s.Count++
		return s
	}

	var calls atomic.Int32
	check := func(_ context.Context, _ noEnv) (*string, bool, error) {
		switch calls.Add(1) {
		case 1, 2:
			return nil, false, assert.AnError // transient, keep polling
		case 3:
			a := "ready"
			return &a, true, nil
		default:
			return nil, true, nil
		}
	}

	store := pf.New(countState{}, reduce, noEnv{})
	defer store.Close()
	store.Subscribe(pf.Poll[countState, string, noEnv](time.Millisecond, check))

	require.Eventually(t, func() bool { return store.State().Count == 1 },
		2*time.Second, time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

// Test 12: A middleware error is reported to the meter, not propagated
func TestMiddleware_ErrorReported(t *testing.T) {
	errs := make(chan error, 1)

	mw := func(context.Context, logState, string, noEnv) (*string, error) {
		return nil, assert.AnError
	}

	store := pf.New(logState{}, appendReducer(nil), noEnv{},
		pf.WithMiddleware(mw),
		pf.WithMeter[logState, string, noEnv](&captureMeter{effectErrs: errs}),
	)
	defer store.Close()

	store.Dispatch("a")

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, assert.AnError)
	case <-time.After(2 * time.Second):
		t.Fatal("middleware error never reported")
	}
	assert.Equal(t, []string{"a"}, store.State().Log)
}

type captureMeter struct {
	effectErrs chan error
}

func (m *captureMeter) OnDispatch(pf.DispatchEvent) {}

func (m *captureMeter) OnEffect(e pf.EffectEvent) {
	if e.Err != nil {
		select {
		case m.effectErrs <- e.Err:
		default:
		}
	}
}

func (m *captureMeter) OnQuota(pf.QuotaEvent) {}
