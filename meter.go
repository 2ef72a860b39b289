package phraseflow

import "time"

// Meter observes store and quota activity for monitoring/logging.
type Meter interface {
	// OnDispatch is called when an action is committed to state.
	OnDispatch(event DispatchEvent)

	// OnEffect is called after each middleware finishes for an action.
	OnEffect(event EffectEvent)

	// OnQuota is called for every quota admission check.
	OnQuota(event QuotaEvent)
}

// DispatchEvent describes a committed action.
type DispatchEvent struct {
	ID     string
	Action string
	Queued int
}

// EffectEvent describes the outcome of one middleware invocation.
type EffectEvent struct {
	ID       string
	Action   string
	Index    int
	FollowUp string
	Duration time.Duration
	Err      error
}

// QuotaEvent describes the outcome of a quota admission check.
type QuotaEvent struct {
	Identity  string
	Tier      string
	Requested int
	Remaining int
	Admitted  bool
	Wait      string
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (m *noopMeter) OnDispatch(DispatchEvent) {}
func (m *noopMeter) OnEffect(EffectEvent)     {}
func (m *noopMeter) OnQuota(QuotaEvent)       {}
