// Package speech is the speech-synthesis feature store: the heaviest consumer
// of the state container, charging the usage ledger before every synthesis
// request.
package speech

import (
	phraseflow "github.com/isaacakalanne1/phraseflow-core"
)

// Phase is the synthesis lifecycle position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSynthesizing
	PhaseDone
	PhaseFailed
	PhaseQuotaDenied
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseQuotaDenied:
		return "quota-denied"
	default:
		return "unknown"
	}
}

// State is the feature's value snapshot. It is replaced wholesale by the
// reducer; nothing outside the store mutates it.
type State struct {
	Phase           Phase
	Text            string
	Audio           []byte
	Remaining       int
	FailureReason   string
	WaitDescription string
	UpgradeRequired bool
}

// Action is the feature's closed set of intents and outcomes.
type Action interface {
	isAction()
}

// Synthesize requests audio for the given text.
type Synthesize struct {
	Text string
}

// Succeeded carries the synthesized audio and the remaining quota after the
// charge.
type Succeeded struct {
	Audio     []byte
	Remaining int
}

// Failed reports a recoverable effect failure (network, persistence).
type Failed struct {
	Reason string
}

// QuotaDenied reports an admission denial. UpgradeRequired distinguishes the
// exhausted free tier from a daily limit that clears after Wait.
type QuotaDenied struct {
	Wait            string
	UpgradeRequired bool
}

// Reset returns the feature to idle.
type Reset struct{}

func (Synthesize) isAction()  {}
func (Succeeded) isAction()   {}
func (Failed) isAction()      {}
func (QuotaDenied) isAction() {}
func (Reset) isAction()       {}

// Environment is the capability bundle for the synthesis middleware.
type Environment struct {
	Client   phraseflow.RequestClient
	Quota    phraseflow.QuotaTracker
	Identity string
	Tier     *phraseflow.SubscriptionTier
	VoiceURL string
}

// Reduce is the feature reducer: pure and total, unrecognized actions are a
// no-op.
func Reduce(s State, a Action) State {
	switch action := a.(type) {
	case Synthesize:
		return State{Phase: PhaseSynthesizing, Text: action.Text, Remaining: s.Remaining}
	case Succeeded:
		s.Phase = PhaseDone
		s.Audio = action.Audio
		s.Remaining = action.Remaining
		s.FailureReason = ""
		return s
	case Failed:
		s.Phase = PhaseFailed
		s.FailureReason = action.Reason
		return s
	case QuotaDenied:
		s.Phase = PhaseQuotaDenied
		s.WaitDescription = action.Wait
		s.UpgradeRequired = action.UpgradeRequired
		return s
	case Reset:
		return State{Phase: PhaseIdle, Remaining: s.Remaining}
	default:
		return s
	}
}

// NewStore assembles the feature store: reducer plus synthesis middleware.
func NewStore(env Environment, opts ...phraseflow.Option[State, Action, Environment]) *phraseflow.Store[State, Action, Environment] {
	opts = append([]phraseflow.Option[State, Action, Environment]{
		phraseflow.WithMiddleware(SynthesisMiddleware()),
	}, opts...)
	return phraseflow.New(State{Phase: PhaseIdle}, Reduce, env, opts...)
}
