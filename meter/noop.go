package meter

import phraseflow "github.com/isaacakalanne1/phraseflow-core"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ phraseflow.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnDispatch(phraseflow.DispatchEvent) {}
func (m *NoopMeter) OnEffect(phraseflow.EffectEvent)     {}
func (m *NoopMeter) OnQuota(phraseflow.QuotaEvent)       {}
