package meter

import (
	"log/slog"

	phraseflow "github.com/isaacakalanne1/phraseflow-core"
)

// LogMeter logs store and quota events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ phraseflow.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnDispatch(e phraseflow.DispatchEvent) {
	m.Logger.Info("dispatch",
		"id", e.ID,
		"action", e.Action,
		"queued", e.Queued,
	)
}

func (m *LogMeter) OnEffect(e phraseflow.EffectEvent) {
	if e.Err != nil {
		m.Logger.Error("effect_error",
			"id", e.ID,
			"action", e.Action,
			"middleware", e.Index,
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Err,
		)
		return
	}

	m.Logger.Info("effect",
		"id", e.ID,
		"action", e.Action,
		"middleware", e.Index,
		"follow_up", e.FollowUp,
		"duration_ms", e.Duration.Milliseconds(),
	)
}

func (m *LogMeter) OnQuota(e phraseflow.QuotaEvent) {
	if e.Admitted {
		m.Logger.Info("quota_admitted",
			"identity", e.Identity,
			"tier", e.Tier,
			"requested", e.Requested,
			"remaining", e.Remaining,
		)
	} else {
		m.Logger.Warn("quota_denied",
			"identity", e.Identity,
			"tier", e.Tier,
			"requested", e.Requested,
			"remaining", e.Remaining,
			"wait", e.Wait,
		)
	}
}
