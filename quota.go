package phraseflow

import (
	"context"
	"time"
)

// QuotaTracker gates chargeable operations behind per-identity character
// budgets. It is the one resource shared across otherwise-isolated stores, so
// implementations must make CheckAndRecord atomic end-to-end per identity.
type QuotaTracker interface {
	// CheckAndRecord decides admit/deny for a request of the given character
	// count and, on admit, persists the charge. tier == nil means free tier
	// (lifetime budget); otherwise the tier's rolling daily limit applies.
	// On deny it returns a *QuotaError wrapping ErrFreeLimitReached or
	// ErrDailyLimitReached; nothing is persisted for a denied request.
	CheckAndRecord(ctx context.Context, identity string, characters int, tier *SubscriptionTier) (Decision, error)

	// RemainingFree returns the unspent free-tier budget. Read-only.
	RemainingFree(ctx context.Context, identity string) (int, error)

	// RemainingDaily returns the unspent budget inside the current rolling
	// window for the given tier. Read-only.
	RemainingDaily(ctx context.Context, identity string, tier SubscriptionTier) (int, error)
}

// UsageRecord is one charged admission. Records are immutable once written;
// the persisted set is append-only except for pruning of records that have
// fallen out of the rolling window.
type UsageRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	CharacterCount int       `json:"characterCount"`
}

// SubscriptionTier describes a paid tier with a rolling daily character limit.
// Unlimited disables the limit check (test/debug configuration); usage is
// still recorded.
type SubscriptionTier struct {
	ProductID           string `yaml:"product_id"`
	DailyCharacterLimit int    `yaml:"daily_character_limit"`
	Unlimited           bool   `yaml:"unlimited"`
}

// Decision is the outcome of one admission check. It is computed fresh on
// every check and never persisted; only admitted UsageRecords are.
type Decision struct {
	Admitted        bool
	Remaining       int
	WaitDescription string
}
