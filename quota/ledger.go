package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	phraseflow "github.com/isaacakalanne1/phraseflow-core"
)

const defaultKeyPrefix = "phraseflow.usage"

// Ledger is the persisted usage tracker gating chargeable operations. The
// free tier spends a lifetime character budget; subscribed tiers spend
// against a rolling window (24h by default). One ledger serves every store
// in the process, so each admission check is a single critical section per
// identity: read, prune, sum, compare, append, write.
type Ledger struct {
	store     phraseflow.SecureStore
	clock     phraseflow.Clock
	meter     phraseflow.Meter
	freeLimit int
	window    time.Duration
	keyPrefix string

	mu         sync.Mutex
	identities map[string]*sync.Mutex
}

var _ phraseflow.QuotaTracker = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock.
func WithClock(c phraseflow.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithMeter sets the meter.
func WithMeter(m phraseflow.Meter) Option {
	return func(l *Ledger) { l.meter = m }
}

// WithWindow sets the rolling window for subscribed tiers.
func WithWindow(w time.Duration) Option {
	return func(l *Ledger) { l.window = w }
}

// WithKeyPrefix sets the persistence key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(l *Ledger) { l.keyPrefix = prefix }
}

// New creates a Ledger over the given store with the given free-tier
// lifetime character limit.
func New(store phraseflow.SecureStore, freeLimit int, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		freeLimit:  freeLimit,
		window:     phraseflow.DefaultWindow,
		keyPrefix:  defaultKeyPrefix,
		identities: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = phraseflow.SystemClock{}
	}
	if l.meter == nil {
		l.meter = noopMeter{}
	}
	return l
}

// CheckAndRecord decides admit/deny for a request of the given character
// count and persists the charge on admit. A request of size 0 is always
// admitted. Nothing is persisted for a denied request.
func (l *Ledger) CheckAndRecord(ctx context.Context, identity string, characters int, tier *phraseflow.SubscriptionTier) (phraseflow.Decision, error) {
	if characters < 0 {
		return phraseflow.Decision{}, phraseflow.ErrNegativeCharacters
	}

	unlock := l.lockIdentity(identity)
	defer unlock()

	if tier == nil {
		return l.checkFree(ctx, identity, characters)
	}
	return l.checkDaily(ctx, identity, characters, *tier)
}

func (l *Ledger) checkFree(ctx context.Context, identity string, characters int) (phraseflow.Decision, error) {
	used, err := l.loadFreeUsed(ctx, identity)
	if err != nil {
		return phraseflow.Decision{}, err
	}

	if used+characters > l.freeLimit {
		l.meter.OnQuota(phraseflow.QuotaEvent{
			Identity:  identity,
			Requested: characters,
			Remaining: clampNonNegative(l.freeLimit - used),
			Admitted:  false,
		})
		return phraseflow.Decision{Admitted: false}, &phraseflow.QuotaError{
			Err:       phraseflow.ErrFreeLimitReached,
			Identity:  identity,
			Requested: characters,
		}
	}

	used += characters
	if err := l.store.Set(ctx, l.freeKey(identity), []byte(strconv.Itoa(used))); err != nil {
		return phraseflow.Decision{}, fmt.Errorf("quota: persist free counter: %w", err)
	}

	remaining := clampNonNegative(l.freeLimit - used)
	l.meter.OnQuota(phraseflow.QuotaEvent{
		Identity:  identity,
		Requested: characters,
		Remaining: remaining,
		Admitted:  true,
	})
	return phraseflow.Decision{Admitted: true, Remaining: remaining}, nil
}

func (l *Ledger) checkDaily(ctx context.Context, identity string, characters int, tier phraseflow.SubscriptionTier) (phraseflow.Decision, error) {
	now := l.clock.Now()

	records, err := l.loadRecords(ctx, identity)
	if err != nil {
		return phraseflow.Decision{}, err
	}

	kept, sum := pruneRecords(records, now, l.window)

	if !tier.Unlimited && sum+characters > tier.DailyCharacterLimit {
		wait := waitUntilReset(kept, now, l.window)
		l.meter.OnQuota(phraseflow.QuotaEvent{
			Identity:  identity,
			Tier:      tier.ProductID,
			Requested: characters,
			Remaining: clampNonNegative(tier.DailyCharacterLimit - sum),
			Admitted:  false,
			Wait:      wait,
		})
		return phraseflow.Decision{Admitted: false, WaitDescription: wait}, &phraseflow.QuotaError{
			Err:       phraseflow.ErrDailyLimitReached,
			Identity:  identity,
			Requested: characters,
			Wait:      wait,
		}
	}

	kept = append(kept, phraseflow.UsageRecord{Timestamp: now, CharacterCount: characters})
	if err := l.saveRecords(ctx, identity, kept); err != nil {
		return phraseflow.Decision{}, err
	}

	remaining := clampNonNegative(tier.DailyCharacterLimit - sum - characters)
	l.meter.OnQuota(phraseflow.QuotaEvent{
		Identity:  identity,
		Tier:      tier.ProductID,
		Requested: characters,
		Remaining: remaining,
		Admitted:  true,
	})
	return phraseflow.Decision{Admitted: true, Remaining: remaining}, nil
}

// RemainingFree returns the unspent free-tier budget. Read-only.
func (l *Ledger) RemainingFree(ctx context.Context, identity string) (int, error) {
	unlock := l.lockIdentity(identity)
	defer unlock()

	used, err := l.loadFreeUsed(ctx, identity)
	if err != nil {
		return 0, err
	}
	return clampNonNegative(l.freeLimit - used), nil
}

// RemainingDaily returns the unspent budget inside the current rolling
// window. Read-only: pruning happens in memory, nothing is written back.
func (l *Ledger) RemainingDaily(ctx context.Context, identity string, tier phraseflow.SubscriptionTier) (int, error) {
	unlock := l.lockIdentity(identity)
	defer unlock()

	records, err := l.loadRecords(ctx, identity)
	if err != nil {
		return 0, err
	}

	_, sum := pruneRecords(records, l.clock.Now(), l.window)
	return clampNonNegative(tier.DailyCharacterLimit - sum), nil
}

// lockIdentity acquires the per-identity critical section and returns its
// release func.
func (l *Ledger) lockIdentity(identity string) func() {
	l.mu.Lock()
	m, ok := l.identities[identity]
	if !ok {
		m = &sync.Mutex{}
		l.identities[identity] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (l *Ledger) loadFreeUsed(ctx context.Context, identity string) (int, error) {
	data, err := l.store.Get(ctx, l.freeKey(identity))
	if errors.Is(err, phraseflow.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("quota: load free counter: %w", err)
	}

	used, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("quota: corrupt free counter %q: %w", data, err)
	}
	return used, nil
}

func (l *Ledger) loadRecords(ctx context.Context, identity string) ([]phraseflow.UsageRecord, error) {
	data, err := l.store.Get(ctx, l.recordsKey(identity))
	if errors.Is(err, phraseflow.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("quota: load records: %w", err)
	}

	var records []phraseflow.UsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("quota: corrupt records: %w", err)
	}
	return records, nil
}

func (l *Ledger) saveRecords(ctx context.Context, identity string, records []phraseflow.UsageRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("quota: encode records: %w", err)
	}
	if err := l.store.Set(ctx, l.recordsKey(identity), data); err != nil {
		return fmt.Errorf("quota: persist records: %w", err)
	}
	return nil
}

func (l *Ledger) freeKey(identity string) string {
	return l.keyPrefix + ".free." + identity
}

func (l *Ledger) recordsKey(identity string) string {
	return l.keyPrefix + ".records." + identity
}

// pruneRecords drops records outside the window and sums the survivors.
// The window is the closed-open interval (now-window, now]: a record exactly
// at the boundary is pruned.
func pruneRecords(records []phraseflow.UsageRecord, now time.Time, window time.Duration) ([]phraseflow.UsageRecord, int) {
	cutoff := now.Add(-window)

	var kept []phraseflow.UsageRecord
	sum := 0
	for _, r := range records {
		if !r.Timestamp.After(cutoff) {
			continue
		}
		kept = append(kept, r)
		sum += r.CharacterCount
	}
	return kept, sum
}

// waitUntilReset describes how long until the oldest in-window record falls
// out of the window.
func waitUntilReset(kept []phraseflow.UsageRecord, now time.Time, window time.Duration) string {
	if len(kept) == 0 {
		return "now"
	}

	oldest := kept[0].Timestamp
	for _, r := range kept[1:] {
		if r.Timestamp.Before(oldest) {
			oldest = r.Timestamp
		}
	}
	return FormatWait(oldest.Add(window).Sub(now))
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// noopMeter avoids importing the meter subpackage from here.
type noopMeter struct{}

func (noopMeter) OnDispatch(phraseflow.DispatchEvent) {}
func (noopMeter) OnEffect(phraseflow.EffectEvent)     {}
func (noopMeter) OnQuota(phraseflow.QuotaEvent)       {}
