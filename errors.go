package phraseflow

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrFreeLimitReached   = errors.New("phraseflow: free character limit reached")
	ErrDailyLimitReached  = errors.New("phraseflow: daily character limit reached")
	ErrNegativeCharacters = errors.New("phraseflow: character count must be non-negative")
	ErrKeyNotFound        = errors.New("phraseflow: key not found")
	ErrUnexpectedStatus   = errors.New("phraseflow: unexpected response status")
)

// QuotaError wraps a quota denial with its context. Wait is a human-readable
// duration until the operation becomes available again; it is empty for the
// free tier, which never resets.
type QuotaError struct {
	Err       error
	Identity  string
	Requested int
	Wait      string
}

func (e *QuotaError) Error() string {
	if e.Wait != "" {
		return fmt.Sprintf("phraseflow: identity=%s requested=%d retry in %s: %v",
			e.Identity, e.Requested, e.Wait, e.Err)
	}
	return fmt.Sprintf("phraseflow: identity=%s requested=%d: %v", e.Identity, e.Requested, e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// IsTerminal returns true if the denial cannot be retried later on the same
// tier (the free budget never resets; only upgrading helps).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrFreeLimitReached)
}

// IsRetryable returns true if the denial clears on its own once the rolling
// window moves past the oldest charged record.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDailyLimitReached)
}
