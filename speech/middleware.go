package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	phraseflow "github.com/isaacakalanne1/phraseflow-core"
)

// SynthesisMiddleware charges the ledger for the request's character count
// and, when admitted, performs the synthesis round trip. Every failure is
// translated into a domain action; the charge is kept even if synthesis
// fails afterwards (charged-on-attempt).
func SynthesisMiddleware() phraseflow.Middleware[State, Action, Environment] {
	return func(ctx context.Context, _ State, action Action, env Environment) (*Action, error) {
		req, ok := action.(Synthesize)
		if !ok {
			return nil, nil
		}

		characters := utf8.RuneCountInString(req.Text)

		decision, err := env.Quota.CheckAndRecord(ctx, env.Identity, characters, env.Tier)
		if err != nil {
			var quotaErr *phraseflow.QuotaError
			if errors.As(err, &quotaErr) {
				return followUp(QuotaDenied{
					Wait:            quotaErr.Wait,
					UpgradeRequired: phraseflow.IsTerminal(err),
				}), nil
			}
			return followUp(Failed{Reason: err.Error()}), nil
		}

		body, err := json.Marshal(synthesisRequest{Text: req.Text})
		if err != nil {
			return nil, fmt.Errorf("speech: encode request: %w", err)
		}

		resp, err := env.Client.Do(ctx, phraseflow.Request{
			Method: http.MethodPost,
			URL:    env.VoiceURL,
			Header: map[string]string{"Content-Type": "application/json"},
			Body:   body,
		})
		if err != nil {
			return followUp(Failed{Reason: err.Error()}), nil
		}
		if resp.StatusCode != http.StatusOK {
			reason := fmt.Sprintf("%v: %d", phraseflow.ErrUnexpectedStatus, resp.StatusCode)
			return followUp(Failed{Reason: reason}), nil
		}

		return followUp(Succeeded{Audio: resp.Body, Remaining: decision.Remaining}), nil
	}
}

type synthesisRequest struct {
	Text string `json:"text"`
}

func followUp(a Action) *Action {
	return &a
}
