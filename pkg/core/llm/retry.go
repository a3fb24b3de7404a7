package llm

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the outbound call policy. LLM_TIMEOUT_SECONDS and LLM_RPM
// override them per deployment.
const (
	defaultTimeout = 120 * time.Second
	defaultRPM     = 10
	defaultRetries = 2
	backoffBase    = 2 * time.Second
)

// CallPolicy bounds every outbound model call: a per-attempt timeout, a
// bounded retry count with exponential backoff, and a shared requests-per-
// minute limiter. The zero value disables all three.
type CallPolicy struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Limiter *rate.Limiter
}

// PolicyFromEnv builds the default policy, honoring LLM_TIMEOUT_SECONDS and
// LLM_RPM when set to positive integers.
func PolicyFromEnv() CallPolicy {
	timeout := defaultTimeout
	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	rpm := defaultRPM
	if v := os.Getenv("LLM_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rpm = n
		}
	}
	return CallPolicy{
		Timeout: timeout,
		Retries: defaultRetries,
		Backoff: backoffBase,
		Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

// Guarded decorates a DocumentProvider with CallPolicy enforcement. Every
// hosted backend goes through one shared Guarded instance so the limiter
// actually limits the whole process.
type Guarded struct {
	inner  DocumentProvider
	policy CallPolicy
}

var _ DocumentProvider = (*Guarded)(nil)

func NewGuarded(inner DocumentProvider, policy CallPolicy) *Guarded {
	return &Guarded{inner: inner, policy: policy}
}

func (g *Guarded) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	return g.run(ctx, func(attemptCtx context.Context) (string, error) {
		return g.inner.GenerateResponse(attemptCtx, prompt, systemPrompt, options)
	})
}

func (g *Guarded) GenerateWithDocument(ctx context.Context, req DocumentRequest) (string, error) {
	return g.run(ctx, func(attemptCtx context.Context) (string, error) {
		return g.inner.GenerateWithDocument(attemptCtx, req)
	})
}

func (g *Guarded) AdaptInstructions(raw string) string {
	return g.inner.AdaptInstructions(raw)
}

func (g *Guarded) run(ctx context.Context, call func(context.Context) (string, error)) (string, error) {
	attempts := g.policy.Retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if g.policy.Limiter != nil {
			if err := g.policy.Limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("LLM_RATE_WAIT: %w", err)
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if g.policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		}
		resp, err := call(attemptCtx)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// The parent context going away ends the whole call, not just
		// this attempt.
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts-1 {
			g.backoff(ctx, attempt)
		}
	}
	return "", fmt.Errorf("LLM_RETRIES_EXHAUSTED: %d attempts: %w", attempts, lastErr)
}

func (g *Guarded) backoff(ctx context.Context, attempt int) {
	d := time.Duration(float64(g.policy.Backoff) * math.Pow(2, float64(attempt)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
