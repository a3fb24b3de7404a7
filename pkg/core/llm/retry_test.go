package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

var errTransient = errors.New("upstream hiccup")

// flakyProvider fails a fixed number of times, then succeeds.
type flakyProvider struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyProvider) attempt(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.calls <= f.failures {
		return "", errTransient
	}
	return "ok", nil
}

func (f *flakyProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	return f.attempt(ctx)
}

func (f *flakyProvider) GenerateWithDocument(ctx context.Context, req DocumentRequest) (string, error) {
	return f.attempt(ctx)
}

func (f *flakyProvider) AdaptInstructions(raw string) string { return raw }

func testPolicy(retries int) CallPolicy {
	return CallPolicy{
		Timeout: time.Second,
		Retries: retries,
		Backoff: time.Millisecond,
	}
}

func TestGuardedRetriesThenSucceeds(t *testing.T) {
	inner := &flakyProvider{failures: 2}
	g := NewGuarded(inner, testPolicy(2))

	resp, err := g.GenerateWithDocument(context.Background(), DocumentRequest{Prompt: "hi"})
	if err != nil {
		t.Fatalf("GenerateWithDocument returned error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("response = %q, want ok", resp)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (two failures plus the success)", inner.calls)
	}
}

func TestGuardedExhaustsRetries(t *testing.T) {
	inner := &flakyProvider{failures: 10}
	g := NewGuarded(inner, testPolicy(2))

	_, err := g.GenerateResponse(context.Background(), "hi", "", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("error should wrap the last attempt error, got %v", err)
	}
	if !strings.Contains(err.Error(), "LLM_RETRIES_EXHAUSTED") {
		t.Errorf("error = %v, want LLM_RETRIES_EXHAUSTED prefix", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestGuardedStopsOnCanceledParent(t *testing.T) {
	inner := &flakyProvider{failures: 10}
	g := NewGuarded(inner, testPolicy(5))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateWithDocument(ctx, DocumentRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries once the parent is gone)", inner.calls)
	}
}

func TestPolicyFromEnv(t *testing.T) {
	t.Setenv("LLM_TIMEOUT_SECONDS", "45")
	t.Setenv("LLM_RPM", "30")

	p := PolicyFromEnv()
	if p.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", p.Timeout)
	}
	if want := rate.Every(2 * time.Second); p.Limiter.Limit() != want {
		t.Errorf("Limit = %v, want %v (30 rpm)", p.Limiter.Limit(), want)
	}
	if p.Retries != defaultRetries {
		t.Errorf("Retries = %d, want %d", p.Retries, defaultRetries)
	}
}

func TestPolicyFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("LLM_TIMEOUT_SECONDS", "soon")
	t.Setenv("LLM_RPM", "-3")

	p := PolicyFromEnv()
	if p.Timeout != defaultTimeout {
		t.Errorf("Timeout = %v, want default %v", p.Timeout, defaultTimeout)
	}
	if want := rate.Every(time.Minute / defaultRPM); p.Limiter.Limit() != want {
		t.Errorf("Limit = %v, want default %v", p.Limiter.Limit(), want)
	}
}
