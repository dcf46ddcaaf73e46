package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a scriptable Provider for gateway tests.
type stubProvider struct {
	name     string
	analysis *ClauseAnalysis
	answer   string
	err      error
	delay    time.Duration
	calls    int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Classify(ctx context.Context, clauseText string) (*ClauseAnalysis, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.analysis, nil
}

func (p *stubProvider) Answer(ctx context.Context, docContext, question string) (string, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if p.err != nil {
		return "", p.err
	}
	return p.answer, nil
}

func TestProviderGateway_FallbackOrdering(t *testing.T) {
	failing := &stubProvider{name: "a", err: errors.New("boom")}
	working := &stubProvider{
		name:     "b",
		analysis: &ClauseAnalysis{Score: 0.9, Category: "Red", Type: "Liability"},
		answer:   "from b",
	}
	gateway := NewProviderGatewayWith([]Provider{failing, working}, time.Second)

	analysis, err := gateway.Classify(context.Background(), "some clause")
	require.NoError(t, err)
	assert.Equal(t, "Liability", analysis.Type)
	assert.Equal(t, 1, failing.calls, "failing provider tried first")
	assert.Equal(t, 1, working.calls)

	answer, err := gateway.Answer(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.Equal(t, "from b", answer)
}

func TestProviderGateway_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "a", analysis: &ClauseAnalysis{Type: "Payment"}}
	second := &stubProvider{name: "b", analysis: &ClauseAnalysis{Type: "Other"}}
	gateway := NewProviderGatewayWith([]Provider{first, second}, time.Second)

	analysis, err := gateway.Classify(context.Background(), "clause")
	require.NoError(t, err)
	assert.Equal(t, "Payment", analysis.Type)
	assert.Zero(t, second.calls, "lower-priority provider must not be called")
}

func TestProviderGateway_AllProvidersFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("rate limited")}
	b := &stubProvider{name: "b", err: errors.New("timeout")}
	gateway := NewProviderGatewayWith([]Provider{a, b}, time.Second)

	_, err := gateway.Classify(context.Background(), "clause")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = gateway.Answer(context.Background(), "ctx", "q")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 2, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestProviderGateway_NoProviders(t *testing.T) {
	gateway := NewProviderGatewayWith(nil, time.Second)
	assert.False(t, gateway.Configured())

	_, err := gateway.Classify(context.Background(), "clause")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

// A slow provider is abandoned at the per-attempt timeout and the next one tried.
func TestProviderGateway_PerAttemptTimeout(t *testing.T) {
	slow := &stubProvider{name: "slow", delay: 2 * time.Second, answer: "never"}
	fast := &stubProvider{name: "fast", answer: "quick"}
	gateway := NewProviderGatewayWith([]Provider{slow, fast}, 50*time.Millisecond)

	start := time.Now()
	answer, err := gateway.Answer(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.Equal(t, "quick", answer)
	assert.Less(t, time.Since(start), time.Second, "slow provider must be abandoned at the timeout")
}
