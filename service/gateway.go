package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Provider is one external text-generation backend. Implementations must
// respect the context deadline on every call.
type Provider interface {
	Name() string
	Classify(ctx context.Context, clauseText string) (*ClauseAnalysis, error)
	Answer(ctx context.Context, docContext, question string) (string, error)
}

// ProviderGateway tries providers strictly in priority order with a
// per-attempt timeout. Any error advances to the next provider; only when
// every provider fails does a call surface ErrProviderUnavailable.
type ProviderGateway struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
}

const defaultAttemptTimeout = 30 * time.Second

// NewProviderGateway builds the gateway from the environment. Providers are
// included when their API key is configured; AI_PROVIDERS overrides the
// priority order (comma-separated names). A gateway with zero providers is
// valid: every call then fails with ErrProviderUnavailable and callers
// degrade to the heuristic path.
func NewProviderGateway() *ProviderGateway {
	available := map[string]Provider{}
	if p := NewGroqProvider(); p != nil {
		available[p.Name()] = p
	}
	if p := NewClaudeProvider(); p != nil {
		available[p.Name()] = p
	}

	order := []string{"groq", "claude"}
	if env := os.Getenv("AI_PROVIDERS"); env != "" {
		order = splitAndTrim(env)
	}

	var providers []Provider
	for _, name := range order {
		if p, ok := available[name]; ok {
			providers = append(providers, p)
		}
	}
	log.Printf("Provider gateway configured with %d provider(s)", len(providers))
	return NewProviderGatewayWith(providers, attemptTimeoutFromEnv())
}

// NewProviderGatewayWith builds a gateway over an explicit provider list.
func NewProviderGatewayWith(providers []Provider, timeout time.Duration) *ProviderGateway {
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		// 50 calls/minute per provider, small burst.
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(50.0/60.0), 5)
	}
	return &ProviderGateway{providers: providers, limiters: limiters, timeout: timeout}
}

func attemptTimeoutFromEnv() time.Duration {
	if v, err := strconv.Atoi(os.Getenv("AI_TIMEOUT_SECONDS")); err == nil && v > 0 {
		return time.Duration(v) * time.Second
	}
	return defaultAttemptTimeout
}

// Configured reports whether at least one provider is wired.
func (g *ProviderGateway) Configured() bool {
	return len(g.providers) > 0
}

// Classify runs the fallback chain for clause classification.
func (g *ProviderGateway) Classify(ctx context.Context, clauseText string) (*ClauseAnalysis, error) {
	var lastErr error
	for _, p := range g.providers {
		analysis, err := g.attempt(ctx, p, func(c context.Context) (*ClauseAnalysis, error) {
			return p.Classify(c, clauseText)
		})
		if err != nil {
			log.Printf("Provider %s classify failed: %v", p.Name(), err)
			lastErr = err
			continue
		}
		return analysis, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
	}
	return nil, ErrProviderUnavailable
}

// Answer runs the fallback chain for document-grounded Q&A.
func (g *ProviderGateway) Answer(ctx context.Context, docContext, question string) (string, error) {
	var lastErr error
	for _, p := range g.providers {
		text, err := g.attemptText(ctx, p, func(c context.Context) (string, error) {
			return p.Answer(c, docContext, question)
		})
		if err != nil {
			log.Printf("Provider %s answer failed: %v", p.Name(), err)
			lastErr = err
			continue
		}
		return text, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, lastErr)
	}
	return "", ErrProviderUnavailable
}

func (g *ProviderGateway) attempt(ctx context.Context, p Provider, call func(context.Context) (*ClauseAnalysis, error)) (*ClauseAnalysis, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if lim := g.limiters[p.Name()]; lim != nil {
		if err := lim.Wait(attemptCtx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return call(attemptCtx)
}

func (g *ProviderGateway) attemptText(ctx context.Context, p Provider, call func(context.Context) (string, error)) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if lim := g.limiters[p.Name()]; lim != nil {
		if err := lim.Wait(attemptCtx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return call(attemptCtx)
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
