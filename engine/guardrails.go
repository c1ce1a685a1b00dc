package engine

import (
	"sync"

	"golang.org/x/time/rate"
)

// Guardrails applies a per-user rate limit in front of the model loop.
// Limiters are created lazily and kept for the life of the process.
type Guardrails struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewGuardrails allows perMinute requests per user with the given burst.
func NewGuardrails(perMinute, burst int) *Guardrails {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &Guardrails{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether the user may run a request now.
func (g *Guardrails) Allow(ownerID string) bool {
	g.mu.Lock()
	limiter, ok := g.limiters[ownerID]
	if !ok {
		limiter = rate.NewLimiter(g.limit, g.burst)
		g.limiters[ownerID] = limiter
	}
	g.mu.Unlock()
	return limiter.Allow()
}
