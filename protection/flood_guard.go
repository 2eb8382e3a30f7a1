// Package protection holds the default protection evaluator and ignore
// list consulted before a message is displayed.
package protection

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ynotnauk/go-irc/entities"
)

const (
	DefaultMessagesPerSecond = 2.0
	DefaultBurst             = 5
	idleLimiterTTL           = 10 * time.Minute
	pruneThreshold           = 1024
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// FloodGuard blocks senders that exceed a per-sender token bucket. Buckets
// are kept per network and sender mask.
type FloodGuard struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type Option func(*FloodGuard)

func WithClock(now func() time.Time) Option {
	return func(g *FloodGuard) {
		g.now = now
	}
}

// NewFloodGuard allows messagesPerSecond sustained and burst at once. Non
// positive values fall back to the defaults.
func NewFloodGuard(messagesPerSecond float64, burst int, opts ...Option) *FloodGuard {
	if messagesPerSecond <= 0 {
		messagesPerSecond = DefaultMessagesPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	guard := &FloodGuard{
		limit:    rate.Limit(messagesPerSecond),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
	for _, opt := range opts {
		opt(guard)
	}
	return guard
}

func (g *FloodGuard) Evaluate(input *entities.ProtectionInput) *entities.ProtectionVerdict {
	if input == nil || input.Source == nil || input.Source.Nickname == "" {
		return nil
	}
	now := g.now()
	key := input.Network + " " + strings.ToLower(input.Source.Nickname) + "!" + strings.ToLower(input.Source.Host)

	g.mu.Lock()
	entry, ok := g.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(g.limit, g.burst)}
		g.limiters[key] = entry
	}
	entry.lastSeen = now
	allowed := entry.limiter.AllowN(now, 1)
	if len(g.limiters) > pruneThreshold {
		g.prune(now)
	}
	g.mu.Unlock()

	if allowed {
		return nil
	}
	return &entities.ProtectionVerdict{
		Block:  true,
		Reason: "flood from " + input.Source.Nickname,
	}
}

// prune must be called with g.mu held.
func (g *FloodGuard) prune(now time.Time) {
	for key, entry := range g.limiters {
		if now.Sub(entry.lastSeen) > idleLimiterTTL {
			delete(g.limiters, key)
		}
	}
}

// Tracked reports how many sender buckets are live.
func (g *FloodGuard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}
