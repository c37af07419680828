package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultQuotaCooldown is how long a tripped gate rejects new calls.
	DefaultQuotaCooldown = 60 * time.Second
	// DefaultRateLimit is the default number of backend calls per second per credential.
	DefaultRateLimit = 2.0
	defaultBurst     = 4
)

// Gate is shared by every run that uses the same credential. It bounds the
// rate of upload and generate calls with a token bucket and, once any run
// observes a quota failure, rejects new calls until the cooldown passes.
// A nil *Gate admits everything.
type Gate struct {
	limiter  *rate.Limiter
	cooldown time.Duration
	now      func() time.Time

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewGate creates a gate admitting perSecond calls (burst calls at once).
// perSecond <= 0 disables rate limiting; cooldown <= 0 selects DefaultQuotaCooldown.
func NewGate(perSecond float64, burst int, cooldown time.Duration) *Gate {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	if cooldown <= 0 {
		cooldown = DefaultQuotaCooldown
	}
	return &Gate{
		limiter:  rate.NewLimiter(limit, burst),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Acquire waits for a token. It fails fast with QuotaExceeded while the gate
// is cooling down.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil {
		return nil
	}
	if until, blocked := g.blocked(); blocked {
		return newError(KindQuotaExceeded, "", fmt.Errorf("quota cooldown active until %s", until.Format(time.RFC3339)))
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return newError(Classify(ctx.Err()), "", err)
		}
		return newError(KindTransient, "", err)
	}
	return nil
}

// Trip starts the quota cooldown. Tripping an already blocked gate does not
// extend it, so calls rejected during the cooldown cannot prolong it.
func (g *Gate) Trip() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Before(g.blockedUntil) {
		return
	}
	g.blockedUntil = now.Add(g.cooldown)
	log.Warn().
		Time("blocked_until", g.blockedUntil).
		Dur("cooldown", g.cooldown).
		Msg("Quota exceeded, pausing backend calls for all runs")
}

func (g *Gate) blocked() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil, g.now().Before(g.blockedUntil)
}

// GateRegistry hands out one Gate per credential.
type GateRegistry struct {
	perSecond float64
	burst     int
	cooldown  time.Duration

	mu    sync.Mutex
	gates map[string]*Gate
}

// NewGateRegistry creates a registry whose gates share the given settings.
func NewGateRegistry(perSecond float64, burst int, cooldown time.Duration) *GateRegistry {
	return &GateRegistry{
		perSecond: perSecond,
		burst:     burst,
		cooldown:  cooldown,
		gates:     make(map[string]*Gate),
	}
}

// For returns the gate for credential, creating it on first use. Keys are
// stored hashed.
func (r *GateRegistry) For(credential string) (*Gate, error) {
	if credential == "" {
		return nil, errors.New("credential is required")
	}
	sum := sha256.Sum256([]byte(credential))
	key := hex.EncodeToString(sum[:])

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gates[key]; ok {
		return g, nil
	}
	g := NewGate(r.perSecond, r.burst, r.cooldown)
	r.gates[key] = g
	return g, nil
}
