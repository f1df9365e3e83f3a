package admission

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// UnknownIdentity is the shared bucket for requests without a client identity.
const UnknownIdentity = "unknown"

const defaultMaxTrackedClients = 10000

// RateLimitConfig configures the per-identity sliding window.
type RateLimitConfig struct {
	// Max is the number of requests admitted per identity within Window.
	Max int
	// Window is the trailing duration requests are counted over.
	Window time.Duration
	// MaxTrackedClients bounds memory; the least recently seen identity is
	// forgotten when the bound is reached.
	MaxTrackedClients int
}

// RateLimiter is a sliding-window limiter keyed by client identity. Windows
// are process-local and pruned lazily on each check.
type RateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	now     func() time.Time
	windows *simplelru.LRU[string, []time.Time]
}

// NewRateLimiter validates cfg and builds a limiter.
func NewRateLimiter(cfg RateLimitConfig, opts ...Option) (*RateLimiter, error) {
	if cfg.Max <= 0 {
		return nil, fmt.Errorf("rate limit max must be positive, got %d", cfg.Max)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", cfg.Window)
	}
	size := cfg.MaxTrackedClients
	if size <= 0 {
		size = defaultMaxTrackedClients
	}
	windows, err := simplelru.NewLRU[string, []time.Time](size, nil)
	if err != nil {
		return nil, fmt.Errorf("create window cache: %w", err)
	}

	o := applyOptions(opts)
	return &RateLimiter{
		max:     cfg.Max,
		window:  cfg.Window,
		now:     o.now,
		windows: windows,
	}, nil
}

// Allow prunes the identity's window, then admits and records the request
// when fewer than Max requests remain in it.
func (r *RateLimiter) Allow(identity string) bool {
	key := strings.TrimSpace(identity)
	if key == "" {
		key = UnknownIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stamps, _ := r.windows.Get(key)
	kept := stamps[:0]
	for _, ts := range stamps {
		if now.Sub(ts) < r.window {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= r.max {
		r.windows.Add(key, kept)
		return false
	}
	r.windows.Add(key, append(kept, now))
	return true
}

// Tracked returns the number of identities currently held.
func (r *RateLimiter) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows.Len()
}
