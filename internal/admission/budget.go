package admission

import (
	"sync"
	"time"
)

const minuteLayout = "2006-01-02T15:04"

// TokenBudget is a global per-minute token ceiling shared by every client.
// The bucket rolls over lazily when the minute label changes; there is no
// background timer. Concurrent callers may slightly over-admit.
type TokenBudget struct {
	mu      sync.Mutex
	ceiling int
	minute  string
	used    int
	now     func() time.Time
}

// NewTokenBudget builds a budget. A non-positive ceiling disables the check.
func NewTokenBudget(ceiling int, opts ...Option) *TokenBudget {
	o := applyOptions(opts)
	return &TokenBudget{ceiling: ceiling, now: o.now}
}

// Admit reports whether the current minute still has budget left.
func (b *TokenBudget) Admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	if b.ceiling <= 0 {
		return true
	}
	return b.used < b.ceiling
}

// Record adds tokens to the bucket for the minute current at call time.
func (b *TokenBudget) Record(tokens int) {
	if tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked()
	b.used += tokens
}

// Snapshot returns the active minute label and tokens used in it.
func (b *TokenBudget) Snapshot() (minute string, used int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.minute, b.used
}

func (b *TokenBudget) rollLocked() {
	minute := b.now().Format(minuteLayout)
	if minute != b.minute {
		b.minute = minute
		b.used = 0
	}
}
