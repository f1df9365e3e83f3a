package admission

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 3, Window: 60 * time.Second}, WithClock(clock.Now))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d", i+1)
		clock.Advance(3 * time.Second)
	}
	assert.False(t, limiter.Allow("10.0.0.1"), "fourth request within the window")

	clock.Advance(61 * time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestRateLimiterRejectedRequestsAreNotRecorded(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: 10 * time.Second}, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, limiter.Allow("a"))
	clock.Advance(5 * time.Second)
	require.False(t, limiter.Allow("a"))

	// Only the first request counts, so the window frees up 10s after it.
	clock.Advance(5 * time.Second)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiterWindowBoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)

	require.True(t, limiter.Allow("a"))
	clock.Advance(time.Minute)
	assert.True(t, limiter.Allow("a"))
}

func TestRateLimiterIdentitiesAreIndependent(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	require.NoError(t, err)

	assert.True(t, limiter.Allow("a"))
	assert.True(t, limiter.Allow("b"))
	assert.False(t, limiter.Allow("a"))
}

func TestRateLimiterEmptyIdentitySharesUnknownBucket(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	require.NoError(t, err)

	assert.True(t, limiter.Allow(""))
	assert.False(t, limiter.Allow("  "))
	assert.False(t, limiter.Allow(UnknownIdentity))
}

func TestRateLimiterBoundsTrackedIdentities(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute, MaxTrackedClients: 2})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i))
	}
	assert.Equal(t, 2, limiter.Tracked())
}

func TestNewRateLimiterRejectsInvalidConfig(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{Max: 0, Window: time.Minute})
	require.Error(t, err)

	_, err = NewRateLimiter(RateLimitConfig{Max: 1})
	require.Error(t, err)
}

func TestRateLimiterConcurrentAllow(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{Max: 50, Window: time.Minute})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}
