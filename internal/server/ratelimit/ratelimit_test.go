package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLimiter(cfg *Config) (*Limiter, *clock) {
	c := newClock()
	cfg.Enabled = true
	cfg.CleanupInterval = 0
	l := NewLimiter(cfg)
	l.now = c.Now
	return l, c
}

func TestTokenBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newTokenBucket(3, 1, now)

	for i := 0; i < 3; i++ {
		ok, remaining, _ := b.take(now)
		require.True(t, ok, "request %d", i+1)
		assert.Equal(t, 2-i, remaining)
	}
	ok, _, wait := b.take(now)
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _, _ = b.take(now.Add(1100 * time.Millisecond))
	assert.True(t, ok)
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, c := testLimiter(&Config{DefaultLimit: 5, DefaultWindow: time.Minute})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("1.2.3.4", "/me/user-jobs", "GET").Allowed)
	}
	info := l.Allow("1.2.3.4", "/me/user-jobs", "GET")
	assert.False(t, info.Allowed)
	assert.Equal(t, 5, info.Limit)
	assert.Positive(t, info.RetryAfter)

	// Other clients have their own bucket.
	assert.True(t, l.Allow("5.6.7.8", "/me/user-jobs", "GET").Allowed)

	c.Advance(13 * time.Second)
	assert.True(t, l.Allow("1.2.3.4", "/me/user-jobs", "GET").Allowed)
}

func TestLimiter_EndpointRules(t *testing.T) {
	l, _ := testLimiter(&Config{
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []EndpointConfig{
			{Path: "/me/applications/", Method: "POST", Limit: 2, Window: time.Minute},
		},
	})

	// Prefix rules share a bucket across ids.
	assert.True(t, l.Allow("c", "/me/applications/a/approve", "POST").Allowed)
	assert.True(t, l.Allow("c", "/me/applications/b/cancel", "POST").Allowed)
	assert.False(t, l.Allow("c", "/me/applications/c/retry", "POST").Allowed)

	// Other methods fall back to the default.
	assert.True(t, l.Allow("c", "/me/applications/a", "GET").Allowed)
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	l, _ := testLimiter(&Config{DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("c", "/health", "GET").Allowed)
	}
}

func TestLimiter_Lists(t *testing.T) {
	l, _ := testLimiter(&Config{
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1", "/x", "GET").Allowed)
	}
	assert.False(t, l.Allow("10.0.0.2", "/x", "GET").Allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Hour})
	defer l.Stop()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("c", "/x", "GET").Allowed)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, c := testLimiter(&Config{DefaultLimit: 10, DefaultWindow: time.Minute})
	l.Allow("a", "/x", "GET")
	c.Advance(30 * time.Minute)
	l.Allow("b", "/x", "GET")
	c.Advance(45 * time.Minute)

	assert.Equal(t, 1, l.cleanup())
	assert.Len(t, l.buckets, 1)
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := testLimiter(&Config{DefaultLimit: 50, DefaultWindow: time.Hour})

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("c", "/x", "GET").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(50), allowed.Load())
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/cron/", Method: "POST", Limit: 1},
		{Path: "/cron/send", Method: "POST", Limit: 2},
		{Path: "/me/", Method: "POST", Limit: 3},
		{Path: "/me/applications/", Method: "POST", Limit: 4},
	}

	tests := []struct {
		path, method string
		want         int
		wantNil      bool
	}{
		{path: "/cron/send", method: "POST", want: 2},
		{path: "/cron/sweep", method: "POST", want: 1},
		{path: "/me/applications/x/approve", method: "POST", want: 4},
		{path: "/me/scan", method: "POST", want: 3},
		{path: "/health", method: "GET", want: 0},
		{path: "/cron/send", method: "GET", wantNil: true},
		{path: "/other", method: "POST", wantNil: true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			got := MatchEndpoint(tt.path, tt.method, configs)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Limit)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "42")
	t.Setenv("RATE_LIMIT_WHITELIST", "1.1.1.1, 2.2.2.2,")

	cfg := LoadConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.DefaultLimit)
	assert.Equal(t, time.Minute, cfg.DefaultWindow)
	assert.Equal(t, map[string]bool{"1.1.1.1": true, "2.2.2.2": true}, cfg.Whitelist)
	assert.NotEmpty(t, cfg.EndpointConfigs)
}
