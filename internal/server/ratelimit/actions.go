package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// User-triggered actions with their own limits.
const (
	ActionGenerate = "application-generate"
	ActionScanNow  = "scan-now"
	ActionApprove  = "application-approve"
)

// ActionLimit caps how often one user may perform an action.
type ActionLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultActionLimits returns the per-action limits.
func DefaultActionLimits() map[string]ActionLimit {
	return map[string]ActionLimit{
		ActionGenerate: {Limit: 5, Window: time.Minute},
		ActionScanNow:  {Limit: 1, Window: 5 * time.Minute},
		ActionApprove:  {Limit: 30, Window: time.Minute},
	}
}

// ErrRateLimited is returned when a user exceeded an action's limit.
type ErrRateLimited struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Action, e.RetryAfter.Round(time.Second))
}

// Decision is the outcome of counting one action.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// CounterStore counts hits per key over a window.
type CounterStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// ActionLimiter enforces per-user action limits. Counts are per store: the
// memory store is per-process and best-effort across instances; the Redis
// store is shared.
type ActionLimiter struct {
	store  CounterStore
	limits map[string]ActionLimit
}

// NewActionLimiter creates a limiter. Actions missing from limits are not
// limited.
func NewActionLimiter(store CounterStore, limits map[string]ActionLimit) *ActionLimiter {
	if limits == nil {
		limits = DefaultActionLimits()
	}
	return &ActionLimiter{store: store, limits: limits}
}

// Allow counts one action for the user and returns *ErrRateLimited when the
// limit is exceeded. Store failures let the action through.
func (a *ActionLimiter) Allow(ctx context.Context, userID uuid.UUID, action string) error {
	limit, ok := a.limits[action]
	if !ok || limit.Limit <= 0 {
		return nil
	}
	d, err := a.store.Hit(ctx, action+":"+userID.String(), limit.Limit, limit.Window)
	if err != nil {
		log.Printf("[ratelimit] counter store failed for %s, allowing: %v", action, err)
		return nil
	}
	if !d.Allowed {
		return &ErrRateLimited{Action: action, RetryAfter: d.RetryAfter}
	}
	return nil
}

// MemoryStore is a sliding-window log kept in process memory. Expired keys
// are swept on an interval rather than on every hit.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowLog
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type windowLog struct {
	hits   []time.Time
	window time.Duration
}

// NewMemoryStore creates a store and starts its sweeper when sweepEvery > 0.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]*windowLog), now: time.Now, stop: make(chan struct{})}
	if sweepEvery > 0 {
		go s.sweepLoop(sweepEvery)
	}
	return s
}

// Hit implements CounterStore.
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wl, ok := s.entries[key]
	if !ok {
		wl = &windowLog{window: window}
		s.entries[key] = wl
	}
	wl.window = window
	wl.prune(now)

	if len(wl.hits) >= limit {
		retry := wl.hits[0].Add(window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	wl.hits = append(wl.hits, now)
	return Decision{Allowed: true, Remaining: limit - len(wl.hits)}, nil
}

func (w *windowLog) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
}

// Sweep drops keys with no hits inside their window.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, wl := range s.entries {
		wl.prune(now)
		if len(wl.hits) == 0 {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Stop ends the sweeper.
func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// RedisStore counts hits in fixed windows shared by every instance.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "autopilot:ratelimit:"}
}

// NewRedisStoreFromURL parses a redis:// URL and connects.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return NewRedisStore(redis.NewClient(opts)), nil
}

// Hit implements CounterStore with INCR and a window-long expiry set on the
// first hit.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	k := s.prefix + key
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment counter: %w", err)
	}
	if n == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}
	if n <= int64(limit) {
		return Decision{Allowed: true, Remaining: limit - int(n)}, nil
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read counter ttl: %w", err)
	}
	if ttl < 0 {
		// Lost its expiry (crash between INCR and PEXPIRE); restart the window.
		_ = s.client.PExpire(ctx, k, window).Err()
		ttl = window
	}
	return Decision{Allowed: false, RetryAfter: ttl}, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
