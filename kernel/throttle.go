package kernel

import (
	"fmt"
	"sync"
	"time"
)

// throttleBackend is the counter store a capability throttle checks
// against, adapted from middleware/rate_limiter.go's BackendAdapter: the
// same fixed-window check/increment/reset shape, stripped of its
// HTTP-header and per-path-pattern concerns since nothing here serves an
// HTTP request.
type throttleBackend interface {
	checkLimit(key string, limit int, window int64) (bool, error)
	increment(key string, window int64) error
	reset(key string) error
}

// memThrottleBackend is the in-memory fixed-window counter, the same
// approach as the teacher's RedisBackend (in spite of its name, already
// an in-memory stand-in for Redis there too).
type memThrottleBackend struct {
	mu    sync.Mutex
	store map[string]windowCount
}

type windowCount struct {
	count      int
	windowEnds time.Time
}

func newMemThrottleBackend() *memThrottleBackend {
	return &memThrottleBackend{store: make(map[string]windowCount)}
}

func (b *memThrottleBackend) checkLimit(key string, limit int, window int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	wc := b.currentLocked(key, window)
	return wc.count < limit, nil
}

func (b *memThrottleBackend) increment(key string, window int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	wc := b.currentLocked(key, window)
	wc.count++
	b.store[key] = wc
	return nil
}

func (b *memThrottleBackend) reset(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.store, key)
	return nil
}

// currentLocked returns key's counter for the active window, resetting it
// if the previous window has elapsed. Caller holds b.mu.
func (b *memThrottleBackend) currentLocked(key string, window int64) windowCount {
	wc, ok := b.store[key]
	now := time.Now()
	if !ok || now.After(wc.windowEnds) {
		wc = windowCount{count: 0, windowEnds: now.Add(time.Duration(window) * time.Second)}
		b.store[key] = wc
	}
	return wc
}

// capabilityThrottle bounds how often one plugin may invoke a capability
// (Emit or Call) against the registry, per spec.md S9's "Enrichment
// ideas" throttling note. Unlike the teacher's HTTP rate limiter, the key
// is a plugin name, not an API key, and there is no per-path strategy
// table — every capability shares one per-plugin budget.
type capabilityThrottle struct {
	backend throttleBackend
	limit   int
	window  int64 // seconds
}

// newCapabilityThrottle builds a throttle allowing limit capability calls
// per window (in seconds) per plugin.
func newCapabilityThrottle(limit int, window time.Duration) *capabilityThrottle {
	return &capabilityThrottle{
		backend: newMemThrottleBackend(),
		limit:   limit,
		window:  int64(window.Seconds()),
	}
}

// Allow reports whether owner may make another capability call this
// window, recording the call if so.
func (t *capabilityThrottle) Allow(owner string) (bool, error) {
	key := fmt.Sprintf("capability:%s", owner)
	ok, err := t.backend.checkLimit(key, t.limit, t.window)
	if err != nil || !ok {
		return false, err
	}
	return true, t.backend.increment(key, t.window)
}

// Reset clears owner's throttle window, used on plugin reload so a fresh
// load generation doesn't inherit its predecessor's budget.
func (t *capabilityThrottle) Reset(owner string) error {
	return t.backend.reset(fmt.Sprintf("capability:%s", owner))
}
