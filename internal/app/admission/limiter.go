// Package admission decides whether a connection attempt from a source may
// proceed to authentication.
package admission

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultWindow  = 60 * time.Second
	DefaultCeiling = 10
)

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter per source key. Once the ceiling is hit
// further attempts in the same window are denied without being counted.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	window  time.Duration
	ceiling int
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(ceiling int, window time.Duration, opts ...Option) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		window:  window,
		ceiling: ceiling,
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Window() time.Duration { return l.window }

// Allow reports whether one more attempt from key fits in its window.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.ceiling {
		return false
	}
	e.count++
	return true
}

// Sweep deletes expired entries and returns how many went.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Str("module", "app.admission").Int("purged", n).Msg("rate limit sweep")
			}
		}
	}
}
