package api

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// clientLimiter allows perMinute attempts per client key, with a burst of
// the same size.
type clientLimiter struct {
	mu        sync.Mutex
	perMinute int
	clock     clockwork.Clock
	clients   map[string]*clientEntry
	lastSweep time.Time
}

type clientEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(perMinute int, clock clockwork.Clock) *clientLimiter {
	return &clientLimiter{
		perMinute: perMinute,
		clock:     clock,
		clients:   make(map[string]*clientEntry),
		lastSweep: clock.Now(),
	}
}

// Allow reports whether key may make another attempt now. A non-positive
// limit disables limiting.
func (l *clientLimiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, e := range l.clients {
			if now.Sub(e.seen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.clients[key] = e
	}
	e.seen = now
	return e.limiter.AllowN(now, 1)
}
