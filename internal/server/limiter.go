package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultLimiterIdle = 10 * time.Minute
	defaultLimiterMax  = 10000
)

// ActorLimiter rate-limits hunt submissions per actor. Actors idle longer
// than the idle window are forgotten, and the table never holds more than
// max actors.
type ActorLimiter struct {
	mu   sync.Mutex
	m    map[string]*actorEntry
	r    rate.Limit
	b    int
	idle time.Duration
	max  int
	now  func() time.Time

	lastSweep time.Time
}

type actorEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewActorLimiter allows perMinute submissions per actor with the given burst.
// A non-positive perMinute disables limiting.
func NewActorLimiter(perMinute, burst int) *ActorLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst < 1 {
		burst = 1
	}
	return &ActorLimiter{
		m:    make(map[string]*actorEntry),
		r:    r,
		b:    burst,
		idle: defaultLimiterIdle,
		max:  defaultLimiterMax,
		now:  time.Now,
	}
}

func (al *ActorLimiter) limiterFor(actor string) *rate.Limiter {
	al.mu.Lock()
	defer al.mu.Unlock()

	now := al.now()
	if now.Sub(al.lastSweep) > al.idle {
		al.sweep(now)
	}
	if e, ok := al.m[actor]; ok {
		e.seen = now
		return e.lim
	}
	if len(al.m) >= al.max {
		al.evict(now)
	}
	lim := rate.NewLimiter(al.r, al.b)
	al.m[actor] = &actorEntry{lim: lim, seen: now}
	return lim
}

// evict drops idle actors, then the least recently seen one if the table
// is still full. Callers hold mu.
func (al *ActorLimiter) evict(now time.Time) {
	al.sweep(now)
	var (
		oldest     string
		oldestSeen time.Time
	)
	for k, e := range al.m {
		if oldest == "" || e.seen.Before(oldestSeen) {
			oldest, oldestSeen = k, e.seen
		}
	}
	if len(al.m) >= al.max {
		delete(al.m, oldest)
	}
}

// sweep forgets actors idle longer than the idle window. Callers hold mu.
func (al *ActorLimiter) sweep(now time.Time) {
	al.lastSweep = now
	for k, e := range al.m {
		if now.Sub(e.seen) > al.idle {
			delete(al.m, k)
		}
	}
}

// Len returns the number of tracked actors.
func (al *ActorLimiter) Len() int {
	al.mu.Lock()
	defer al.mu.Unlock()
	return len(al.m)
}

// Allow reports whether actor may submit now, consuming a token if so.
func (al *ActorLimiter) Allow(actor string) bool {
	return al.limiterFor(actor).Allow()
}
