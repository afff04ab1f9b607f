package upstream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// URLLimiter holds one token-bucket limiter per upstream URL. It exists so
// a slow or rate-limited upstream backs off independently of the others in
// the sweep — the sweep order and URL set are unaffected either way, so
// this never reorders or skips a URL the way a load balancer would.
type URLLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewURLLimiter builds a limiter keyed by URL, each bucket refilling at
// requestsPerSecond with the given burst.
func NewURLLimiter(requestsPerSecond float64, burst int) *URLLimiter {
	return &URLLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      requestsPerSecond,
		burst:    burst,
	}
}

// Wait blocks until url's bucket has a token, or ctx is done.
func (l *URLLimiter) Wait(ctx context.Context, url string) error {
	return l.limiterFor(url).Wait(ctx)
}

// Allow reports whether url's bucket currently has a token, consuming it
// if so, without blocking.
func (l *URLLimiter) Allow(url string) bool {
	return l.limiterFor(url).Allow()
}

func (l *URLLimiter) limiterFor(url string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[url]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.limiters[url] = lim
	}
	return lim
}
