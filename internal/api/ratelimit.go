package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdle is how long an idle client's bucket is kept.
const limiterIdle = 10 * time.Minute

// clientLimiter is a token bucket per remote host.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

// allow takes one token from the bucket of the host in remoteAddr.
func (l *clientLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.clients[host]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[host] = b
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops idle buckets, at most once per idle period. l.mu must be held.
func (l *clientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdle {
		return
	}
	l.lastSweep = now
	for host, b := range l.clients {
		if now.Sub(b.seen) >= limiterIdle {
			delete(l.clients, host)
		}
	}
}

// size reports the number of tracked clients.
func (l *clientLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// withRateLimit rejects requests over the per-client rate with 429.
func (s *Server) withRateLimit(l *clientLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, &Error{
				Message: "too many requests",
				Kind:    KindRateLimited,
				Code:    http.StatusTooManyRequests,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
