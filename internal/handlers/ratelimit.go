package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// LoginLimiter throttles credential checks per client IP and username.
// A nil LoginLimiter allows everything.
type LoginLimiter struct {
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	now      func() time.Time
	lastGC   time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter allows requests attempts per window for each key. It
// returns nil when requests or window is not positive.
func NewLoginLimiter(requests int, window time.Duration) *LoginLimiter {
	if requests <= 0 || window <= 0 {
		return nil
	}
	return &LoginLimiter{
		rate:     rate.Limit(float64(requests) / window.Seconds()),
		burst:    requests,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
		lastGC:   time.Now(),
	}
}

// Allow consumes one attempt for the request's client and username. When the
// attempt is refused it returns the time until the next one is available.
func (l *LoginLimiter) Allow(r *http.Request, username string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key := clientIP(r) + ":" + strings.ToLower(strings.TrimSpace(username))
	now := l.now()

	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.gcLocked(now)
	l.mu.Unlock()

	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}
	reservation := entry.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, delay
}

func (l *LoginLimiter) gcLocked(now time.Time) {
	if now.Sub(l.lastGC) < limiterIdleTTL {
		return
	}
	l.lastGC = now
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// clientIP relies on chi's RealIP middleware having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
