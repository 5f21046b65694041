package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/upb/azure-ai-gateway/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// staleAfter is how long an idle client keeps its bucket
const staleAfter = 10 * time.Minute

// sweepInterval is how often idle buckets are evicted
const sweepInterval = time.Minute

// clientLimiter pairs a token bucket with its last access time
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per client IP using a token bucket.
// Idle entries are swept so the map does not grow with every source IP
// ever seen.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	nextSweep time.Time
	logger    *zap.Logger
}

// NewRateLimiter creates a per-IP rate limiter
func NewRateLimiter(requestsPerSecond float64, burst int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rps:       rate.Limit(requestsPerSecond),
		burst:     burst,
		nextSweep: time.Now().Add(sweepInterval),
		logger:    logger,
	}
}

// Limit is the middleware entry point
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.limiter(ip).Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", r.URL.Path))
			_ = utils.WriteTooManyRequests(w, "Rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweep(now)
		rl.nextSweep = now.Add(sweepInterval)
	}

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweep drops buckets idle longer than staleAfter. Caller holds the lock.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > staleAfter {
			delete(rl.limiters, ip)
		}
	}
}

// clientIP strips the port; chi's RealIP middleware has already rewritten
// RemoteAddr from X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
