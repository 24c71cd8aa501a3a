package middleware

import (
	"net/http"
	"sync"
	"time"

	"smartpos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ── API rate limiter ──────────────────────────────────────────────────────────
// Token bucket per client IP. Idle buckets are purged so IPs that never
// return do not accumulate.

const (
	purgeInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiters struct {
	mu        sync.Mutex
	entries   map[string]*ipLimiter
	limit     rate.Limit
	burst     int
	lastPurge time.Time
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPurge) > purgeInterval {
		l.purgeLocked(now)
	}
	e, ok := l.entries[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *ipLimiters) purgeLocked(now time.Time) {
	purged := 0
	for ip, e := range l.entries {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(l.entries, ip)
			purged++
		}
	}
	l.lastPurge = now
	if purged > 0 {
		log.Debug().
			Int("entries_purged", purged).
			Int("entries_remaining", len(l.entries)).
			Msg("rate limiter purged")
	}
}

// RateLimiter allows perMinute requests per IP with a burst of the same size.
func RateLimiter(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 300
	}
	l := &ipLimiters{
		entries:   make(map[string]*ipLimiter),
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     perMinute,
		lastPurge: time.Now(),
	}
	return func(c *gin.Context) {
		if !l.get(c.ClientIP(), time.Now()).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}
