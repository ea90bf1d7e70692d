package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/turtacn/clauselens/pkg/errors"
)

// RateLimitConfig is a token bucket per client key.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// KeyFunc picks the bucket; defaults to the client IP.
	KeyFunc func(c *gin.Context) string
	// SkipPaths bypass the limiter.
	SkipPaths []string
	// IdleTTL drops buckets of clients quiet for this long.
	IdleTTL time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		SkipPaths:         []string{"/health", "/readyz", "/metrics"},
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimiter hands out one rate.Limiter per key. Idle limiters expire from
// a go-cache so the map does not grow with every client ever seen.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	mu      sync.Mutex
	buckets *gocache.Cache
}

func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		buckets: gocache.New(idleTTL, idleTTL),
	}
}

// Reserve takes a token for key. When none is available it returns false and
// how long the client should wait.
func (l *RateLimiter) Reserve(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	var lim *rate.Limiter
	if v, ok := l.buckets.Get(key); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	l.buckets.Set(key, lim, l.idleTTL)
	l.mu.Unlock()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// RateLimit rejects requests over the per-key rate with COMMON_007 and a
// Retry-After header.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	limiter := NewRateLimiter(config.RequestsPerSecond, config.Burst, config.IdleTTL)
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	limitHeader := strconv.Itoa(config.Burst)

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", limitHeader)
		ok, wait := limiter.Reserve(keyFunc(c), time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			AbortWithError(c, errors.RateLimit("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
