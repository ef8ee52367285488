package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenlabs/lumen/internal/observability/reqcontext"
)

type rateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if key == "" {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[key]
	if entry == nil || now.Sub(entry.windowStart) > r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[key] = entry
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}

// RateLimited applies the fixed-window limit per API key; it runs after
// APIKeyRequired so unauthenticated traffic never consumes budget.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyID, ok := reqcontext.APIKeyIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !s.limiter.Allow(strconv.FormatInt(keyID, 10)) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
