package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-realty-portal/internal/model"
	"go-realty-portal/internal/ratelimit"
)

// Throttle is the coarse per-IP request throttle applied to the whole
// API ahead of the per-action fixed windows. It uses a token bucket, so
// short bursts are smoothed rather than counted against a window.
type Throttle struct {
	rpm      int
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	maxIdle  time.Duration
	capacity int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewThrottle(rpm int) *Throttle {
	if rpm <= 0 {
		rpm = 100
	}

	return &Throttle{
		rpm:      rpm,
		clients:  map[string]*clientLimiter{},
		maxIdle:  10 * time.Minute,
		capacity: 1000,
	}
}

func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeRateLimited(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) allow(clientIP string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	client, exists := t.clients[clientIP]
	if !exists {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(t.rpm)), t.rpm),
		}
		t.clients[clientIP] = client
		t.gcLocked()
	}
	client.lastSeen = time.Now()

	return client.limiter.Allow()
}

func (t *Throttle) gcLocked() {
	if len(t.clients) < t.capacity {
		return
	}

	cutoff := time.Now().Add(-t.maxIdle)
	for ip, client := range t.clients {
		if client.lastSeen.Before(cutoff) {
			delete(t.clients, ip)
		}
	}
}

// ActionRateLimit enforces the fixed window configured for one action.
// The identifier composes the client IP with the authenticated user id
// when the gatekeeper has already attached one.
func ActionRateLimit(store ratelimit.Store, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			if identity, ok := IdentityFromContext(r.Context()); ok {
				userID = identity.UserID
			}

			res := store.Check(action, ratelimit.Identifier(ClientIP(r), userID))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeRateLimited(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "RATE_LIMIT_EXCEEDED",
			Message: "Too many requests",
		},
	})
}
