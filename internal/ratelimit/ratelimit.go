// Package ratelimit guards heavy reporting endpoints with per-route-class
// token buckets.
package ratelimit

import (
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// ErrThrottled is returned at the service boundary when a route class
// denies admission. Handlers map it to HTTP 429.
var ErrThrottled = errors.New("too many requests")

// ClassConfig holds the token bucket parameters for one route class.
type ClassConfig struct {
	// Capacity is the bucket size: the number of requests admitted in a
	// burst from a full bucket.
	Capacity int

	// RefillPerSecond is the steady-state admission rate. Zero means the
	// bucket never refills.
	RefillPerSecond float64
}

// Limiter admits or rejects requests per route class. Admission is
// non-blocking and decided synchronously; a denied caller is never
// queued. Bucket state is in-memory only and resets to full capacity
// on process restart.
type Limiter struct {
	mu      sync.Mutex
	classes map[string]ClassConfig
	buckets map[string]*rate.Limiter
	logger  *slog.Logger
}

// New creates a limiter from per-class configuration. Route classes not
// present in the configuration are unprotected: TryAcquire admits them
// unconditionally.
func New(classes map[string]ClassConfig, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := make(map[string]ClassConfig, len(classes))
	for name, c := range classes {
		cfg[name] = c
	}
	return &Limiter{
		classes: cfg,
		buckets: make(map[string]*rate.Limiter, len(cfg)),
		logger:  logger.With(slog.String("component", "ratelimit")),
	}
}

// TryAcquire reports whether one request for the given route class is
// admitted, consuming a token on success. Refill is computed lazily from
// elapsed time; the check-and-decrement is atomic per class.
func (l *Limiter) TryAcquire(routeClass string) bool {
	bucket := l.bucket(routeClass)
	if bucket == nil {
		return true
	}
	allowed := bucket.Allow()
	if !allowed {
		l.logger.Warn("request throttled",
			slog.String("route_class", routeClass))
	}
	return allowed
}

// bucket returns the lazily-created token bucket for a configured class,
// or nil for an unconfigured one. The lock covers only map access; the
// returned *rate.Limiter is itself safe for concurrent use.
func (l *Limiter) bucket(routeClass string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets[routeClass]; ok {
		return bucket
	}
	cfg, ok := l.classes[routeClass]
	if !ok {
		return nil
	}
	bucket := rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity)
	l.buckets[routeClass] = bucket
	return bucket
}
