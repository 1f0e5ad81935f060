// Package ratelimit provides per-key token buckets for the HTTP API.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	tokensPerMin  int
	maxTokens     int
	errorMessage  string
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Config for creating a new rate limiter
type Config struct {
	TokensPerMinute int    // Number of tokens added per minute
	MaxTokens       int    // Maximum tokens that can be accumulated
	ErrorMessage    string // Message to return when rate limited
}

// Presets used by the HTTP API.
var (
	// LoginConfig allows 10 login attempts per minute per IP.
	LoginConfig = Config{
		TokensPerMinute: 10,
		MaxTokens:       10,
		ErrorMessage:    "Too many login attempts. Please try again later.",
	}

	// APIConfig allows 120 read requests per minute per IP.
	APIConfig = Config{
		TokensPerMinute: 120,
		MaxTokens:       120,
		ErrorMessage:    "Too many requests. Please slow down.",
	}

	// AdminConfig allows 30 admin commands per minute per IP.
	AdminConfig = Config{
		TokensPerMinute: 30,
		MaxTokens:       30,
		ErrorMessage:    "Too many admin requests. Please slow down.",
	}
)

// New creates a new rate limiter
func New(cfg Config) *Limiter {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = cfg.TokensPerMinute
	}

	l := &Limiter{
		buckets:      make(map[string]*bucket),
		tokensPerMin: cfg.TokensPerMinute,
		maxTokens:    cfg.MaxTokens,
		errorMessage: cfg.ErrorMessage,
		now:          time.Now,
		stopCleanup:  make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(5 * time.Minute)
	go l.cleanup()

	return l
}

// cleanup drops buckets unused for 10 minutes.
func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				if now.Sub(b.lastCheck) > 10*time.Minute {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// refill must be called with l.mu held.
func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.maxTokens), lastCheck: now}
		l.buckets[key] = b
		return b
	}
	elapsed := now.Sub(b.lastCheck).Minutes()
	b.tokens = math.Min(b.tokens+elapsed*float64(l.tokensPerMin), float64(l.maxTokens))
	b.lastCheck = now
	return b
}

// Allow checks if a request is allowed for the given key (usually IP address)
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN checks if n requests are allowed
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// Remaining returns the number of whole tokens left for a key
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.buckets[key]; !exists {
		return l.maxTokens
	}
	return int(l.refill(key).tokens)
}

// RetryAfter is how long until key has one token again, to the millisecond.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.buckets[key]; !exists || l.tokensPerMin <= 0 {
		return 0
	}
	missing := 1 - l.refill(key).tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing * float64(time.Minute) / float64(l.tokensPerMin)).Round(time.Millisecond)
}

// ErrorMessage returns the error message for this limiter
func (l *Limiter) ErrorMessage() string {
	return l.errorMessage
}

// Reset forgets a key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
