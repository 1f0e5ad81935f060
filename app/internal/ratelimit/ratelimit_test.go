package ratelimit

import (
	"testing"
	"time"
)

func TestNew_DefaultMaxTokens(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, ErrorMessage: "rate limited"})
	defer l.Stop()

	if l.maxTokens != 10 {
		t.Errorf("expected maxTokens=10, got %d", l.maxTokens)
	}
}

func TestNew_CustomMaxTokens(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 20, ErrorMessage: "rate limited"})
	defer l.Stop()

	if l.maxTokens != 20 {
		t.Errorf("expected maxTokens=20, got %d", l.maxTokens)
	}
}

func TestAllow_WithinLimit(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	for i := range 10 {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestAllow_ExceedsLimit(t *testing.T) {
	l := New(Config{TokensPerMinute: 5, MaxTokens: 5})
	defer l.Stop()

	// Drain all tokens
	for range 5 {
		l.Allow("1.2.3.4")
	}

	// Next request should be denied
	if l.Allow("1.2.3.4") {
		t.Error("request should be denied after exceeding limit")
	}
}

func TestAllow_DifferentKeys(t *testing.T) {
	l := New(Config{TokensPerMinute: 2, MaxTokens: 2})
	defer l.Stop()

	// Drain IP1
	l.Allow("ip1")
	l.Allow("ip1")

	// IP2 should still be allowed
	if !l.Allow("ip2") {
		t.Error("different key should have its own bucket")
	}

	// IP1 should now be blocked
	if l.Allow("ip1") {
		t.Error("ip1 should be rate limited")
	}
}

func TestAllowN(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	if !l.AllowN("key", 5) {
		t.Error("AllowN(5) should pass when 10 tokens available")
	}

	if !l.AllowN("key", 5) {
		t.Error("AllowN(5) should pass when 5 tokens remaining")
	}

	if l.AllowN("key", 1) {
		t.Error("AllowN(1) should fail when 0 tokens remaining")
	}
}

func TestRemaining(t *testing.T) {
	l := New(Config{TokensPerMinute: 10, MaxTokens: 10})
	defer l.Stop()

	rem := l.Remaining("new-key")
	if rem != 10 {
		t.Errorf("expected 10 remaining for new key, got %d", rem)
	}

	l.Allow("new-key")
	rem = l.Remaining("new-key")
	if rem != 9 {
		t.Errorf("expected 9 remaining after 1 request, got %d", rem)
	}
}

func TestReset(t *testing.T) {
	l := New(Config{TokensPerMinute: 5, MaxTokens: 5})
	defer l.Stop()

	// Drain all tokens
	for range 5 {
		l.Allow("victim")
	}

	if l.Allow("victim") {
		t.Error("should be rate limited")
	}

	// Reset
	l.Reset("victim")

	// Should be allowed again
	if !l.Allow("victim") {
		t.Error("should be allowed after reset")
	}
}

func TestErrorMessage(t *testing.T) {
	msg := "custom rate limit message"
	l := New(Config{TokensPerMinute: 1, ErrorMessage: msg})
	defer l.Stop()

	if l.ErrorMessage() != msg {
		t.Errorf("expected %q, got %q", msg, l.ErrorMessage())
	}
}

// fakeClock is advanced by hand.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClocked(cfg Config) (*Limiter, *fakeClock) {
	l := New(cfg)
	c := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = c.now
	return l, c
}

func TestTokenRefill(t *testing.T) {
	l, clock := newClocked(Config{TokensPerMinute: 60, MaxTokens: 60}) // 1 per second
	defer l.Stop()

	for range 60 {
		l.Allow("refill-test")
	}
	if l.Allow("refill-test") {
		t.Error("should be rate limited after draining")
	}

	clock.advance(1500 * time.Millisecond)
	if !l.Allow("refill-test") {
		t.Error("should be allowed after a second and a half")
	}
	if l.Allow("refill-test") {
		t.Error("only one token should have refilled")
	}
}

func TestTokenRefill_CappedAtMax(t *testing.T) {
	l, clock := newClocked(Config{TokensPerMinute: 10, MaxTokens: 5})
	defer l.Stop()

	l.Allow("k")
	clock.advance(time.Hour)
	if got := l.Remaining("k"); got != 5 {
		t.Errorf("expected refill capped at 5, got %d", got)
	}
}

func TestRetryAfter(t *testing.T) {
	l, clock := newClocked(Config{TokensPerMinute: 6, MaxTokens: 1}) // one per 10s
	defer l.Stop()

	if d := l.RetryAfter("k"); d != 0 {
		t.Errorf("unknown key should not wait, got %v", d)
	}
	l.Allow("k")
	if d := l.RetryAfter("k"); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
	clock.advance(4 * time.Second)
	if d := l.RetryAfter("k"); d != 6*time.Second {
		t.Errorf("expected 6s, got %v", d)
	}
	clock.advance(6 * time.Second)
	if d := l.RetryAfter("k"); d != 0 {
		t.Errorf("expected no wait after refill, got %v", d)
	}
}

func TestStop(t *testing.T) {
	l := New(Config{TokensPerMinute: 10})
	l.Stop()
	l.Stop()
}

// --- Presets ---

func TestPresets(t *testing.T) {
	for name, cfg := range map[string]Config{"login": LoginConfig, "api": APIConfig, "admin": AdminConfig} {
		if cfg.TokensPerMinute <= 0 || cfg.ErrorMessage == "" {
			t.Errorf("%s preset incomplete: %+v", name, cfg)
		}
	}
	if LoginConfig.TokensPerMinute >= APIConfig.TokensPerMinute {
		t.Error("login should be stricter than the read API")
	}
}
