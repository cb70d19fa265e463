package ratelimiter

import (
	"testing"
	"time"
)

func TestNilLimiterAllowsEverything(t *testing.T) {
	t.Parallel()

	var l *MapLimiter
	if !l.Allow("session-1", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
}

func TestNewRejectsInvalidArgs(t *testing.T) {
	t.Parallel()

	if New(0, 1, time.Minute) != nil {
		t.Fatal("expected nil limiter for zero rps")
	}
	if New(1, 0, time.Minute) != nil {
		t.Fatal("expected nil limiter for zero burst")
	}
}

func TestAllowEnforcesBurstPerKey(t *testing.T) {
	t.Parallel()

	l := New(1, 2, time.Minute)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	if !l.Allow("session-1", now) {
		t.Fatal("first call should be allowed")
	}
	if !l.Allow("session-1", now) {
		t.Fatal("second call within burst should be allowed")
	}
	if l.Allow("session-1", now) {
		t.Fatal("third call should exceed burst")
	}
	// Independent keys have independent buckets.
	if !l.Allow("session-2", now) {
		t.Fatal("other key should be allowed")
	}
	// Tokens refill over time.
	if !l.Allow("session-1", now.Add(2*time.Second)) {
		t.Fatal("call after refill should be allowed")
	}
}

func TestEmptyKeyBypassesLimit(t *testing.T) {
	t.Parallel()

	l := New(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("  ", now) {
			t.Fatal("empty key must bypass limiting")
		}
	}
}
