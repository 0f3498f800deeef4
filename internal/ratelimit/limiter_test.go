package ratelimit

import "testing"

func TestConsumeAllowsWithinLimit(t *testing.T) {
	l := New()
	for i := 0; i < 30; i++ {
		d := l.Consume("ip:203.0.113.5", 30, 60_000, 1)
		if !d.Allowed {
			t.Fatalf("call %d: expected allowed, got denied", i)
		}
	}
}

func TestConsumeDeniesOverLimitWithRetryAfter(t *testing.T) {
	l := New()
	for i := 0; i < 30; i++ {
		if d := l.Consume("ip:203.0.113.5", 30, 60_000, 1); !d.Allowed {
			t.Fatalf("priming call %d unexpectedly denied", i)
		}
	}
	d := l.Consume("ip:203.0.113.5", 30, 60_000, 1)
	if d.Allowed {
		t.Fatal("expected 31st call in window to be denied")
	}
	if d.RetryAfterSec < 1 {
		t.Fatalf("expected RetryAfterSec >= 1, got %d", d.RetryAfterSec)
	}
}

func TestConsumeWeightEqualToLimitThenDenies(t *testing.T) {
	l := New()
	first := l.Consume("route:primary", 5, 1000, 5)
	if !first.Allowed {
		t.Fatal("expected first full-weight call to be allowed")
	}
	second := l.Consume("route:primary", 5, 1000, 1)
	if second.Allowed {
		t.Fatal("expected second call to be denied once bucket is exhausted")
	}
	if second.RetryAfterSec < 1 {
		t.Fatalf("expected RetryAfterSec >= 1, got %d", second.RetryAfterSec)
	}
}

func TestConsumeDifferentKeysAreIndependent(t *testing.T) {
	l := New()
	l.Consume("a", 1, 1000, 1)
	d := l.Consume("b", 1, 1000, 1)
	if !d.Allowed {
		t.Fatal("expected independent key to start with a fresh bucket")
	}
}

func TestConsumeSoftFailOpenOnMisconfiguration(t *testing.T) {
	l := New()
	cases := []struct {
		key      string
		limit    int
		windowMs int
	}{
		{"", 30, 60_000},
		{"k", 0, 60_000},
		{"k", 30, 0},
		{"k", -1, 60_000},
	}
	for _, c := range cases {
		d := l.Consume(c.key, c.limit, c.windowMs, 1)
		if !d.Allowed {
			t.Fatalf("expected soft-fail-open for %+v", c)
		}
	}
}

func TestConsumeNonPositiveWeightDefaultsToOne(t *testing.T) {
	l := New()
	d := l.Consume("k", 1, 1000, 0)
	if !d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected weight-0 call to consume 1 token, got %+v", d)
	}
}
