package ratelimit

import "testing"

func TestNewMetricsSinkDisabledReturnsNoop(t *testing.T) {
	m := NewMetricsSink(RedisMetricsConfig{Enabled: false})
	if m.IsEnabled() {
		t.Fatal("expected disabled config to yield a disabled sink")
	}
	m.RecordAllow("k")
	m.RecordDeny("k")
	if err := m.Close(); err != nil {
		t.Fatalf("expected noop Close to succeed, got %v", err)
	}
}

func TestNewMetricsSinkUnreachableRedisFallsBackToNoop(t *testing.T) {
	m := NewMetricsSink(RedisMetricsConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	if m.IsEnabled() {
		t.Fatal("expected unreachable redis to fall back to a disabled sink")
	}
}

func TestSetMetricsNilRestoresNoop(t *testing.T) {
	l := New()
	l.SetMetrics(nil)
	d := l.Consume("k", 1, 1000, 1)
	if !d.Allowed {
		t.Fatal("expected limiter to keep functioning after SetMetrics(nil)")
	}
}
