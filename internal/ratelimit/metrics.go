package ratelimit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// MetricsSink mirrors rate-limit allow/deny counts into an external store for
// cross-instance observability. It never participates in the allow/deny
// decision itself; a sink that errors or is disabled is simply ignored.
type MetricsSink interface {
	RecordAllow(key string)
	RecordDeny(key string)
	IsEnabled() bool
	Close() error
}

type noopMetricsSink struct{}

func (*noopMetricsSink) RecordAllow(string) {}
func (*noopMetricsSink) RecordDeny(string)  {}
func (*noopMetricsSink) IsEnabled() bool    { return false }
func (*noopMetricsSink) Close() error       { return nil }

// RedisMetricsConfig is the connection shape for the optional cross-instance
// counter mirror.
type RedisMetricsConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
}

type redisMetricsSink struct {
	client *redis.Client
	enable bool
}

// NewMetricsSink adapts the teacher's pkg/cache.CacheRepository shape (an
// Enabled-gated no-op implementation when Redis is unreachable) from caching
// check results to mirroring rate-limit counters.
func NewMetricsSink(cfg RedisMetricsConfig) MetricsSink {
	if !cfg.Enabled {
		return &noopMetricsSink{}
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("ratelimit: redis metrics sink disabled, ping failed: %v", err)
		return &noopMetricsSink{}
	}

	log.Println("ratelimit: redis metrics sink connected")
	return &redisMetricsSink{client: rdb, enable: true}
}

func (r *redisMetricsSink) IsEnabled() bool { return r.enable && r.client != nil }

func (r *redisMetricsSink) RecordAllow(key string) {
	r.incr("ratelimit:allow:" + key)
}

func (r *redisMetricsSink) RecordDeny(key string) {
	r.incr("ratelimit:deny:" + key)
}

// incr fires the counter increment in the background so a slow or unreachable
// Redis never adds latency to the allow/deny decision path.
func (r *redisMetricsSink) incr(redisKey string) {
	if !r.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.client.Incr(ctx, redisKey).Err(); err != nil {
			log.Printf("ratelimit: failed to mirror counter %s: %v", redisKey, err)
		}
	}()
}

func (r *redisMetricsSink) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
