// Package scheduler implements Scheduler, spec.md §4.7's periodic one-shot
// that enqueues stale-refresh jobs for MainLinks that haven't been checked
// recently.
//
// Grounded on the teacher's internal/scheduler/scheduler.go (robfig/cron
// driven periodic task), trimmed to this catalog's single stale-refresh job.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/robfig/cron/v3"

	"github.com/sena168/AICENGHUB/internal/store"
)

// Scheduler wraps a cron.Cron that periodically calls EnqueueStaleRefreshJobs.
type Scheduler struct {
	cron       *cron.Cron
	store      *store.Store
	staleHours int
	batchSize  int
}

// New builds a Scheduler. staleHours of 0 means "pick a fresh uniform random
// value in 24..72 on every run", per spec.md §4.7.
func New(st *store.Store, staleHours, batchSize int) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		store:      st,
		staleHours: staleHours,
		batchSize:  batchSize,
	}
}

// Start schedules the stale-refresh sweep to run once every hour and starts
// the cron loop. The sweep itself is idempotent (NOT EXISTS guarded), so an
// hourly cadence is safe regardless of the configured stale-hours window.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@hourly", func() {
		s.runOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register stale-refresh job: %w", err)
	}
	s.cron.Start()
	log.Println("scheduler: stale-refresh sweep registered")
	return nil
}

// Stop drains the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce runs a single stale-refresh sweep immediately, for a one-shot
// invocation (e.g. cmd/scheduler).
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (int, error) {
	hours := s.staleHours
	if hours == 0 {
		hours = 24 + rand.Intn(49)
	}
	batch := s.batchSize
	if batch <= 0 {
		batch = 200
	}

	n, err := s.store.EnqueueStaleRefreshJobs(ctx, hours, batch)
	if err != nil {
		log.Printf("scheduler: stale-refresh sweep failed: %v", err)
		return 0, err
	}
	log.Printf("scheduler: enqueued %d stale-refresh job(s) (stale-hours=%d batch=%d)", n, hours, batch)
	return n, nil
}
