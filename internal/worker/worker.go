// Package worker implements Queue-Worker, spec.md §4.6's long-running
// single-process loop that claims durable enrichment jobs and applies Tools-
// Client results to the catalog.
//
// Grounded on the teacher's internal/service/checker_service.go background
// loop pattern (CheckPendingSubmissions, started from cmd/api/main.go's
// startBackgroundChecker) and the durable-jobs Job model's attempt/backoff
// fields.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/sena168/AICENGHUB/internal/model"
	"github.com/sena168/AICENGHUB/internal/store"
	"github.com/sena168/AICENGHUB/internal/tools"
)

// Worker runs the Queue-Worker loop against one Store and Tools-Client.
type Worker struct {
	Store          *store.Store
	Tools          *tools.Client
	PollInterval   time.Duration
	MaxAttempts    int
	BackoffBaseSec int
}

// New builds a Worker from configuration. Values are used as given; the
// config loader is what clamps them to their ranges.
func New(st *store.Store, tc *tools.Client, pollMs, maxAttempts, backoffBaseSec int) *Worker {
	return &Worker{
		Store:          st,
		Tools:          tc,
		PollInterval:   time.Duration(pollMs) * time.Millisecond,
		MaxAttempts:    maxAttempts,
		BackoffBaseSec: backoffBaseSec,
	}
}

// Run blocks, claiming and processing jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.Store.ClaimNextJob(ctx)
		if err != nil {
			log.Printf("worker: claim failed: %v", err)
			w.sleep(ctx, ticker)
			continue
		}
		if job == nil {
			w.sleep(ctx, ticker)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) sleep(ctx context.Context, ticker *time.Ticker) {
	select {
	case <-ctx.Done():
	case <-ticker.C:
	}
}

// process implements spec.md §4.6 loop steps 2 and 3 for one claimed job.
func (w *Worker) process(ctx context.Context, job *model.QueueJob) {
	if err := w.runJob(ctx, job); err != nil {
		attempts := job.Attempts + 1
		if failErr := w.Store.FailOrRetryJob(ctx, job.ID, attempts, w.MaxAttempts, w.BackoffBaseSec, err.Error()); failErr != nil {
			log.Printf("worker: failed to record job %d error: %v", job.ID, failErr)
		}
		return
	}
	if err := w.Store.CompleteJob(ctx, job.ID); err != nil {
		log.Printf("worker: failed to mark job %d done: %v", job.ID, err)
	}
}

func (w *Worker) runJob(ctx context.Context, job *model.QueueJob) error {
	raw, err := w.Tools.Enrich(ctx, job.RequestedURL, "queue-enrichment")
	if err != nil {
		return err
	}

	items := tools.NormalizeItems(raw, 12)
	for _, item := range items {
		if err := w.applyItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) applyItem(ctx context.Context, item tools.NormalizedItem) error {
	if err := w.Store.UpsertCandidate(ctx, &model.CandidateLink{
		CanonicalURL: item.CanonicalURL,
		Name:         item.Name,
		Description:  item.Description,
		Abilities:    model.AbilityList(item.Abilities),
		PricingTier:  item.PricingTier,
		PricingText:  item.PricingText,
		IsFree:       item.IsFree,
		HasTrial:     item.HasTrial,
		IsPaid:       item.IsPaid,
		FinalURL:     item.FinalURL,
		ContentType:  item.ContentType,
		CaptureReason: "queue-enrichment",
	}); err != nil {
		return err
	}

	mainSet, err := w.Store.MainURLSet(ctx)
	if err == nil && mainSet[item.CanonicalURL] {
		if err := w.Store.UpdateMainLinkEnrichment(ctx, &model.MainLink{
			CanonicalURL: item.CanonicalURL,
			Name:         item.Name,
			Description:  item.Description,
			Abilities:    model.AbilityList(item.Abilities),
			PricingTier:  item.PricingTier,
			PricingText:  item.PricingText,
			IsFree:       item.IsFree,
			HasTrial:     item.HasTrial,
			IsPaid:       item.IsPaid,
		}); err != nil {
			return err
		}
	}

	confidence := item.Confidence
	return w.Store.InsertToolCheck(ctx, item.CanonicalURL, model.JSONMap{"source": "queue-enrichment"}, &confidence, model.StringList(item.Sources))
}
