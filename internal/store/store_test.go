package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sena168/AICENGHUB/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

// newTestStore opens a private in-memory sqlite database and runs the same
// migration EnsureReady uses, giving each test a clean hermetic schema. Each
// call gets its own uniquely-named memory database (shared cache mode keys
// databases by name) so tests never see each other's rows.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	st := &Store{DB: db}
	if err := st.EnsureReady(); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return st
}

func TestClampConfidence(t *testing.T) {
	high := 1.5
	low := -0.5
	mid := 0.42

	if got := clampConfidence(&high); *got != 1 {
		t.Fatalf("expected clamp to 1, got %v", *got)
	}
	if got := clampConfidence(&low); *got != 0 {
		t.Fatalf("expected clamp to 0, got %v", *got)
	}
	if got := clampConfidence(&mid); *got != 0.42 {
		t.Fatalf("expected unchanged mid value, got %v", *got)
	}
	if got := clampConfidence(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}
}

func TestRedactedDSNHidesCredentials(t *testing.T) {
	got := redactedDSN("postgres://user:pw@host:5432/db")
	if got != "postgres://[redacted]" {
		t.Fatalf("expected scheme-only redaction, got %q", got)
	}
}

func TestSameTagsComparesElementwise(t *testing.T) {
	a := []model.Tag{model.TagWatermarked}
	b := model.TagList{model.TagWatermarked}
	if !sameTags(a, b) {
		t.Fatal("expected equal single-element tag lists to match")
	}
	if sameTags(a, model.TagList{}) {
		t.Fatal("expected mismatched-length tag lists to differ")
	}
}

func TestTagsToStrings(t *testing.T) {
	got := tagsToStrings(model.TagList{model.TagWatermarked})
	if len(got) != 1 || got[0] != "watermarked" {
		t.Fatalf("unexpected conversion: %v", got)
	}
}

// TestNextBackupSlotRollsOverAt30 covers spec §8 scenario 7.
func TestNextBackupSlotRollsOverAt30(t *testing.T) {
	cases := []struct {
		maxSlot, want int
	}{
		{30, 1},
		{29, 30},
		{0, 1},
	}
	for _, c := range cases {
		if got := nextBackupSlot(c.maxSlot); got != c.want {
			t.Fatalf("nextBackupSlot(%d) = %d, want %d", c.maxSlot, got, c.want)
		}
	}
}

// TestClaimNextJobOrdersByNextRunAndSkipsDone covers spec §8 scenario 8:
// ClaimNextJob must pick the most-eligible job and atomically flip it to
// processing so a following claim never sees the same row again.
func TestClaimNextJobOrdersByNextRunAndSkipsDone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	older := now.Add(-time.Hour)
	jobs := []model.QueueJob{
		{CanonicalURL: "https://b.example.com", RequestedURL: "https://b.example.com", Reason: "x", Status: model.QueuePending, NextRunAt: now, CreatedAt: now},
		{CanonicalURL: "https://a.example.com", RequestedURL: "https://a.example.com", Reason: "x", Status: model.QueuePending, NextRunAt: older, CreatedAt: older},
		{CanonicalURL: "https://c.example.com", RequestedURL: "https://c.example.com", Reason: "x", Status: model.QueueDone, NextRunAt: older, CreatedAt: older},
	}
	for i := range jobs {
		if err := st.DB.Create(&jobs[i]).Error; err != nil {
			t.Fatalf("failed to seed job: %v", err)
		}
	}

	first, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == nil || first.CanonicalURL != "https://a.example.com" {
		t.Fatalf("expected the earlier next_run_at job first, got %+v", first)
	}
	if first.Status != model.QueueProcessing {
		t.Fatalf("expected claimed job to flip to processing, got %s", first.Status)
	}

	second, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second == nil || second.CanonicalURL != "https://b.example.com" {
		t.Fatalf("expected the remaining pending job next, got %+v", second)
	}

	third, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != nil {
		t.Fatalf("expected no more claimable jobs (done job excluded, both pending jobs already claimed), got %+v", third)
	}
}

// TestClaimNextJobExcludesAlreadyClaimedJob exercises the claim-exclusivity
// property through the public EnqueueScrapeJob/ClaimNextJob pair: once a job
// is claimed its status is no longer pending/retry, so it drops out of every
// subsequent claim's eligible set.
func TestClaimNextJobExcludesAlreadyClaimedJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.EnqueueScrapeJob(ctx, "https://once.example.com", "https://once.example.com", "test", nil, nil); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	claimed, err := st.ClaimNextJob(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("expected a claim, got job=%v err=%v", claimed, err)
	}

	again, err := st.ClaimNextJob(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != nil {
		t.Fatalf("expected the already-processing job to be excluded from a second claim, got %+v", again)
	}
}
