// Package store implements Link-Store (spec.md §4.5): schema migration and
// the catalog's read/write operations over MainLink, CandidateLink,
// QueueJob, ToolCheck, and LinkBackup.
//
// Grounded on the teacher's pkg/database/db.go (dual mysql/postgres dialect
// selection, gorm wiring), here driven by one database URL, matching this
// catalog's Neon-Postgres-primary deployment target.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sena168/AICENGHUB/internal/model"
	"github.com/sena168/AICENGHUB/internal/urlnorm"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store wraps a gorm connection and implements every Link-Store operation.
type Store struct {
	DB *gorm.DB
}

// Open connects to the database identified by a DSN, dispatching on scheme
// to the mysql or postgres dialector.
func Open(databaseURL string) (*Store, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "mysql://"):
		dialector = mysql.Open(strings.TrimPrefix(databaseURL, "mysql://"))
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		dialector = postgres.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL scheme in %q", redactedDSN(databaseURL))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Store{DB: db}, nil
}

func redactedDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i] + "://[redacted]"
	}
	return "[redacted]"
}

// EnsureReady runs the idempotent schema migration for every catalog entity.
func (s *Store) EnsureReady() error {
	return s.DB.AutoMigrate(
		&model.MainLink{},
		&model.CandidateLink{},
		&model.QueueJob{},
		&model.ToolCheck{},
		&model.LinkBackup{},
	)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MainLinks returns every MainLink ordered by lowercase name ascending.
func (s *Store) MainLinks(ctx context.Context) ([]model.MainLink, error) {
	var out []model.MainLink
	err := s.DB.WithContext(ctx).Order("LOWER(name) ASC").Find(&out).Error
	return out, err
}

// MainURLSet returns the set of normalized MainLink canonical URLs.
func (s *Store) MainURLSet(ctx context.Context) (map[string]bool, error) {
	var urls []string
	if err := s.DB.WithContext(ctx).Model(&model.MainLink{}).Pluck("canonical_url", &urls).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set, nil
}

// UpsertCandidate implements spec.md §4.5 upsertCandidate: insert fresh on
// first observation, otherwise bump discovered_count and apply the
// first-non-empty merge policy per field.
func (s *Store) UpsertCandidate(ctx context.Context, rec *model.CandidateLink) error {
	canonical, err := urlnorm.Canonicalize(rec.CanonicalURL)
	if err != nil {
		return fmt.Errorf("candidate canonical url invalid: %w", err)
	}
	rec.CanonicalURL = canonical

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.CandidateLink
		err := tx.Where("canonical_url = ?", canonical).First(&existing).Error
		now := time.Now()

		if err == gorm.ErrRecordNotFound {
			rec.Status = model.CandidatePending
			rec.DiscoveredCount = 1
			rec.LastSeenAt = now
			return tx.Create(rec).Error
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"discovered_count": existing.DiscoveredCount + 1,
			"last_seen_at":     now,
			"updated_at":       now,
			"status":           model.CandidatePending,
			"evidence_urls":    rec.EvidenceURLs,
			"structured_evidence": rec.StructuredEvidence,
			"pending_enrichment":   rec.PendingEnrichment,
			"is_free":              rec.IsFree,
			"has_trial":            rec.HasTrial,
			"is_paid":              rec.IsPaid,
		}
		if existing.Name == "" && rec.Name != "" {
			updates["name"] = rec.Name
		}
		if existing.Description == "" && rec.Description != "" {
			updates["description"] = rec.Description
		}
		if len(existing.Abilities) == 0 && len(rec.Abilities) > 0 {
			updates["abilities"] = rec.Abilities
		}
		if existing.PricingTier == "" && rec.PricingTier != "" {
			updates["pricing_tier"] = rec.PricingTier
		}
		if len(existing.Tags) == 0 && len(rec.Tags) > 0 {
			updates["tags"] = rec.Tags
		}
		if existing.FinalURL == "" && rec.FinalURL != "" {
			updates["final_url"] = rec.FinalURL
		}
		if existing.ContentType == "" && rec.ContentType != "" {
			updates["content_type"] = rec.ContentType
		}
		if rec.VerifiedAt != nil && (existing.VerifiedAt == nil || rec.VerifiedAt.After(*existing.VerifiedAt)) {
			updates["verified_at"] = rec.VerifiedAt
		}

		return tx.Model(&model.CandidateLink{}).Where("id = ?", existing.ID).Updates(updates).Error
	})
}

// UpdateMainLinkEnrichment implements spec.md §4.5 updateMainLinkEnrichment:
// only overwrite string fields when the new value is non-empty; booleans
// and last_checked_at always overwrite.
func (s *Store) UpdateMainLinkEnrichment(ctx context.Context, rec *model.MainLink) error {
	canonical, err := urlnorm.Canonicalize(rec.CanonicalURL)
	if err != nil {
		return fmt.Errorf("main link canonical url invalid: %w", err)
	}

	var existing model.MainLink
	err = s.DB.WithContext(ctx).Where("canonical_url = ?", canonical).First(&existing).Error
	if err != nil {
		return err
	}

	now := time.Now()
	updates := map[string]any{
		"last_checked_at":    &now,
		"is_free":            rec.IsFree,
		"has_trial":          rec.HasTrial,
		"is_paid":            rec.IsPaid,
		"pending_enrichment": rec.PendingEnrichment,
	}
	if rec.Name != "" {
		updates["name"] = rec.Name
	}
	if rec.Description != "" {
		updates["description"] = rec.Description
	}
	if len(rec.Abilities) > 0 {
		updates["abilities"] = rec.Abilities
	}
	if rec.PricingTier != "" {
		updates["pricing_tier"] = rec.PricingTier
	}
	if len(rec.Tags) > 0 {
		updates["tags"] = rec.Tags
	}
	if rec.PricingText != "" {
		updates["pricing_text"] = rec.PricingText
	}
	if rec.FaviconURL != "" {
		updates["favicon_url"] = rec.FaviconURL
	}
	if rec.ThumbnailURL != "" {
		updates["thumbnail_url"] = rec.ThumbnailURL
	}

	return s.DB.WithContext(ctx).Model(&model.MainLink{}).Where("id = ?", existing.ID).Updates(updates).Error
}

// InsertToolCheck implements spec.md §4.5 insertToolCheck: join to a
// MainLink by canonical URL if one exists, always append a row.
func (s *Store) InsertToolCheck(ctx context.Context, canonicalURL string, result model.JSONMap, confidence *float64, sources model.StringList) error {
	canonical, err := urlnorm.Canonicalize(canonicalURL)
	if err != nil {
		return fmt.Errorf("tool check canonical url invalid: %w", err)
	}

	var mainID *uint
	var existing model.MainLink
	if err := s.DB.WithContext(ctx).Where("canonical_url = ?", canonical).First(&existing).Error; err == nil {
		id := existing.ID
		mainID = &id
	}

	clamped := clampConfidence(confidence)
	if len(sources) > 10 {
		sources = sources[:10]
	}

	return s.DB.WithContext(ctx).Create(&model.ToolCheck{
		MainLinkID:   mainID,
		CanonicalURL: canonical,
		CheckedAt:    time.Now(),
		Result:       result,
		Confidence:   clamped,
		Sources:      sources,
	}).Error
}

func clampConfidence(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}

// EnqueueScrapeJob implements spec.md §4.5 enqueueScrapeJob.
func (s *Store) EnqueueScrapeJob(ctx context.Context, canonicalURL, requestedURL, reason string, payload model.JSONMap, runAt *time.Time) error {
	next := time.Now()
	if runAt != nil {
		next = *runAt
	}
	return s.DB.WithContext(ctx).Create(&model.QueueJob{
		CanonicalURL: canonicalURL,
		RequestedURL: requestedURL,
		Reason:       reason,
		Status:       model.QueuePending,
		Attempts:     0,
		NextRunAt:    next,
		Payload:      payload,
	}).Error
}

// EnqueueStaleRefreshJobs implements spec.md §4.7: enqueue a
// reason='scheduled-refresh' job for every MainLink whose last_checked_at is
// null or older than now-staleHours, skipping URLs that already have a
// pending/retrying/processing job, in a single NOT EXISTS-guarded statement.
func (s *Store) EnqueueStaleRefreshJobs(ctx context.Context, staleHours, batchSize int) (int, error) {
	result := s.DB.WithContext(ctx).Exec(`
		INSERT INTO queue_jobs (canonical_url, requested_url, reason, status, attempts, next_run_at, created_at, updated_at)
		SELECT ml.canonical_url, ml.canonical_url, 'scheduled-refresh', 'pending', 0, NOW(), NOW(), NOW()
		FROM main_links ml
		WHERE (ml.last_checked_at IS NULL OR ml.last_checked_at < NOW() - INTERVAL '1 hour' * ?)
		AND NOT EXISTS (
			SELECT 1 FROM queue_jobs qj
			WHERE qj.canonical_url = ml.canonical_url
			AND qj.status IN ('pending', 'retry', 'processing')
		)
		ORDER BY ml.last_checked_at ASC NULLS FIRST
		LIMIT ?
	`, staleHours, batchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// supportsSkipLocked reports whether the active dialect has a FOR UPDATE
// SKIP LOCKED concept at all. SQLite has no row-level locking (a writer
// holds the whole database), so the claim query below drops the clause
// there rather than emit syntax SQLite can't parse; Postgres and MySQL
// both support it.
func supportsSkipLocked(tx *gorm.DB) bool {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return true
	default:
		return false
	}
}

// ClaimNextJob implements spec.md §4.6 step 1: select the next eligible
// job with FOR UPDATE SKIP LOCKED and atomically flip it to processing.
func (s *Store) ClaimNextJob(ctx context.Context) (*model.QueueJob, error) {
	var job model.QueueJob
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		q := tx.Where("status IN ? AND next_run_at <= ?", []model.QueueStatus{model.QueuePending, model.QueueRetry}, now).
			Order("next_run_at ASC, created_at ASC, id ASC")
		if supportsSkipLocked(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		err := q.First(&job).Error
		if err != nil {
			return err
		}

		if err := tx.Model(&model.QueueJob{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":     model.QueueProcessing,
			"started_at": &now,
			"last_error": "",
		}).Error; err != nil {
			return err
		}
		job.Status = model.QueueProcessing
		job.StartedAt = &now
		job.LastError = ""
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CompleteJob marks a claimed job done.
func (s *Store) CompleteJob(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&model.QueueJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":      model.QueueDone,
		"finished_at": &now,
	}).Error
}

// FailOrRetryJob implements spec.md §4.6 step 3's backoff/failure transition.
func (s *Store) FailOrRetryJob(ctx context.Context, id uint, attempts, maxAttempts int, backoffBaseSec int, errMsg string) error {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}
	now := time.Now()
	if attempts >= maxAttempts {
		return s.DB.WithContext(ctx).Model(&model.QueueJob{}).Where("id = ?", id).Updates(map[string]any{
			"status":      model.QueueFailed,
			"attempts":    attempts,
			"finished_at": &now,
			"last_error":  errMsg,
		}).Error
	}
	delaySec := attempts * attempts * backoffBaseSec
	nextRun := now.Add(time.Duration(delaySec) * time.Second)
	return s.DB.WithContext(ctx).Model(&model.QueueJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":      model.QueueRetry,
		"attempts":    attempts,
		"next_run_at": nextRun,
		"last_error":  errMsg,
	}).Error
}

// MergePendingCandidates implements spec.md §4.5 mergePendingCandidates:
// snapshot MainLinks to a rolling backup slot, then promote pending
// candidates, skipping any whose canonical URL already exists as a MainLink.
func (s *Store) MergePendingCandidates(ctx context.Context) (merged int, rejected int, err error) {
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if backupErr := snapshotMainLinks(tx); backupErr != nil {
			return backupErr
		}

		var pending []model.CandidateLink
		if err := tx.Where("status = ?", model.CandidatePending).Order("created_at ASC").Find(&pending).Error; err != nil {
			return err
		}

		for _, c := range pending {
			canonical, normErr := urlnorm.Canonicalize(c.CanonicalURL)
			if normErr != nil {
				rejected++
				if err := tx.Model(&model.CandidateLink{}).Where("id = ?", c.ID).Update("status", model.CandidateRejected).Error; err != nil {
					return err
				}
				continue
			}

			mainLink := model.MainLink{
				CanonicalURL:       canonical,
				Name:               c.Name,
				Description:        c.Description,
				Abilities:          c.Abilities,
				PricingTier:        c.PricingTier,
				Tags:               c.Tags,
				PricingText:        c.PricingText,
				IsFree:             c.IsFree,
				HasTrial:           c.HasTrial,
				IsPaid:             c.IsPaid,
				FaviconURL:         c.FaviconURL,
				ThumbnailURL:       c.ThumbnailURL,
				PendingEnrichment:  c.PendingEnrichment,
				Provenance:         "merged-candidate",
			}
			createErr := tx.Exec(
				`INSERT INTO main_links (canonical_url, name, description, abilities, pricing_tier, tags, pricing_text, is_free, has_trial, is_paid, favicon_url, thumbnail_url, pending_enrichment, provenance, created_at, updated_at)
				 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW()
				 WHERE NOT EXISTS (SELECT 1 FROM main_links WHERE canonical_url = ?)`,
				mainLink.CanonicalURL, mainLink.Name, mainLink.Description, mainLink.Abilities, mainLink.PricingTier,
				mainLink.Tags, mainLink.PricingText, mainLink.IsFree, mainLink.HasTrial, mainLink.IsPaid,
				mainLink.FaviconURL, mainLink.ThumbnailURL, mainLink.PendingEnrichment, mainLink.Provenance, canonical,
			).Error
			if createErr != nil {
				return createErr
			}

			merged++
			if err := tx.Model(&model.CandidateLink{}).Where("id = ?", c.ID).Updates(map[string]any{
				"status":    model.CandidateMerged,
				"merged_at": time.Now(),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return merged, rejected, err
}

// nextBackupSlot computes the rolling backup slot (1..30) that follows
// maxSlot, wrapping back to 1 after 30.
func nextBackupSlot(maxSlot int) int {
	return (maxSlot % 30) + 1
}

// snapshotMainLinks writes the current MainLinks table into the rolling
// backup slot (max_slot mod 30)+1, overwriting the oldest snapshot.
func snapshotMainLinks(tx *gorm.DB) error {
	var links []model.MainLink
	if err := tx.Find(&links).Error; err != nil {
		return err
	}

	var maxSlot int
	if err := tx.Model(&model.LinkBackup{}).Select("COALESCE(MAX(slot), 0)").Scan(&maxSlot).Error; err != nil {
		return err
	}
	slot := nextBackupSlot(maxSlot)

	payload, err := marshalBackup(links)
	if err != nil {
		return err
	}

	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "created_at"}),
	}).Create(&model.LinkBackup{Slot: slot, Payload: payload}).Error
}

// RefreshMainPricingTiers implements spec.md §4.5 refreshMainPricingTiers.
func (s *Store) RefreshMainPricingTiers(ctx context.Context) (int, error) {
	var links []model.MainLink
	if err := s.DB.WithContext(ctx).Find(&links).Error; err != nil {
		return 0, err
	}

	changed := 0
	for _, l := range links {
		newTier := model.CanonicalizePricingTier(string(l.PricingTier))
		newTags := model.CanonicalizeTags(tagsToStrings(l.Tags))
		if newTier == l.PricingTier && sameTags(newTags, l.Tags) {
			continue
		}
		if err := s.DB.WithContext(ctx).Model(&model.MainLink{}).Where("id = ?", l.ID).Updates(map[string]any{
			"pricing_tier": newTier,
			"tags":         model.TagList(newTags),
		}).Error; err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func marshalBackup(links []model.MainLink) ([]byte, error) {
	return json.Marshal(links)
}

func tagsToStrings(tags model.TagList) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

func sameTags(a []model.Tag, b model.TagList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
