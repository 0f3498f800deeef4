package model

import "time"

// QueueJob is one durable enrichment unit consumed by the Queue-Worker.
//
// Grounded on other_examples/jdziat-simple-durable-jobs__job.go's Job model
// (status enum, Attempt/MaxRetries, RunAt, LockedBy/LockedUntil), adapted to
// this catalog's canonical-URL-keyed enrichment jobs.
type QueueJob struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	CanonicalURL string      `gorm:"type:varchar(500);not null;index" json:"canonical_url"`
	RequestedURL string      `gorm:"type:varchar(500);not null" json:"requested_url"`
	Reason       string      `gorm:"type:varchar(100);not null" json:"reason"`
	Status       QueueStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attempts     int         `gorm:"default:0" json:"attempts"`
	NextRunAt    time.Time   `gorm:"index" json:"next_run_at"`
	Payload      JSONMap     `gorm:"type:json" json:"payload"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	StartedAt    *time.Time  `json:"started_at"`
	FinishedAt   *time.Time  `json:"finished_at"`
	LastError    string      `gorm:"type:text" json:"last_error"`
}

func (QueueJob) TableName() string {
	return "queue_jobs"
}
