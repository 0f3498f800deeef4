package model

import "time"

// ToolCheck is an append-only audit record of a single enrichment observation.
type ToolCheck struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	MainLinkID   *uint      `gorm:"index" json:"main_link_id"`
	CanonicalURL string     `gorm:"type:varchar(500);not null;index" json:"canonical_url"`
	CheckedAt    time.Time  `gorm:"not null" json:"checked_at"`
	Result       JSONMap    `gorm:"type:json" json:"result"`
	Confidence   *float64   `json:"confidence"`
	Sources      StringList `gorm:"type:json" json:"sources"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (ToolCheck) TableName() string {
	return "tool_checks"
}

// LinkBackup is a rolling snapshot of the MainLinks catalog, numbered 1..30.
type LinkBackup struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Slot      int       `gorm:"uniqueIndex;not null" json:"slot"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (LinkBackup) TableName() string {
	return "link_backups"
}
