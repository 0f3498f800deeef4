package model

import "time"

// MainLink is a promoted catalog entry.
type MainLink struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	CanonicalURL     string      `gorm:"type:varchar(500);uniqueIndex;not null" json:"canonical_url"`
	Name             string      `gorm:"type:varchar(200);index" json:"name"`
	Description      string      `gorm:"type:text" json:"description"`
	Abilities        AbilityList `gorm:"type:json" json:"abilities"`
	PricingTier      PricingTier `gorm:"type:varchar(20);not null;default:'trial'" json:"pricing_tier"`
	Tags             TagList     `gorm:"type:json" json:"tags"`
	PricingText      string      `gorm:"type:varchar(500)" json:"pricing_text"`
	IsFree           bool        `gorm:"default:false" json:"is_free"`
	HasTrial         bool        `gorm:"default:false" json:"has_trial"`
	IsPaid           bool        `gorm:"default:false" json:"is_paid"`
	FaviconURL       string      `gorm:"type:varchar(500)" json:"favicon_url"`
	ThumbnailURL     string      `gorm:"type:varchar(500)" json:"thumbnail_url"`
	PendingEnrichment bool       `gorm:"default:false;index" json:"pending_enrichment"`
	LastCheckedAt    *time.Time  `gorm:"index" json:"last_checked_at"`
	Provenance       string      `gorm:"type:varchar(100)" json:"provenance"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

func (MainLink) TableName() string {
	return "main_links"
}
