package model

import "time"

// CandidateLink is a not-yet-promoted URL observed publicly, awaiting a
// human-reviewed merge pass into MainLinks.
type CandidateLink struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	CanonicalURL      string          `gorm:"type:varchar(500);uniqueIndex;not null" json:"canonical_url"`
	Name              string          `gorm:"type:varchar(200)" json:"name"`
	Description       string          `gorm:"type:text" json:"description"`
	Abilities         AbilityList     `gorm:"type:json" json:"abilities"`
	PricingTier       PricingTier     `gorm:"type:varchar(20);not null;default:'trial'" json:"pricing_tier"`
	Tags              TagList         `gorm:"type:json" json:"tags"`
	PricingText       string          `gorm:"type:varchar(500)" json:"pricing_text"`
	IsFree            bool            `gorm:"default:false" json:"is_free"`
	HasTrial          bool            `gorm:"default:false" json:"has_trial"`
	IsPaid            bool            `gorm:"default:false" json:"is_paid"`
	FaviconURL        string          `gorm:"type:varchar(500)" json:"favicon_url"`
	ThumbnailURL      string          `gorm:"type:varchar(500)" json:"thumbnail_url"`
	PendingEnrichment bool            `gorm:"default:false;index" json:"pending_enrichment"`
	FinalURL          string          `gorm:"type:varchar(500)" json:"final_url"`
	HTTPStatus        int             `gorm:"default:0" json:"http_status"`
	ContentType       string          `gorm:"type:varchar(100)" json:"content_type"`
	VerifiedAt        *time.Time      `json:"verified_at"`
	EvidenceURLs      StringList      `gorm:"type:json" json:"evidence_urls"`
	StructuredEvidence JSONMap        `gorm:"type:json" json:"structured_evidence"`
	Status            CandidateStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DiscoveredCount   int             `gorm:"default:1" json:"discovered_count"`
	DiscoveredBy      string          `gorm:"type:varchar(100)" json:"discovered_by"`
	SubmitterIPHash   string          `gorm:"type:varchar(64)" json:"submitter_ip_hash"`
	SubmitterSessionHash string       `gorm:"type:varchar(64)" json:"submitter_session_hash"`
	CaptureReason     string          `gorm:"type:varchar(100)" json:"capture_reason"`
	LastSeenAt        time.Time       `json:"last_seen_at"`
	MergedAt          *time.Time      `json:"merged_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (CandidateLink) TableName() string {
	return "candidate_links"
}
