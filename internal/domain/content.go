package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ContentType is the medium of a generated content item.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// JobKind maps the content type onto the engine job kind.
func (t ContentType) JobKind() JobKind {
	if t == ContentTypeImage {
		return JobKindImageGenerate
	}
	return JobKindTextGenerate
}

// ComplianceStatus is the column of a generated item on the compliance board.
type ComplianceStatus string

const (
	ComplianceStatusDraft    ComplianceStatus = "draft"
	ComplianceStatusInReview ComplianceStatus = "in_review"
	ComplianceStatusApproved ComplianceStatus = "approved"
	ComplianceStatusRejected ComplianceStatus = "rejected"
)

// Valid reports whether s is a known board column.
func (s ComplianceStatus) Valid() bool {
	switch s {
	case ComplianceStatusDraft, ComplianceStatusInReview, ComplianceStatusApproved, ComplianceStatusRejected:
		return true
	}
	return false
}

// CanMoveTo reports whether a card may be dragged from s to next.
// Approved and rejected cards can only go back to review or draft.
func (s ComplianceStatus) CanMoveTo(next ComplianceStatus) bool {
	if !next.Valid() || s == next {
		return false
	}
	switch s {
	case ComplianceStatusDraft:
		return next == ComplianceStatusInReview
	case ComplianceStatusInReview:
		return true
	case ComplianceStatusApproved, ComplianceStatusRejected:
		return next == ComplianceStatusInReview || next == ComplianceStatusDraft
	}
	return false
}

// GeneratedContent represents a generated text or image and its job state.
type GeneratedContent struct {
	ID               string           `gorm:"type:text;primaryKey" json:"id"`
	SourceID         string           `gorm:"type:text;index:idx_contents_source" json:"source_id,omitempty"`
	Type             ContentType      `gorm:"type:text;not null" json:"type"`
	Format           string           `gorm:"type:text" json:"format"`
	Prompt           string           `gorm:"type:text" json:"prompt"`
	DiaflowSessionID *string          `gorm:"type:text" json:"diaflow_session_id"`
	ProcessingStatus ProcessingStatus `gorm:"type:text;index:idx_contents_status;default:pending" json:"processing_status"`
	Content          *string          `gorm:"type:text" json:"content"`
	URL              *string          `gorm:"type:text" json:"url"`
	Width            int              `json:"width,omitempty"`
	Height           int              `json:"height,omitempty"`
	ComplianceStatus ComplianceStatus `gorm:"type:text;index:idx_contents_compliance;default:draft" json:"compliance_status"`
	FailureReason    string           `gorm:"type:text" json:"failure_reason,omitempty"`
	StartedAt        *time.Time       `gorm:"column:processing_started_at" json:"processing_started_at,omitempty"`
	RawLastResponse  datatypes.JSON   `json:"raw_last_response,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name for GeneratedContent.
func (GeneratedContent) TableName() string {
	return "generated_contents"
}

// Job returns the tracked-job view of the content item.
func (c *GeneratedContent) Job() TrackedJob {
	return TrackedJob{
		ID:        c.ID,
		Kind:      c.Type.JobKind(),
		SessionID: c.DiaflowSessionID,
		Status:    c.ProcessingStatus,
	}
}
