package domain

import (
	"time"

	"gorm.io/datatypes"
)

// LinkType describes what a source link points at.
// The engine branches on it internally when transcribing.
type LinkType string

const (
	LinkTypeVideo    LinkType = "video"
	LinkTypeAudio    LinkType = "audio"
	LinkTypeWeb      LinkType = "web"
	LinkTypeDocument LinkType = "document"
	LinkTypePaper    LinkType = "paper"
)

// Valid reports whether t is a supported link type.
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypeVideo, LinkTypeAudio, LinkTypeWeb, LinkTypeDocument, LinkTypePaper:
		return true
	}
	return false
}

// Source represents a user-added source and its transcription job state.
type Source struct {
	ID               string           `gorm:"type:text;primaryKey" json:"id"`
	Title            string           `gorm:"type:text" json:"title"`
	Description      string           `gorm:"type:text" json:"description,omitempty"`
	Link             string           `gorm:"type:text;not null" json:"link"`
	LinkType         LinkType         `gorm:"type:text;not null" json:"type_of_link"`
	StorageKey       string           `gorm:"type:text" json:"storage_key,omitempty"`
	DiaflowSessionID *string          `gorm:"type:text" json:"diaflow_session_id"`
	ProcessingStatus ProcessingStatus `gorm:"type:text;index:idx_sources_status;default:pending" json:"processing_status"`
	Transcript       *string          `gorm:"type:text" json:"transcript"`
	Summary          *string          `gorm:"type:text" json:"summary"`
	FailureReason    string           `gorm:"type:text" json:"failure_reason,omitempty"`
	StartedAt        *time.Time       `gorm:"column:processing_started_at" json:"processing_started_at,omitempty"`
	RawLastResponse  datatypes.JSON   `json:"raw_last_response,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name for Source.
func (Source) TableName() string {
	return "sources"
}

// Job returns the tracked-job view of the source.
func (s *Source) Job() TrackedJob {
	return TrackedJob{
		ID:        s.ID,
		Kind:      JobKindSourceTranscribe,
		SessionID: s.DiaflowSessionID,
		Status:    s.ProcessingStatus,
	}
}

// ContextText returns the best text available for prompting about the source.
func (s *Source) ContextText() string {
	switch {
	case s.Summary != nil && *s.Summary != "":
		return *s.Summary
	case s.Transcript != nil:
		return *s.Transcript
	default:
		return ""
	}
}
