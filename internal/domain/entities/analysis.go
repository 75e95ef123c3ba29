package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnalysisStatus is the lifecycle status of one pipeline run.
type AnalysisStatus string

const (
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusReady      AnalysisStatus = "ready"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s AnalysisStatus) IsTerminal() bool {
	return s == AnalysisStatusReady || s == AnalysisStatusFailed
}

// Analysis is one pipeline run's record. analysis_json is the authoritative
// normalized document; the transcript_segments and action_items rows are a
// best-effort projection of it.
type Analysis struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	MeetingID        uuid.UUID      `json:"meeting_id" gorm:"type:uuid;not null;index"`
	Status           AnalysisStatus `json:"status" gorm:"type:varchar(20);not null;default:'processing'"`
	Model            string         `json:"model,omitempty" gorm:"type:varchar(50)"`
	RawTranscript    datatypes.JSON `json:"raw_transcript,omitempty" gorm:"type:jsonb"`
	AnalysisJSON     datatypes.JSON `json:"analysis_json,omitempty" gorm:"type:jsonb"`
	TokenUsage       datatypes.JSON `json:"token_usage,omitempty" gorm:"type:jsonb"`
	ConfidenceScore  float64        `json:"confidence_score,omitempty"`
	ProcessingTimeMs *int           `json:"processing_time_ms,omitempty"`
	ErrorMessage     *string        `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Analysis
func (Analysis) TableName() string {
	return "analyses"
}

// NewAnalysis creates a new Analysis entity bound to a meeting, in
// processing status.
func NewAnalysis(meetingID uuid.UUID, model string) *Analysis {
	return &Analysis{
		ID:        uuid.New(),
		MeetingID: meetingID,
		Status:    AnalysisStatusProcessing,
		Model:     model,
	}
}

// TranscriptSegment is a derived row projected from
// analysis_json.transcript_segments. Inserted once after extraction
// succeeds, never updated by the pipeline.
type TranscriptSegment struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AnalysisID uuid.UUID `json:"analysis_id" gorm:"type:uuid;not null;index"`
	Speaker    string    `json:"speaker" gorm:"type:varchar(255)"`
	StartSec   float64   `json:"start_sec"`
	EndSec     float64   `json:"end_sec"`
	Text       string    `json:"text" gorm:"type:text"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for TranscriptSegment
func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}

// ActionItemPriority constants
const (
	ActionItemPriorityLow    = "low"
	ActionItemPriorityMedium = "medium"
	ActionItemPriorityHigh   = "high"
)

// ActionItem is a derived row projected from analysis_json.action_items.
type ActionItem struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AnalysisID   uuid.UUID  `json:"analysis_id" gorm:"type:uuid;not null;index"`
	Text         string     `json:"text" gorm:"type:text;not null"`
	Owner        string     `json:"owner,omitempty" gorm:"type:varchar(255)"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty" gorm:"type:uuid"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	Priority     string     `json:"priority" gorm:"type:varchar(20);default:'medium'"`
	TimestampSec *float64   `json:"timestamp_sec,omitempty"`
	Confidence   float64    `json:"confidence"`
	Completed    bool       `json:"completed" gorm:"default:false"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ActionItem
func (ActionItem) TableName() string {
	return "action_items"
}
