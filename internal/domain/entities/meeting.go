package entities

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle status of an uploaded recording.
type MeetingStatus string

const (
	MeetingStatusUploaded   MeetingStatus = "uploaded"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCompleted  MeetingStatus = "completed"
	MeetingStatusFailed     MeetingStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s MeetingStatus) IsTerminal() bool {
	return s == MeetingStatusCompleted || s == MeetingStatusFailed
}

// Meeting is the top-level record for one uploaded recording. Status is
// mutated only by the analysis pipeline once the audio is uploaded.
type Meeting struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID         uuid.UUID     `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title           string        `json:"title" gorm:"type:varchar(500);not null"`
	AudioPath       *string       `json:"audio_path,omitempty" gorm:"type:text"`
	AudioSize       *int64        `json:"audio_size,omitempty"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`
	Language        string        `json:"language" gorm:"type:varchar(10);default:'en'"`
	Status          MeetingStatus `json:"status" gorm:"type:varchar(20);not null;default:'uploaded'"`
	CreatedAt       time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Meeting
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a new Meeting entity in uploaded status
func NewMeeting(ownerID uuid.UUID, title, language string) *Meeting {
	if language == "" {
		language = "en"
	}
	return &Meeting{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Title:    title,
		Language: language,
		Status:   MeetingStatusUploaded,
	}
}
