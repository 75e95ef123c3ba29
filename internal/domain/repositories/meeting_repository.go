package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
)

// MeetingRepository defines persistence operations for meetings.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *entities.Meeting) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Meeting, error)
	SetAudio(ctx context.Context, id uuid.UUID, audioPath string, audioSize int64, durationSeconds *int) error
	// ClaimForProcessing atomically flips status uploaded -> processing.
	// Returns false when the meeting was not in uploaded status, which is
	// how concurrent duplicate invocations are rejected.
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status entities.MeetingStatus) error
}
