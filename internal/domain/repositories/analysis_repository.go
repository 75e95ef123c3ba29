package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
)

// AnalysisRepository defines persistence operations for analyses and their
// derived rows.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entities.Analysis) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Analysis, error)
	FindLatestByMeetingID(ctx context.Context, meetingID uuid.UUID) (*entities.Analysis, error)
	// SaveRawTranscript is the post-transcription checkpoint write.
	SaveRawTranscript(ctx context.Context, id uuid.UUID, raw datatypes.JSON) error
	// Complete stores the normalized document and flips status to ready in
	// a single update.
	Complete(ctx context.Context, id uuid.UUID, doc datatypes.JSON, confidence float64, tokenUsage datatypes.JSON, processingTimeMs int) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error

	InsertSegments(ctx context.Context, segments []entities.TranscriptSegment) error
	InsertActionItems(ctx context.Context, items []entities.ActionItem) error
	ListSegments(ctx context.Context, analysisID uuid.UUID) ([]*entities.TranscriptSegment, error)
	ListActionItems(ctx context.Context, analysisID uuid.UUID) ([]*entities.ActionItem, error)
	SetActionItemCompleted(ctx context.Context, id uuid.UUID, completed bool) (*entities.ActionItem, error)
}
