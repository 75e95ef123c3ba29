package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	domainrepo "github.com/johnquangdev/meeting-insights/internal/domain/repositories"
)

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository creates an analysis repository backed by GORM
func NewAnalysisRepository(db *gorm.DB) domainrepo.AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *entities.Analysis) error {
	return r.db.WithContext(ctx).Create(analysis).Error
}

func (r *analysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Analysis, error) {
	var analysis entities.Analysis
	err := r.db.WithContext(ctx).First(&analysis, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepository) FindLatestByMeetingID(ctx context.Context, meetingID uuid.UUID) (*entities.Analysis, error) {
	var analysis entities.Analysis
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("created_at DESC").
		First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (r *analysisRepository) SaveRawTranscript(ctx context.Context, id uuid.UUID, raw datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&entities.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"raw_transcript": raw,
			"updated_at":     time.Now(),
		}).Error
}

func (r *analysisRepository) Complete(ctx context.Context, id uuid.UUID, doc datatypes.JSON, confidence float64, tokenUsage datatypes.JSON, processingTimeMs int) error {
	return r.db.WithContext(ctx).
		Model(&entities.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"analysis_json":      doc,
			"status":             entities.AnalysisStatusReady,
			"confidence_score":   confidence,
			"token_usage":        tokenUsage,
			"processing_time_ms": processingTimeMs,
			"updated_at":         time.Now(),
		}).Error
}

func (r *analysisRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Analysis{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        entities.AnalysisStatusFailed,
			"error_message": errorMessage,
			"updated_at":    time.Now(),
		}).Error
}

func (r *analysisRepository) InsertSegments(ctx context.Context, segments []entities.TranscriptSegment) error {
	if len(segments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(segments, 100).Error
}

func (r *analysisRepository) InsertActionItems(ctx context.Context, items []entities.ActionItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(items, 100).Error
}

func (r *analysisRepository) ListSegments(ctx context.Context, analysisID uuid.UUID) ([]*entities.TranscriptSegment, error) {
	var segments []*entities.TranscriptSegment
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("start_sec ASC").
		Find(&segments).Error
	return segments, err
}

func (r *analysisRepository) ListActionItems(ctx context.Context, analysisID uuid.UUID) ([]*entities.ActionItem, error) {
	var items []*entities.ActionItem
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("timestamp_sec ASC NULLS LAST, created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *analysisRepository) SetActionItemCompleted(ctx context.Context, id uuid.UUID, completed bool) (*entities.ActionItem, error) {
	updates := map[string]interface{}{
		"completed":  completed,
		"updated_at": time.Now(),
	}
	if completed {
		updates["completed_at"] = time.Now()
	} else {
		updates["completed_at"] = nil
	}
	result := r.db.WithContext(ctx).
		Model(&entities.ActionItem{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var item entities.ActionItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
