package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/adapter/dto"
	"github.com/johnquangdev/meeting-insights/internal/domain/repositories"
	"github.com/johnquangdev/meeting-insights/internal/usecase/pipeline"
)

// Analysis handles pipeline invocation and analysis queries.
type Analysis struct {
	service  *pipeline.Service
	analyses repositories.AnalysisRepository
	logger   *zap.Logger
}

func NewAnalysis(service *pipeline.Service, analyses repositories.AnalysisRepository, logger *zap.Logger) *Analysis {
	return &Analysis{
		service:  service,
		analyses: analyses,
		logger:   logger,
	}
}

// Process runs the full analysis pipeline for a meeting's uploaded audio.
// The call is synchronous and returns the produced analysis id.
func (h *Analysis) Process(c echo.Context) error {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("meeting id must be a UUID"))
	}

	var req dto.ProcessMeetingRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("audio_path is required"))
	}

	analysisID, err := h.service.ProcessMeeting(c.Request().Context(), meetingID, req.AudioPath)
	if err != nil {
		return handleProcessingError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, dto.ProcessMeetingResponse{
		Success:    true,
		AnalysisID: analysisID.String(),
	})
}

// GetByMeeting returns the latest analysis of a meeting.
func (h *Analysis) GetByMeeting(c echo.Context) error {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("meeting id must be a UUID"))
	}

	analysis, err := h.analyses.FindLatestByMeetingID(c.Request().Context(), meetingID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	if analysis == nil {
		return handleError(c, h.logger, errors.ErrNotFound("Analysis"))
	}
	return c.JSON(http.StatusOK, analysis)
}

// ListSegments returns the transcript segment rows of an analysis.
func (h *Analysis) ListSegments(c echo.Context) error {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("analysis id must be a UUID"))
	}

	segments, err := h.analyses.ListSegments(c.Request().Context(), analysisID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	return c.JSON(http.StatusOK, segments)
}

// ListActionItems returns the action item rows of an analysis.
func (h *Analysis) ListActionItems(c echo.Context) error {
	analysisID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("analysis id must be a UUID"))
	}

	items, err := h.analyses.ListActionItems(c.Request().Context(), analysisID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	return c.JSON(http.StatusOK, items)
}

// UpdateActionItem toggles completion on one action item.
func (h *Analysis) UpdateActionItem(c echo.Context) error {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("action item id must be a UUID"))
	}

	var req dto.UpdateActionItemRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("completed is required"))
	}

	item, err := h.analyses.SetActionItemCompleted(c.Request().Context(), itemID, *req.Completed)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	if item == nil {
		return handleError(c, h.logger, errors.ErrNotFound("Action item"))
	}
	return c.JSON(http.StatusOK, item)
}
