package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/adapter/dto"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/internal/domain/repositories"
	"github.com/johnquangdev/meeting-insights/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-insights/internal/usecase/status"
)

// Meeting handles meeting CRUD, audio upload and the status stream.
type Meeting struct {
	meetings repositories.MeetingRepository
	store    storage.AudioStore
	feed     status.Feed
	logger   *zap.Logger
}

func NewMeeting(meetings repositories.MeetingRepository, store storage.AudioStore, feed status.Feed, logger *zap.Logger) *Meeting {
	return &Meeting{
		meetings: meetings,
		store:    store,
		feed:     feed,
		logger:   logger,
	}
}

// Create registers a new meeting in uploaded status.
func (h *Meeting) Create(c echo.Context) error {
	var req dto.CreateMeetingRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument(err.Error()))
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("owner_id must be a UUID"))
	}

	meeting := entities.NewMeeting(ownerID, req.Title, req.Language)
	if err := h.meetings.Create(c.Request().Context(), meeting); err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}

	return c.JSON(http.StatusCreated, meeting)
}

// List returns the meetings of one owner.
func (h *Meeting) List(c echo.Context) error {
	ownerID, err := uuid.Parse(c.QueryParam("owner_id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("owner_id query parameter must be a UUID"))
	}

	meetings, err := h.meetings.ListByOwner(c.Request().Context(), ownerID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	return c.JSON(http.StatusOK, meetings)
}

// Get returns one meeting by id.
func (h *Meeting) Get(c echo.Context) error {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("meeting id must be a UUID"))
	}

	meeting, err := h.meetings.FindByID(c.Request().Context(), meetingID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	if meeting == nil {
		return handleError(c, h.logger, errors.ErrMeetingNotFound())
	}
	return c.JSON(http.StatusOK, meeting)
}

// UploadAudio stores the multipart audio file and records its object path
// on the meeting.
func (h *Meeting) UploadAudio(c echo.Context) error {
	ctx := c.Request().Context()

	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("meeting id must be a UUID"))
	}

	meeting, err := h.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	if meeting == nil {
		return handleError(c, h.logger, errors.ErrMeetingNotFound())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("multipart field 'file' is required"))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return handleError(c, h.logger, errors.ErrStorageFailed(err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("meetings/%s/%s", meetingID, filepath.Base(fileHeader.Filename))
	if err := h.store.Upload(ctx, objectName, file, fileHeader.Size, contentType); err != nil {
		return handleError(c, h.logger, errors.ErrStorageFailed(err))
	}

	var duration *int
	if v := c.FormValue("duration_seconds"); v != "" {
		if seconds, convErr := strconv.Atoi(v); convErr == nil && seconds >= 0 {
			duration = &seconds
		}
	}

	if err := h.meetings.SetAudio(ctx, meetingID, objectName, fileHeader.Size, duration); err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}

	h.logger.Info("Audio uploaded",
		zap.String("meeting_id", meetingID.String()),
		zap.String("audio_path", objectName),
		zap.Int64("size", fileHeader.Size))

	return c.JSON(http.StatusOK, dto.UploadAudioResponse{
		AudioPath: objectName,
		AudioSize: fileHeader.Size,
	})
}

// StreamStatus streams the meeting's status events as server-sent events
// until the client disconnects.
func (h *Meeting) StreamStatus(c echo.Context) error {
	ctx := c.Request().Context()

	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return handleError(c, h.logger, errors.ErrInvalidArgument("meeting id must be a UUID"))
	}

	meeting, err := h.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrPersistenceFailed(err))
	}
	if meeting == nil {
		return handleError(c, h.logger, errors.ErrMeetingNotFound())
	}

	events, cancel, err := h.feed.Subscribe(ctx, meetingID)
	if err != nil {
		return handleError(c, h.logger, errors.ErrInternal(err))
	}
	defer cancel()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			payload, marshalErr := json.Marshal(event)
			if marshalErr != nil {
				continue
			}
			if _, writeErr := fmt.Fprintf(resp, "event: status\ndata: %s\n\n", payload); writeErr != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
