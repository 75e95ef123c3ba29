package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/internal/domain/repositories"
	"github.com/johnquangdev/meeting-insights/internal/infrastructure/external/openai"
	"github.com/johnquangdev/meeting-insights/internal/infrastructure/storage"
	"github.com/johnquangdev/meeting-insights/internal/usecase/status"
)

// Transcriber turns an audio stream into a raw transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, fileName, language string) (*entities.RawTranscript, error)
}

// Extractor turns transcript segments into structured model output.
type Extractor interface {
	Extract(ctx context.Context, segments []entities.WhisperSegment) (*openai.ExtractionResult, error)
}

// Service orchestrates one full analysis run: download, transcribe, extract,
// normalize, persist. A run is synchronous; the HTTP caller waits for it.
type Service struct {
	meetings    repositories.MeetingRepository
	analyses    repositories.AnalysisRepository
	store       storage.AudioStore
	transcriber Transcriber
	extractor   Extractor
	normalizer  *Normalizer
	propagator  *status.Propagator
	model       string
	language    string
	logger      *zap.Logger
}

func NewService(
	meetings repositories.MeetingRepository,
	analyses repositories.AnalysisRepository,
	store storage.AudioStore,
	transcriber Transcriber,
	extractor Extractor,
	propagator *status.Propagator,
	model string,
	language string,
	logger *zap.Logger,
) *Service {
	return &Service{
		meetings:    meetings,
		analyses:    analyses,
		store:       store,
		transcriber: transcriber,
		extractor:   extractor,
		normalizer:  NewNormalizer(),
		propagator:  propagator,
		model:       model,
		language:    language,
		logger:      logger,
	}
}

// ProcessMeeting runs the pipeline for one meeting's uploaded audio and
// returns the id of the analysis it produced. Only a meeting in uploaded
// status can start a run; concurrent or repeated invocations lose the claim
// and get ErrAnalysisInProgress.
func (s *Service) ProcessMeeting(ctx context.Context, meetingID uuid.UUID, audioPath string) (uuid.UUID, error) {
	startedAt := time.Now()

	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return uuid.Nil, apperrors.ErrPersistenceFailed(err)
	}
	if meeting == nil {
		return uuid.Nil, apperrors.ErrMeetingNotFound()
	}

	claimed, err := s.meetings.ClaimForProcessing(ctx, meetingID)
	if err != nil {
		return uuid.Nil, apperrors.ErrPersistenceFailed(err)
	}
	if !claimed {
		return uuid.Nil, apperrors.ErrAnalysisInProgress()
	}
	s.propagator.MeetingProcessing(ctx, meetingID)

	language := meeting.Language
	if language == "" {
		language = s.language
	}

	analysis := entities.NewAnalysis(meetingID, s.model)
	if err := s.analyses.Create(ctx, analysis); err != nil {
		appErr := apperrors.ErrPersistenceFailed(err)
		if failErr := s.propagator.MeetingFailed(ctx, meetingID, appErr.Message); failErr != nil {
			s.logger.Error("Failed to mark meeting failed",
				zap.String("meeting_id", meetingID.String()),
				zap.Error(failErr))
		}
		return uuid.Nil, appErr
	}
	s.propagator.AnalysisProcessing(ctx, meetingID, analysis.ID)

	s.logger.Info("Pipeline run started",
		zap.String("meeting_id", meetingID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.String("audio_path", audioPath))

	doc, raw, tokens, err := s.run(ctx, analysis.ID, audioPath, language)
	if err != nil {
		return uuid.Nil, s.fail(ctx, meetingID, analysis.ID, err)
	}

	confidence := documentConfidence(doc)
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return uuid.Nil, s.fail(ctx, meetingID, analysis.ID, apperrors.ErrPersistenceFailed(err))
	}
	usageJSON, err := json.Marshal(tokens)
	if err != nil {
		return uuid.Nil, s.fail(ctx, meetingID, analysis.ID, apperrors.ErrPersistenceFailed(err))
	}

	processingMs := int(time.Since(startedAt).Milliseconds())
	if err := s.analyses.Complete(ctx, analysis.ID, datatypes.JSON(docJSON), confidence, datatypes.JSON(usageJSON), processingMs); err != nil {
		return uuid.Nil, s.fail(ctx, meetingID, analysis.ID, apperrors.ErrPersistenceFailed(err))
	}
	s.propagator.AnalysisReady(ctx, meetingID, analysis.ID)

	// Derived rows are a projection of the stored document. Their failure
	// does not undo a completed analysis.
	s.insertDerivedRows(ctx, analysis.ID, doc)

	if err := s.propagator.MeetingCompleted(ctx, meetingID); err != nil {
		s.logger.Error("Failed to mark meeting completed",
			zap.String("meeting_id", meetingID.String()),
			zap.Error(err))
	}

	s.logger.Info("Pipeline run finished",
		zap.String("meeting_id", meetingID.String()),
		zap.String("analysis_id", analysis.ID.String()),
		zap.Int("segments", len(raw.Segments)),
		zap.Int("action_items", len(doc.ActionItems)),
		zap.Int("processing_ms", processingMs),
		zap.Float64("confidence", confidence))

	return analysis.ID, nil
}

// run executes the fallible stages. Every returned error is an AppError that
// identifies the stage that failed.
func (s *Service) run(ctx context.Context, analysisID uuid.UUID, audioPath, language string) (*entities.AnalysisDocument, *entities.RawTranscript, *entities.TokenUsage, error) {
	audio, size, err := s.store.Download(ctx, audioPath)
	if err != nil {
		return nil, nil, nil, apperrors.ErrAudioDownloadFailed(err)
	}
	// Buffer the object so transcription retries can rewind.
	data, err := io.ReadAll(audio)
	_ = audio.Close()
	if err != nil {
		return nil, nil, nil, apperrors.ErrAudioDownloadFailed(err)
	}
	s.logger.Debug("Audio downloaded",
		zap.String("audio_path", audioPath),
		zap.Int64("size", size))

	var raw *entities.RawTranscript
	err = backoff.Retry(func() error {
		var tErr error
		raw, tErr = s.transcriber.Transcribe(ctx, bytes.NewReader(data), path.Base(audioPath), language)
		if tErr == nil {
			return nil
		}
		switch apperrors.CodeOf(tErr) {
		case apperrors.ErrorCode_TRANSCRIPTION_QUOTA_EXCEEDED, apperrors.ErrorCode_TRANSCRIPTION_AUTH_FAILED:
			// Retrying cannot fix billing or credentials.
			return backoff.Permanent(tErr)
		}
		return tErr
	}, s.newBackoff(ctx))
	if err != nil {
		return nil, nil, nil, err
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, nil, nil, apperrors.ErrPersistenceFailed(err)
	}
	// Checkpoint so a failed extraction still leaves the transcript behind.
	if err := s.analyses.SaveRawTranscript(ctx, analysisID, datatypes.JSON(rawJSON)); err != nil {
		return nil, nil, nil, apperrors.ErrPersistenceFailed(err)
	}

	var extracted *openai.ExtractionResult
	err = backoff.Retry(func() error {
		var eErr error
		extracted, eErr = s.extractor.Extract(ctx, raw.Segments)
		return eErr
	}, s.newBackoff(ctx))
	if err != nil {
		return nil, nil, nil, apperrors.ErrExtractionRequestFailed(err)
	}

	doc, err := s.normalizer.Normalize(extracted.RawContent)
	if err != nil {
		return nil, nil, nil, err
	}

	tokens := &entities.TokenUsage{
		TranscriptionTokens: len(raw.Segments),
		AnalysisTokens:      extracted.TotalTokens,
	}
	return doc, raw, tokens, nil
}

func (s *Service) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// fail records the failure on both state machines and returns the AppError
// the HTTP boundary should report.
func (s *Service) fail(ctx context.Context, meetingID, analysisID uuid.UUID, err error) error {
	var appErr apperrors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = apperrors.ErrProcessingFailed(err)
	}

	s.logger.Error("Pipeline run failed",
		zap.String("meeting_id", meetingID.String()),
		zap.String("analysis_id", analysisID.String()),
		zap.String("code", appErr.Code.String()),
		zap.Error(err))

	if failErr := s.propagator.AnalysisFailed(ctx, meetingID, analysisID, appErr.Error()); failErr != nil {
		s.logger.Error("Failed to mark analysis failed",
			zap.String("analysis_id", analysisID.String()),
			zap.Error(failErr))
	}
	if failErr := s.propagator.MeetingFailed(ctx, meetingID, appErr.Message); failErr != nil {
		s.logger.Error("Failed to mark meeting failed",
			zap.String("meeting_id", meetingID.String()),
			zap.Error(failErr))
	}
	return appErr
}

// insertDerivedRows projects the document into queryable rows. Failures are
// logged and swallowed; analysis_json already holds the full result.
func (s *Service) insertDerivedRows(ctx context.Context, analysisID uuid.UUID, doc *entities.AnalysisDocument) {
	if len(doc.TranscriptSegments) > 0 {
		segments := make([]entities.TranscriptSegment, 0, len(doc.TranscriptSegments))
		for _, segment := range doc.TranscriptSegments {
			segments = append(segments, entities.TranscriptSegment{
				ID:         uuid.New(),
				AnalysisID: analysisID,
				Speaker:    segment.Speaker,
				StartSec:   segment.Start,
				EndSec:     segment.End,
				Text:       segment.Text,
				Confidence: segment.Confidence,
			})
		}
		if err := s.analyses.InsertSegments(ctx, segments); err != nil {
			s.logger.Warn("Failed to insert transcript segment rows",
				zap.String("analysis_id", analysisID.String()),
				zap.Error(err))
		}
	}

	if len(doc.ActionItems) > 0 {
		items := make([]entities.ActionItem, 0, len(doc.ActionItems))
		for _, item := range doc.ActionItems {
			row := entities.ActionItem{
				ID:         uuid.New(),
				AnalysisID: analysisID,
				Text:       item.Text,
				Owner:      item.Owner,
				Priority:   item.Priority,
				Confidence: item.Confidence,
			}
			ts := item.Timestamp
			row.TimestampSec = &ts
			if item.DueDate != nil {
				if due, err := time.Parse("2006-01-02", *item.DueDate); err == nil {
					row.DueDate = &due
				}
			}
			items = append(items, row)
		}
		if err := s.analyses.InsertActionItems(ctx, items); err != nil {
			s.logger.Warn("Failed to insert action item rows",
				zap.String("analysis_id", analysisID.String()),
				zap.Error(err))
		}
	}
}

// documentConfidence is the mean confidence of the normalized transcript
// segments, defaulting when the document carries none.
func documentConfidence(doc *entities.AnalysisDocument) float64 {
	if len(doc.TranscriptSegments) == 0 {
		return 0.9
	}
	var sum float64
	for _, segment := range doc.TranscriptSegments {
		sum += segment.Confidence
	}
	return sum / float64(len(doc.TranscriptSegments))
}
