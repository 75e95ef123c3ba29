package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/internal/infrastructure/external/openai"
	"github.com/johnquangdev/meeting-insights/internal/usecase/status"
)

type fakeMeetingRepo struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*entities.Meeting
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{meetings: make(map[uuid.UUID]*entities.Meeting)}
}

func (r *fakeMeetingRepo) Create(ctx context.Context, meeting *entities.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[meeting.ID] = meeting
	return nil
}

func (r *fakeMeetingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	copied := *meeting
	return &copied, nil
}

func (r *fakeMeetingRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Meeting
	for _, meeting := range r.meetings {
		if meeting.OwnerID == ownerID {
			copied := *meeting
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeMeetingRepo) SetAudio(ctx context.Context, id uuid.UUID, audioPath string, audioSize int64, durationSeconds *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting := r.meetings[id]
	meeting.AudioPath = &audioPath
	meeting.AudioSize = &audioSize
	meeting.DurationSeconds = durationSeconds
	return nil
}

func (r *fakeMeetingRepo) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[id]
	if !ok || meeting.Status != entities.MeetingStatusUploaded {
		return false, nil
	}
	meeting.Status = entities.MeetingStatusProcessing
	return true, nil
}

func (r *fakeMeetingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, st entities.MeetingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[id].Status = st
	return nil
}

type fakeAnalysisRepo struct {
	mu              sync.Mutex
	analyses        map[uuid.UUID]*entities.Analysis
	segments        []entities.TranscriptSegment
	actionItems     []entities.ActionItem
	failInsertItems bool
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{analyses: make(map[uuid.UUID]*entities.Analysis)}
}

func (r *fakeAnalysisRepo) Create(ctx context.Context, analysis *entities.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *analysis
	r.analyses[analysis.ID] = &copied
	return nil
}

func (r *fakeAnalysisRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[id]
	if !ok {
		return nil, nil
	}
	copied := *analysis
	return &copied, nil
}

func (r *fakeAnalysisRepo) FindLatestByMeetingID(ctx context.Context, meetingID uuid.UUID) (*entities.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *entities.Analysis
	for _, analysis := range r.analyses {
		if analysis.MeetingID == meetingID {
			if latest == nil || analysis.CreatedAt.After(latest.CreatedAt) {
				latest = analysis
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeAnalysisRepo) SaveRawTranscript(ctx context.Context, id uuid.UUID, raw datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyses[id].RawTranscript = raw
	return nil
}

func (r *fakeAnalysisRepo) Complete(ctx context.Context, id uuid.UUID, doc datatypes.JSON, confidence float64, tokenUsage datatypes.JSON, processingTimeMs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis := r.analyses[id]
	analysis.Status = entities.AnalysisStatusReady
	analysis.AnalysisJSON = doc
	analysis.ConfidenceScore = confidence
	analysis.TokenUsage = tokenUsage
	analysis.ProcessingTimeMs = &processingTimeMs
	return nil
}

func (r *fakeAnalysisRepo) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis := r.analyses[id]
	analysis.Status = entities.AnalysisStatusFailed
	analysis.ErrorMessage = &errorMessage
	return nil
}

func (r *fakeAnalysisRepo) InsertSegments(ctx context.Context, segments []entities.TranscriptSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, segments...)
	return nil
}

func (r *fakeAnalysisRepo) InsertActionItems(ctx context.Context, items []entities.ActionItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsertItems {
		return fmt.Errorf("simulated insert failure")
	}
	r.actionItems = append(r.actionItems, items...)
	return nil
}

func (r *fakeAnalysisRepo) ListSegments(ctx context.Context, analysisID uuid.UUID) ([]*entities.TranscriptSegment, error) {
	return nil, nil
}

func (r *fakeAnalysisRepo) ListActionItems(ctx context.Context, analysisID uuid.UUID) ([]*entities.ActionItem, error) {
	return nil, nil
}

func (r *fakeAnalysisRepo) SetActionItemCompleted(ctx context.Context, id uuid.UUID, completed bool) (*entities.ActionItem, error) {
	return nil, nil
}

type fakeStore struct {
	data    []byte
	failErr error
}

func (s *fakeStore) Download(ctx context.Context, objectName string) (io.ReadCloser, int64, error) {
	if s.failErr != nil {
		return nil, 0, s.failErr
	}
	return io.NopCloser(bytes.NewReader(s.data)), int64(len(s.data)), nil
}

func (s *fakeStore) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	return nil
}

type fakeTranscriber struct {
	raw   *entities.RawTranscript
	err   error
	calls int
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audio io.Reader, fileName, language string) (*entities.RawTranscript, error) {
	t.calls++
	if t.err != nil {
		return nil, t.err
	}
	return t.raw, nil
}

type fakeExtractor struct {
	result *openai.ExtractionResult
	err    error
}

func (e *fakeExtractor) Extract(ctx context.Context, segments []entities.WhisperSegment) (*openai.ExtractionResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type fixture struct {
	service  *Service
	meetings *fakeMeetingRepo
	analyses *fakeAnalysisRepo
	feed     *status.MemoryFeed
	meeting  *entities.Meeting
}

func newFixture(t *testing.T, transcriber Transcriber, extractor Extractor, store *fakeStore) *fixture {
	t.Helper()

	meetings := newFakeMeetingRepo()
	analyses := newFakeAnalysisRepo()
	feed := status.NewMemoryFeed()
	logger := zap.NewNop()
	propagator := status.NewPropagator(meetings, analyses, feed, logger)

	meeting := entities.NewMeeting(uuid.New(), "Weekly sync", "en")
	audioPath := "meetings/" + meeting.ID.String() + "/audio.mp3"
	meeting.AudioPath = &audioPath
	require.NoError(t, meetings.Create(context.Background(), meeting))

	service := NewService(meetings, analyses, store, transcriber, extractor, propagator, "gpt-4o-mini", "en", logger)
	return &fixture{
		service:  service,
		meetings: meetings,
		analyses: analyses,
		feed:     feed,
		meeting:  meeting,
	}
}

func testTranscript() *entities.RawTranscript {
	return &entities.RawTranscript{
		Text:     "Hello everyone. Let's plan the launch. Alice sends the checklist.",
		Language: "en",
		Duration: 42,
		Segments: []entities.WhisperSegment{
			{ID: 0, Start: 0, End: 10, Text: "Hello everyone."},
			{ID: 1, Start: 10, End: 25, Text: "Let's plan the launch."},
			{ID: 2, Start: 25, End: 42, Text: "Alice sends the checklist."},
		},
	}
}

func testModelOutput() string {
	return `{
		"summary": "The team planned the launch.",
		"action_items": [
			{"id": "a1", "text": "Send the checklist", "owner": "Alice", "timestamp": 30, "due_date": "2026-09-04", "confidence": 0.9, "priority": "high"},
			{"id": "a2", "text": "Schedule dry run", "owner": "Bob", "timestamp": 35, "due_date": null, "confidence": 0.7, "priority": "medium"}
		],
		"timeline_events": [{"id": "t1", "time": 10, "title": "Launch planning", "description": "Discussion started", "importance": 0.8}],
		"sentiment": [{"time": 0, "value": 0.4}],
		"speakers": [{"name": "Alice", "speaking_time_seconds": 25, "speaking_percentage": 60}],
		"transcript_segments": [
			{"id": "s1", "speaker": "Alice", "start": 0, "end": 10, "text": "Hello everyone.", "confidence": 0.8},
			{"id": "s2", "speaker": "Alice", "start": 10, "end": 25, "text": "Let's plan the launch.", "confidence": 0.9},
			{"id": "s3", "speaker": "Bob", "start": 25, "end": 42, "text": "Alice sends the checklist.", "confidence": 0.7}
		]
	}`
}

func TestProcessMeeting_HappyPath(t *testing.T) {
	transcriber := &fakeTranscriber{raw: testTranscript()}
	extractor := &fakeExtractor{result: &openai.ExtractionResult{
		RawContent:  testModelOutput(),
		TotalTokens: 512,
		Model:       "gpt-4o-mini",
	}}
	fx := newFixture(t, transcriber, extractor, &fakeStore{data: []byte("fake-audio")})

	ctx := context.Background()
	events, cancel, err := fx.feed.Subscribe(ctx, fx.meeting.ID)
	require.NoError(t, err)
	defer cancel()

	analysisID, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, analysisID)

	meeting, err := fx.meetings.FindByID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusCompleted, meeting.Status)

	analysis, err := fx.analyses.FindByID(ctx, analysisID)
	require.NoError(t, err)
	assert.Equal(t, entities.AnalysisStatusReady, analysis.Status)
	assert.NotEmpty(t, analysis.RawTranscript)
	require.NotNil(t, analysis.ProcessingTimeMs)

	var doc entities.AnalysisDocument
	require.NoError(t, json.Unmarshal(analysis.AnalysisJSON, &doc))
	assert.Equal(t, "The team planned the launch.", doc.Summary)
	assert.Len(t, doc.ActionItems, 2)
	assert.Len(t, doc.TranscriptSegments, 3)

	var usage entities.TokenUsage
	require.NoError(t, json.Unmarshal(analysis.TokenUsage, &usage))
	assert.Equal(t, 3, usage.TranscriptionTokens)
	assert.Equal(t, 512, usage.AnalysisTokens)

	// Mean of the three segment confidences.
	assert.InDelta(t, 0.8, analysis.ConfidenceScore, 1e-9)

	assert.Len(t, fx.analyses.segments, 3)
	assert.Len(t, fx.analyses.actionItems, 2)

	cancel()
	var statuses []string
	for event := range events {
		statuses = append(statuses, string(event.Entity)+":"+event.Status)
	}
	assert.Equal(t, []string{
		"meeting:processing",
		"analysis:processing",
		"analysis:ready",
		"meeting:completed",
	}, statuses)
}

func TestProcessMeeting_MeetingNotFound(t *testing.T) {
	fx := newFixture(t, &fakeTranscriber{raw: testTranscript()}, &fakeExtractor{}, &fakeStore{})

	_, err := fx.service.ProcessMeeting(context.Background(), uuid.New(), "meetings/none/audio.mp3")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_MEETING_NOT_FOUND, apperrors.CodeOf(err))
}

func TestProcessMeeting_RejectsDuplicateInvocation(t *testing.T) {
	transcriber := &fakeTranscriber{raw: testTranscript()}
	extractor := &fakeExtractor{result: &openai.ExtractionResult{RawContent: testModelOutput()}}
	fx := newFixture(t, transcriber, extractor, &fakeStore{data: []byte("fake-audio")})

	ctx := context.Background()
	fx.meeting.Status = entities.MeetingStatusProcessing
	require.NoError(t, fx.meetings.Create(ctx, fx.meeting))

	_, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_ANALYSIS_IN_PROGRESS, apperrors.CodeOf(err))

	// The losing invocation must not have created an analysis.
	assert.Empty(t, fx.analyses.analyses)
}

func TestProcessMeeting_QuotaErrorIsNotRetried(t *testing.T) {
	transcriber := &fakeTranscriber{err: apperrors.ErrTranscriptionQuotaExceeded(fmt.Errorf("insufficient_quota"))}
	fx := newFixture(t, transcriber, &fakeExtractor{}, &fakeStore{data: []byte("fake-audio")})

	ctx := context.Background()
	_, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_TRANSCRIPTION_QUOTA_EXCEEDED, apperrors.CodeOf(err))
	assert.Equal(t, 1, transcriber.calls)

	meeting, err := fx.meetings.FindByID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusFailed, meeting.Status)

	analysis, err := fx.analyses.FindLatestByMeetingID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, entities.AnalysisStatusFailed, analysis.Status)
	require.NotNil(t, analysis.ErrorMessage)
	assert.Contains(t, *analysis.ErrorMessage, "quota")
}

func TestProcessMeeting_MalformedModelOutput(t *testing.T) {
	transcriber := &fakeTranscriber{raw: testTranscript()}
	extractor := &fakeExtractor{result: &openai.ExtractionResult{RawContent: "not json at all"}}
	fx := newFixture(t, transcriber, extractor, &fakeStore{data: []byte("fake-audio")})

	ctx := context.Background()
	_, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_EXTRACTION_PARSE_FAILED, apperrors.CodeOf(err))

	// Nothing was projected into derived rows.
	assert.Empty(t, fx.analyses.segments)
	assert.Empty(t, fx.analyses.actionItems)

	// The transcript checkpoint from the earlier stage survives the failure.
	analysis, err := fx.analyses.FindLatestByMeetingID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.Equal(t, entities.AnalysisStatusFailed, analysis.Status)
	assert.NotEmpty(t, analysis.RawTranscript)
}

func TestProcessMeeting_DownloadFailure(t *testing.T) {
	store := &fakeStore{failErr: fmt.Errorf("object not found")}
	fx := newFixture(t, &fakeTranscriber{raw: testTranscript()}, &fakeExtractor{}, store)

	ctx := context.Background()
	_, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_PIPELINE_DOWNLOAD_FAILED, apperrors.CodeOf(err))

	meeting, err := fx.meetings.FindByID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusFailed, meeting.Status)
}

func TestProcessMeeting_DerivedRowFailureKeepsAnalysisReady(t *testing.T) {
	transcriber := &fakeTranscriber{raw: testTranscript()}
	extractor := &fakeExtractor{result: &openai.ExtractionResult{
		RawContent:  testModelOutput(),
		TotalTokens: 100,
	}}
	fx := newFixture(t, transcriber, extractor, &fakeStore{data: []byte("fake-audio")})
	fx.analyses.failInsertItems = true

	ctx := context.Background()
	analysisID, err := fx.service.ProcessMeeting(ctx, fx.meeting.ID, *fx.meeting.AudioPath)
	require.NoError(t, err)

	analysis, err := fx.analyses.FindByID(ctx, analysisID)
	require.NoError(t, err)
	assert.Equal(t, entities.AnalysisStatusReady, analysis.Status)

	meeting, err := fx.meetings.FindByID(ctx, fx.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusCompleted, meeting.Status)

	assert.Len(t, fx.analyses.segments, 3)
	assert.Empty(t, fx.analyses.actionItems)
}
