package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
)

type stubMeetingRepo struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*entities.Meeting
}

func newStubMeetingRepo(meetings ...*entities.Meeting) *stubMeetingRepo {
	repo := &stubMeetingRepo{meetings: make(map[uuid.UUID]*entities.Meeting)}
	for _, meeting := range meetings {
		repo.meetings[meeting.ID] = meeting
	}
	return repo
}

func (r *stubMeetingRepo) Create(ctx context.Context, meeting *entities.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[meeting.ID] = meeting
	return nil
}

func (r *stubMeetingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting, ok := r.meetings[id]
	if !ok {
		return nil, nil
	}
	copied := *meeting
	return &copied, nil
}

func (r *stubMeetingRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Meeting, error) {
	return nil, nil
}

func (r *stubMeetingRepo) SetAudio(ctx context.Context, id uuid.UUID, audioPath string, audioSize int64, durationSeconds *int) error {
	return nil
}

func (r *stubMeetingRepo) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (r *stubMeetingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, st entities.MeetingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[id].Status = st
	return nil
}

type stubAnalysisRepo struct {
	mu     sync.Mutex
	failed map[uuid.UUID]string
}

func newStubAnalysisRepo() *stubAnalysisRepo {
	return &stubAnalysisRepo{failed: make(map[uuid.UUID]string)}
}

func (r *stubAnalysisRepo) Create(ctx context.Context, analysis *entities.Analysis) error { return nil }
func (r *stubAnalysisRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Analysis, error) {
	return nil, nil
}
func (r *stubAnalysisRepo) FindLatestByMeetingID(ctx context.Context, meetingID uuid.UUID) (*entities.Analysis, error) {
	return nil, nil
}
func (r *stubAnalysisRepo) SaveRawTranscript(ctx context.Context, id uuid.UUID, raw datatypes.JSON) error {
	return nil
}
func (r *stubAnalysisRepo) Complete(ctx context.Context, id uuid.UUID, doc datatypes.JSON, confidence float64, tokenUsage datatypes.JSON, processingTimeMs int) error {
	return nil
}

func (r *stubAnalysisRepo) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[id] = errorMessage
	return nil
}

func (r *stubAnalysisRepo) InsertSegments(ctx context.Context, segments []entities.TranscriptSegment) error {
	return nil
}
func (r *stubAnalysisRepo) InsertActionItems(ctx context.Context, items []entities.ActionItem) error {
	return nil
}
func (r *stubAnalysisRepo) ListSegments(ctx context.Context, analysisID uuid.UUID) ([]*entities.TranscriptSegment, error) {
	return nil, nil
}
func (r *stubAnalysisRepo) ListActionItems(ctx context.Context, analysisID uuid.UUID) ([]*entities.ActionItem, error) {
	return nil, nil
}
func (r *stubAnalysisRepo) SetActionItemCompleted(ctx context.Context, id uuid.UUID, completed bool) (*entities.ActionItem, error) {
	return nil, nil
}

func TestPropagator_MeetingCompleted(t *testing.T) {
	meeting := entities.NewMeeting(uuid.New(), "Planning", "en")
	meeting.Status = entities.MeetingStatusProcessing
	meetings := newStubMeetingRepo(meeting)
	feed := NewMemoryFeed()
	p := NewPropagator(meetings, newStubAnalysisRepo(), feed, zap.NewNop())

	ctx := context.Background()
	events, cancel, err := feed.Subscribe(ctx, meeting.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, p.MeetingCompleted(ctx, meeting.ID))

	stored, err := meetings.FindByID(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusCompleted, stored.Status)

	event := <-events
	assert.Equal(t, EntityMeeting, event.Entity)
	assert.Equal(t, string(entities.MeetingStatusCompleted), event.Status)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPropagator_RejectsTerminalTransition(t *testing.T) {
	meeting := entities.NewMeeting(uuid.New(), "Planning", "en")
	meeting.Status = entities.MeetingStatusCompleted
	meetings := newStubMeetingRepo(meeting)
	p := NewPropagator(meetings, newStubAnalysisRepo(), NewMemoryFeed(), zap.NewNop())

	ctx := context.Background()
	err := p.MeetingFailed(ctx, meeting.ID, "late failure report")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode_INVALID_STATUS_TRANSITION, apperrors.CodeOf(err))

	// The terminal status is untouched.
	stored, err := meetings.FindByID(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.MeetingStatusCompleted, stored.Status)
}

func TestPropagator_AnalysisFailedRecordsReason(t *testing.T) {
	meeting := entities.NewMeeting(uuid.New(), "Planning", "en")
	meetings := newStubMeetingRepo(meeting)
	analyses := newStubAnalysisRepo()
	feed := NewMemoryFeed()
	p := NewPropagator(meetings, analyses, feed, zap.NewNop())

	ctx := context.Background()
	events, cancel, err := feed.Subscribe(ctx, meeting.ID)
	require.NoError(t, err)
	defer cancel()

	analysisID := uuid.New()
	require.NoError(t, p.AnalysisFailed(ctx, meeting.ID, analysisID, "transcription failed"))

	assert.Equal(t, "transcription failed", analyses.failed[analysisID])

	event := <-events
	assert.Equal(t, EntityAnalysis, event.Entity)
	assert.Equal(t, string(entities.AnalysisStatusFailed), event.Status)
	assert.Equal(t, "transcription failed", event.Error)
	require.NotNil(t, event.AnalysisID)
	assert.Equal(t, analysisID, *event.AnalysisID)
}

func TestMemoryFeed_DeliversInOrder(t *testing.T) {
	feed := NewMemoryFeed()
	meetingID := uuid.New()
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, meetingID)
	require.NoError(t, err)

	for _, st := range []string{"processing", "ready", "completed"} {
		require.NoError(t, feed.Publish(ctx, Event{MeetingID: meetingID, Entity: EntityMeeting, Status: st}))
	}

	cancel()
	var got []string
	for event := range events {
		got = append(got, event.Status)
	}
	assert.Equal(t, []string{"processing", "ready", "completed"}, got)
}

func TestMemoryFeed_CancelReleasesBlockedPublisher(t *testing.T) {
	feed := NewMemoryFeed()
	meetingID := uuid.New()
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, meetingID)
	require.NoError(t, err)

	// Fill the subscriber buffer without draining it.
	for i := 0; i < cap(events); i++ {
		require.NoError(t, feed.Publish(ctx, Event{MeetingID: meetingID, Entity: EntityMeeting, Status: "processing"}))
	}

	published := make(chan error, 1)
	go func() {
		published <- feed.Publish(ctx, Event{MeetingID: meetingID, Entity: EntityMeeting, Status: "overflow"})
	}()

	// The publisher is stuck on the full buffer; cancelling the
	// subscription must release it rather than deadlock.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("publisher still blocked after subscription cancel")
	}

	var drained int
	for range events {
		drained++
	}
	assert.Equal(t, cap(events), drained)
}

func TestMemoryFeed_IsolatesMeetings(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()

	events, cancel, err := feed.Subscribe(ctx, first)
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, Event{MeetingID: second, Entity: EntityMeeting, Status: "processing"}))
	require.NoError(t, feed.Publish(ctx, Event{MeetingID: first, Entity: EntityMeeting, Status: "completed"}))

	cancel()
	var got []string
	for event := range events {
		got = append(got, event.Status)
	}
	assert.Equal(t, []string{"completed"}, got)
}
