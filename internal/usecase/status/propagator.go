package status

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/johnquangdev/meeting-insights/errors"
	"github.com/johnquangdev/meeting-insights/internal/domain/entities"
	"github.com/johnquangdev/meeting-insights/internal/domain/repositories"
)

// Propagator applies status transitions to meetings and analyses and
// publishes an event for each one. Status writes go through here so the
// two state machines stay consistent with the feed.
type Propagator struct {
	meetings repositories.MeetingRepository
	analyses repositories.AnalysisRepository
	feed     Feed
	logger   *zap.Logger
}

func NewPropagator(
	meetings repositories.MeetingRepository,
	analyses repositories.AnalysisRepository,
	feed Feed,
	logger *zap.Logger,
) *Propagator {
	return &Propagator{
		meetings: meetings,
		analyses: analyses,
		feed:     feed,
		logger:   logger,
	}
}

// MeetingProcessing announces a successful claim. The row was already
// flipped by ClaimForProcessing, so this only publishes.
func (p *Propagator) MeetingProcessing(ctx context.Context, meetingID uuid.UUID) {
	p.publish(ctx, Event{
		MeetingID: meetingID,
		Entity:    EntityMeeting,
		Status:    string(entities.MeetingStatusProcessing),
	})
}

// AnalysisProcessing announces a freshly created analysis row.
func (p *Propagator) AnalysisProcessing(ctx context.Context, meetingID, analysisID uuid.UUID) {
	p.publish(ctx, Event{
		MeetingID:  meetingID,
		AnalysisID: &analysisID,
		Entity:     EntityAnalysis,
		Status:     string(entities.AnalysisStatusProcessing),
	})
}

// AnalysisReady announces a completed analysis. The ready row itself is
// written by the pipeline together with the document payload.
func (p *Propagator) AnalysisReady(ctx context.Context, meetingID, analysisID uuid.UUID) {
	p.publish(ctx, Event{
		MeetingID:  meetingID,
		AnalysisID: &analysisID,
		Entity:     EntityAnalysis,
		Status:     string(entities.AnalysisStatusReady),
	})
}

// AnalysisFailed records the failure reason on the analysis row and
// publishes the transition.
func (p *Propagator) AnalysisFailed(ctx context.Context, meetingID, analysisID uuid.UUID, reason string) error {
	if err := p.analyses.Fail(ctx, analysisID, reason); err != nil {
		return apperrors.ErrPersistenceFailed(err)
	}
	p.publish(ctx, Event{
		MeetingID:  meetingID,
		AnalysisID: &analysisID,
		Entity:     EntityAnalysis,
		Status:     string(entities.AnalysisStatusFailed),
		Error:      reason,
	})
	return nil
}

// MeetingCompleted moves a meeting processing -> completed.
func (p *Propagator) MeetingCompleted(ctx context.Context, meetingID uuid.UUID) error {
	return p.transitionMeeting(ctx, meetingID, entities.MeetingStatusCompleted, "")
}

// MeetingFailed moves a meeting processing -> failed.
func (p *Propagator) MeetingFailed(ctx context.Context, meetingID uuid.UUID, reason string) error {
	return p.transitionMeeting(ctx, meetingID, entities.MeetingStatusFailed, reason)
}

func (p *Propagator) transitionMeeting(ctx context.Context, meetingID uuid.UUID, to entities.MeetingStatus, reason string) error {
	meeting, err := p.meetings.FindByID(ctx, meetingID)
	if err != nil {
		return apperrors.ErrPersistenceFailed(err)
	}
	if meeting == nil {
		return apperrors.ErrMeetingNotFound()
	}
	// Terminal states are final. A late failure report must not overwrite
	// completed, and vice versa.
	if meeting.Status.IsTerminal() {
		return apperrors.ErrInvalidStatusTransition(string(meeting.Status), string(to))
	}
	if err := p.meetings.UpdateStatus(ctx, meetingID, to); err != nil {
		return apperrors.ErrPersistenceFailed(err)
	}
	p.publish(ctx, Event{
		MeetingID: meetingID,
		Entity:    EntityMeeting,
		Status:    string(to),
		Error:     reason,
	})
	return nil
}

// publish is best-effort: a feed outage must not fail the pipeline run
// that triggered the event, because the row is already written.
func (p *Propagator) publish(ctx context.Context, event Event) {
	event.Timestamp = time.Now().UTC()
	if err := p.feed.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish status event",
			zap.String("meeting_id", event.MeetingID.String()),
			zap.String("entity", string(event.Entity)),
			zap.String("status", event.Status),
			zap.Error(err))
	}
}
