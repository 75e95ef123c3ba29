package status

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entity names which record a status event describes.
type Entity string

const (
	EntityMeeting  Entity = "meeting"
	EntityAnalysis Entity = "analysis"
)

// Event is one observable status change. Events for a single meeting are
// published in order by the single pipeline run that owns its rows; no
// ordering holds across unrelated meetings. Delivery is at-least-once.
type Event struct {
	MeetingID  uuid.UUID  `json:"meeting_id"`
	AnalysisID *uuid.UUID `json:"analysis_id,omitempty"`
	Entity     Entity     `json:"entity"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Feed is a push-based change-notification channel keyed by meeting id.
type Feed interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events for one meeting and a cancel
	// function that releases the subscription and closes the channel.
	Subscribe(ctx context.Context, meetingID uuid.UUID) (<-chan Event, func(), error)
}

func channelName(meetingID uuid.UUID) string {
	return "meeting-insights:meeting:" + meetingID.String() + ":status"
}
