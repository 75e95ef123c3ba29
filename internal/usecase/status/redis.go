package status

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed propagates status events over Redis pub/sub so subscribers on
// any node observe runs executed on any other node.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		logger: logger,
	}
}

// Publish sends the event to the meeting's channel. Redis pub/sub drops
// messages for channels with no subscribers, which is fine here: status
// events are a live feed, not a durable log, and the database rows remain
// the source of truth.
func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, channelName(event.MeetingID), payload).Err()
}

// Subscribe opens a Redis subscription for one meeting and forwards decoded
// events until cancel is called or ctx ends.
func (f *RedisFeed) Subscribe(ctx context.Context, meetingID uuid.UUID) (<-chan Event, func(), error) {
	sub := f.client.Subscribe(ctx, channelName(meetingID))

	// Force the SUBSCRIBE round trip now so a broken connection surfaces
	// to the caller instead of a silently empty channel.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	events := make(chan Event, 8)
	done := make(chan struct{})

	go func() {
		defer close(events)
		src := sub.Channel()
		for {
			select {
			case msg, ok := <-src:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("Dropping undecodable status event",
						zap.String("meeting_id", meetingID.String()),
						zap.Error(err))
					continue
				}
				select {
				case events <- event:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	return events, cancel, nil
}
