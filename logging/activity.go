package logging

import (
	"context"
	"time"

	auth "github.com/epik-app/go-auth"
)

const defaultActorID = "system"

// ActivitySink writes activity events as structured info entries.
type ActivitySink struct {
	l *Zap
}

// NewActivitySink logs events through l under an "activity" channel.
func NewActivitySink(l *Zap) *ActivitySink {
	return &ActivitySink{l: l.With("channel", "activity")}
}

// Record implements auth.ActivitySink.
func (s *ActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	actorID := event.Actor.ID
	if actorID == "" {
		actorID = event.UserID
	}
	if actorID == "" {
		actorID = defaultActorID
	}

	args := []any{
		"verb", string(event.EventType),
		"actor_id", actorID,
		"occurred_at", event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.Actor.Type != "" {
		args = append(args, "actor_type", event.Actor.Type)
	}
	if event.UserID != "" {
		args = append(args, "user_id", event.UserID)
	}
	if len(event.Metadata) > 0 {
		args = append(args, "metadata", event.Metadata)
	}

	s.l.Info("activity", args...)
	return nil
}
