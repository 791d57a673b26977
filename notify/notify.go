// Package notify delivers the user-facing messages of the
// mount workflow.
package notify

import (
	"context"
	"time"

	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/uuid"
)

type Sink interface {
	Success(ctx context.Context, msg string)
	Danger(ctx context.Context, msg string)
}

func newNotification(level mountflow.NotificationLevel, msg string) *mountflow.Notification {
	return &mountflow.Notification{
		ID:        uuid.NewUUID(),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	}
}

// Multi fans every notification out to all of the given sinks.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Success(ctx context.Context, msg string) {
	for _, s := range m {
		s.Success(ctx, msg)
	}
}

func (m multi) Danger(ctx context.Context, msg string) {
	for _, s := range m {
		s.Danger(ctx, msg)
	}
}
