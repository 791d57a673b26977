package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink writes notifications to the log.
type LogSink struct{}

func (LogSink) Success(ctx context.Context, msg string) {
	log.Info().Str("level", "success").Msg(msg)
}

func (LogSink) Danger(ctx context.Context, msg string) {
	log.Error().Str("level", "danger").Msg(msg)
}
