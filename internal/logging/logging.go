package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow/conf"
)

// SetupLogging configures the global zerolog logger from the
// logging.level and logging.format config keys.
func SetupLogging() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := parseLevel(conf.StringDefault("logging.level", "debug"))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	logger, err := newLogger(conf.StringDefault("logging.format", "pretty"), os.Stderr)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, errors.Errorf("invalid logging level: %s", s)
	}
}

func newLogger(format string, out io.Writer) (zerolog.Logger, error) {
	switch strings.ToLower(format) {
	case "pretty":
		return log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}), nil
	case "json":
		return zerolog.New(out).With().Timestamp().Logger(), nil
	default:
		return zerolog.Nop(), errors.Errorf("invalid logging format: %s", format)
	}
}
