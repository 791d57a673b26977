package conf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const envPrefix = "MOUNTFLOW_"

var konf = koanf.New(".")
var logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

var defaultConfigPaths = []string{
	"config.local.toml",
	"config.toml",
	"~/mountflow/config.toml",
	"/etc/mountflow/config.toml",
}

// LoadConfig loads the first config file found and then
// overlays any MOUNTFLOW_ prefixed environment variables.
func LoadConfig() error {
	var paths []string
	userConfig := os.Getenv(envPrefix + "CONFIG")
	if userConfig != "" {
		paths = []string{userConfig}
	} else {
		paths = defaultConfigPaths
	}
	loaded := false
	for _, f := range paths {
		err := konf.Load(file.Provider(f), toml.Parser())
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "error loading config from %s", f)
		}
		logger.Info().Msgf("Config loaded from %s", f)
		loaded = true
		break
	}
	if err := konf.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return errors.Wrapf(err, "error loading config from env")
	}
	if loaded {
		return nil
	}
	errMsg := fmt.Sprintf("could not find config file in any of the following paths: %s", strings.Join(paths, ","))
	if userConfig != "" {
		return errors.New(errMsg)
	}
	logger.Debug().Msg(errMsg)
	return nil
}

// Set overrides a single key. Mainly used by CLI flags and tests.
func Set(key string, value any) error {
	return konf.Set(key, value)
}

func Unmarshal(key string, o any) error {
	return konf.Unmarshal(key, o)
}

func BoolMap(key string) map[string]bool {
	return konf.BoolMap(key)
}

func StringMap(key string) map[string]string {
	return konf.StringMap(key)
}

func Strings(key string) []string {
	return konf.Strings(key)
}

func StringsDefault(key string, dv []string) []string {
	v := konf.Get(key)
	if v == nil {
		return dv
	}
	return konf.Strings(key)
}

func IntDefault(key string, dv int) int {
	v := konf.Get(key)
	if v == nil {
		return dv
	}
	return konf.Int(key)
}

func String(key string) string {
	return konf.String(key)
}

func StringDefault(key, dv string) string {
	v := String(key)
	if v != "" {
		return v
	}
	return dv
}

func Bool(key string) bool {
	return konf.Bool(key)
}

func BoolDefault(key string, dv bool) bool {
	v := konf.Get(key)
	if v == nil {
		return dv
	}
	return Bool(key)
}

func DurationDefault(key string, dv time.Duration) time.Duration {
	v := konf.Get(key)
	if v == nil {
		return dv
	}
	return konf.Duration(key)
}
