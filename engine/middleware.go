package engine

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/internal/uuid"
	"github.com/runabol/mountflow/internal/wildcard"
	"golang.org/x/time/rate"
)

func echoMiddleware() []echo.MiddlewareFunc {
	mw := make([]echo.MiddlewareFunc, 0)
	if conf.Bool("middleware.web.cors.enabled") {
		mw = append(mw, cors())
	}
	if conf.Bool("middleware.web.basicauth.enabled") {
		username := conf.StringDefault("middleware.web.basicauth.username", "mountflow")
		password := conf.String("middleware.web.basicauth.password")
		mw = append(mw, basicAuth(username, password))
	}
	if conf.Bool("middleware.web.ratelimit.enabled") {
		rps := conf.IntDefault("middleware.web.ratelimit.rps", 20)
		mw = append(mw, rateLimit(rps))
	}
	if conf.BoolDefault("middleware.web.logger.enabled", true) {
		mw = append(mw, logger())
	}
	return mw
}

func rateLimit(rps int) echo.MiddlewareFunc {
	return middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(rps)))
}

func basicAuth(username, password string) echo.MiddlewareFunc {
	if password == "" {
		password = uuid.NewUUID()
		log.Debug().Msgf("Basic Auth Password: %s", password)
	}
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		// health checks stay open to load balancers
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		Validator: func(user, pass string, ctx echo.Context) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1 &&
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1 {
				return true, nil
			}
			return false, nil
		},
	})
}

func logger() echo.MiddlewareFunc {
	levelStr := conf.StringDefault("middleware.web.logger.level", "DEBUG")
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		panic(err)
	}
	skip := conf.StringsDefault("middleware.web.logger.skip", []string{"GET /health"})
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogLatency:  true,
		Skipper: func(c echo.Context) bool {
			for _, pattern := range skip {
				if wildcard.Match(pattern, fmt.Sprintf("%s %s", c.Request().Method, c.Request().URL.Path)) {
					return true
				}
			}
			return false
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithLevel(level).
				Str("URI", v.URI).
				Str("method", v.Method).
				Str("remote-ip", v.RemoteIP).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	})
}

func cors() echo.MiddlewareFunc {
	type CORSConfig struct {
		AllowOrigins     []string `koanf:"origins"`
		AllowMethods     []string `koanf:"methods"`
		AllowHeaders     []string `koanf:"headers"`
		AllowCredentials bool     `koanf:"credentials"`
		ExposeHeaders    []string `koanf:"expose"`
	}

	cf := CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"*"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: false,
		ExposeHeaders:    []string{"*"},
	}

	if err := conf.Unmarshal("middleware.web.cors", &cf); err != nil {
		panic(errors.Wrapf(err, "error parsing CORS middleware config"))
	}

	log.Debug().Msg("CORS middleware enabled")

	return middleware.CORSWithConfig(
		middleware.CORSConfig{
			AllowOrigins:     cf.AllowOrigins,
			AllowMethods:     cf.AllowMethods,
			AllowHeaders:     cf.AllowHeaders,
			AllowCredentials: cf.AllowCredentials,
			ExposeHeaders:    cf.ExposeHeaders,
		},
	)
}
