package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/catalog"
	"github.com/runabol/mountflow/health"
	"github.com/runabol/mountflow/input"
	"github.com/runabol/mountflow/internal/cache"
	"github.com/runabol/mountflow/internal/httpx"
	"github.com/runabol/mountflow/internal/redact"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/workflow"
)

const (
	MIN_PORT = 8000
	MAX_PORT = 8100

	defaultSessionTTL = time.Minute * 30
)

// WorkflowFactory creates the controller behind a new session.
type WorkflowFactory func(ctx context.Context, category mountflow.Category) (*workflow.Controller, error)

type API struct {
	server      *http.Server
	store       *store.Store
	sessions    *cache.Cache[*workflow.Controller]
	newWorkflow WorkflowFactory
	health      *health.HealthCheck
	redacter    *redact.Redacter
}

type Config struct {
	Address     string
	Store       *store.Store
	NewWorkflow WorkflowFactory
	Health      *health.HealthCheck
	// SessionTTL is how long an idle session is kept around.
	SessionTTL  time.Duration
	Middlewares []echo.MiddlewareFunc
	Redacter    *redact.Redacter
}

func NewAPI(cfg Config) (*API, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Health == nil {
		cfg.Health = health.NewHealthCheck().
			WithIndicator(health.ServiceStore, cfg.Store.Adapter().HealthCheck)
	}
	if cfg.Redacter == nil {
		cfg.Redacter = redact.NewRedacter()
	}
	if cfg.NewWorkflow == nil {
		st := cfg.Store
		cfg.NewWorkflow = func(_ context.Context, category mountflow.Category) (*workflow.Controller, error) {
			return workflow.New(workflow.Config{Store: st, Category: category})
		}
	}

	r := echo.New()
	r.HideBanner = true
	r.HidePort = true

	sessions := cache.New[*workflow.Controller](cfg.SessionTTL, cfg.SessionTTL/2)
	sessions.OnEvicted(func(id string, c *workflow.Controller) {
		c.Teardown()
		log.Debug().Str("session-id", id).Msg("session closed")
	})

	s := &API{
		server: &http.Server{
			Addr:    cfg.Address,
			Handler: r,
		},
		store:       cfg.Store,
		sessions:    sessions,
		newWorkflow: cfg.NewWorkflow,
		health:      cfg.Health,
		redacter:    cfg.Redacter,
	}

	for _, m := range cfg.Middlewares {
		r.Use(m)
	}

	r.GET("/health", s.healthCheck)
	r.GET("/catalog/:category", s.getCatalog)
	r.GET("/mounts", s.listMounts)
	r.GET("/mounts/:id/config", s.getMountConfig)
	r.POST("/sessions", s.createSession)
	r.GET("/sessions/:id", s.getSession)
	r.PUT("/sessions/:id/fields", s.changeField)
	r.PUT("/sessions/:id/config", s.changeConfig)
	r.PUT("/sessions/:id/config-panel", s.toggleConfigPanel)
	r.POST("/sessions/:id/mount", s.mount)
	r.DELETE("/sessions/:id", s.deleteSession)

	return s, nil
}

func (s *API) healthCheck(c echo.Context) error {
	res := s.health.Do(c.Request().Context())
	if res.Status == health.StatusDown {
		return c.JSON(http.StatusServiceUnavailable, res)
	}
	return c.JSON(http.StatusOK, res)
}

func parseCategory(v string) (mountflow.Category, error) {
	if v == "" {
		return mountflow.CategoryAuth, nil
	}
	category := mountflow.Category(v)
	if !category.IsValid() {
		return "", errors.Errorf("unknown category: %s", v)
	}
	return category, nil
}

func (s *API) getCatalog(c echo.Context) error {
	category, err := parseCategory(c.Param("category"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, catalog.Backends(category))
}

func (s *API) listMounts(c echo.Context) error {
	category, err := parseCategory(c.QueryParam("category"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mounts, err := s.store.FindMounts(c.Request().Context(), category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, mounts)
}

func (s *API) getMountConfig(c echo.Context) error {
	cfg, err := s.store.Adapter().GetConfig(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrConfigNotFound) || errors.Is(err, store.ErrMountNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s.redacter.RedactConfig(cfg))
}

func (s *API) createSession(c echo.Context) error {
	si := input.Session{}
	if c.Request().ContentLength != 0 {
		if err := bindJSON(c.Request().Body, &si); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	if err := si.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	category, _ := parseCategory(string(si.Category))
	ctrl, err := s.newWorkflow(c.Request().Context(), category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.sessions.Set(ctrl.ID(), ctrl)
	log.Info().
		Str("session-id", ctrl.ID()).
		Str("category", string(category)).
		Msg("session created")
	return c.JSON(http.StatusOK, s.state(ctrl))
}

// session looks up the session of the request and extends its life.
func (s *API) session(c echo.Context) (*workflow.Controller, error) {
	id := c.Param("id")
	ctrl, ok := s.sessions.Get(id)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("session %s not found", id))
	}
	s.sessions.Touch(id)
	return ctrl, nil
}

func (s *API) state(ctrl *workflow.Controller) *workflow.State {
	st := ctrl.State()
	st.Config = s.redacter.RedactConfig(st.Config)
	return st
}

func (s *API) getSession(c echo.Context) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.state(ctrl))
}

func (s *API) changeField(c echo.Context) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	fc := input.FieldChange{}
	if err := bindJSON(c.Request().Body, &fc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := fc.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctrl.OnFieldChanged(c.Request().Context(), fc.Field, fc.Value); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.state(ctrl))
}

func (s *API) changeConfig(c echo.Context) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	cf := input.ConfigFields{}
	if err := bindJSON(c.Request().Body, &cf); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := cf.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := ctrl.SetConfigFields(cf.Fields); err != nil {
		if errors.Is(err, workflow.ErrNoConfig) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.state(ctrl))
}

func (s *API) toggleConfigPanel(c echo.Context) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	cp := input.ConfigPanel{}
	if err := bindJSON(c.Request().Body, &cp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := cp.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctrl.ToggleConfigPanel(c.Request().Context(), *cp.Visible)
	return c.JSON(http.StatusOK, s.state(ctrl))
}

func (s *API) mount(c echo.Context) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	out := ctrl.MountBackend(c.Request().Context())
	if out == nil {
		return echo.NewHTTPError(http.StatusConflict, "the mount is already being saved")
	}
	if !out.Succeeded {
		return c.JSON(http.StatusBadRequest, out)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *API) deleteSession(c echo.Context) error {
	if _, err := s.session(c); err != nil {
		return err
	}
	s.sessions.Delete(c.Param("id"))
	return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
}

func bindJSON(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *API) Start() error {
	if s.server.Addr != "" {
		if err := httpx.StartAsync(s.server); err != nil {
			return err
		}
	} else {
		// attempting to dynamically assign port
		for port := MIN_PORT; port <= MAX_PORT; port++ {
			s.server.Addr = fmt.Sprintf("localhost:%d", port)
			if err := httpx.StartAsync(s.server); err != nil {
				if errors.Is(err, syscall.EADDRINUSE) {
					continue
				}
				return errors.Wrapf(err, "error starting up server")
			}
			break
		}
	}
	log.Info().Msgf("API listening on http://%s", s.server.Addr)
	return nil
}

// Shutdown stops the server and tears down every open session.
func (s *API) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	// expired sessions the janitor has not collected yet are not
	// visited by Iterate
	s.sessions.DeleteExpired()
	s.sessions.Iterate(func(id string, _ *workflow.Controller) {
		s.sessions.Delete(id)
	})
	s.sessions.Close()
	return err
}
