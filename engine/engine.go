package engine

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
	"github.com/runabol/mountflow/conf"
	"github.com/runabol/mountflow/health"
	"github.com/runabol/mountflow/internal/api"
	"github.com/runabol/mountflow/internal/redact"
	"github.com/runabol/mountflow/locker"
	"github.com/runabol/mountflow/notify"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/wizard"
	"github.com/runabol/mountflow/workflow"
)

const (
	// ModeServer serves the workflow API.
	ModeServer Mode = "server"
	// ModeLocal only sets up the infrastructure so that workflows
	// can be driven in process.
	ModeLocal Mode = "local"
)

const (
	StateIdle        State = "IDLE"
	StateRunning     State = "RUNNING"
	StateTerminating State = "TERMINATING"
	StateTerminated  State = "TERMINATED"
)

type Mode string

type State string

type Config struct {
	Mode Mode
	// Middlewares are added to the API server after the
	// built-in ones.
	Middlewares    []echo.MiddlewareFunc
	OnMountSuccess func(ctx context.Context, backendType, path string) error
	OnConfigError  func(ctx context.Context, mountID string) error
}

type Engine struct {
	quit            chan os.Signal
	terminate       chan any
	onStarted       OnStartedHandler
	cfg             Config
	state           State
	mu              sync.Mutex
	storeProviders  map[string]store.Provider
	brokerProviders map[string]broker.Provider
	adapter         store.Adapter
	store           *store.Store
	broker          broker.Broker
	locker          locker.Locker
	notifier        notify.Sink
	webhook         *notify.WebhookSink
	api             *api.API
}

func New(cfg Config) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = ModeServer
	}
	return &Engine{
		quit:            make(chan os.Signal, 1),
		terminate:       make(chan any, 1),
		onStarted:       func() error { return nil },
		cfg:             cfg,
		state:           StateIdle,
		storeProviders:  make(map[string]store.Provider),
		brokerProviders: make(map[string]broker.Provider),
	}
}

func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	e.cfg.Mode = mode
}

// Start brings up the store, the broker and the locker and, in
// server mode, the API.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	switch e.cfg.Mode {
	case ModeServer, ModeLocal:
	default:
		return errors.Errorf("Unknown mode: %s", e.cfg.Mode)
	}
	if err := e.initStore(); err != nil {
		return errors.Wrapf(err, "error initializing store")
	}
	if err := e.initBroker(); err != nil {
		return errors.Wrapf(err, "error initializing broker")
	}
	if err := e.initLocker(); err != nil {
		return errors.Wrapf(err, "error initializing locker")
	}
	e.initNotifier()
	if e.cfg.Mode == ModeServer {
		if err := e.initAPI(); err != nil {
			return errors.Wrapf(err, "error initializing API")
		}
	}
	e.state = StateRunning
	return nil
}

// Run starts the engine and blocks until it is terminated or
// the process is interrupted.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}
	if err := e.onStarted(); err != nil {
		return errors.Wrapf(err, "error on-started hook")
	}
	e.awaitTerm()
	e.mu.Lock()
	running := e.state == StateRunning
	e.mu.Unlock()
	if running {
		return e.Terminate()
	}
	return nil
}

func (e *Engine) Terminate() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return errors.Errorf("engine is not %s", StateRunning)
	}
	e.state = StateTerminating
	e.mu.Unlock()

	log.Debug().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	if e.api != nil {
		if err := e.api.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("error shutting down the API")
		}
	}
	if e.webhook != nil {
		e.webhook.Wait()
	}
	if err := e.broker.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down broker")
	}
	closeIfCloser("locker", e.locker)
	closeIfCloser("store", e.adapter)

	e.mu.Lock()
	e.state = StateTerminated
	e.mu.Unlock()
	select {
	case e.terminate <- 1:
	default:
	}
	return nil
}

func closeIfCloser(name string, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Error().Err(err).Msgf("error closing %s", name)
	}
}

func (e *Engine) OnStarted(h OnStartedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	e.onStarted = h
}

func (e *Engine) awaitTerm() {
	signal.Notify(e.quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-e.quit:
	case <-e.terminate:
	}
}

func (e *Engine) mustState(state State) {
	if e.state != state {
		panic(errors.Errorf("engine is not %s", state))
	}
}

func (e *Engine) RegisterStoreProvider(name string, provider store.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	if _, ok := e.storeProviders[name]; ok {
		panic("engine: RegisterStoreProvider called twice for provider " + name)
	}
	e.storeProviders[name] = provider
}

func (e *Engine) RegisterBrokerProvider(name string, provider broker.Provider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	if _, ok := e.brokerProviders[name]; ok {
		panic("engine: RegisterBrokerProvider called twice for provider " + name)
	}
	e.brokerProviders[name] = provider
}

func (e *Engine) RegisterMiddleware(mw echo.MiddlewareFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateIdle)
	e.cfg.Middlewares = append(e.cfg.Middlewares, mw)
}

func (e *Engine) Store() *store.Store {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateRunning)
	return e.store
}

func (e *Engine) Broker() broker.Broker {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustState(StateRunning)
	return e.broker
}

// NewWorkflow creates a controller wired to the infrastructure
// of the engine.
func (e *Engine) NewWorkflow(_ context.Context, category mountflow.Category) (*workflow.Controller, error) {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil, errors.Errorf("engine is not %s", StateRunning)
	}
	cfg := workflow.Config{
		Category:       category,
		Store:          e.store,
		Locker:         e.locker,
		Wizard:         wizard.NewTutorial(e.broker),
		Notifier:       e.notifier,
		Broker:         e.broker,
		OnMountSuccess: e.cfg.OnMountSuccess,
		OnConfigError:  e.cfg.OnConfigError,
	}
	e.mu.Unlock()
	return workflow.New(cfg)
}

func (e *Engine) initNotifier() {
	sinks := []notify.Sink{notify.LogSink{}, notify.NewBrokerSink(e.broker)}
	if url := conf.String("notify.webhook.url"); url != "" {
		headers := conf.StringMap("notify.webhook.headers")
		e.webhook = notify.NewWebhookSink(url, headers)
		sinks = append(sinks, e.webhook)
		log.Debug().
			Str("url", url).
			Interface("headers", redact.NewRedacter().RedactHeaders(headers)).
			Msg("webhook notifications enabled")
	}
	e.notifier = notify.Multi(sinks...)
}

func (e *Engine) initAPI() error {
	hc := health.NewHealthCheck().
		WithIndicator(health.ServiceStore, e.adapter.HealthCheck).
		WithIndicator(health.ServiceBroker, e.broker.HealthCheck)
	a, err := api.NewAPI(api.Config{
		Address:     conf.StringDefault("api.address", "localhost:8000"),
		Store:       e.store,
		NewWorkflow: e.NewWorkflow,
		Health:      hc,
		SessionTTL:  conf.DurationDefault("api.session.ttl", time.Minute*30),
		Middlewares: append(echoMiddleware(), e.cfg.Middlewares...),
	})
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	e.api = a
	return nil
}
