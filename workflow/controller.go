// Package workflow drives the mounting of an auth method or a
// secret engine and the configuration of the mounted backend.
package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
	"github.com/runabol/mountflow/catalog"
	"github.com/runabol/mountflow/internal/uuid"
	"github.com/runabol/mountflow/locker"
	"github.com/runabol/mountflow/notify"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/wizard"
)

const FieldType = "type"

const errTornDown = "the workflow was torn down."

var (
	ErrUnknownField = errors.New("unknown field")
	ErrNoConfig     = errors.New("the mount has no configuration")
)

// Outcome is the result of a save sequence. A nil *Outcome
// means the call was dropped because the same phase was
// already running.
type Outcome struct {
	Succeeded       bool     `json:"succeeded"`
	MountPersisted  bool     `json:"mountPersisted"`
	ConfigPersisted bool     `json:"configPersisted"`
	Errors          []string `json:"errors,omitempty"`
}

type Config struct {
	// ID identifies the controller. Generated when empty.
	ID string
	// Category of the mount. Defaults to auth.
	Category mountflow.Category
	Store    *store.Store
	Locker   locker.Locker
	Wizard   wizard.Machine
	Notifier notify.Sink
	// Broker receives mount.created and mount.configured events. Optional.
	Broker         broker.Broker
	OnMountSuccess func(ctx context.Context, backendType, path string) error
	OnConfigError  func(ctx context.Context, mountID string) error
}

type Controller struct {
	id             string
	category       mountflow.Category
	store          *store.Store
	mount          *store.MountRecord
	locker         locker.Locker
	wizard         wizard.Machine
	notifier       notify.Sink
	broker         broker.Broker
	onMountSuccess func(ctx context.Context, backendType, path string) error
	onConfigError  func(ctx context.Context, mountID string) error

	mu              sync.RWMutex
	selectedType    string
	showConfigPanel bool

	// saves hold saving for reading, Teardown for writing
	saving   sync.RWMutex
	tornDown bool
}

// New allocates the unsaved mount the controller works on.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Category == "" {
		cfg.Category = mountflow.CategoryAuth
	}
	if !cfg.Category.IsValid() {
		return nil, errors.Errorf("invalid mount category: %s", cfg.Category)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewUUID()
	}
	if cfg.Locker == nil {
		cfg.Locker = locker.NewInMemoryLocker()
	}
	if cfg.Wizard == nil {
		cfg.Wizard = wizard.NewTutorial(nil)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.LogSink{}
	}
	mount, err := cfg.Store.CreateMount(cfg.Category)
	if err != nil {
		return nil, err
	}
	return &Controller{
		id:             cfg.ID,
		category:       cfg.Category,
		store:          cfg.Store,
		mount:          mount,
		locker:         cfg.Locker,
		wizard:         cfg.Wizard,
		notifier:       cfg.Notifier,
		broker:         cfg.Broker,
		onMountSuccess: cfg.OnMountSuccess,
		onConfigError:  cfg.OnConfigError,
	}, nil
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Category() mountflow.Category {
	return c.category
}

// Mount returns the mount record. It is the same record for the
// whole lifetime of the controller.
func (c *Controller) Mount() *store.MountRecord {
	return c.mount
}

func (c *Controller) SelectedType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedType
}

func (c *Controller) ShowConfigPanel() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.showConfigPanel
}

// OnFieldChanged applies an edit of a mount field. Only a change
// of the backend type has side effects: the wizard is told about
// it, the pending configuration is replaced by one matching the
// new type and an auto-filled path follows the type.
func (c *Controller) OnFieldChanged(ctx context.Context, field, value string) error {
	if field == FieldType {
		return c.onTypeChanged(value)
	}
	return c.applyField(field, value)
}

func (c *Controller) onTypeChanged(backendType string) error {
	c.mount.Update(func(m *mountflow.Mount) {
		m.Type = backendType
	})
	c.mu.Lock()
	c.selectedType = backendType
	c.mu.Unlock()
	c.wizard.SetComponentState(backendType)
	if err := c.reconcileConfig(backendType); err != nil {
		return err
	}
	c.reconcilePath(backendType)
	return nil
}

func (c *Controller) reconcileConfig(backendType string) error {
	if c.category == mountflow.CategorySecret {
		return nil
	}
	if current := c.mount.Config(); current != nil {
		current.Rollback()
		current.Unload()
	}
	c.mount.AttachConfig(nil)
	configType, ok := catalog.ResolveConfigType(c.category, backendType)
	if !ok {
		return nil
	}
	cfg, err := c.store.CreateConfig(configType)
	if err != nil {
		return errors.Wrapf(err, "error creating %s config", configType)
	}
	c.mount.AttachConfig(cfg)
	return nil
}

// reconcilePath sets the path to the backend type unless the
// user has chosen a path of their own.
func (c *Controller) reconcilePath(backendType string) {
	c.mount.Update(func(m *mountflow.Mount) {
		if m.Path == "" || catalog.IsType(c.category, m.Path) {
			m.Path = backendType
		}
	})
}

func (c *Controller) applyField(field, value string) error {
	var apply func(m *mountflow.Mount)
	switch field {
	case "path":
		apply = func(m *mountflow.Mount) { m.Path = value }
	case "description":
		apply = func(m *mountflow.Mount) { m.Description = value }
	case "local", "sealWrap":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrapf(err, "invalid value for %s", field)
		}
		if field == "local" {
			apply = func(m *mountflow.Mount) { m.Local = b }
		} else {
			apply = func(m *mountflow.Mount) { m.SealWrap = b }
		}
	case "config.defaultLeaseTtl":
		apply = func(m *mountflow.Mount) { m.Config.DefaultLeaseTTL = value }
	case "config.maxLeaseTtl":
		apply = func(m *mountflow.Mount) { m.Config.MaxLeaseTTL = value }
	default:
		key, ok := strings.CutPrefix(field, "options.")
		if !ok || key == "" {
			return errors.Wrapf(ErrUnknownField, "%s", field)
		}
		apply = func(m *mountflow.Mount) {
			if m.Options == nil {
				m.Options = make(map[string]string)
			}
			m.Options[key] = value
		}
	}
	c.mount.Update(apply)
	return nil
}

// SetConfigFields edits the pending configuration of the mount.
func (c *Controller) SetConfigFields(fields map[string]any) error {
	cfg := c.mount.Config()
	if cfg == nil {
		return ErrNoConfig
	}
	cfg.SetFields(fields)
	return nil
}

// ToggleConfigPanel keeps the wizard in step with whether the
// configuration of the backend is being edited.
func (c *Controller) ToggleConfigPanel(ctx context.Context, visible bool) {
	c.mu.Lock()
	c.showConfigPanel = visible
	c.mu.Unlock()
	backendType := c.mount.Mount().Type
	state := c.wizard.FeatureState()
	if visible && state == wizard.StateIdle {
		c.wizard.TransitionFeatureMachine(ctx, state, wizard.EventContinue, backendType)
	} else {
		c.wizard.TransitionFeatureMachine(ctx, state, wizard.EventReset, backendType)
	}
}

// MountBackend persists the mount and, for auth methods, goes on
// to configure it. Returns nil when a previous call is still running.
func (c *Controller) MountBackend(ctx context.Context) *Outcome {
	lock, out := c.acquire(ctx, "mount")
	if lock == nil {
		return out
	}
	defer c.release(ctx, lock)
	c.saving.RLock()
	defer c.saving.RUnlock()
	if c.tornDown {
		return &Outcome{Errors: []string{errTornDown}}
	}

	m := c.mount.Mount()
	backendType, path := m.Type, m.Path
	if err := c.mount.Save(ctx); err != nil {
		log.Debug().
			Err(err).
			Str("controller-id", c.id).
			Str("type", backendType).
			Str("path", path).
			Msg("mount was not saved")
		return &Outcome{Errors: store.AsValidationError(err).Messages()}
	}
	saved := c.mount.Mount()
	log.Info().
		Str("controller-id", c.id).
		Str("mount-id", saved.ID).
		Str("type", backendType).
		Str("path", path).
		Msg("mount saved")
	c.notifier.Success(ctx, fmt.Sprintf("Successfully mounted %s %s method at %s.", backendType, c.category, path))
	c.publish(ctx, broker.TopicMountCreated, &mountflow.MountEvent{Mount: saved})

	if c.category == mountflow.CategorySecret {
		c.mountSucceeded(ctx, backendType, path)
		return &Outcome{Succeeded: true, MountPersisted: true}
	}
	out = c.configureBackend(ctx, c.mount)
	if out == nil {
		return &Outcome{
			MountPersisted: true,
			Errors:         []string{"the configuration is already being saved."},
		}
	}
	return out
}

// ConfigureBackend saves the pending configuration of mount when it
// has changes. The mount stays persisted when that fails. Returns
// nil when a previous call is still running.
func (c *Controller) ConfigureBackend(ctx context.Context, mount *store.MountRecord) *Outcome {
	c.saving.RLock()
	defer c.saving.RUnlock()
	if c.tornDown {
		return &Outcome{MountPersisted: !mount.IsNew(), Errors: []string{errTornDown}}
	}
	return c.configureBackend(ctx, mount)
}

func (c *Controller) configureBackend(ctx context.Context, mount *store.MountRecord) *Outcome {
	lock, out := c.acquire(ctx, "config")
	if lock == nil {
		return out
	}
	defer c.release(ctx, lock)

	cfg := mount.Config()
	m := mount.Mount()
	backendType, path := m.Type, m.Path
	out = &Outcome{MountPersisted: !mount.IsNew()}
	if cfg != nil && len(cfg.ChangedAttributes()) > 0 {
		if err := cfg.Save(ctx); err != nil {
			msgs := store.AsValidationError(err).Messages()
			log.Debug().
				Err(err).
				Str("controller-id", c.id).
				Str("mount-id", m.ID).
				Msg("config was not saved")
			c.notifier.Danger(ctx, fmt.Sprintf(
				"There was an error saving the configuration for %s %s method at %s. %s",
				backendType, c.category, path, strings.Join(msgs, " "),
			))
			c.configFailed(ctx, m.ID)
			out.Errors = msgs
			return out
		}
		c.wizard.TransitionFeatureMachine(ctx, c.wizard.FeatureState(), wizard.EventContinue, c.mount.Mount().Type)
		c.notifier.Success(ctx, fmt.Sprintf("The config for %s %s method at %s was saved successfully.", backendType, c.category, path))
		c.publish(ctx, broker.TopicMountConfigured, &mountflow.MountEvent{Mount: m, Config: cfg.Config()})
		out.ConfigPersisted = true
	}
	c.mountSucceeded(ctx, backendType, path)
	out.Succeeded = true
	return out
}

// State is a point in time view of the controller.
type State struct {
	ID              string                   `json:"id"`
	Category        mountflow.Category       `json:"category"`
	RecordType      string                   `json:"recordType"`
	SelectedType    string                   `json:"selectedType,omitempty"`
	ShowConfigPanel bool                     `json:"showConfigPanel"`
	WizardState     string                   `json:"wizardState"`
	Mount           *mountflow.Mount         `json:"mount"`
	MountSaved      bool                     `json:"mountSaved"`
	MountErrors     []store.FieldError       `json:"mountErrors,omitempty"`
	Config          *mountflow.BackendConfig `json:"config,omitempty"`
	ConfigSaved     bool                     `json:"configSaved"`
	ConfigErrors    []store.FieldError       `json:"configErrors,omitempty"`
}

func (c *Controller) State() *State {
	c.mu.RLock()
	st := &State{
		ID:              c.id,
		Category:        c.category,
		RecordType:      c.mount.RecordType(),
		SelectedType:    c.selectedType,
		ShowConfigPanel: c.showConfigPanel,
	}
	c.mu.RUnlock()
	st.WizardState = c.wizard.FeatureState()
	st.Mount = c.mount.Mount()
	st.MountSaved = !c.mount.IsNew()
	if verr := c.mount.Errors(); verr != nil {
		st.MountErrors = verr.Errors
	}
	if cfg := c.mount.Config(); cfg != nil {
		st.Config = cfg.Config()
		st.ConfigSaved = !cfg.IsNew()
		if verr := cfg.Errors(); verr != nil {
			st.ConfigErrors = verr.Errors
		}
	}
	return st
}

// Teardown discards everything that was not saved. A mount that
// was never persisted is removed from the store. It waits for a
// running save to finish, and later saves are refused.
func (c *Controller) Teardown() {
	c.saving.Lock()
	defer c.saving.Unlock()
	c.tornDown = true
	if cfg := c.mount.Config(); cfg != nil {
		cfg.Rollback()
	}
	c.mount.Rollback()
	log.Debug().Str("controller-id", c.id).Msg("controller torn down")
}

// acquire takes the gate of a phase. When the gate can't be taken
// the lock is nil and the outcome is what the caller should return.
func (c *Controller) acquire(ctx context.Context, phase string) (locker.Lock, *Outcome) {
	key := fmt.Sprintf("%s/%s", c.id, phase)
	lock, err := c.locker.AcquireLock(ctx, key)
	if err == nil {
		return lock, nil
	}
	if errors.Is(err, locker.ErrLockNotAcquired) {
		log.Debug().Str("key", key).Msg("dropping call, already in progress")
		return nil, nil
	}
	log.Error().Err(err).Str("key", key).Msg("error acquiring lock")
	return nil, &Outcome{Errors: []string{err.Error()}}
}

func (c *Controller) release(ctx context.Context, lock locker.Lock) {
	if err := lock.ReleaseLock(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Str("controller-id", c.id).Msg("error releasing lock")
	}
}

func (c *Controller) mountSucceeded(ctx context.Context, backendType, path string) {
	if c.onMountSuccess == nil {
		return
	}
	if err := c.onMountSuccess(ctx, backendType, path); err != nil {
		log.Error().Err(err).Str("controller-id", c.id).Msg("error in mount success callback")
	}
}

func (c *Controller) configFailed(ctx context.Context, mountID string) {
	if c.onConfigError == nil {
		return
	}
	if err := c.onConfigError(ctx, mountID); err != nil {
		log.Error().Err(err).Str("controller-id", c.id).Msg("error in config error callback")
	}
}

func (c *Controller) publish(ctx context.Context, topic string, ev *mountflow.MountEvent) {
	if c.broker == nil {
		return
	}
	ev.CreatedAt = time.Now().UTC()
	if err := c.broker.PublishEvent(ctx, topic, ev); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("error publishing mount event")
	}
}
