package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
	"github.com/runabol/mountflow/catalog"
	"github.com/runabol/mountflow/locker"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/store/inmemory"
	"github.com/runabol/mountflow/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	state     string
	event     wizard.Event
	typeToken string
}

type fakeWizard struct {
	mu             sync.Mutex
	state          string
	componentState string
	transitions    []transition
}

func newFakeWizard() *fakeWizard {
	return &fakeWizard{state: wizard.StateIdle}
}

func (w *fakeWizard) FeatureState() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *fakeWizard) SetComponentState(state string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.componentState = state
}

func (w *fakeWizard) TransitionFeatureMachine(ctx context.Context, state string, event wizard.Event, typeToken string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transitions = append(w.transitions, transition{state: state, event: event, typeToken: typeToken})
}

type fakeSink struct {
	mu      sync.Mutex
	success []string
	danger  []string
}

func (s *fakeSink) Success(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.success = append(s.success, msg)
}

func (s *fakeSink) Danger(ctx context.Context, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.danger = append(s.danger, msg)
}

type fakeAdapter struct {
	store.Adapter
	creates   atomic.Int32
	configs   atomic.Int32
	block     chan struct{}
	entered   chan struct{}
	configErr error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{Adapter: inmemory.NewInMemoryAdapter()}
}

func (a *fakeAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	a.creates.Add(1)
	if a.entered != nil {
		close(a.entered)
	}
	if a.block != nil {
		<-a.block
	}
	return a.Adapter.CreateMount(ctx, m)
}

func (a *fakeAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	a.configs.Add(1)
	if a.configErr != nil {
		return a.configErr
	}
	return a.Adapter.SaveConfig(ctx, c)
}

type harness struct {
	ctrl        *Controller
	store       *store.Store
	adapter     *fakeAdapter
	wizard      *fakeWizard
	sink        *fakeSink
	locker      *locker.InMemoryLocker
	successArgs [][2]string
	errorArgs   []string
}

func newHarness(t *testing.T, category mountflow.Category) *harness {
	h := &harness{
		adapter: newFakeAdapter(),
		wizard:  newFakeWizard(),
		sink:    &fakeSink{},
		locker:  locker.NewInMemoryLocker(),
	}
	h.store = store.New(h.adapter)
	ctrl, err := New(Config{
		Category: category,
		Store:    h.store,
		Locker:   h.locker,
		Wizard:   h.wizard,
		Notifier: h.sink,
		OnMountSuccess: func(ctx context.Context, backendType, path string) error {
			h.successArgs = append(h.successArgs, [2]string{backendType, path})
			return nil
		},
		OnConfigError: func(ctx context.Context, mountID string) error {
			h.errorArgs = append(h.errorArgs, mountID)
			return nil
		},
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func TestNew(t *testing.T) {
	s := store.New(inmemory.NewInMemoryAdapter())
	c, err := New(Config{Store: s})
	require.NoError(t, err)
	assert.Equal(t, mountflow.CategoryAuth, c.Category())
	assert.NotEmpty(t, c.ID())
	assert.NotNil(t, c.Mount())
	assert.True(t, c.Mount().IsNew())
	assert.Equal(t, "auth-method", c.State().RecordType)

	_, err = New(Config{Store: s, Category: "bogus"})
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestMountIdentity(t *testing.T) {
	for _, category := range []mountflow.Category{mountflow.CategoryAuth, mountflow.CategorySecret} {
		ctx := context.Background()
		h := newHarness(t, category)
		mount := h.ctrl.Mount()
		for _, b := range catalog.Backends(category) {
			assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, string(b.Type)))
			assert.Same(t, mount, h.ctrl.Mount())
		}
		h.ctrl.MountBackend(ctx)
		assert.Same(t, mount, h.ctrl.Mount())
		assert.Len(t, h.store.PeekMounts(category), 1)
	}
}

func TestSecretNeverCreatesConfig(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	for _, b := range append(catalog.Backends(mountflow.CategorySecret), catalog.Backends(mountflow.CategoryAuth)...) {
		assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, string(b.Type)))
		assert.Nil(t, h.ctrl.Mount().Config())
		assert.Empty(t, h.store.PeekConfigs(mountflow.ConfigTypePrefix+string(b.Type)))
	}
	assert.Empty(t, h.store.PeekConfigs("auth-config/aws/client"))
}

func TestTypeChangeReplacesConfig(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)

	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "aws"))
	cfg := h.ctrl.Mount().Config()
	require.NotNil(t, cfg)
	assert.Equal(t, "auth-config/aws/client", cfg.Type())
	assert.Len(t, h.store.PeekConfigs("auth-config/aws/client"), 1)
	assert.Equal(t, "aws", h.wizard.componentState)
	assert.Equal(t, "aws", h.ctrl.SelectedType())

	// a type without configuration drops the pending config
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "approle"))
	assert.Nil(t, h.ctrl.Mount().Config())
	assert.Empty(t, h.store.PeekConfigs("auth-config/aws/client"))
	assert.False(t, cfg.IsLoaded())

	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "github"))
	require.NotNil(t, h.ctrl.Mount().Config())
	assert.Len(t, h.store.PeekConfigs("auth-config/github"), 1)

	// types absent from the catalog use the generic config type
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "ssh"))
	assert.Empty(t, h.store.PeekConfigs("auth-config/github"))
	require.NotNil(t, h.ctrl.Mount().Config())
	assert.Equal(t, "auth-config/ssh", h.ctrl.Mount().Config().Type())
}

func TestPathAutoFill(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "consul"))
	assert.Equal(t, "consul", h.ctrl.Mount().Mount().Path)

	// an auto-filled path follows the type
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "kv"))
	assert.Equal(t, "kv", h.ctrl.Mount().Mount().Path)

	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "path", "my-custom-path"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "pki"))
	assert.Equal(t, "my-custom-path", h.ctrl.Mount().Mount().Path)
	assert.Equal(t, "pki", h.ctrl.Mount().Mount().Type)
}

func TestOnFieldChangedOtherFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "description", "my kv"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "local", "true"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "sealWrap", "true"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "config.defaultLeaseTtl", "1h"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "config.maxLeaseTtl", "24h"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "options.version", "2"))
	m := h.ctrl.Mount().Mount()
	assert.Equal(t, "my kv", m.Description)
	assert.True(t, m.Local)
	assert.True(t, m.SealWrap)
	assert.Equal(t, "1h", m.Config.DefaultLeaseTTL)
	assert.Equal(t, "24h", m.Config.MaxLeaseTTL)
	assert.Equal(t, map[string]string{"version": "2"}, m.Options)
	assert.Equal(t, "", m.Path)

	// unrelated fields have no side effects
	assert.Equal(t, "", h.wizard.componentState)
	assert.Empty(t, h.wizard.transitions)

	assert.ErrorIs(t, h.ctrl.OnFieldChanged(ctx, "bogus", "x"), ErrUnknownField)
	assert.ErrorIs(t, h.ctrl.OnFieldChanged(ctx, "options.", "x"), ErrUnknownField)
	assert.Error(t, h.ctrl.OnFieldChanged(ctx, "local", "maybe"))
}

func TestToggleConfigPanel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "okta"))

	h.ctrl.ToggleConfigPanel(ctx, true)
	assert.True(t, h.ctrl.ShowConfigPanel())
	h.wizard.state = wizard.StateEnable
	h.ctrl.ToggleConfigPanel(ctx, true)
	h.ctrl.ToggleConfigPanel(ctx, false)
	assert.False(t, h.ctrl.ShowConfigPanel())

	assert.Equal(t, []transition{
		{state: wizard.StateIdle, event: wizard.EventContinue, typeToken: "okta"},
		{state: wizard.StateEnable, event: wizard.EventReset, typeToken: "okta"},
		{state: wizard.StateEnable, event: wizard.EventReset, typeToken: "okta"},
	}, h.wizard.transitions)
}

func TestMountBackendSingleFlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	h.adapter.block = make(chan struct{})
	h.adapter.entered = make(chan struct{})
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "kv"))

	first := make(chan *Outcome, 1)
	go func() {
		first <- h.ctrl.MountBackend(ctx)
	}()
	<-h.adapter.entered
	// the second call is dropped while the first one is pending
	assert.Nil(t, h.ctrl.MountBackend(ctx))
	close(h.adapter.block)

	select {
	case out := <-first:
		require.NotNil(t, out)
		assert.True(t, out.Succeeded)
	case <-time.After(time.Second * 5):
		t.Fatal("mount did not complete")
	}
	assert.Equal(t, int32(1), h.adapter.creates.Load())
	assert.Len(t, h.sink.success, 1)
	assert.Len(t, h.successArgs, 1)
}

func TestConfigureBackendIndependentGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "github"))
	assert.NoError(t, h.ctrl.SetConfigFields(map[string]any{"organization": "acme"}))

	lock, err := h.locker.AcquireLock(ctx, h.ctrl.ID()+"/config")
	require.NoError(t, err)

	assert.Nil(t, h.ctrl.ConfigureBackend(ctx, h.ctrl.Mount()))
	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.True(t, out.MountPersisted)
	assert.False(t, out.Succeeded)
	assert.Equal(t, int32(0), h.adapter.configs.Load())
	assert.Empty(t, h.successArgs)

	assert.NoError(t, lock.ReleaseLock(ctx))
	out = h.ctrl.ConfigureBackend(ctx, h.ctrl.Mount())
	require.NotNil(t, out)
	assert.True(t, out.Succeeded)
	assert.True(t, out.ConfigPersisted)
	assert.Equal(t, int32(1), h.adapter.configs.Load())
}

func TestScenarioA(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "kv"))
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "path", "kv/"))

	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.Equal(t, &Outcome{Succeeded: true, MountPersisted: true}, out)
	assert.Equal(t, []string{"Successfully mounted kv secret method at kv/."}, h.sink.success)
	assert.Empty(t, h.sink.danger)
	assert.Equal(t, [][2]string{{"kv", "kv/"}}, h.successArgs)
	assert.Equal(t, int32(0), h.adapter.configs.Load())
	assert.Empty(t, h.wizard.transitions)
}

func TestScenarioB(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "userpass"))
	cfg := h.ctrl.Mount().Config()
	require.NotNil(t, cfg)
	assert.Equal(t, "auth-config/userpass", cfg.Type())

	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.Equal(t, &Outcome{Succeeded: true, MountPersisted: true}, out)
	assert.Equal(t, int32(0), h.adapter.configs.Load())
	assert.Equal(t, []string{"Successfully mounted userpass auth method at userpass."}, h.sink.success)
	assert.Equal(t, [][2]string{{"userpass", "userpass"}}, h.successArgs)
	assert.Empty(t, h.wizard.transitions)
}

func TestScenarioC(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	h.adapter.configErr = store.NewValidationError("region", "bad region")
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "aws"))
	assert.NoError(t, h.ctrl.SetConfigFields(map[string]any{"region": "nowhere-1"}))

	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.False(t, out.Succeeded)
	assert.True(t, out.MountPersisted)
	assert.False(t, out.ConfigPersisted)
	assert.Equal(t, []string{"bad region"}, out.Errors)

	assert.Equal(t, []string{"Successfully mounted aws auth method at aws."}, h.sink.success)
	assert.Equal(t, []string{
		"There was an error saving the configuration for aws auth method at aws. bad region",
	}, h.sink.danger)
	mountID := h.ctrl.Mount().Mount().ID
	assert.Equal(t, []string{mountID}, h.errorArgs)
	assert.Empty(t, h.successArgs)

	// the mount stays persisted
	ms, err := h.store.FindMounts(ctx, mountflow.CategoryAuth)
	assert.NoError(t, err)
	assert.Len(t, ms, 1)
	assert.Equal(t, mountID, ms[0].ID)
	assert.False(t, h.ctrl.Mount().IsNew())
	assert.Equal(t, []string{"bad region"}, h.ctrl.Mount().Config().Errors().Messages())
}

func TestConfigSaved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := broker.NewInMemoryBroker()
	events := make(chan *mountflow.MountEvent, 2)
	assert.NoError(t, b.SubscribeForEvents(ctx, "mount.*", func(ev any) {
		events <- ev.(*mountflow.MountEvent)
	}))

	h := newHarness(t, mountflow.CategoryAuth)
	h.ctrl.broker = b
	h.wizard.state = wizard.StateConfig
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "github"))
	assert.NoError(t, h.ctrl.SetConfigFields(map[string]any{"organization": "acme"}))

	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.Equal(t, &Outcome{Succeeded: true, MountPersisted: true, ConfigPersisted: true}, out)
	assert.Equal(t, []string{
		"Successfully mounted github auth method at github.",
		"The config for github auth method at github was saved successfully.",
	}, h.sink.success)
	assert.Equal(t, []transition{
		{state: wizard.StateConfig, event: wizard.EventContinue, typeToken: "github"},
	}, h.wizard.transitions)
	assert.Equal(t, [][2]string{{"github", "github"}}, h.successArgs)

	saved, err := h.adapter.GetConfig(ctx, h.ctrl.Mount().Mount().ID)
	assert.NoError(t, err)
	assert.Equal(t, "acme", saved.Fields["organization"])

	created := <-events
	assert.Nil(t, created.Config)
	configured := <-events
	assert.Equal(t, "auth-config/github", configured.Config.Type)

	st := h.ctrl.State()
	assert.True(t, st.MountSaved)
	assert.True(t, st.ConfigSaved)
	assert.Equal(t, "github", st.SelectedType)
}

func TestMountValidationFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.False(t, out.Succeeded)
	assert.False(t, out.MountPersisted)
	assert.Equal(t, []string{"type is required.", "path is required."}, out.Errors)
	assert.Empty(t, h.sink.success)
	assert.Empty(t, h.sink.danger)
	assert.Empty(t, h.successArgs)
	assert.Empty(t, h.errorArgs)
	assert.NotNil(t, h.ctrl.Mount().Errors())
	assert.Len(t, h.ctrl.State().MountErrors, 2)
}

func TestCallbackErrorsAreNotPropagated(t *testing.T) {
	ctx := context.Background()
	s := store.New(inmemory.NewInMemoryAdapter())
	c, err := New(Config{
		Category: mountflow.CategorySecret,
		Store:    s,
		OnMountSuccess: func(ctx context.Context, backendType, path string) error {
			return errors.New("callback failed")
		},
	})
	require.NoError(t, err)
	assert.NoError(t, c.OnFieldChanged(ctx, FieldType, "transit"))
	out := c.MountBackend(ctx)
	require.NotNil(t, out)
	assert.True(t, out.Succeeded)
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "aws"))
	assert.Len(t, h.store.PeekMounts(mountflow.CategoryAuth), 1)
	h.ctrl.Teardown()
	assert.Empty(t, h.store.PeekMounts(mountflow.CategoryAuth))
	assert.Empty(t, h.store.PeekConfigs("auth-config/aws/client"))
	ms, err := h.store.FindMounts(ctx, mountflow.CategoryAuth)
	assert.NoError(t, err)
	assert.Empty(t, ms)
}

func TestTeardownPersistedMount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "kv"))
	require.True(t, h.ctrl.MountBackend(ctx).Succeeded)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, "description", "unsaved edit"))
	h.ctrl.Teardown()
	assert.Len(t, h.store.PeekMounts(mountflow.CategorySecret), 1)
	assert.Equal(t, "", h.ctrl.Mount().Mount().Description)
}

func TestTeardownWaitsForRunningSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategorySecret)
	h.adapter.block = make(chan struct{})
	h.adapter.entered = make(chan struct{})
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "kv"))

	saved := make(chan *Outcome, 1)
	go func() {
		saved <- h.ctrl.MountBackend(ctx)
	}()
	<-h.adapter.entered

	tornDown := make(chan struct{})
	go func() {
		h.ctrl.Teardown()
		close(tornDown)
	}()
	select {
	case <-tornDown:
		t.Fatal("teardown did not wait for the save")
	case <-time.After(time.Millisecond * 50):
	}
	close(h.adapter.block)

	out := <-saved
	require.NotNil(t, out)
	assert.True(t, out.Succeeded)
	select {
	case <-tornDown:
	case <-time.After(time.Second * 5):
		t.Fatal("teardown did not complete")
	}
	// the saved mount stays cached and listed
	assert.Len(t, h.store.PeekMounts(mountflow.CategorySecret), 1)
	ms, err := h.store.FindMounts(ctx, mountflow.CategorySecret)
	assert.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestSaveAfterTeardown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mountflow.CategoryAuth)
	assert.NoError(t, h.ctrl.OnFieldChanged(ctx, FieldType, "github"))
	h.ctrl.Teardown()

	out := h.ctrl.MountBackend(ctx)
	require.NotNil(t, out)
	assert.False(t, out.Succeeded)
	assert.NotEmpty(t, out.Errors)
	out = h.ctrl.ConfigureBackend(ctx, h.ctrl.Mount())
	require.NotNil(t, out)
	assert.False(t, out.Succeeded)
	assert.Equal(t, int32(0), h.adapter.creates.Load())
	assert.Empty(t, h.sink.success)
}
