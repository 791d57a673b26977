package store_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/store"
	"github.com/runabol/mountflow/store/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAdapter struct {
	store.Adapter
	creates atomic.Int32
	updates atomic.Int32
	configs atomic.Int32
}

func (a *countingAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	a.creates.Add(1)
	return a.Adapter.CreateMount(ctx, m)
}

func (a *countingAdapter) UpdateMount(ctx context.Context, m *mountflow.Mount) error {
	a.updates.Add(1)
	return a.Adapter.UpdateMount(ctx, m)
}

func (a *countingAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	a.configs.Add(1)
	return a.Adapter.SaveConfig(ctx, c)
}

func newStore() (*store.Store, *countingAdapter) {
	a := &countingAdapter{Adapter: inmemory.NewInMemoryAdapter()}
	return store.New(a), a
}

func TestCreateMountInvalidCategory(t *testing.T) {
	s, _ := newStore()
	_, err := s.CreateMount("bogus")
	assert.Error(t, err)
}

func TestCreateMountRecordType(t *testing.T) {
	s, _ := newStore()
	auth, err := s.CreateMount(mountflow.CategoryAuth)
	require.NoError(t, err)
	assert.Equal(t, "auth-method", auth.RecordType())
	secret, err := s.CreateMount(mountflow.CategorySecret)
	require.NoError(t, err)
	assert.Equal(t, "secret-engine", secret.RecordType())
}

func TestMountRecordUpdateKeepsIdentity(t *testing.T) {
	s, _ := newStore()
	r, err := s.CreateMount(mountflow.CategoryAuth)
	require.NoError(t, err)
	r.Update(func(m *mountflow.Mount) {
		m.ID = "hijacked"
		m.Category = mountflow.CategorySecret
		m.Type = "aws"
	})
	m := r.Mount()
	assert.Equal(t, "", m.ID)
	assert.Equal(t, mountflow.CategoryAuth, m.Category)
	assert.Equal(t, "aws", m.Type)
	assert.Equal(t, []string{"type"}, r.ChangedAttributes())
	assert.True(t, r.IsNew())
	assert.True(t, r.IsLoaded())
}

func TestMountRecordSaveValidation(t *testing.T) {
	ctx := context.Background()
	s, a := newStore()
	r, err := s.CreateMount(mountflow.CategoryAuth)
	require.NoError(t, err)

	err = r.Save(ctx)
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verr, r.Errors())
	assert.Equal(t, []string{"type is required.", "path is required."}, verr.Messages())
	assert.Equal(t, "type", verr.Errors[0].Field)
	assert.True(t, r.IsNew())
	assert.Equal(t, int32(0), a.creates.Load())

	r.Update(func(m *mountflow.Mount) {
		m.Type = "aws"
		m.Path = "/aws"
		m.Config.DefaultLeaseTTL = "forever"
	})
	err = r.Save(ctx)
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "path", verr.Errors[0].Field)
	assert.Equal(t, "defaultLeaseTtl", verr.Errors[1].Field)
}

func TestMountRecordSave(t *testing.T) {
	ctx := context.Background()
	s, a := newStore()
	r, err := s.CreateMount(mountflow.CategoryAuth)
	require.NoError(t, err)
	r.Update(func(m *mountflow.Mount) {
		m.Type = "aws"
		m.Path = "aws"
	})
	assert.NoError(t, r.Save(ctx))
	assert.False(t, r.IsNew())
	assert.Nil(t, r.Errors())
	assert.Empty(t, r.ChangedAttributes())
	m := r.Mount()
	assert.NotEmpty(t, m.ID)
	assert.NotNil(t, m.CreatedAt)

	ms, err := s.FindMounts(ctx, mountflow.CategoryAuth)
	assert.NoError(t, err)
	assert.Len(t, ms, 1)
	assert.Equal(t, m.ID, ms[0].ID)

	// saving an unchanged persisted mount does not hit the adapter
	assert.NoError(t, r.Save(ctx))
	assert.Equal(t, int32(1), a.creates.Load())
	assert.Equal(t, int32(0), a.updates.Load())

	r.Update(func(m *mountflow.Mount) {
		m.Description = "updated"
	})
	assert.NoError(t, r.Save(ctx))
	assert.Equal(t, int32(1), a.updates.Load())
}

func TestMountRecordSaveAdapterError(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	r1, _ := s.CreateMount(mountflow.CategoryAuth)
	r1.Update(func(m *mountflow.Mount) { m.Type = "aws"; m.Path = "aws" })
	assert.NoError(t, r1.Save(ctx))

	r2, _ := s.CreateMount(mountflow.CategoryAuth)
	r2.Update(func(m *mountflow.Mount) { m.Type = "aws"; m.Path = "aws" })
	err := r2.Save(ctx)
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"path is already in use at aws"}, verr.Messages())
	assert.True(t, r2.IsNew())
}

func TestMountRecordRollback(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore()
	r, _ := s.CreateMount(mountflow.CategoryAuth)
	assert.Len(t, s.PeekMounts(mountflow.CategoryAuth), 1)
	r.Update(func(m *mountflow.Mount) { m.Type = "aws" })
	r.Rollback()
	assert.False(t, r.IsLoaded())
	assert.Empty(t, s.PeekMounts(mountflow.CategoryAuth))

	r2, _ := s.CreateMount(mountflow.CategorySecret)
	r2.Update(func(m *mountflow.Mount) { m.Type = "kv"; m.Path = "kv" })
	require.NoError(t, r2.Save(ctx))
	r2.Update(func(m *mountflow.Mount) { m.Path = "other" })
	r2.Rollback()
	assert.True(t, r2.IsLoaded())
	assert.Equal(t, "kv", r2.Mount().Path)
	assert.Empty(t, r2.ChangedAttributes())
	assert.Len(t, s.PeekMounts(mountflow.CategorySecret), 1)
}

func TestConfigRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	s, a := newStore()
	_, err := s.CreateConfig("")
	assert.Error(t, err)

	mr, _ := s.CreateMount(mountflow.CategoryAuth)
	mr.Update(func(m *mountflow.Mount) { m.Type = "github"; m.Path = "github" })
	cr, err := s.CreateConfig("auth-config/github")
	require.NoError(t, err)
	assert.Nil(t, mr.Config())
	mr.AttachConfig(cr)
	assert.Equal(t, cr, mr.Config())
	assert.Equal(t, mr, cr.MountRecord())
	assert.Len(t, s.PeekConfigs("auth-config/github"), 1)
	assert.Empty(t, cr.ChangedAttributes())

	cr.Set("organization", "acme")
	assert.Equal(t, []string{"organization"}, cr.ChangedAttributes())

	// the mount must be saved first
	err = cr.Save(ctx)
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "mount", verr.Errors[0].Field)

	require.NoError(t, mr.Save(ctx))
	require.NoError(t, cr.Save(ctx))
	assert.False(t, cr.IsNew())
	assert.Empty(t, cr.ChangedAttributes())
	assert.Equal(t, mr.Mount().ID, cr.Config().MountID)
	assert.Equal(t, int32(1), a.configs.Load())

	saved, err := a.GetConfig(ctx, mr.Mount().ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", saved.Fields["organization"])

	cr.SetFields(map[string]any{"organization": "other", "base_url": "https://github.example.com"})
	assert.Equal(t, []string{"base_url", "organization"}, cr.ChangedAttributes())
	cr.Rollback()
	assert.True(t, cr.IsLoaded())
	assert.Equal(t, "acme", cr.Config().Fields["organization"])

	cr.Unload()
	assert.Nil(t, mr.Config())
	assert.Empty(t, s.PeekConfigs("auth-config/github"))
}

func TestConfigRecordTypedValidation(t *testing.T) {
	ctx := context.Background()
	s, a := newStore()
	mr, _ := s.CreateMount(mountflow.CategoryAuth)
	mr.Update(func(m *mountflow.Mount) { m.Type = "kubernetes"; m.Path = "kubernetes" })
	require.NoError(t, mr.Save(ctx))
	cr, _ := s.CreateConfig("auth-config/kubernetes")
	mr.AttachConfig(cr)

	cr.Set("kubernetes_ca_cert", "----")
	err := cr.Save(ctx)
	var verr *store.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kubernetes_host", verr.Errors[0].Field)
	assert.Equal(t, "kubernetes_host is required.", verr.Errors[0].Message)
	assert.Equal(t, verr, cr.Errors())

	cr.Set("kubernetes_host", "https://10.0.0.1:6443")
	cr.Set("bogus", "value")
	err = cr.Save(ctx)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fields", verr.Errors[0].Field)

	cr.Set("bogus", nil)
	assert.NoError(t, cr.Save(ctx))
	assert.Nil(t, cr.Errors())
	assert.Equal(t, int32(1), a.configs.Load())
}

func TestConfigRecordRollbackNew(t *testing.T) {
	s, _ := newStore()
	cr, _ := s.CreateConfig("auth-config/aws/client")
	cr.Set("region", "us-east-1")
	cr.Rollback()
	assert.False(t, cr.IsLoaded())
	assert.Empty(t, cr.Config().Fields)
}

func TestValidationError(t *testing.T) {
	verr := store.NewValidationError("path", "path %s is bad.", "x")
	assert.Equal(t, "validation failed: path x is bad.", verr.Error())
	assert.Nil(t, store.AsValidationError(nil))
	assert.Equal(t, verr, store.AsValidationError(verr))
	assert.Equal(t, []string{assert.AnError.Error()}, store.AsValidationError(assert.AnError).Messages())
}
