package store

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/clone"
	"github.com/runabol/mountflow/internal/syncx"
	"github.com/runabol/mountflow/internal/uuid"
	"golang.org/x/exp/maps"
)

// Store is a cache of mount and config records in front of an Adapter.
// Records are created unsaved, edited in place and persisted with Save.
// Unsaved records only ever live in the cache.
type Store struct {
	adapter  Adapter
	mounts   *syncx.Map[string, *MountRecord]
	configs  *syncx.Map[string, *ConfigRecord]
	validate *validator.Validate
	seq      atomic.Int64
}

func New(adapter Adapter) *Store {
	return &Store{
		adapter:  adapter,
		mounts:   new(syncx.Map[string, *MountRecord]),
		configs:  new(syncx.Map[string, *ConfigRecord]),
		validate: newValidator(),
	}
}

func (s *Store) Adapter() Adapter {
	return s.adapter
}

// CreateMount allocates a new, unsaved mount record of the given category.
func (s *Store) CreateMount(category mountflow.Category) (*MountRecord, error) {
	if !category.IsValid() {
		return nil, errors.Errorf("invalid mount category: %s", category)
	}
	r := &MountRecord{
		store:    s,
		id:       uuid.NewUUID(),
		seq:      s.seq.Add(1),
		data:     &mountflow.Mount{Category: category},
		baseline: &mountflow.Mount{Category: category},
	}
	s.mounts.Set(r.id, r)
	log.Debug().
		Str("record-id", r.id).
		Str("record-type", category.RecordType()).
		Msg("mount record created")
	return r, nil
}

// CreateConfig allocates a new, unsaved config record of the given
// configuration resource type.
func (s *Store) CreateConfig(configType string) (*ConfigRecord, error) {
	if configType == "" {
		return nil, errors.New("config type is required")
	}
	r := &ConfigRecord{
		store:    s,
		id:       uuid.NewUUID(),
		seq:      s.seq.Add(1),
		data:     &mountflow.BackendConfig{Type: configType, Fields: map[string]any{}},
		baseline: map[string]any{},
	}
	s.configs.Set(r.id, r)
	return r, nil
}

// PeekMounts returns the cached mount records of a category,
// in the order they were created.
func (s *Store) PeekMounts(category mountflow.Category) []*MountRecord {
	result := make([]*MountRecord, 0)
	s.mounts.Iterate(func(_ string, r *MountRecord) {
		if r.Category() == category {
			result = append(result, r)
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}

// PeekConfigs returns the cached config records of a config type,
// in the order they were created.
func (s *Store) PeekConfigs(configType string) []*ConfigRecord {
	result := make([]*ConfigRecord, 0)
	s.configs.Iterate(func(_ string, r *ConfigRecord) {
		if r.Type() == configType {
			result = append(result, r)
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}

// FindMounts lists the persisted mounts of a category.
func (s *Store) FindMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error) {
	return s.adapter.ListMounts(ctx, category)
}

type MountRecord struct {
	mu        sync.RWMutex
	store     *Store
	id        string
	seq       int64
	data      *mountflow.Mount
	baseline  *mountflow.Mount
	persisted bool
	config    *ConfigRecord
	errs      *ValidationError
}

// ID is the identity of the record in the cache. It stays the
// same for the lifetime of the record, before and after saving.
func (r *MountRecord) ID() string {
	return r.id
}

// RecordType is the resource type of the mount, auth-method or
// secret-engine.
func (r *MountRecord) RecordType() string {
	return r.Category().RecordType()
}

func (r *MountRecord) Category() mountflow.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Category
}

// Mount returns a copy of the current state of the mount.
func (r *MountRecord) Mount() *mountflow.Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Clone()
}

// Update mutates the mount in place. The ID, the category and
// the creation time of a mount can not be changed.
func (r *MountRecord) Update(f func(m *mountflow.Mount)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, category, createdAt := r.data.ID, r.data.Category, r.data.CreatedAt
	f(r.data)
	r.data.ID, r.data.Category, r.data.CreatedAt = id, category, createdAt
}

func (r *MountRecord) IsNew() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.persisted
}

func (r *MountRecord) IsLoaded() bool {
	_, ok := r.store.mounts.Get(r.id)
	return ok
}

func (r *MountRecord) Errors() *ValidationError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errs
}

// ChangedAttributes lists the attributes edited since the
// record was created or last saved.
func (r *MountRecord) ChangedAttributes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return changedMountAttributes(r.baseline, r.data)
}

func changedMountAttributes(a, b *mountflow.Mount) []string {
	changed := make([]string, 0)
	if a.Type != b.Type {
		changed = append(changed, "type")
	}
	if a.Path != b.Path {
		changed = append(changed, "path")
	}
	if a.Description != b.Description {
		changed = append(changed, "description")
	}
	if a.Local != b.Local {
		changed = append(changed, "local")
	}
	if a.SealWrap != b.SealWrap {
		changed = append(changed, "sealWrap")
	}
	if a.Config.DefaultLeaseTTL != b.Config.DefaultLeaseTTL {
		changed = append(changed, "config.defaultLeaseTtl")
	}
	if a.Config.MaxLeaseTTL != b.Config.MaxLeaseTTL {
		changed = append(changed, "config.maxLeaseTtl")
	}
	if !maps.Equal(a.Options, b.Options) {
		changed = append(changed, "options")
	}
	return changed
}

// Save validates and persists the mount. On failure the returned
// *ValidationError is also kept as the error state of the record.
func (r *MountRecord) Save(ctx context.Context) error {
	r.mu.RLock()
	m := r.data.Clone()
	persisted := r.persisted
	changed := changedMountAttributes(r.baseline, r.data)
	r.mu.RUnlock()
	if err := r.store.validate.Struct(m); err != nil {
		return r.fail(toValidationError(err))
	}
	var err error
	if !persisted {
		now := time.Now().UTC()
		m.CreatedAt = &now
		err = r.store.adapter.CreateMount(ctx, m)
	} else if len(changed) > 0 {
		err = r.store.adapter.UpdateMount(ctx, m)
	}
	if err != nil {
		return r.fail(AsValidationError(err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.ID = m.ID
	r.data.CreatedAt = m.CreatedAt
	r.baseline = m
	r.persisted = true
	r.errs = nil
	return nil
}

func (r *MountRecord) fail(verr *ValidationError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = verr
	return verr
}

// Rollback discards unsaved edits. A record that was never
// persisted is removed from the cache altogether.
func (r *MountRecord) Rollback() {
	r.mu.Lock()
	r.errs = nil
	r.data = r.baseline.Clone()
	persisted := r.persisted
	r.mu.Unlock()
	if !persisted {
		r.Unload()
	}
}

// Unload removes the record from the cache.
func (r *MountRecord) Unload() {
	r.store.mounts.Delete(r.id)
}

// Config returns the config record attached to the mount, if
// there is one that is still loaded.
func (r *MountRecord) Config() *ConfigRecord {
	r.mu.RLock()
	c := r.config
	r.mu.RUnlock()
	if c == nil || !c.IsLoaded() {
		return nil
	}
	return c
}

// AttachConfig makes c the config of the mount, replacing any
// previously attached one.
func (r *MountRecord) AttachConfig(c *ConfigRecord) {
	r.mu.Lock()
	r.config = c
	r.mu.Unlock()
	if c != nil {
		c.mu.Lock()
		c.mount = r
		c.mu.Unlock()
	}
}

type ConfigRecord struct {
	mu        sync.RWMutex
	store     *Store
	id        string
	seq       int64
	data      *mountflow.BackendConfig
	baseline  map[string]any
	persisted bool
	mount     *MountRecord
	errs      *ValidationError
}

func (r *ConfigRecord) ID() string {
	return r.id
}

func (r *ConfigRecord) Type() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Type
}

// Config returns a copy of the current state of the config.
func (r *ConfigRecord) Config() *mountflow.BackendConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Clone()
}

// MountRecord returns the mount the config is attached to.
func (r *ConfigRecord) MountRecord() *MountRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mount
}

// Set sets a single field. A nil value removes the field.
func (r *ConfigRecord) Set(field string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value == nil {
		delete(r.data.Fields, field)
		return
	}
	r.data.Fields[field] = value
}

// SetFields merges fields into the config.
func (r *ConfigRecord) SetFields(fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range clone.CloneAnyMap(fields) {
		if v == nil {
			delete(r.data.Fields, k)
			continue
		}
		r.data.Fields[k] = v
	}
}

func (r *ConfigRecord) IsNew() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.persisted
}

func (r *ConfigRecord) IsLoaded() bool {
	_, ok := r.store.configs.Get(r.id)
	return ok
}

func (r *ConfigRecord) Errors() *ValidationError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errs
}

// ChangedAttributes lists the fields edited since the record
// was created or last saved, sorted by name.
func (r *ConfigRecord) ChangedAttributes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return changedFields(r.baseline, r.data.Fields)
}

func changedFields(a, b map[string]any) []string {
	changed := make([]string, 0)
	for k, v := range b {
		if old, ok := a[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = append(changed, k)
		}
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	return changed
}

// Save validates and persists the config. The mount it is attached
// to must have been persisted first.
func (r *ConfigRecord) Save(ctx context.Context) error {
	r.mu.RLock()
	c := r.data.Clone()
	owner := r.mount
	r.mu.RUnlock()
	if owner == nil {
		return r.fail(NewValidationError("mount", "the configuration is not attached to a mount."))
	}
	if owner.IsNew() {
		return r.fail(NewValidationError("mount", "the mount must be saved before its configuration."))
	}
	c.MountID = owner.Mount().ID
	if shape, ok := configShapes[c.Type]; ok {
		target := shape()
		if verr := decodeFields(c.Fields, target); verr != nil {
			return r.fail(verr)
		}
		if err := r.store.validate.Struct(target); err != nil {
			return r.fail(toValidationError(err))
		}
	}
	now := time.Now().UTC()
	c.UpdatedAt = &now
	if err := r.store.adapter.SaveConfig(ctx, c); err != nil {
		return r.fail(AsValidationError(err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.ID = c.ID
	r.data.MountID = c.MountID
	r.data.UpdatedAt = c.UpdatedAt
	r.baseline = clone.CloneAnyMap(c.Fields)
	r.persisted = true
	r.errs = nil
	return nil
}

func (r *ConfigRecord) fail(verr *ValidationError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = verr
	return verr
}

// Rollback discards unsaved edits. A record that was never
// persisted is removed from the cache altogether.
func (r *ConfigRecord) Rollback() {
	r.mu.Lock()
	r.errs = nil
	r.data.Fields = clone.CloneAnyMap(r.baseline)
	persisted := r.persisted
	r.mu.Unlock()
	if !persisted {
		r.Unload()
	}
}

// Unload removes the record from the cache.
func (r *ConfigRecord) Unload() {
	r.store.configs.Delete(r.id)
}
