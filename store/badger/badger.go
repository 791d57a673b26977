package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/encrypt"
	"github.com/runabol/mountflow/internal/redact"
	"github.com/runabol/mountflow/internal/uuid"
	"github.com/runabol/mountflow/store"
)

// Key layout:
//
//	mounts/<category>/<id>  -> mount JSON
//	configs/<mountID>       -> config JSON
const (
	prefixMounts  = "mounts/"
	prefixConfigs = "configs/"
)

func keyMount(category mountflow.Category, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefixMounts, category, id))
}

func keyMountPrefix(category mountflow.Category) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixMounts, category))
}

func keyConfig(mountID string) []byte {
	return []byte(prefixConfigs + mountID)
}

type BadgerAdapter struct {
	db            *badgerdb.DB
	encryptionKey string
	sealer        *encrypt.Sealer
}

type Option = func(a *BadgerAdapter)

// WithEncryptionKey encrypts sensitive config fields at rest.
func WithEncryptionKey(key string) Option {
	return func(a *BadgerAdapter) {
		a.encryptionKey = key
	}
}

// NewBadgerAdapter opens a Badger database at path. An empty
// path opens a purely in-memory database.
func NewBadgerAdapter(path string, opts ...Option) (*BadgerAdapter, error) {
	a := &BadgerAdapter{}
	for _, o := range opts {
		o(a)
	}
	sealer, err := encrypt.NewSealer(a.encryptionKey, redact.NewRedacter().IsSensitive)
	if err != nil {
		return nil, err
	}
	a.sealer = sealer
	var bopts badgerdb.Options
	if path == "" {
		bopts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badgerdb.DefaultOptions(path)
	}
	bopts = bopts.WithLoggingLevel(badgerdb.WARNING)
	if a.db, err = badgerdb.Open(bopts); err != nil {
		return nil, errors.Wrapf(err, "failed to open badger at %s", path)
	}
	return a, nil
}

func (a *BadgerAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	if m.ID == "" {
		m.ID = uuid.NewUUID()
	}
	return a.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyMount(m.Category, m.ID)); err == nil {
			return errors.Errorf("mount %s already exists", m.ID)
		} else if err != badgerdb.ErrKeyNotFound {
			return err
		}
		return a.putMount(ctx, txn, m)
	})
}

func (a *BadgerAdapter) UpdateMount(ctx context.Context, m *mountflow.Mount) error {
	return a.db.Update(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyMount(m.Category, m.ID)); err == badgerdb.ErrKeyNotFound {
			return store.ErrMountNotFound
		} else if err != nil {
			return err
		}
		return a.putMount(ctx, txn, m)
	})
}

func (a *BadgerAdapter) putMount(ctx context.Context, txn *badgerdb.Txn, m *mountflow.Mount) error {
	existing, err := scanMounts(ctx, txn, m.Category)
	if err != nil {
		return err
	}
	for _, x := range existing {
		if x.ID != m.ID && strings.TrimSuffix(x.Path, "/") == strings.TrimSuffix(m.Path, "/") {
			return store.NewValidationError("path", "path is already in use at %s", m.Path)
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize mount")
	}
	return txn.Set(keyMount(m.Category, m.ID), b)
}

func scanMounts(ctx context.Context, txn *badgerdb.Txn, category mountflow.Category) ([]*mountflow.Mount, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = keyMountPrefix(category)
	it := txn.NewIterator(opts)
	defer it.Close()
	result := make([]*mountflow.Mount, 0)
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := &mountflow.Mount{}
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, m)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "error deserializing mount %s", it.Item().Key())
		}
		result = append(result, m)
	}
	return result, nil
}

func (a *BadgerAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	return a.db.Update(func(txn *badgerdb.Txn) error {
		if !a.mountExists(txn, c.MountID) {
			return store.ErrMountNotFound
		}
		item, err := txn.Get(keyConfig(c.MountID))
		switch {
		case err == nil:
			existing := &mountflow.BackendConfig{}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, existing)
			}); err != nil {
				return errors.Wrapf(err, "error deserializing config of mount %s", c.MountID)
			}
			c.ID = existing.ID
		case err == badgerdb.ErrKeyNotFound:
			if c.ID == "" {
				c.ID = uuid.NewUUID()
			}
		default:
			return err
		}
		sealed := c.Clone()
		if sealed.Fields, err = a.sealer.SealFields(c.Fields); err != nil {
			return err
		}
		b, err := json.Marshal(sealed)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize config")
		}
		return txn.Set(keyConfig(c.MountID), b)
	})
}

func (a *BadgerAdapter) mountExists(txn *badgerdb.Txn, mountID string) bool {
	for _, category := range []mountflow.Category{mountflow.CategoryAuth, mountflow.CategorySecret} {
		if _, err := txn.Get(keyMount(category, mountID)); err == nil {
			return true
		}
	}
	return false
}

func (a *BadgerAdapter) ListMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error) {
	var result []*mountflow.Mount
	err := a.db.View(func(txn *badgerdb.Txn) error {
		var err error
		result, err = scanMounts(ctx, txn, category)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result, nil
}

func (a *BadgerAdapter) GetConfig(ctx context.Context, mountID string) (*mountflow.BackendConfig, error) {
	c := &mountflow.BackendConfig{}
	err := a.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyConfig(mountID))
		if err == badgerdb.ErrKeyNotFound {
			return store.ErrConfigNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, c)
		})
	})
	if err != nil {
		return nil, err
	}
	if c.Fields, err = a.sealer.OpenFields(c.Fields); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *BadgerAdapter) HealthCheck(ctx context.Context) error {
	if a.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func (a *BadgerAdapter) Close() error {
	log.Debug().Msg("closing badger")
	return a.db.Close()
}
