package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/cache"
	"github.com/runabol/mountflow/internal/uuid"
	"github.com/runabol/mountflow/store"
)

// InMemoryAdapter keeps mounts and configs in process memory.
// Meant for local development, tests etc.
type InMemoryAdapter struct {
	mounts  *cache.Cache[*mountflow.Mount]
	configs *cache.Cache[*mountflow.BackendConfig]
	// serializes the path uniqueness check with the write
	mu sync.Mutex
}

func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{
		mounts:  cache.New[*mountflow.Mount](cache.NoExpiration, 0),
		configs: cache.New[*mountflow.BackendConfig](cache.NoExpiration, 0),
	}
}

func (a *InMemoryAdapter) CreateMount(ctx context.Context, m *mountflow.Mount) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewUUID()
	}
	if _, ok := a.mounts.Get(m.ID); ok {
		return errors.Errorf("mount %s already exists", m.ID)
	}
	if a.pathInUse(m) {
		return store.NewValidationError("path", "path is already in use at %s", m.Path)
	}
	a.mounts.Set(m.ID, m.Clone())
	return nil
}

func (a *InMemoryAdapter) UpdateMount(ctx context.Context, m *mountflow.Mount) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pathInUse(m) {
		return store.NewValidationError("path", "path is already in use at %s", m.Path)
	}
	err := a.mounts.Modify(m.ID, func(x *mountflow.Mount) (*mountflow.Mount, error) {
		return m.Clone(), nil
	})
	if errors.Is(err, cache.ErrNotFound) {
		return store.ErrMountNotFound
	}
	return err
}

func (a *InMemoryAdapter) pathInUse(m *mountflow.Mount) bool {
	inUse := false
	a.mounts.Iterate(func(_ string, x *mountflow.Mount) {
		if x.ID != m.ID && x.Category == m.Category && normalize(x.Path) == normalize(m.Path) {
			inUse = true
		}
	})
	return inUse
}

func normalize(path string) string {
	for len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

func (a *InMemoryAdapter) SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error {
	if _, ok := a.mounts.Get(c.MountID); !ok {
		return store.ErrMountNotFound
	}
	if existing, ok := a.configs.Get(c.MountID); ok {
		c.ID = existing.ID
	} else if c.ID == "" {
		c.ID = uuid.NewUUID()
	}
	a.configs.Set(c.MountID, c.Clone())
	return nil
}

func (a *InMemoryAdapter) ListMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error) {
	result := make([]*mountflow.Mount, 0)
	a.mounts.Iterate(func(_ string, m *mountflow.Mount) {
		if m.Category == category {
			result = append(result, m.Clone())
		}
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result, nil
}

func (a *InMemoryAdapter) GetConfig(ctx context.Context, mountID string) (*mountflow.BackendConfig, error) {
	c, ok := a.configs.Get(mountID)
	if !ok {
		return nil, store.ErrConfigNotFound
	}
	return c.Clone(), nil
}

func (a *InMemoryAdapter) HealthCheck(ctx context.Context) error {
	return nil
}
