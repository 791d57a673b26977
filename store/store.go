package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/runabol/mountflow"
)

const (
	STORE_INMEMORY = "inmemory"
	STORE_POSTGRES = "postgres"
	STORE_BADGER   = "badger"
	STORE_VAULT    = "vault"
)

var (
	ErrMountNotFound  = errors.New("mount not found")
	ErrConfigNotFound = errors.New("config not found")
)

// Adapter persists mounts and their backend configuration.
//
// CreateMount assigns the mount ID when it is empty. Rejections
// by the backend are reported as *ValidationError so that they
// can be shown next to the offending fields.
type Adapter interface {
	CreateMount(ctx context.Context, m *mountflow.Mount) error
	UpdateMount(ctx context.Context, m *mountflow.Mount) error
	SaveConfig(ctx context.Context, c *mountflow.BackendConfig) error
	ListMounts(ctx context.Context, category mountflow.Category) ([]*mountflow.Mount, error)
	GetConfig(ctx context.Context, mountID string) (*mountflow.BackendConfig, error)
	HealthCheck(ctx context.Context) error
}

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError is the error state of a record after a failed save.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), " ")
}

// Messages returns the messages of all field errors in order.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return msgs
}

// NewValidationError builds a validation error carrying a
// single message for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Errors: []FieldError{{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}}}
}

// AsValidationError converts err into a validation error. Errors
// which are not validation errors already (transport failures and
// the like) become a single message without a field.
func AsValidationError(err error) *ValidationError {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &ValidationError{Errors: []FieldError{{Message: err.Error()}}}
}

type Provider func() (Adapter, error)

var (
	providers           = map[string]Provider{}
	providersMu         = sync.RWMutex{}
	ErrProviderNotFound = errors.Errorf("store provider not found")
)

func NewFromProvider(name string) (Adapter, error) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	if p, ok := providers[name]; ok {
		return p()
	}
	return nil, ErrProviderNotFound
}

func RegisterProvider(name string, provider Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if _, ok := providers[name]; ok {
		panic("store: Register called twice for provider " + name)
	}
	providers[name] = provider
}
