package broker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const (
	BROKER_INMEMORY = "inmemory"
	BROKER_RABBITMQ = "rabbitmq"
)

const (
	TopicWizardTransition    = "wizard.transition"
	TopicNotificationSuccess = "notification.success"
	TopicNotificationDanger  = "notification.danger"
	TopicMountCreated        = "mount.created"
	TopicMountConfigured     = "mount.configured"
)

// Broker is the pub/sub mechanism used to fan workflow
// events (notifications, wizard transitions, mount changes)
// out to interested parties.
type Broker interface {
	PublishEvent(ctx context.Context, topic string, event any) error
	SubscribeForEvents(ctx context.Context, pattern string, handler func(event any)) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type Provider func() (Broker, error)

var (
	providers           = map[string]Provider{}
	providersMu         = sync.RWMutex{}
	ErrProviderNotFound = errors.New("broker provider not found")
)

func NewFromProvider(name string) (Broker, error) {
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
		panic("broker: Register called twice for provider " + name)
	}
	providers[name] = provider
}
