package broker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow/internal/wildcard"
)

const defaultQueueSize = 1000

// InMemoryBroker a very simple implementation of the Broker interface
// which uses in-memory channels to exchange events. Meant for local
// development, tests etc.
type InMemoryBroker struct {
	mu        sync.RWMutex
	subs      []*subscriber
	terminate bool
}

type subscriber struct {
	pattern string
	ch      chan any
	done    chan struct{}
}

func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{}
}

func (b *InMemoryBroker) PublishEvent(ctx context.Context, topic string, event any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.terminate {
		return errors.New("broker is shutting down")
	}
	for _, sub := range b.subs {
		if !wildcard.Match(sub.pattern, topic) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *InMemoryBroker) SubscribeForEvents(ctx context.Context, pattern string, handler func(event any)) error {
	sub := &subscriber{
		pattern: pattern,
		ch:      make(chan any, defaultQueueSize),
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	if b.terminate {
		b.mu.Unlock()
		return errors.New("broker is shutting down")
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	go func() {
		for {
			select {
			case <-ctx.Done():
				b.unsubscribe(sub)
				return
			case <-sub.done:
				return
			case ev := <-sub.ch:
				handler(ev)
			}
		}
	}()
	log.Debug().Msgf("subscribed for events matching %s", pattern)
	return nil
}

func (b *InMemoryBroker) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(sub.done)
			return
		}
	}
}

func (b *InMemoryBroker) HealthCheck(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.terminate {
		return errors.New("broker is shutting down")
	}
	return nil
}

func (b *InMemoryBroker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminate {
		return nil
	}
	b.terminate = true
	for _, sub := range b.subs {
		close(sub.done)
	}
	b.subs = nil
	return nil
}
