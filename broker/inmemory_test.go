package broker

import (
	"context"
	"testing"
	"time"

	"github.com/runabol/mountflow"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryPublishAndSubscribeForEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewInMemoryBroker()
	received := make(chan any, 10)
	err := b.SubscribeForEvents(ctx, "notification.*", func(ev any) {
		received <- ev
	})
	assert.NoError(t, err)

	n := &mountflow.Notification{Level: mountflow.NotificationSuccess, Message: "ok"}
	assert.NoError(t, b.PublishEvent(ctx, TopicNotificationSuccess, n))
	assert.NoError(t, b.PublishEvent(ctx, TopicWizardTransition, &mountflow.WizardTransition{}))

	select {
	case ev := <-received:
		assert.Equal(t, n, ev)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case ev := <-received:
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(time.Millisecond * 50):
	}
}

func TestInMemoryUnsubscribeOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewInMemoryBroker()
	err := b.SubscribeForEvents(ctx, "*", func(ev any) {})
	assert.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs) == 0
	}, time.Second, time.Millisecond*10)
}

func TestInMemoryShutdown(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBroker()
	assert.NoError(t, b.HealthCheck(ctx))
	assert.NoError(t, b.Shutdown(ctx))
	assert.NoError(t, b.Shutdown(ctx))
	assert.Error(t, b.HealthCheck(ctx))
	assert.Error(t, b.PublishEvent(ctx, TopicMountCreated, &mountflow.MountEvent{}))
}
