package notify

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/broker"
)

// BrokerSink publishes notifications on the notification.* topics.
type BrokerSink struct {
	broker broker.Broker
}

func NewBrokerSink(b broker.Broker) *BrokerSink {
	return &BrokerSink{broker: b}
}

func (s *BrokerSink) Success(ctx context.Context, msg string) {
	s.publish(ctx, broker.TopicNotificationSuccess, newNotification(mountflow.NotificationSuccess, msg))
}

func (s *BrokerSink) Danger(ctx context.Context, msg string) {
	s.publish(ctx, broker.TopicNotificationDanger, newNotification(mountflow.NotificationDanger, msg))
}

func (s *BrokerSink) publish(ctx context.Context, topic string, n *mountflow.Notification) {
	if err := s.broker.PublishEvent(ctx, topic, n); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Msg("error publishing notification")
	}
}
