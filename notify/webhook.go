package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/webhook"
)

// WebhookSink POSTs notifications to a webhook. Calls are made in
// the background so that a slow endpoint never holds up a workflow.
type WebhookSink struct {
	wh *webhook.Webhook
	wg sync.WaitGroup
}

func NewWebhookSink(url string, headers map[string]string) *WebhookSink {
	return &WebhookSink{wh: &webhook.Webhook{URL: url, Headers: headers}}
}

func (s *WebhookSink) Success(ctx context.Context, msg string) {
	s.call(ctx, newNotification(mountflow.NotificationSuccess, msg))
}

func (s *WebhookSink) Danger(ctx context.Context, msg string) {
	s.call(ctx, newNotification(mountflow.NotificationDanger, msg))
}

func (s *WebhookSink) call(ctx context.Context, n *mountflow.Notification) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := webhook.Call(context.WithoutCancel(ctx), s.wh, n); err != nil {
			log.Info().Err(err).Msgf("[Webhook] error delivering notification %s", n.ID)
		}
	}()
}

// Wait blocks until all pending webhook calls completed.
func (s *WebhookSink) Wait() {
	s.wg.Wait()
}
