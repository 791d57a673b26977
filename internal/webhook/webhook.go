package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	webhookDefaultMaxAttempts = 5
	webhookDefaultTimeout     = time.Second * 5
)

// Webhook is an HTTP endpoint events are POSTed to as JSON.
type Webhook struct {
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

var retryableStatusCodes = map[int]bool{
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// backoff is the pause before the given retry attempt.
var backoff = func(attempt int) time.Duration {
	return time.Second * time.Duration(attempt*2)
}

func isRetryable(statusCode int) bool {
	return retryableStatusCodes[statusCode]
}

func Call(ctx context.Context, wh *Webhook, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "[Webhook] error serializing body")
	}
	client := http.Client{
		Timeout: webhookDefaultTimeout,
	}
	for attempts := 1; attempts <= webhookDefaultMaxAttempts; attempts++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
		for name, val := range wh.Headers {
			req.Header.Set(name, val)
		}
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrapf(err, "[Webhook] request to %s failed", wh.URL)
		}
		_ = resp.Body.Close()
		// Success
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		// Check if the status code is retryable
		if !isRetryable(resp.StatusCode) {
			return errors.Errorf("[Webhook] request to %s failed with non-retryable status %d", wh.URL, resp.StatusCode)
		}
		log.Warn().Msgf("[Webhook] request to %s failed with %d", wh.URL, resp.StatusCode)
		// sleep a little before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempts)):
		}
	}
	return errors.Errorf("[Webhook] failed to call webhook %s. max attempts: %d", wh.URL, webhookDefaultMaxAttempts)
}
