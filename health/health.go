package health

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"

	ServiceStore  = "store"
	ServiceBroker = "broker"
	ServiceLocker = "locker"
)

const defaultTimeout = 5 * time.Second

type HealthIndicator func(ctx context.Context) error

type HealthCheckResult struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services,omitempty"`
}

type HealthCheck struct {
	indicators map[string]HealthIndicator
	timeout    time.Duration
}

func (b *HealthCheck) WithIndicator(name string, ind HealthIndicator) *HealthCheck {
	name = strings.TrimSpace(name)
	if name == "" {
		panic("health indicator name must not be empty")
	}
	if _, ok := b.indicators[name]; ok {
		panic(fmt.Sprintf("health indicator with name %s already exists", name))
	}
	b.indicators[name] = ind
	return b
}

// WithTimeout bounds how long each indicator may take.
func (b *HealthCheck) WithTimeout(d time.Duration) *HealthCheck {
	b.timeout = d
	return b
}

func NewHealthCheck() *HealthCheck {
	return &HealthCheck{
		indicators: make(map[string]HealthIndicator),
		timeout:    defaultTimeout,
	}
}

// Do runs every indicator concurrently. The overall status is DOWN
// as soon as one of them fails.
func (b *HealthCheck) Do(ctx context.Context) HealthCheckResult {
	var mu sync.Mutex
	var wg sync.WaitGroup
	services := make(map[string]string, len(b.indicators))
	status := StatusUp
	for name, ind := range b.indicators {
		wg.Add(1)
		go func(name string, ind HealthIndicator) {
			defer wg.Done()
			ictx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			err := ind(ictx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Msgf("failed %s healthcheck", name)
				services[name] = StatusDown
				status = StatusDown
				return
			}
			services[name] = StatusUp
		}(name, ind)
	}
	wg.Wait()
	return HealthCheckResult{
		Status:   status,
		Version:  mountflow.FormattedVersion(),
		Services: services,
	}
}
