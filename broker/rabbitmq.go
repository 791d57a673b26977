package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"github.com/runabol/mountflow"
	"github.com/runabol/mountflow/internal/syncx"
	"github.com/runabol/mountflow/internal/uuid"
)

const (
	exchangeTopic         = "amq.topic"
	queueExclusivePrefix  = "x-"
	defaultConnPoolSize   = 3
	maxResubscribeAttempt = 20
)

type RabbitMQBroker struct {
	connPool      []*amqp.Connection
	nextConn      int
	queues        *syncx.Map[string, string]
	subscriptions map[string]*subscription
	mu            sync.RWMutex
	url           string
	shuttingDown  bool
	durable       bool
}

type subscription struct {
	qname string
	done  chan struct{}
}

type Option = func(b *RabbitMQBroker)

// WithDurableQueues sets the durable flag upon queue creation.
// Durable queues can survive broker restarts.
func WithDurableQueues(val bool) Option {
	return func(b *RabbitMQBroker) {
		b.durable = val
	}
}

func NewRabbitMQBroker(url string, opts ...Option) (*RabbitMQBroker, error) {
	connPool := make([]*amqp.Connection, defaultConnPoolSize)
	for i := 0; i < len(connPool); i++ {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, errors.Wrapf(err, "error dialing to RabbitMQ")
		}
		connPool[i] = conn
	}
	b := &RabbitMQBroker{
		queues:        new(syncx.Map[string, string]),
		url:           url,
		connPool:      connPool,
		subscriptions: make(map[string]*subscription),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func (b *RabbitMQBroker) PublishEvent(ctx context.Context, topic string, event any) error {
	conn, err := b.getConnection()
	if err != nil {
		return errors.Wrapf(err, "error getting a connection")
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrapf(err, "error creating channel")
	}
	defer closeChannel(ch)
	body, err := serialize(event)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		exchangeTopic, // exchange
		topic,         // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			Type:        fmt.Sprintf("%T", event),
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now().UTC(),
		})
	if err != nil {
		return errors.Wrapf(err, "unable to publish event to %s", topic)
	}
	return nil
}

// SubscribeForEvents binds an exclusive queue to the topic exchange.
// The pattern uses '*' as a wildcard, which is translated to the
// AMQP multi-word wildcard '#'.
func (b *RabbitMQBroker) SubscribeForEvents(ctx context.Context, pattern string, handler func(event any)) error {
	key := strings.ReplaceAll(pattern, "*", "#")
	qname := fmt.Sprintf("%s%s", queueExclusivePrefix, uuid.NewShortUUID())
	return b.subscribe(ctx, key, qname, handler)
}

func (b *RabbitMQBroker) subscribe(ctx context.Context, key, qname string, handler func(event any)) error {
	conn, err := b.getConnection()
	if err != nil {
		return errors.Wrapf(err, "error getting a connection")
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrapf(err, "error creating channel")
	}
	if err := b.declareQueue(key, qname, ch); err != nil {
		closeChannel(ch)
		return errors.Wrapf(err, "error (re)declaring queue")
	}
	cname := uuid.NewUUID()
	msgs, err := ch.Consume(
		qname, // queue
		cname, // consumer name
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		closeChannel(ch)
		return errors.Wrapf(err, "unable to subscribe on q: %s", qname)
	}
	id := uuid.NewUUID()
	sub := &subscription{qname: qname, done: make(chan struct{})}
	b.mu.Lock()
	b.subscriptions[id] = sub
	b.mu.Unlock()
	go func() {
		defer close(sub.done)
		defer func() {
			b.mu.Lock()
			delete(b.subscriptions, id)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				log.Debug().Msgf("context canceled, stopping subscription for queue: %s", qname)
				if err := ch.Cancel(cname, false); err != nil {
					log.Error().Err(err).Msgf("error canceling consumer for queue: %s", qname)
				}
				if _, err := ch.QueueDelete(qname, false, false, false); err != nil {
					log.Error().Err(err).Msgf("error deleting queue: %s", qname)
				}
				closeChannel(ch)
				return
			case d, ok := <-msgs:
				if !ok {
					b.resubscribe(ctx, key, qname, handler)
					return
				}
				ev, err := deserialize(d.Type, d.Body)
				if err != nil {
					log.Error().
						Err(err).
						Str("queue", qname).
						Str("type", d.Type).
						Msg("failed to deserialize event")
					if err := d.Reject(false); err != nil {
						log.Error().Err(err).Msg("failed to reject event")
					}
					continue
				}
				handler(ev)
				if err := d.Ack(false); err != nil {
					log.Error().Err(err).Msg("failed to ack event")
				}
			}
		}
	}()
	return nil
}

func (b *RabbitMQBroker) resubscribe(ctx context.Context, key, qname string, handler func(event any)) {
	for attempt := 1; !b.isShuttingDown() && attempt <= maxResubscribeAttempt; attempt++ {
		log.Info().Msgf("%s channel closed. reconnecting", qname)
		if err := b.subscribe(ctx, key, qname, handler); err != nil {
			log.Error().
				Err(err).
				Msgf("error reconnecting to %s (attempt %d/%d)", qname, attempt, maxResubscribeAttempt)
			time.Sleep(time.Second * time.Duration(attempt))
			continue
		}
		return
	}
}

func (b *RabbitMQBroker) declareQueue(key, qname string, ch *amqp.Channel) error {
	if _, ok := b.queues.Get(qname); ok {
		return nil
	}
	log.Debug().Msgf("declaring queue: %s", qname)
	_, err := ch.QueueDeclare(
		qname,
		b.durable,
		false, // delete when unused
		strings.HasPrefix(qname, queueExclusivePrefix), // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(qname, key, exchangeTopic, false, nil); err != nil {
		return err
	}
	b.queues.Set(qname, qname)
	return nil
}

func serialize(event any) ([]byte, error) {
	switch event.(type) {
	case *mountflow.Notification, *mountflow.WizardTransition, *mountflow.MountEvent:
	default:
		return nil, errors.Errorf("unknown event type: %T", event)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to serialize the event")
	}
	return body, nil
}

func deserialize(tname string, body []byte) (any, error) {
	var ev any
	switch tname {
	case "*mountflow.Notification":
		ev = &mountflow.Notification{}
	case "*mountflow.WizardTransition":
		ev = &mountflow.WizardTransition{}
	case "*mountflow.MountEvent":
		ev = &mountflow.MountEvent{}
	default:
		return nil, errors.Errorf("unknown event type: %s", tname)
	}
	if err := json.Unmarshal(body, ev); err != nil {
		return nil, errors.Wrapf(err, "unable to deserialize %s", tname)
	}
	return ev, nil
}

func (b *RabbitMQBroker) getConnection() (*amqp.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.connPool) == 0 {
		return nil, errors.Errorf("connection pool is empty")
	}
	conn := b.connPool[b.nextConn]
	if conn.IsClosed() {
		// rabbitmq might have restarted, so known
		// queues need to be re-declared
		b.queues = new(syncx.Map[string, string])
		log.Warn().Msg("connection is closed. reconnecting to RabbitMQ")
		var err error
		conn, err = amqp.Dial(b.url)
		if err != nil {
			return nil, errors.Wrapf(err, "error dialing to RabbitMQ")
		}
		b.connPool[b.nextConn] = conn
	}
	b.nextConn = (b.nextConn + 1) % len(b.connPool)
	return conn, nil
}

func (b *RabbitMQBroker) isShuttingDown() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.shuttingDown
}

func (b *RabbitMQBroker) HealthCheck(ctx context.Context) error {
	conn, err := b.getConnection()
	if err != nil {
		return errors.Wrapf(err, "error getting a connection")
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrapf(err, "error creating channel")
	}
	defer closeChannel(ch)
	return nil
}

func (b *RabbitMQBroker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return nil
	}
	b.shuttingDown = true
	conns := b.connPool
	b.connPool = []*amqp.Connection{}
	b.mu.Unlock()
	for _, conn := range conns {
		done := make(chan struct{})
		go func(c *amqp.Connection) {
			defer close(done)
			if err := c.Close(); err != nil {
				log.Error().Err(err).Msg("error closing rabbitmq connection")
			}
		}(conn)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
	return nil
}

func closeChannel(ch *amqp.Channel) {
	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		log.Debug().Err(err).Msg("error closing channel")
	}
}
