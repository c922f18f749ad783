package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/metrics"
	"github.com/AndrewsGM/driver-pro/internal/session"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var ErrNotConnected = errors.New("broker not connected")

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher sends session events to RabbitMQ and reconnects in the
// background when the connection drops.
type Publisher struct {
	log       zerolog.Logger
	url       string
	conn      *amqp091.Connection
	connClose chan *amqp091.Error
	ch        channel
	mu        sync.RWMutex
	isClosed  atomic.Bool
	retry     time.Duration
}

func NewPublisher(url string, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		log:   log.With().Str("component", "broker").Logger(),
		url:   url,
		retry: 3 * time.Second,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.reconnect()
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp091.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}
	err = ch.ExchangeDeclare(
		SessionsExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}

	connClose := make(chan *amqp091.Error, 1)
	conn.NotifyClose(connClose)

	p.mu.Lock()
	p.conn = conn
	p.connClose = connClose
	p.ch = ch
	p.mu.Unlock()
	return nil
}

func (p *Publisher) reconnect() {
	for {
		p.mu.RLock()
		connClose := p.connClose
		p.mu.RUnlock()

		<-connClose
		if p.isClosed.Load() {
			return
		}
		p.log.Warn().Msg("rabbitmq connection lost")
		p.mu.Lock()
		p.ch = nil
		p.mu.Unlock()

		for {
			if p.isClosed.Load() {
				return
			}
			p.log.Info().Msg("trying to connect to rabbitmq")
			if err := p.connect(); err != nil {
				time.Sleep(p.retry)
				continue
			}
			p.log.Info().Msg("connected to rabbitmq")
			break
		}
	}
}

// PublishFinished implements session.Publisher.
func (p *Publisher) PublishFinished(ctx context.Context, s session.Session) error {
	body, err := json.Marshal(newFinishedEvent(s))
	if err != nil {
		return err
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()
	if ch == nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return ErrNotConnected
	}

	err = ch.PublishWithContext(ctx,
		SessionsExchange,
		routingKey(s.Type),
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    s.ID,
			Timestamp:    s.EndTime,
			Type:         "session.finished",
			Body:         body,
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		p.log.Error().Err(err).Str("session_id", s.ID).Msg("publish session.finished failed")
		return err
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

func (p *Publisher) Close() error {
	p.isClosed.Store(true)
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return nil
	}
	defer p.log.Info().Msg("rabbitmq closed")
	return conn.Close()
}
