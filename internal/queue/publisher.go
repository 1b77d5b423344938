package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Publisher sends mail envelopes to a durable queue.  The connection is
// opened on first use and re-opened after a failure, so a broker restart
// only costs the messages in flight, which stay pending in the mail queue.
type Publisher struct {
	url      string
	queue    string
	fromName string
	log      *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for queue on the broker at url.
func NewPublisher(url, queue, fromName string, log *slog.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, fromName: fromName, log: log}
}

// channel returns an open channel, dialling when needed.  Callers hold mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Send publishes msg as a persistent JSON message.  It satisfies
// notify.Sender.
func (p *Publisher) Send(ctx context.Context, msg model.MailMessage) error {
	now := time.Now()
	body, err := json.Marshal(NewEnvelope(msg, p.fromName, now))
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    now.UTC(),
			Body:         body,
		})
	if err != nil {
		p.log.WarnContext(ctx, "publish failed", "id", msg.ID, "err", err)
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close shuts the connection down.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
