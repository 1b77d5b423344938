// Package queue carries outbound mail over RabbitMQ: the Publisher puts
// envelopes on a durable queue and the consumer drains it.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// MailEnvelope is the JSON payload published for each outbound message.
// It holds everything a delivery worker needs without reading the
// database.
type MailEnvelope struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	To          string            `json:"to"`
	FromName    string            `json:"from_name"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	ICS         string            `json:"ics,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
	PublishedAt string            `json:"published_at"`
}

// NewEnvelope wraps msg for publishing.
func NewEnvelope(msg model.MailMessage, fromName string, at time.Time) MailEnvelope {
	return MailEnvelope{
		ID:          msg.ID,
		Type:        string(msg.Type),
		To:          msg.To,
		FromName:    fromName,
		Subject:     msg.Subject,
		Body:        msg.Body,
		ICS:         msg.ICS,
		Meta:        msg.Meta,
		PublishedAt: at.UTC().Format(time.RFC3339),
	}
}

// LogLine renders the single-line record the consumer appends per message.
func (e MailEnvelope) LogLine() string {
	return fmt.Sprintf("[%s] Mail delivered | id=%s | type=%s | to=%s | subject=%q | ics=%t\n",
		e.PublishedAt, e.ID, e.Type, e.To, e.Subject, e.ICS != "")
}
