// Package notify turns engine events into outbound mail.  The Dispatcher
// decides between sending inline and queueing, based on a daily quota of
// which a part is reserved for reminders; the Mailer renders the message
// bodies.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
)

// MailQueue is the persistent queue of messages awaiting delivery.
type MailQueue interface {
	AppendMail(ctx context.Context, msg model.MailMessage) error
	ListPendingMail(ctx context.Context) ([]model.MailMessage, error)
	UpdateMail(ctx context.Context, msg model.MailMessage) error
}

// Delivery tells the caller what happened to an enqueued message.
type Delivery string

const (
	Sent   Delivery = "sent"
	Queued Delivery = "queued"
)

// Dispatcher sends or queues messages within the daily quota.
type Dispatcher struct {
	queue   MailQueue
	sender  Sender
	quota   Quota
	reserve int
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewDispatcher wires a dispatcher.  reserve is the share of the daily
// quota that only reminders may use.
func NewDispatcher(queue MailQueue, sender Sender, quota Quota, reserve int, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if queue == nil || sender == nil || quota == nil {
		panic("nil dependency passed to NewDispatcher")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{queue: queue, sender: sender, quota: quota, reserve: reserve, now: time.Now, log: log, metrics: m}
}

// allowance is how many messages of type t may still be sent today.
func (d *Dispatcher) allowance(remaining int, t model.MailType) int {
	n := max(0, remaining-d.reserve)
	if t == model.MailReminder {
		n += d.reserve
	}
	return n
}

// Enqueue delivers msg now when the quota allows, otherwise queues it.
// Confirmations are always queued so they go out in the next flush,
// after the batch that produced them has finished.  A failed inline send
// falls back to the queue.
func (d *Dispatcher) Enqueue(ctx context.Context, msg model.MailMessage) (Delivery, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = d.now()
	msg.Status = model.MailPending

	if msg.Type != model.MailConfirm {
		remaining, err := d.quota.Remaining(ctx)
		if err != nil {
			d.log.WarnContext(ctx, "mail quota unavailable, queueing", "err", err)
		} else if d.allowance(remaining, msg.Type) > 0 {
			err := d.sender.Send(ctx, msg)
			if err == nil {
				if err := d.quota.Consume(ctx); err != nil {
					d.log.WarnContext(ctx, "mail quota not recorded", "err", err)
				}
				d.metrics.MailOutcome(string(msg.Type), "sent")
				return Sent, nil
			}
			d.log.WarnContext(ctx, "inline send failed, queueing", "to", msg.To, "type", msg.Type, "err", err)
		}
	}

	if err := d.queue.AppendMail(ctx, msg); err != nil {
		d.metrics.MailOutcome(string(msg.Type), "failed")
		return "", fmt.Errorf("queue %s mail: %w", msg.Type, err)
	}
	d.metrics.MailOutcome(string(msg.Type), "queued")
	return Queued, nil
}

// Flush sends queued messages oldest first and stops as soon as the quota
// for the next message is used up; the rest are counted as deferred.
// Every attempted row is marked sent or error.
func (d *Dispatcher) Flush(ctx context.Context) (model.FlushReport, error) {
	var rep model.FlushReport
	pending, err := d.queue.ListPendingMail(ctx)
	if err != nil {
		return rep, fmt.Errorf("list pending mail: %w", err)
	}
	for i, msg := range pending {
		if err := ctx.Err(); err != nil {
			rep.Deferred += len(pending) - i
			return rep, err
		}
		remaining, err := d.quota.Remaining(ctx)
		if err != nil {
			rep.Deferred += len(pending) - i
			return rep, fmt.Errorf("mail quota: %w", err)
		}
		if d.allowance(remaining, msg.Type) <= 0 {
			rep.Deferred += len(pending) - i
			break
		}

		now := d.now()
		msg.LastTriedAt = &now
		if err := d.sender.Send(ctx, msg); err != nil {
			msg.Status, msg.Error = model.MailError, err.Error()
			rep.Failed++
			d.metrics.MailOutcome(string(msg.Type), "failed")
			d.log.WarnContext(ctx, "queued mail failed", "id", msg.ID, "to", msg.To, "err", err)
		} else {
			msg.Status, msg.Error = model.MailSent, ""
			rep.Sent++
			d.metrics.MailOutcome(string(msg.Type), "sent")
			if err := d.quota.Consume(ctx); err != nil {
				d.log.WarnContext(ctx, "mail quota not recorded", "err", err)
			}
		}
		if err := d.queue.UpdateMail(ctx, msg); err != nil {
			return rep, fmt.Errorf("update mail %s: %w", msg.ID, err)
		}
	}
	return rep, nil
}
