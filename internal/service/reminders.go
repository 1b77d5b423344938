package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/model"
)

// ReminderReport counts the reminders of one run.
type ReminderReport struct {
	Date   string `json:"date"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

// SendReminders mails every confirmed person booked for tomorrow who has
// not been reminded yet.  The flag is only set once the message was sent
// or queued, so a failed run is retried by the next one.
func (e *Engine) SendReminders(ctx context.Context) (ReminderReport, error) {
	rep := ReminderReport{Date: e.tomorrow()}
	err := e.withLock(ctx, "reminders", func() error {
		regs, err := e.store.ListRegistrations(ctx)
		if err != nil {
			return fmt.Errorf("list registrations: %w", err)
		}
		for _, r := range regs {
			if r.Status != model.StatusConfirmed || r.Date != rep.Date || r.NotifiedRemind {
				continue
			}
			slot, err := e.store.FindSlot(ctx, r.SlotID)
			if err != nil {
				slot = model.Slot{ID: r.SlotID, Date: r.Date, Start: r.Start, End: r.End}
			}
			if err := e.mail.Reminder(ctx, r, slot); err != nil {
				rep.Failed++
				e.log.WarnContext(ctx, "reminder not sent", "registration_id", r.ID, "err", err)
				continue
			}
			r.NotifiedRemind = true
			if err := e.store.UpdateRegistration(ctx, r); err != nil {
				return fmt.Errorf("mark reminded %s: %w", r.ID, err)
			}
			rep.Sent++
		}
		return nil
	})
	if err == nil && (rep.Sent > 0 || rep.Failed > 0) {
		e.log.InfoContext(ctx, "reminders sent", "date", rep.Date, "sent", rep.Sent, "failed", rep.Failed)
	}
	return rep, err
}

// ReminderJob adapts SendReminders to the scheduler.
func (e *Engine) ReminderJob(ctx context.Context) error {
	_, err := e.SendReminders(ctx)
	return err
}
