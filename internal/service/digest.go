package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/model"
)

// BuildDigest assembles the administrator overview from today on: every
// slot with confirmed people, grouped by date, and the slots that have
// requests but nobody confirmed yet.  It reads without the lock.
func (e *Engine) BuildDigest(ctx context.Context) (model.Digest, error) {
	d := model.Digest{Today: e.today()}
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return d, fmt.Errorf("list slots: %w", err)
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return d, fmt.Errorf("list registrations: %w", err)
	}

	sortSlots(slots)
	for _, s := range slots {
		if s.Date < d.Today {
			continue
		}
		line := model.DigestSlot{Slot: s, Confirmed: forSlot(regs, s.ID, model.StatusConfirmed)}
		for _, r := range forSlot(regs, s.ID) {
			switch r.Status {
			case model.StatusPending:
				line.Pending++
			case model.StatusWaitlist:
				line.Waitlist++
			}
		}
		line.Needed = max(0, e.policy.MinCapacityToConfirm-len(line.Confirmed)-line.Pending-line.Waitlist)

		switch {
		case len(line.Confirmed) > 0:
			if n := len(d.Days); n == 0 || d.Days[n-1].Date != s.Date {
				d.Days = append(d.Days, model.DigestDay{Date: s.Date})
			}
			day := &d.Days[len(d.Days)-1]
			day.Slots = append(day.Slots, line)
		case line.Pending > 0 || line.Waitlist > 0:
			d.Unconfirmed = append(d.Unconfirmed, line)
		}
	}
	return d, nil
}

// SendDailyAdminDigest mails the digest to the administrators.  Nothing is
// sent when no address is configured or nobody is confirmed.  The returned
// bool reports whether the digest went out.
func (e *Engine) SendDailyAdminDigest(ctx context.Context) (bool, error) {
	if !e.mail.HasAdmins() {
		return false, nil
	}
	d, err := e.BuildDigest(ctx)
	if err != nil {
		return false, err
	}
	if len(d.Days) == 0 {
		e.log.DebugContext(ctx, "digest skipped, nothing confirmed")
		return false, nil
	}
	if err := e.mail.AdminDigest(ctx, d); err != nil {
		return false, fmt.Errorf("admin digest: %w", err)
	}
	e.log.InfoContext(ctx, "admin digest sent", "days", len(d.Days), "unconfirmed", len(d.Unconfirmed))
	return true, nil
}

// DigestJob adapts SendDailyAdminDigest to the scheduler.
func (e *Engine) DigestJob(ctx context.Context) error {
	_, err := e.SendDailyAdminDigest(ctx)
	return err
}
