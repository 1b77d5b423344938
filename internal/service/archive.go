package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// Restore results.
const (
	RestoreDone               = "restored"
	RestoreConfirmedElsewhere = "already-confirmed-elsewhere"
	RestoreAlreadyRegistered  = "already-registered"
	RestoreNotFound           = "not-found-in-archive"
)

// RestoreResult reports the outcome of RestoreFromArchiveIfEligible.
type RestoreResult struct {
	Restored        bool                `json:"restored"`
	Reason          string              `json:"reason"`
	ConfirmedSlotID string              `json:"confirmed_slot_id,omitempty"`
	Registration    *model.Registration `json:"registration,omitempty"`
}

// ArchivePastDatePending archives pending and waitlisted rows whose date is
// before tomorrow.
func (e *Engine) ArchivePastDatePending(ctx context.Context) (int, error) {
	var n int
	err := e.withLock(ctx, "archive-past-date", func() error {
		var err error
		n, err = e.archivePastDatePending(ctx)
		return err
	})
	return n, err
}

func (e *Engine) archivePastDatePending(ctx context.Context) (int, error) {
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}
	cutoff := e.tomorrow()
	n := 0
	for _, r := range regs {
		if !hasStatus(r, model.StatusPending, model.StatusWaitlist) || r.Date >= cutoff {
			continue
		}
		if err := e.archive(ctx, r, model.ReasonPastDatePending); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RestoreFromArchiveIfEligible re-admits the newest restorable archive
// record of (email, slotID) as a waitlisted registration.
func (e *Engine) RestoreFromArchiveIfEligible(ctx context.Context, email, slotID string) (RestoreResult, error) {
	email = model.NormalizeEmail(email)
	slotID = strings.TrimSpace(slotID)
	if email == "" || slotID == "" {
		return RestoreResult{}, invalid("email and slot_id are required")
	}
	var res RestoreResult
	err := e.withLock(ctx, "restore", func() error {
		var err error
		res, err = e.restore(ctx, email, slotID)
		return err
	})
	return res, err
}

func (e *Engine) restore(ctx context.Context, email, slotID string) (res RestoreResult, err error) {
	defer func() {
		if err == nil {
			e.metrics.Restore(res.Reason)
		}
	}()

	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return res, fmt.Errorf("list registrations: %w", err)
	}
	if !e.policy.AllowMultiple {
		if other, ok := indexConfirmed(regs).elsewhere(email, slotID); ok {
			return RestoreResult{Reason: RestoreConfirmedElsewhere, ConfirmedSlotID: other}, nil
		}
	}
	for _, r := range regs {
		if r.Email == email && r.SlotID == slotID {
			return RestoreResult{Reason: RestoreAlreadyRegistered}, nil
		}
	}

	recs, err := e.store.ListArchive(ctx)
	if err != nil {
		return res, fmt.Errorf("list archive: %w", err)
	}
	// A cancellation newer than every restorable record closes the pair.
	var target *model.ArchiveRecord
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		if rec.Registration.Email != email || rec.Registration.SlotID != slotID {
			continue
		}
		if rec.Cancelled() {
			break
		}
		if rec.Restorable() {
			target = &recs[i]
			break
		}
	}
	if target == nil {
		return RestoreResult{Reason: RestoreNotFound}, nil
	}

	reg := target.Registration
	reg.ID = uuid.NewString()
	reg.Status = model.StatusWaitlist
	reg.NotifiedConfirm, reg.NotifiedWait, reg.NotifiedRemind = false, false, false
	reg.Notes = model.NoteRestored
	if err := e.store.AppendRegistration(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RestoreResult{Reason: RestoreAlreadyRegistered}, nil
		}
		return res, fmt.Errorf("re-admit %s: %w", target.ID, err)
	}
	if err := e.store.MarkRestored(ctx, target.ID, e.clock.Now()); err != nil {
		return res, fmt.Errorf("mark restored %s: %w", target.ID, err)
	}
	e.log.InfoContext(ctx, "restored from archive", "email", email, "slot_id", slotID, "archive_id", target.ID)
	return RestoreResult{Restored: true, Reason: RestoreDone, Registration: &reg}, nil
}

// restoreForSlot pulls up to limit restorable people back into slotID,
// scanning the archive oldest record first.
func (e *Engine) restoreForSlot(ctx context.Context, slotID string, limit int) ([]model.Registration, error) {
	if limit <= 0 {
		return nil, nil
	}
	recs, err := e.store.ListArchive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	tried := map[string]bool{}
	var out []model.Registration
	for _, rec := range recs {
		if len(out) >= limit {
			break
		}
		email := rec.Registration.Email
		if rec.Registration.SlotID != slotID || !rec.Restorable() || tried[email] {
			continue
		}
		tried[email] = true
		res, err := e.restore(ctx, email, slotID)
		if err != nil {
			return out, err
		}
		if res.Restored {
			out = append(out, *res.Registration)
		}
	}
	return out, nil
}

// supersede stamps RestoredAt on the restorable records of email for the
// given slots.  A fresh registration replaces whatever the archive held for
// the same pair.
func (e *Engine) supersede(ctx context.Context, email string, slotIDs map[string]bool) error {
	if len(slotIDs) == 0 {
		return nil
	}
	recs, err := e.store.ListArchive(ctx)
	if err != nil {
		return fmt.Errorf("list archive: %w", err)
	}
	now := e.clock.Now()
	for _, rec := range recs {
		if rec.Registration.Email != email || !slotIDs[rec.Registration.SlotID] || !rec.Restorable() {
			continue
		}
		if err := e.store.MarkRestored(ctx, rec.ID, now); err != nil {
			return fmt.Errorf("supersede archive %s: %w", rec.ID, err)
		}
	}
	return nil
}
