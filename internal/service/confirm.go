package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// ConfirmStatus explains the outcome of a confirmation attempt.
type ConfirmStatus string

const (
	ConfirmDone         ConfirmStatus = "confirmed"
	ConfirmBelowMinimum ConfirmStatus = "below-minimum"
	ConfirmNotFound     ConfirmStatus = "not-found"
	ConfirmPastDate     ConfirmStatus = "past-date"
)

// ConfirmResult reports what ConfirmIfCapacityReached decided for a slot.
// Falling short of the minimum is a normal result, not an error.
type ConfirmResult struct {
	SlotID               string        `json:"slot_id"`
	Filled               bool          `json:"filled"`
	ConfirmedCount       int           `json:"confirmed_count"`
	NewlyConfirmedEmails []string      `json:"newly_confirmed_emails,omitempty"`
	Status               ConfirmStatus `json:"status"`
}

// ConfirmIfCapacityReached decides the confirmed set of one slot.
func (e *Engine) ConfirmIfCapacityReached(ctx context.Context, slotID string) (ConfirmResult, error) {
	var res ConfirmResult
	err := e.withLock(ctx, "confirm", func() error {
		var err error
		res, err = e.confirmSlot(ctx, slotID)
		return err
	})
	return res, err
}

// confirmSlot is ConfirmIfCapacityReached without the lock.
//
// Live rows of the slot are taken in FIFO order; each email counts once and,
// unless multiple confirmations are allowed, emails confirmed on another
// slot are passed over.  The first capacity of them are the candidates.
// With fewer candidates than the minimum the whole slot falls back to
// pending.  Otherwise the candidates are confirmed and every other row of
// the slot is waitlisted.
func (e *Engine) confirmSlot(ctx context.Context, slotID string) (ConfirmResult, error) {
	res := ConfirmResult{SlotID: slotID}
	slot, err := e.store.FindSlot(ctx, slotID)
	if errors.Is(err, repository.ErrNotFound) {
		res.Status = ConfirmNotFound
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("find slot %s: %w", slotID, err)
	}
	if slot.Date < e.tomorrow() {
		res.Status = ConfirmPastDate
		res.ConfirmedCount = slot.ConfirmedCount
		res.Filled = slot.Status == model.SlotFilled
		return res, nil
	}

	all, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return res, fmt.Errorf("list registrations: %w", err)
	}
	idx := indexConfirmed(all)
	rows := forSlot(all, slotID)
	candidates := pickCandidates(rows, slot.Capacity, e.blockedElsewhere(idx, slotID))

	if len(candidates) < e.policy.MinCapacityToConfirm {
		res.Status = ConfirmBelowMinimum
		hadConfirmed := false
		for _, r := range rows {
			if r.Status == model.StatusPending {
				continue
			}
			hadConfirmed = hadConfirmed || r.Status == model.StatusConfirmed
			r.Status = model.StatusPending
			r.NotifiedConfirm = false
			if err := e.store.UpdateRegistration(ctx, r); err != nil {
				return res, fmt.Errorf("revert registration %s: %w", r.ID, err)
			}
		}
		if err := e.store.UpdateAggregate(ctx, slotID, 0, false); err != nil {
			return res, fmt.Errorf("update aggregate %s: %w", slotID, err)
		}
		if hadConfirmed {
			if err := e.store.DeleteSnapshot(ctx, slotID); err != nil {
				return res, fmt.Errorf("snapshot %s: %w", slotID, err)
			}
		}
		return res, nil
	}

	winners := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		winners[c.ID] = true
	}
	var toConfirm []model.Registration
	for _, r := range rows {
		switch {
		case winners[r.ID]:
			if r.Status != model.StatusConfirmed {
				toConfirm = append(toConfirm, r)
			}
		case r.Status != model.StatusWaitlist:
			r.Status = model.StatusWaitlist
			if err := e.store.UpdateRegistration(ctx, r); err != nil {
				return res, fmt.Errorf("waitlist registration %s: %w", r.ID, err)
			}
		}
	}
	newly, err := e.promote(ctx, toConfirm)
	if err != nil {
		return res, err
	}

	members := make([]model.Registration, 0, len(candidates))
	for _, c := range candidates {
		c.Status = model.StatusConfirmed
		members = append(members, c)
	}
	if err := e.settle(ctx, slot, members); err != nil {
		return res, err
	}
	e.announce(ctx, slot, newly, members)

	res.Status = ConfirmDone
	res.ConfirmedCount = len(candidates)
	res.Filled = len(candidates) >= slot.Capacity
	for _, r := range newly {
		res.NewlyConfirmedEmails = append(res.NewlyConfirmedEmails, r.Email)
	}
	if len(newly) > 0 {
		e.log.InfoContext(ctx, "slot confirmed", "slot_id", slotID, "confirmed", len(candidates), "new", len(newly))
	}
	return res, nil
}
