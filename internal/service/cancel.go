package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// CancelScope selects which of a person's registrations are cancelled.
type CancelScope string

const (
	ScopeConfirmed CancelScope = "confirmed"
	ScopeAll       CancelScope = "all"
)

// SlotPolicy says what happens to a slot that lost a confirmed person.
type SlotPolicy string

const (
	SlotRefill SlotPolicy = "refill-slot"
	SlotDrop   SlotPolicy = "drop-slot"
)

// FillPolicy says what to do when a refill cannot reach the minimum.
type FillPolicy string

const (
	FillTry         FillPolicy = "try-fill"     // promote whoever is available
	FillKeepPartial FillPolicy = "keep-partial" // leave the remaining confirmed as they are
	FillToPending   FillPolicy = "to-pending"   // send the remaining confirmed back to pending
	FillCancelAll   FillPolicy = "cancel-all"   // drop the slot
)

// CancelRequest is an operator cancellation.  Empty fields take their
// defaults: confirmed, refill-slot, try-fill, "cancel".
type CancelRequest struct {
	Email      string      `json:"email"`
	Scope      CancelScope `json:"scope"`
	SlotPolicy SlotPolicy  `json:"slot_policy"`
	FillPolicy FillPolicy  `json:"fill_policy"`
	Reason     string      `json:"reason"`
}

// CancelResult summarises a cancellation.  SlotsNeedingAttention lists
// slots the refill could not bring back to a confirmed state.
type CancelResult struct {
	RemovedCount          int      `json:"removed_count"`
	RefilledCount         int      `json:"refilled_count"`
	DroppedCount          int      `json:"dropped_count"`
	SlotsNeedingAttention []string `json:"slots_needing_attention"`
}

func (r *CancelRequest) normalize() error {
	r.Email = model.NormalizeEmail(r.Email)
	if r.Email == "" {
		return invalid("email is required")
	}
	if r.Scope == "" {
		r.Scope = ScopeConfirmed
	}
	if r.SlotPolicy == "" {
		r.SlotPolicy = SlotRefill
	}
	if r.FillPolicy == "" {
		r.FillPolicy = FillTry
	}
	if r.Reason = strings.TrimSpace(r.Reason); r.Reason == "" {
		r.Reason = "cancel"
	}
	switch r.Scope {
	case ScopeConfirmed, ScopeAll:
	default:
		return invalid("unknown scope %q", r.Scope)
	}
	switch r.SlotPolicy {
	case SlotRefill, SlotDrop:
	default:
		return invalid("unknown slot_policy %q", r.SlotPolicy)
	}
	switch r.FillPolicy {
	case FillTry, FillKeepPartial, FillToPending, FillCancelAll:
	default:
		return invalid("unknown fill_policy %q", r.FillPolicy)
	}
	return nil
}

// Cancel removes a person's registrations and repairs the slots they
// leave behind.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (CancelResult, error) {
	if err := req.normalize(); err != nil {
		return CancelResult{}, err
	}
	res := CancelResult{SlotsNeedingAttention: []string{}}
	err := e.withLock(ctx, "cancel", func() error { return e.cancel(ctx, req, &res) })
	return res, err
}

func (e *Engine) cancel(ctx context.Context, req CancelRequest, res *CancelResult) error {
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}
	var (
		removed  []model.Registration
		affected []string
		seen     = map[string]bool{}
	)
	for _, r := range regs {
		if r.Email != req.Email {
			continue
		}
		if req.Scope == ScopeConfirmed && r.Status != model.StatusConfirmed {
			continue
		}
		if err := e.archive(ctx, r, model.CancelReason(req.Reason)); err != nil {
			return err
		}
		removed = append(removed, r)
		res.RemovedCount++
		if r.Status == model.StatusConfirmed && !seen[r.SlotID] {
			seen[r.SlotID] = true
			affected = append(affected, r.SlotID)
		}
	}
	e.metrics.Cancelled(string(req.SlotPolicy), res.RemovedCount)
	if len(removed) > 0 {
		if err := e.mail.Cancelled(ctx, removed[0].Name, req.Email, removed); err != nil {
			e.log.WarnContext(ctx, "cancellation mail not queued", "email", req.Email, "err", err)
		}
	}

	for _, slotID := range affected {
		if req.SlotPolicy == SlotDrop {
			if err := e.dropSlot(ctx, slotID); err != nil {
				return err
			}
			res.DroppedCount++
			continue
		}
		outcome, err := e.tryRefill(ctx, slotID, req.FillPolicy)
		if err != nil {
			return err
		}
		switch outcome {
		case RefillPromoted:
			res.RefilledCount++
		case RefillNotNeeded:
		case RefillDropped:
			res.DroppedCount++
			res.SlotsNeedingAttention = append(res.SlotsNeedingAttention, slotID)
		default:
			res.SlotsNeedingAttention = append(res.SlotsNeedingAttention, slotID)
		}
	}
	e.log.InfoContext(ctx, "cancellation processed",
		"email", req.Email, "removed", res.RemovedCount, "refilled", res.RefilledCount,
		"dropped", res.DroppedCount, "attention", len(res.SlotsNeedingAttention))
	return nil
}

// DropSlot calls off a slot: every confirmed registration is archived as
// slot-canceled and told so, and the slot goes back to open with nobody
// confirmed.
func (e *Engine) DropSlot(ctx context.Context, slotID string) error {
	return e.withLock(ctx, "drop-slot", func() error { return e.dropSlot(ctx, slotID) })
}

func (e *Engine) dropSlot(ctx context.Context, slotID string) error {
	slot, err := e.store.FindSlot(ctx, slotID)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("find slot %s: %w", slotID, err)
	}
	if !found {
		slot = model.Slot{ID: slotID}
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}
	for _, r := range forSlot(regs, slotID, model.StatusConfirmed) {
		if err := e.archive(ctx, r, model.ReasonSlotCanceled); err != nil {
			return err
		}
		if err := e.mail.SlotCanceled(ctx, r, slot); err != nil {
			e.log.WarnContext(ctx, "slot-canceled mail not queued", "registration_id", r.ID, "err", err)
		}
	}
	if err := e.store.DeleteSnapshot(ctx, slotID); err != nil {
		return fmt.Errorf("snapshot %s: %w", slotID, err)
	}
	if found {
		if err := e.store.UpdateAggregate(ctx, slotID, 0, false); err != nil {
			return fmt.Errorf("update aggregate %s: %w", slotID, err)
		}
	}
	e.log.InfoContext(ctx, "slot dropped", "slot_id", slotID)
	return nil
}

// RefillOutcome describes what tryRefill did to a slot.
type RefillOutcome string

const (
	RefillPromoted     RefillOutcome = "promoted"
	RefillNotNeeded    RefillOutcome = "not-needed"
	RefillKeptPartial  RefillOutcome = "kept-partial"
	RefillDemoted      RefillOutcome = "demoted"
	RefillDropped      RefillOutcome = "dropped"
	RefillNoCandidates RefillOutcome = "no-candidates"
	RefillSlotMissing  RefillOutcome = "slot-not-found"
)

// TryRefillSlot fills seats freed in slotID from its waiting rows and,
// when those run short, from restorable archive records.  It reports
// whether anyone was promoted.
func (e *Engine) TryRefillSlot(ctx context.Context, slotID string, fill FillPolicy) (bool, error) {
	var outcome RefillOutcome
	err := e.withLock(ctx, "refill", func() error {
		var err error
		outcome, err = e.tryRefill(ctx, slotID, fill)
		return err
	})
	return outcome == RefillPromoted, err
}

func (e *Engine) tryRefill(ctx context.Context, slotID string, fill FillPolicy) (RefillOutcome, error) {
	slot, err := e.store.FindSlot(ctx, slotID)
	if errors.Is(err, repository.ErrNotFound) {
		return RefillSlotMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("find slot %s: %w", slotID, err)
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return "", fmt.Errorf("list registrations: %w", err)
	}
	idx := indexConfirmed(regs)
	current := forSlot(regs, slotID, model.StatusConfirmed)
	needed := slot.Capacity - len(current)
	if needed <= 0 {
		return RefillNotNeeded, e.settle(ctx, slot, current)
	}

	elsewhere := e.blockedElsewhere(idx, slotID)
	candidates := pickCandidates(
		forSlot(regs, slotID, model.StatusPending, model.StatusWaitlist),
		needed,
		func(email string) bool { return idx.in(email, slotID) || elsewhere(email) },
	)
	if len(candidates) < needed {
		restored, err := e.restoreForSlot(ctx, slotID, needed-len(candidates))
		if err != nil {
			return "", err
		}
		candidates = append(candidates, restored...)
	}

	if len(current)+min(len(candidates), needed) < e.policy.MinCapacityToConfirm {
		switch fill {
		case FillKeepPartial:
			return RefillKeptPartial, e.settle(ctx, slot, current)
		case FillToPending:
			for _, r := range current {
				r.Status = model.StatusPending
				r.NotifiedConfirm = false
				if err := e.store.UpdateRegistration(ctx, r); err != nil {
					return "", fmt.Errorf("demote registration %s: %w", r.ID, err)
				}
			}
			return RefillDemoted, e.settle(ctx, slot, nil)
		case FillCancelAll:
			return RefillDropped, e.dropSlot(ctx, slotID)
		default:
			if len(current) == 0 {
				return RefillNoCandidates, e.settle(ctx, slot, nil)
			}
		}
	}

	picks := candidates[:min(len(candidates), needed)]
	if len(picks) == 0 {
		return RefillNoCandidates, e.settle(ctx, slot, current)
	}
	newly, err := e.promote(ctx, picks)
	if err != nil {
		return "", err
	}
	members := append(current, newly...)
	if err := e.settle(ctx, slot, members); err != nil {
		return "", err
	}
	e.announce(ctx, slot, newly, members)
	e.log.InfoContext(ctx, "slot refilled", "slot_id", slotID, "promoted", len(newly), "confirmed", len(members))
	return RefillPromoted, nil
}
