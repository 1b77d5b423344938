package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/slotgen"
)

// SlotView is the public picture of a slot, computed from the ledger.
type SlotView struct {
	model.Slot
	Confirmed int    `json:"confirmed"`
	Pending   int    `json:"pending"`
	Waitlist  int    `json:"waitlist"`
	Remaining int    `json:"remaining"`
	Needed    int    `json:"needed_for_confirm"`
	Message   string `json:"message"`
}

func sortSlots(slots []model.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		if slots[i].Start != slots[j].Start {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].ID < slots[j].ID
	})
}

func (e *Engine) view(s model.Slot, regs []model.Registration) SlotView {
	v := SlotView{Slot: s}
	for _, r := range forSlot(regs, s.ID) {
		switch r.Status {
		case model.StatusConfirmed:
			v.Confirmed++
		case model.StatusPending:
			v.Pending++
		case model.StatusWaitlist:
			v.Waitlist++
		}
	}
	v.Remaining = max(0, s.Capacity-v.Confirmed)
	minimum := e.policy.MinCapacityToConfirm
	switch {
	case v.Confirmed >= s.Capacity || s.Status == model.SlotFilled:
		v.Message = "full"
	case v.Confirmed >= minimum:
		v.Message = fmt.Sprintf("confirmed, %d seats left", v.Remaining)
	default:
		v.Needed = max(0, minimum-v.Confirmed-v.Pending)
		if v.Needed == 0 {
			v.Message = "enough requests, awaiting confirmation"
		} else {
			v.Message = fmt.Sprintf("%d more needed to confirm", v.Needed)
		}
	}
	return v
}

// ListSlots returns the slots sorted by date and start time, with live
// counts.  It reads without the lock, so the counts may trail a running
// batch.  When the policy says so, only slots from tomorrow on are shown.
func (e *Engine) ListSlots(ctx context.Context) ([]SlotView, error) {
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	sortSlots(slots)
	from := e.tomorrow()
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		if e.policy.ShowOnlyFromTomorrow && s.Date < from {
			continue
		}
		out = append(out, e.view(s, regs))
	}
	return out, nil
}

// GetSlot returns one slot view or repository.ErrNotFound.
func (e *Engine) GetSlot(ctx context.Context, id string) (SlotView, error) {
	s, err := e.store.FindSlot(ctx, id)
	if err != nil {
		return SlotView{}, fmt.Errorf("slot %s: %w", id, err)
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return SlotView{}, fmt.Errorf("list registrations: %w", err)
	}
	return e.view(s, regs), nil
}

// AddSlotsResult reports an AddSlots call.  Skipped counts slots that
// already existed plus those removed by the configured exclusions.
type AddSlotsResult struct {
	Added   int          `json:"added"`
	Skipped int          `json:"skipped"`
	Slots   []model.Slot `json:"slots"`
}

func (e *Engine) slotDefaults() slotgen.Defaults {
	return slotgen.Defaults{
		Capacity:         e.policy.Capacity,
		MinToConfirm:     e.policy.MinCapacityToConfirm,
		Location:         e.policy.Location,
		Timezone:         e.policy.Timezone,
		TimeWindows:      e.slotGen.TimeWindows,
		ExcludeDates:     e.slotGen.ExcludeDates,
		ExcludeDateTimes: e.slotGen.ExcludeDateTimes,
	}
}

// AddSlots expands req and inserts the resulting slots.  Existing slots
// are left untouched.
func (e *Engine) AddSlots(ctx context.Context, req slotgen.Request) (AddSlotsResult, error) {
	slots, excluded, err := slotgen.Expand(req, e.slotDefaults())
	if err != nil {
		return AddSlotsResult{}, invalid("%v", err)
	}
	res := AddSlotsResult{Skipped: excluded, Slots: []model.Slot{}}
	err = e.withLock(ctx, "add-slots", func() error { return e.insertSlots(ctx, slots, &res) })
	return res, err
}

// SeedSlots inserts the slots described by the SLOT_GEN_* settings.  It is
// run at start-up and is idempotent.
func (e *Engine) SeedSlots(ctx context.Context) (AddSlotsResult, error) {
	slots, err := slotgen.FromConfig(e.slotGen, e.slotDefaults())
	if err != nil {
		return AddSlotsResult{}, fmt.Errorf("slot generation: %w", err)
	}
	res := AddSlotsResult{Slots: []model.Slot{}}
	if len(slots) == 0 {
		return res, nil
	}
	err = e.withLock(ctx, "seed-slots", func() error { return e.insertSlots(ctx, slots, &res) })
	if err == nil {
		e.log.InfoContext(ctx, "slots seeded", "added", res.Added, "skipped", res.Skipped)
	}
	return res, err
}

func (e *Engine) insertSlots(ctx context.Context, slots []model.Slot, res *AddSlotsResult) error {
	for _, s := range slots {
		added, err := e.store.InsertSlot(ctx, s)
		if err != nil {
			return fmt.Errorf("insert slot %s: %w", s.ID, err)
		}
		if !added {
			res.Skipped++
			continue
		}
		res.Added++
		res.Slots = append(res.Slots, s)
	}
	return nil
}
