package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// Reasons a requested slot was not booked.
const (
	SkipAlreadyRegistered = "already-registered"
	SkipSlotNotFound      = "slot-not-found"
	SkipSlotClosed        = "slot-closed"
	SkipSlotFull          = "slot-full"
)

// RegisterRequest is a booking submitted by a person for one or more
// slots.
type RegisterRequest struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	SlotIDs []string `json:"slot_ids"`
}

// Skipped names a slot of a RegisterRequest that produced no row.
type Skipped struct {
	SlotID string `json:"slot_id"`
	Reason string `json:"reason"`
}

// RegisterResult lists the rows created and the slots skipped.
type RegisterResult struct {
	Created []model.Registration `json:"created"`
	Skipped []Skipped            `json:"skipped"`
}

func (r *RegisterRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = model.NormalizeEmail(r.Email)
	if r.Name == "" {
		return invalid("name is required")
	}
	if r.Email == "" {
		return invalid("email is required")
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return invalid("email %q is not a valid address", r.Email)
	}
	seen := map[string]bool{}
	var ids []string
	for _, id := range r.SlotIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return invalid("at least one slot_id is required")
	}
	r.SlotIDs = ids
	return nil
}

// Register appends a pending row per requested slot, all stamped with the
// same time, queues a receipt and schedules a batch.  Slots the person is
// already registered for, unknown slots and slots that are closed or full
// are skipped.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if err := req.normalize(); err != nil {
		return RegisterResult{}, err
	}
	res := RegisterResult{Created: []model.Registration{}, Skipped: []Skipped{}}
	var booked []model.Slot
	err := e.withLock(ctx, "register", func() error {
		var err error
		booked, err = e.register(ctx, req, &res)
		return err
	})
	if err != nil {
		return res, err
	}
	if len(res.Created) == 0 {
		return res, nil
	}

	e.metrics.Registered(len(res.Created))
	e.log.InfoContext(ctx, "registration received", "email", req.Email, "created", len(res.Created), "skipped", len(res.Skipped))
	if err := e.mail.Receipt(ctx, req.Name, req.Email, booked); err != nil {
		e.log.WarnContext(ctx, "receipt not queued", "email", req.Email, "err", err)
	}
	if e.batches != nil {
		e.batches.ScheduleBatch()
	}
	return res, nil
}

func (e *Engine) register(ctx context.Context, req RegisterRequest, res *RegisterResult) ([]model.Slot, error) {
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	mine := map[string]bool{}
	for _, r := range regs {
		if r.Email == req.Email {
			mine[r.SlotID] = true
		}
	}

	now := e.clock.Now()
	cutoff := e.tomorrow()
	var booked []model.Slot
	for _, id := range req.SlotIDs {
		if mine[id] {
			res.Skipped = append(res.Skipped, Skipped{SlotID: id, Reason: SkipAlreadyRegistered})
			continue
		}
		slot, err := e.store.FindSlot(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			res.Skipped = append(res.Skipped, Skipped{SlotID: id, Reason: SkipSlotNotFound})
			continue
		}
		if err != nil {
			return booked, fmt.Errorf("find slot %s: %w", id, err)
		}
		switch {
		case slot.Date < cutoff:
			res.Skipped = append(res.Skipped, Skipped{SlotID: id, Reason: SkipSlotClosed})
			continue
		case slot.Status == model.SlotFilled:
			res.Skipped = append(res.Skipped, Skipped{SlotID: id, Reason: SkipSlotFull})
			continue
		}

		reg := model.Registration{
			ID:        uuid.NewString(),
			Timestamp: now,
			Name:      req.Name,
			Email:     req.Email,
			SlotID:    slot.ID,
			Date:      slot.Date,
			Start:     slot.Start,
			End:       slot.End,
			Status:    model.StatusPending,
		}
		if err := e.store.AppendRegistration(ctx, reg); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				res.Skipped = append(res.Skipped, Skipped{SlotID: id, Reason: SkipAlreadyRegistered})
				continue
			}
			return booked, fmt.Errorf("append registration: %w", err)
		}
		res.Created = append(res.Created, reg)
		booked = append(booked, slot)
	}

	fresh := make(map[string]bool, len(res.Created))
	for _, r := range res.Created {
		fresh[r.SlotID] = true
	}
	if err := e.supersede(ctx, req.Email, fresh); err != nil {
		return booked, err
	}
	return booked, nil
}
