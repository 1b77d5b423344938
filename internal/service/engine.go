// Package service is the reservation engine.  It decides which
// registrations become confirmed, waitlisted or archived, refills slots
// after cancellations and runs the batch that ties it all together.
//
// Every state-changing operation runs under one lock.  Reads such as
// ListSlots do not take it and may observe a batch half way through.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

const defaultLockWait = 30 * time.Second

// Deps are the collaborators of an Engine.  Store, Mailer and Locker are
// required.
type Deps struct {
	Store   Store
	Mailer  Mailer
	Locker  lock.Locker
	Policy  config.Policy
	SlotGen config.SlotGenConfig // windows and exclusions used by AddSlots
	Clock   Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Batches BatchScheduler // optional; receives a call after each registration
}

// Engine implements registration intake, confirmation, cancellation,
// archive/restore and the batch orchestrator.
type Engine struct {
	store   Store
	mail    Mailer
	locker  lock.Locker
	policy  config.Policy
	slotGen config.SlotGenConfig
	clock   Clock
	log     *slog.Logger
	metrics *metrics.Metrics
	batches BatchScheduler
}

// NewEngine wires an Engine.  It panics on missing required dependencies.
func NewEngine(d Deps) *Engine {
	if d.Store == nil || d.Mailer == nil || d.Locker == nil {
		panic("nil dependency passed to NewEngine")
	}
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Policy.Zone == nil {
		d.Policy.Zone = time.UTC
	}
	if d.Policy.LockWait <= 0 {
		d.Policy.LockWait = defaultLockWait
	}
	return &Engine{
		store:   d.Store,
		mail:    d.Mailer,
		locker:  d.Locker,
		policy:  d.Policy,
		slotGen: d.SlotGen,
		clock:   d.Clock,
		log:     d.Logger.With("component", "engine"),
		metrics: d.Metrics,
		batches: d.Batches,
	}
}

// Policy returns the rules the engine was built with.
func (e *Engine) Policy() config.Policy { return e.policy }

// withLock runs fn while holding the engine lock.  The lock is released on
// every exit path, including panics inside fn.
func (e *Engine) withLock(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	release, err := e.locker.Acquire(ctx, e.policy.LockWait)
	e.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			e.log.WarnContext(ctx, "lock not acquired", "op", op, "wait", e.policy.LockWait)
			return fmt.Errorf("%s: %w", op, ErrLockTimeout)
		}
		return fmt.Errorf("%s: acquire lock: %w", op, err)
	}
	defer release()
	return fn()
}

// Dates are compared as YYYY-MM-DD strings in the slot timezone.

func (e *Engine) dateOffset(days int) string {
	return e.clock.Now().In(e.policy.Zone).AddDate(0, 0, days).Format(model.DateLayout)
}

func (e *Engine) today() string    { return e.dateOffset(0) }
func (e *Engine) tomorrow() string { return e.dateOffset(1) }

// blockedElsewhere returns the predicate used while picking candidates for
// slotID: with multiple confirmations disallowed, an email confirmed on any
// other slot may not take a seat here.
func (e *Engine) blockedElsewhere(idx confirmedIndex, slotID string) func(string) bool {
	return func(email string) bool {
		if e.policy.AllowMultiple {
			return false
		}
		_, ok := idx.elsewhere(email, slotID)
		return ok
	}
}

// archive freezes reg in the archive and removes it from the ledger, in
// that order, so a failure in between leaves a duplicate rather than a
// lost row.
func (e *Engine) archive(ctx context.Context, reg model.Registration, reason string) error {
	rec := model.ArchiveRecord{
		ID:           uuid.NewString(),
		ArchivedAt:   e.clock.Now(),
		Registration: reg,
		Reason:       reason,
	}
	if err := e.store.AppendArchive(ctx, rec); err != nil {
		return fmt.Errorf("archive registration %s: %w", reg.ID, err)
	}
	if err := e.store.DeleteRegistration(ctx, reg.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("delete registration %s: %w", reg.ID, err)
	}
	label := reason
	if rec.Cancelled() {
		label = "cancel"
	}
	e.metrics.ArchivedRow(label)
	e.log.DebugContext(ctx, "archived", "registration_id", reg.ID, "email", reg.Email, "slot_id", reg.SlotID, "reason", reason)
	return nil
}

// writeSnapshot replaces the confirmed snapshot of slot with confirmed,
// or removes it when nobody is confirmed.
func (e *Engine) writeSnapshot(ctx context.Context, slot model.Slot, confirmed []model.Registration) error {
	if len(confirmed) == 0 {
		return e.store.DeleteSnapshot(ctx, slot.ID)
	}
	snap := model.ConfirmedSnapshot{
		SlotID:      slot.ID,
		Date:        slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		Location:    slot.Location,
		ConfirmedAt: e.clock.Now(),
		ActualCount: len(confirmed),
	}
	for i, r := range confirmed {
		if i >= slot.Capacity {
			break
		}
		snap.Members = append(snap.Members, model.SnapshotMember{Name: r.Name, Email: r.Email})
	}
	return e.store.UpsertSnapshot(ctx, snap)
}

// settle records confirmed as the confirmed set of slot: aggregate and
// snapshot.
func (e *Engine) settle(ctx context.Context, slot model.Slot, confirmed []model.Registration) error {
	n := len(confirmed)
	if err := e.store.UpdateAggregate(ctx, slot.ID, n, n >= slot.Capacity); err != nil {
		return fmt.Errorf("update aggregate %s: %w", slot.ID, err)
	}
	if err := e.writeSnapshot(ctx, slot, confirmed); err != nil {
		return fmt.Errorf("snapshot %s: %w", slot.ID, err)
	}
	return nil
}

// promote moves rows to confirmed.  Mails are sent separately by
// announce once the slot state is settled.
func (e *Engine) promote(ctx context.Context, rows []model.Registration) ([]model.Registration, error) {
	out := make([]model.Registration, 0, len(rows))
	for _, r := range rows {
		r.Status = model.StatusConfirmed
		r.NotifiedWait = false
		r.NotifiedConfirm = false
		if err := e.store.UpdateRegistration(ctx, r); err != nil {
			return out, fmt.Errorf("confirm registration %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	e.metrics.Confirmed(len(out))
	return out, nil
}

// announce queues the confirmation for each newly confirmed row, sets
// NotifiedConfirm on success and sends the administrators the full
// participant list.  Mail failures are logged, never returned: the
// confirmation itself has already happened.
func (e *Engine) announce(ctx context.Context, slot model.Slot, newly, members []model.Registration) {
	if len(newly) == 0 {
		return
	}
	for _, r := range newly {
		if err := e.mail.Confirmed(ctx, r, slot); err != nil {
			e.log.WarnContext(ctx, "confirmation mail not queued", "registration_id", r.ID, "err", err)
			continue
		}
		r.NotifiedConfirm = true
		if err := e.store.UpdateRegistration(ctx, r); err != nil {
			e.log.WarnContext(ctx, "notified flag not saved", "registration_id", r.ID, "err", err)
		}
	}
	if err := e.mail.AdminConfirmed(ctx, slot, members); err != nil {
		e.log.WarnContext(ctx, "admin mail not queued", "slot_id", slot.ID, "err", err)
	}
}
