package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// StepError records a batch step that failed.  Later steps still run.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// CleanupReport counts the rows moved out of the ledger after confirmation.
type CleanupReport struct {
	PastConfirmed      int `json:"past_confirmed"`
	ConfirmedElsewhere int `json:"confirmed_elsewhere"`
	SlotResolved       int `json:"slot_resolved"`
}

// BatchReport is the outcome of one RunBatch pass.
type BatchReport struct {
	StartedAt        time.Time         `json:"started_at"`
	Duration         time.Duration     `json:"duration"`
	ArchivedPastDate int               `json:"archived_past_date"`
	OverflowArchived int               `json:"overflow_archived"`
	Promoted         int               `json:"promoted"`
	Confirmations    []ConfirmResult   `json:"confirmations"`
	Cleanup          CleanupReport     `json:"cleanup"`
	Mail             model.FlushReport `json:"mail"`
	Errors           []StepError       `json:"errors,omitempty"`
}

// RunBatch runs one full pass under the engine lock:
//
//	0. archive past-dated pending and waitlisted rows
//	1. archive waiting rows of slots that are already full
//	2. fill open seats of slots that are already confirmed
//	3. run the confirmation for every slot with a future pending row
//	4. post-confirmation cleanup
//	5. flush the mail queue
//
// Each step is idempotent.  A failing step is recorded and the pass goes on;
// the error is then ErrBatchIncomplete.  Failing to take the lock aborts
// the pass with ErrLockTimeout.
func (e *Engine) RunBatch(ctx context.Context) (BatchReport, error) {
	rep := BatchReport{StartedAt: e.clock.Now(), Confirmations: []ConfirmResult{}}
	start := time.Now()
	err := e.withLock(ctx, "batch", func() error {
		e.runSteps(ctx, &rep)
		return nil
	})
	rep.Duration = time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "lock_timeout"
	case len(rep.Errors) > 0:
		outcome = "incomplete"
		err = ErrBatchIncomplete
	}
	e.metrics.BatchFinished(outcome, rep.Duration)
	if err != nil {
		e.log.WarnContext(ctx, "batch finished", "outcome", outcome, "errors", len(rep.Errors), "err", err)
		return rep, err
	}
	e.log.InfoContext(ctx, "batch finished",
		"archived_past_date", rep.ArchivedPastDate, "overflow", rep.OverflowArchived,
		"promoted", rep.Promoted, "confirmations", len(rep.Confirmations),
		"mail_sent", rep.Mail.Sent, "mail_deferred", rep.Mail.Deferred, "took", rep.Duration)
	return rep, nil
}

// BatchJob adapts RunBatch to the scheduler.
func (e *Engine) BatchJob(ctx context.Context) error {
	_, err := e.RunBatch(ctx)
	return err
}

func (e *Engine) runSteps(ctx context.Context, rep *BatchReport) {
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			e.log.ErrorContext(ctx, "batch step failed", "step", name, "err", err)
			rep.Errors = append(rep.Errors, StepError{Step: name, Error: err.Error()})
		}
	}

	step("archive-past-date", func() (err error) {
		rep.ArchivedPastDate, err = e.archivePastDatePending(ctx)
		return err
	})
	step("cleanup-overflow", func() (err error) {
		rep.OverflowArchived, err = e.cleanupOverflow(ctx)
		return err
	})
	step("fill-remaining", func() (err error) {
		rep.Promoted, err = e.fillRemaining(ctx)
		return err
	})
	step("confirm", func() error {
		res, err := e.confirmPending(ctx)
		rep.Confirmations = append(rep.Confirmations, res...)
		return err
	})
	step("post-cleanup", func() (err error) {
		rep.Cleanup, err = e.postCleanup(ctx)
		return err
	})
	step("flush-mail", func() (err error) {
		rep.Mail, err = e.mail.Flush(ctx)
		return err
	})
}

// cleanupOverflow archives the pending and waitlisted rows of every slot
// whose recorded confirmed count has reached its capacity.
func (e *Engine) cleanupOverflow(ctx context.Context) (int, error) {
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}
	full := map[string]bool{}
	for _, s := range slots {
		if s.ConfirmedCount >= s.Capacity {
			full[s.ID] = true
		}
	}
	if len(full) == 0 {
		return 0, nil
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}
	n := 0
	for _, r := range regs {
		if !full[r.SlotID] || !hasStatus(r, model.StatusPending, model.StatusWaitlist) {
			continue
		}
		if err := e.archive(ctx, r, model.ReasonSlotAlreadyFull); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// fillRemaining tops up slots that already hold at least the minimum but
// are under capacity, without re-running the threshold decision.
func (e *Engine) fillRemaining(ctx context.Context) (int, error) {
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list registrations: %w", err)
	}
	idx := indexConfirmed(regs)
	cutoff := e.tomorrow()
	total := 0
	for _, slot := range slots {
		if slot.Date < cutoff {
			continue
		}
		current := forSlot(regs, slot.ID, model.StatusConfirmed)
		if len(current) == 0 || len(current) < e.policy.MinCapacityToConfirm || len(current) >= slot.Capacity {
			continue
		}
		elsewhere := e.blockedElsewhere(idx, slot.ID)
		picks := pickCandidates(
			forSlot(regs, slot.ID, model.StatusPending, model.StatusWaitlist),
			slot.Capacity-len(current),
			func(email string) bool { return idx.in(email, slot.ID) || elsewhere(email) },
		)
		if len(picks) == 0 {
			continue
		}
		newly, err := e.promote(ctx, picks)
		if err != nil {
			return total, err
		}
		for _, r := range newly {
			idx.add(r.Email, slot.ID)
		}
		members := append(current, newly...)
		if err := e.settle(ctx, slot, members); err != nil {
			return total, err
		}
		e.announce(ctx, slot, newly, members)
		total += len(newly)
		e.log.InfoContext(ctx, "slot topped up", "slot_id", slot.ID, "promoted", len(newly))

		// later slots must see this slot's promotions
		regs, err = e.store.ListRegistrations(ctx)
		if err != nil {
			return total, fmt.Errorf("list registrations: %w", err)
		}
	}
	return total, nil
}

// confirmPending runs the confirmation for every slot that has at least
// one pending row dated tomorrow or later, in slot order.
func (e *Engine) confirmPending(ctx context.Context) ([]ConfirmResult, error) {
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	cutoff := e.tomorrow()
	seen := map[string]bool{}
	var ids []string
	for _, r := range regs {
		if r.Status == model.StatusPending && r.Date >= cutoff && !seen[r.SlotID] {
			seen[r.SlotID] = true
			ids = append(ids, r.SlotID)
		}
	}
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	var out []ConfirmResult
	for _, s := range slots {
		if !seen[s.ID] {
			continue
		}
		res, err := e.confirmSlot(ctx, s.ID)
		if err != nil {
			return out, err
		}
		out = append(out, res)
		delete(seen, s.ID)
	}
	// pending rows pointing at slots that no longer exist
	for _, id := range ids {
		if seen[id] {
			out = append(out, ConfirmResult{SlotID: id, Status: ConfirmNotFound})
		}
	}
	return out, nil
}

// postCleanup keeps the ledger scoped to undecided work: confirmed rows
// whose date has passed, other rows of people now confirmed somewhere
// (unless multiple confirmations are allowed) and the waiting rows of full
// slots are archived.
//
// The confirmed rows of a full slot stay in the ledger until their date
// passes.  Cancel, refill, reminders and the digest all read them there,
// so only the pending and waitlisted rows of a resolved slot are moved.
func (e *Engine) postCleanup(ctx context.Context) (CleanupReport, error) {
	var rep CleanupReport
	regs, err := e.store.ListRegistrations(ctx)
	if err != nil {
		return rep, fmt.Errorf("list registrations: %w", err)
	}
	slots, err := e.store.ListSlots(ctx)
	if err != nil {
		return rep, fmt.Errorf("list slots: %w", err)
	}
	filled := map[string]bool{}
	for _, s := range slots {
		if s.Status == model.SlotFilled {
			filled[s.ID] = true
		}
	}
	idx := indexConfirmed(regs)
	today := e.today()

	for _, r := range regs {
		var reason string
		switch {
		case r.Status == model.StatusConfirmed && r.Date < today:
			reason = model.ReasonPastConfirmed
			rep.PastConfirmed++
		case r.Status == model.StatusConfirmed:
			continue
		case !e.policy.AllowMultiple && len(idx[r.Email]) > 0:
			reason = model.ReasonConfirmedElsewhere
			rep.ConfirmedElsewhere++
		case filled[r.SlotID]:
			reason = model.ReasonSlotResolved
			rep.SlotResolved++
		default:
			continue
		}
		if err := e.archive(ctx, r, reason); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// FlushMail delivers queued mail outside of a batch.
func (e *Engine) FlushMail(ctx context.Context) (model.FlushReport, error) {
	return e.mail.Flush(ctx)
}

// FlushJob adapts FlushMail to the scheduler.
func (e *Engine) FlushJob(ctx context.Context) error {
	rep, err := e.FlushMail(ctx)
	if rep.Sent > 0 || rep.Failed > 0 || rep.Deferred > 0 {
		e.log.InfoContext(ctx, "mail flushed", "sent", rep.Sent, "failed", rep.Failed, "deferred", rep.Deferred)
	}
	return err
}
