package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/model"
)

type state struct {
	regs      []model.Registration
	archive   []model.ArchiveRecord
	slots     []model.Slot
	snapshots []model.ConfirmedSnapshot
}

func (f *fixture) state(t *testing.T) state {
	t.Helper()
	ctx := context.Background()
	var s state
	var err error
	s.regs, err = f.store.ListRegistrations(ctx)
	require.NoError(t, err)
	s.archive, err = f.store.ListArchive(ctx)
	require.NoError(t, err)
	s.slots, err = f.store.ListSlots(ctx)
	require.NoError(t, err)
	s.snapshots, err = f.store.ListSnapshots(ctx)
	require.NoError(t, err)
	return s
}

func TestRunBatch_Idempotent(t *testing.T) {
	f := newFixture(t)
	yesterday := f.slot(t, "2026-10-17", "11:00", 2)
	s1 := f.slot(t, day, "11:00", 2)
	s2 := f.slot(t, day, "13:00", 2)
	s3 := f.slot(t, "2026-10-21", "11:00", 3)
	f.reg(t, "old@x.io", yesterday, 0, model.StatusPending)
	f.reg(t, "a@x.io", s1, 1, model.StatusPending)
	f.reg(t, "b@x.io", s1, 2, model.StatusPending)
	f.reg(t, "c@x.io", s1, 3, model.StatusPending)
	f.reg(t, "a@x.io", s2, 4, model.StatusPending)
	f.reg(t, "d@x.io", s2, 5, model.StatusPending)
	f.reg(t, "e@x.io", s2, 6, model.StatusPending)
	f.reg(t, "f@x.io", s3, 7, model.StatusPending)

	_, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)
	f.checkInvariants(t)
	first := f.state(t)
	calls := len(f.mail.calls)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, f.state(t))
	assert.Len(t, f.mail.calls, calls, "no new mail on a quiet pass")
	assert.Zero(t, rep.ArchivedPastDate)
	assert.Zero(t, rep.Promoted)
	assert.Equal(t, CleanupReport{}, rep.Cleanup)
}

func TestRunBatch_SingleConfirmationPerEmail(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(t, day, "11:00", 2)
	s2 := f.slot(t, day, "13:00", 2)
	f.reg(t, "a@x.io", s1, 1, model.StatusPending)
	f.reg(t, "b@x.io", s1, 2, model.StatusPending)
	f.reg(t, "a@x.io", s2, 3, model.StatusPending)
	f.reg(t, "c@x.io", s2, 4, model.StatusPending)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]model.Status{"a@x.io": model.StatusConfirmed, "b@x.io": model.StatusConfirmed}, f.statuses(t, s1.ID))
	assert.Equal(t, map[string]model.Status{"c@x.io": model.StatusPending}, f.statuses(t, s2.ID))
	assert.Equal(t, model.ReasonConfirmedElsewhere, f.archiveReasons(t)["a@x.io@"+s2.ID])
	assert.Equal(t, 1, rep.Cleanup.ConfirmedElsewhere)
	require.Len(t, rep.Confirmations, 2)
	assert.Equal(t, ConfirmDone, rep.Confirmations[0].Status)
	assert.Equal(t, ConfirmBelowMinimum, rep.Confirmations[1].Status)
	f.checkInvariants(t)
}

func TestRunBatch_PastDates(t *testing.T) {
	f := newFixture(t)
	today := f.slot(t, "2026-10-18", "11:00", 2)
	past := f.slot(t, "2026-10-16", "11:00", 2)
	f.reg(t, "a@x.io", today, 1, model.StatusPending)
	f.reg(t, "b@x.io", today, 2, model.StatusWaitlist)
	f.reg(t, "c@x.io", past, 3, model.StatusConfirmed)
	f.reg(t, "d@x.io", today, 4, model.StatusConfirmed)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, rep.ArchivedPastDate)
	assert.Equal(t, 1, rep.Cleanup.PastConfirmed)
	reasons := f.archiveReasons(t)
	assert.Equal(t, model.ReasonPastDatePending, reasons["a@x.io@"+today.ID])
	assert.Equal(t, model.ReasonPastDatePending, reasons["b@x.io@"+today.ID])
	assert.Equal(t, model.ReasonPastConfirmed, reasons["c@x.io@"+past.ID])
	assert.Equal(t, map[string]model.Status{"d@x.io": model.StatusConfirmed}, f.statuses(t, today.ID), "today's confirmed rows stay")
}

func TestRunBatch_OverflowCleanup(t *testing.T) {
	f := newFixture(t)
	s := confirmedPair(t, f)
	f.reg(t, "c@x.io", s, 3, model.StatusPending)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.OverflowArchived)
	assert.Equal(t, model.ReasonSlotAlreadyFull, f.archiveReasons(t)["c@x.io@"+s.ID])
}

func TestRunBatch_FillsRemainingSeats(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 3)
	f.reg(t, "a@x.io", s, 1, model.StatusConfirmed)
	f.reg(t, "b@x.io", s, 2, model.StatusConfirmed)
	require.NoError(t, f.store.UpdateAggregate(context.Background(), s.ID, 2, false))
	f.reg(t, "c@x.io", s, 3, model.StatusPending)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Promoted)
	assert.Empty(t, rep.Confirmations)
	assert.Equal(t, model.StatusConfirmed, f.statuses(t, s.ID)["c@x.io"])
	n, st := f.aggregate(t, s.ID)
	assert.Equal(t, 3, n)
	assert.Equal(t, model.SlotFilled, st)
	assert.Equal(t, 1, f.mail.count("confirm"))
}

type failingFlush struct{ *fakeMailer }

func (failingFlush) Flush(ctx context.Context) (model.FlushReport, error) {
	return model.FlushReport{}, errors.New("quota backend down")
}

func TestRunBatch_FailedStepIsReported(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)
	f.reg(t, "b@x.io", s, 2, model.StatusPending)

	e := NewEngine(Deps{
		Store:  f.store,
		Mailer: failingFlush{f.mail},
		Locker: f.locker,
		Policy: f.engine.Policy(),
		Clock:  f.clock,
		Logger: logger.Discard(),
	})
	rep, err := e.RunBatch(context.Background())
	assert.ErrorIs(t, err, ErrBatchIncomplete)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "flush-mail", rep.Errors[0].Step)
	assert.Equal(t, model.StatusConfirmed, f.statuses(t, s.ID)["a@x.io"], "earlier steps still ran")
}
