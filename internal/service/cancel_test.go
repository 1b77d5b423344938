package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/model"
)

// confirmedPair sets up a full slot with a and b confirmed.
func confirmedPair(t *testing.T, f *fixture) model.Slot {
	t.Helper()
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusConfirmed)
	f.reg(t, "b@x.io", s, 2, model.StatusConfirmed)
	require.NoError(t, f.store.UpdateAggregate(context.Background(), s.ID, 2, true))
	return s
}

func TestCancel_RefillsFromWaitlist(t *testing.T) {
	f := newFixture(t)
	s := confirmedPair(t, f)
	f.reg(t, "c@x.io", s, 3, model.StatusWaitlist)

	res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: " A@X.io "})
	require.NoError(t, err)

	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, 1, res.RefilledCount)
	assert.Empty(t, res.SlotsNeedingAttention)
	assert.Equal(t, map[string]model.Status{"b@x.io": model.StatusConfirmed, "c@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))
	n, st := f.aggregate(t, s.ID)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.SlotFilled, st)
	assert.Equal(t, "cancel:cancel", f.archiveReasons(t)["a@x.io@"+s.ID])
	assert.Equal(t, 1, f.mail.count("cancel"))
	assert.Equal(t, 1, f.mail.count("confirm"))
	f.checkInvariants(t)
}

func TestCancel_FillPolicies(t *testing.T) {
	t.Run("to-pending", func(t *testing.T) {
		f := newFixture(t)
		s := confirmedPair(t, f)
		res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", FillPolicy: FillToPending})
		require.NoError(t, err)

		assert.Equal(t, []string{s.ID}, res.SlotsNeedingAttention)
		assert.Equal(t, map[string]model.Status{"b@x.io": model.StatusPending}, f.statuses(t, s.ID))
		n, st := f.aggregate(t, s.ID)
		assert.Zero(t, n)
		assert.Equal(t, model.SlotOpen, st)
		snaps, err := f.store.ListSnapshots(context.Background())
		require.NoError(t, err)
		assert.Empty(t, snaps)
		f.checkInvariants(t)
	})

	t.Run("keep-partial", func(t *testing.T) {
		f := newFixture(t)
		s := confirmedPair(t, f)
		res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", FillPolicy: FillKeepPartial})
		require.NoError(t, err)

		assert.Equal(t, []string{s.ID}, res.SlotsNeedingAttention)
		assert.Equal(t, map[string]model.Status{"b@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))
		n, st := f.aggregate(t, s.ID)
		assert.Equal(t, 1, n)
		assert.Equal(t, model.SlotOpen, st)
	})

	t.Run("cancel-all", func(t *testing.T) {
		f := newFixture(t)
		s := confirmedPair(t, f)
		res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", FillPolicy: FillCancelAll, Reason: "ill"})
		require.NoError(t, err)

		assert.Equal(t, 1, res.DroppedCount)
		assert.Empty(t, f.statuses(t, s.ID))
		reasons := f.archiveReasons(t)
		assert.Equal(t, "cancel:ill", reasons["a@x.io@"+s.ID])
		assert.Equal(t, model.ReasonSlotCanceled, reasons["b@x.io@"+s.ID])
		assert.Equal(t, 1, f.mail.count("slot-canceled"))
		n, _ := f.aggregate(t, s.ID)
		assert.Zero(t, n)
	})

	t.Run("try-fill keeps the rest when nobody can step in", func(t *testing.T) {
		f := newFixture(t)
		s := confirmedPair(t, f)
		res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io"})
		require.NoError(t, err)
		assert.Zero(t, res.RefilledCount)
		assert.Equal(t, []string{s.ID}, res.SlotsNeedingAttention)
		assert.Equal(t, map[string]model.Status{"b@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))
	})
}

func TestCancel_DropSlotPolicy(t *testing.T) {
	f := newFixture(t)
	s := confirmedPair(t, f)
	f.reg(t, "c@x.io", s, 3, model.StatusWaitlist)

	res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", SlotPolicy: SlotDrop})
	require.NoError(t, err)

	assert.Equal(t, 1, res.DroppedCount)
	assert.Zero(t, res.RefilledCount)
	assert.Equal(t, map[string]model.Status{"c@x.io": model.StatusWaitlist}, f.statuses(t, s.ID))
	assert.Equal(t, model.ReasonSlotCanceled, f.archiveReasons(t)["b@x.io@"+s.ID])
}

func TestCancel_Scope(t *testing.T) {
	f := newFixture(t)
	s := confirmedPair(t, f)
	other := f.slot(t, day, "13:00", 2)
	f.reg(t, "a@x.io", other, 3, model.StatusPending)

	res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", FillPolicy: FillKeepPartial})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Equal(t, model.StatusPending, f.statuses(t, other.ID)["a@x.io"])

	res, err = f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io", Scope: ScopeAll})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Empty(t, res.SlotsNeedingAttention, "a pending row frees no seat")
	assert.Empty(t, f.statuses(t, other.ID))
	assert.Equal(t, map[string]model.Status{"b@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))
}

func TestCancel_Validation(t *testing.T) {
	f := newFixture(t)
	for _, req := range []CancelRequest{
		{},
		{Email: "a@x.io", Scope: "some"},
		{Email: "a@x.io", SlotPolicy: "keep"},
		{Email: "a@x.io", FillPolicy: "maybe"},
	} {
		_, err := f.engine.Cancel(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestCancel_RefillsFromArchive(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)
	f.reg(t, "b@x.io", s, 2, model.StatusPending)
	f.reg(t, "c@x.io", s, 3, model.StatusPending)
	f.reg(t, "d@x.io", s, 4, model.StatusPending)

	rep, err := f.engine.RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Cleanup.SlotResolved)
	assert.Len(t, f.statuses(t, s.ID), 2, "waiting rows of the full slot are archived")

	res, err := f.engine.Cancel(context.Background(), CancelRequest{Email: "b@x.io"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RefilledCount)
	assert.Equal(t, map[string]model.Status{"a@x.io": model.StatusConfirmed, "c@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))

	recs, err := f.store.ListArchive(context.Background())
	require.NoError(t, err)
	for _, rec := range recs {
		switch rec.Registration.Email {
		case "c@x.io":
			assert.NotNil(t, rec.RestoredAt)
		case "d@x.io":
			assert.True(t, rec.Restorable())
		}
	}
	f.checkInvariants(t)
}

func TestTryRefillSlot_MissingSlot(t *testing.T) {
	f := newFixture(t)
	ok, err := f.engine.TryRefillSlot(context.Background(), "nope", FillTry)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancel_ReRegisteredPersonIsNotRefilledBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := confirmedPair(t, f)
	f.reg(t, "c@x.io", s, 3, model.StatusWaitlist)
	other := f.slot(t, day, "13:00", 2)
	f.reg(t, "b@x.io", other, 4, model.StatusPending)

	// a was confirmed on s, so the batch moved their row for other away.
	aOther := f.reg(t, "a@x.io", other, 1, model.StatusPending)
	require.NoError(t, f.engine.archive(ctx, aOther, model.ReasonConfirmedElsewhere))

	_, err := f.engine.Cancel(ctx, CancelRequest{Email: "a@x.io"})
	require.NoError(t, err)
	f.checkInvariants(t)

	reg, err := f.engine.Register(ctx, RegisterRequest{Name: "A", Email: "a@x.io", SlotIDs: []string{other.ID}})
	require.NoError(t, err)
	require.Len(t, reg.Created, 1)
	f.checkInvariants(t)

	// b is confirmed on s, so only a can take other: give them a partner.
	f.reg(t, "d@x.io", other, 5, model.StatusPending)
	conf, err := f.engine.ConfirmIfCapacityReached(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, conf.Filled)
	assert.Equal(t, model.StatusConfirmed, f.statuses(t, other.ID)["a@x.io"])
	f.checkInvariants(t)

	res, err := f.engine.Cancel(ctx, CancelRequest{Email: "a@x.io"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RemovedCount)
	assert.Zero(t, res.RefilledCount)
	assert.Equal(t, []string{other.ID}, res.SlotsNeedingAttention)
	assert.NotContains(t, f.statuses(t, other.ID), "a@x.io")
}

func TestRestore_CancellationClosesOlderRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "b@x.io", s, 2, model.StatusConfirmed)

	first := f.reg(t, "a@x.io", s, 1, model.StatusWaitlist)
	require.NoError(t, f.engine.archive(ctx, first, model.ReasonSlotResolved))
	again := f.reg(t, "a@x.io", s, 3, model.StatusConfirmed)
	require.NoError(t, f.engine.archive(ctx, again, model.CancelReason("")))

	res, err := f.engine.RestoreFromArchiveIfEligible(ctx, "a@x.io", s.ID)
	require.NoError(t, err)
	assert.False(t, res.Restored)
	assert.Equal(t, RestoreNotFound, res.Reason)

	ok, err := f.engine.TryRefillSlot(ctx, s.ID, FillTry)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NotContains(t, f.statuses(t, s.ID), "a@x.io")
}
