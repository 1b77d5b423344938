package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/model"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)
	open := f.slot(t, day, "11:00", 2)
	closed := f.slot(t, "2026-10-18", "11:00", 2)
	full := f.slot(t, day, "13:00", 2)
	require.NoError(t, f.store.UpdateAggregate(context.Background(), full.ID, 2, true))

	res, err := f.engine.Register(context.Background(), RegisterRequest{
		Name:    "Ann",
		Email:   "Ann@Example.org",
		SlotIDs: []string{open.ID, closed.ID, full.ID, "2026-10-20_0900", open.ID},
	})
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.Equal(t, "ann@example.org", res.Created[0].Email)
	assert.Equal(t, model.StatusPending, res.Created[0].Status)
	assert.Equal(t, testNow, res.Created[0].Timestamp)
	assert.ElementsMatch(t, []Skipped{
		{SlotID: closed.ID, Reason: SkipSlotClosed},
		{SlotID: full.ID, Reason: SkipSlotFull},
		{SlotID: "2026-10-20_0900", Reason: SkipSlotNotFound},
	}, res.Skipped)
	assert.Equal(t, 1, f.mail.count("receipt"))
	assert.Equal(t, 1, f.batches)

	t.Run("again is skipped", func(t *testing.T) {
		res, err := f.engine.Register(context.Background(), RegisterRequest{Name: "Ann", Email: "ann@example.org", SlotIDs: []string{open.ID}})
		require.NoError(t, err)
		assert.Empty(t, res.Created)
		assert.Equal(t, []Skipped{{SlotID: open.ID, Reason: SkipAlreadyRegistered}}, res.Skipped)
		assert.Equal(t, 1, f.batches, "nothing new, no batch")
	})
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	for name, req := range map[string]RegisterRequest{
		"no name":   {Email: "a@x.io", SlotIDs: []string{"s"}},
		"no email":  {Name: "A", SlotIDs: []string{"s"}},
		"bad email": {Name: "A", Email: "not-an-address", SlotIDs: []string{"s"}},
		"no slots":  {Name: "A", Email: "a@x.io", SlotIDs: []string{" "}},
	} {
		_, err := f.engine.Register(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation, name)
	}
	regs, err := f.store.ListRegistrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestRestoreFromArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	other := f.slot(t, day, "13:00", 2)
	archived := model.Registration{ID: "r1", Timestamp: testNow, Name: "A", Email: "a@x.io", SlotID: s.ID, Date: s.Date, Start: s.Start, End: s.End, Status: model.StatusWaitlist, NotifiedWait: true}
	require.NoError(t, f.store.AppendArchive(ctx, model.ArchiveRecord{ID: "x1", ArchivedAt: testNow, Registration: archived, Reason: model.ReasonSlotResolved}))

	t.Run("not found", func(t *testing.T) {
		res, err := f.engine.RestoreFromArchiveIfEligible(ctx, "a@x.io", other.ID)
		require.NoError(t, err)
		assert.False(t, res.Restored)
		assert.Equal(t, RestoreNotFound, res.Reason)
	})

	t.Run("restores once", func(t *testing.T) {
		res, err := f.engine.RestoreFromArchiveIfEligible(ctx, "A@x.io", s.ID)
		require.NoError(t, err)
		require.True(t, res.Restored)
		assert.Equal(t, model.StatusWaitlist, res.Registration.Status)
		assert.Equal(t, model.NoteRestored, res.Registration.Notes)
		assert.False(t, res.Registration.NotifiedWait)
		assert.NotEqual(t, "r1", res.Registration.ID)

		res, err = f.engine.RestoreFromArchiveIfEligible(ctx, "a@x.io", s.ID)
		require.NoError(t, err)
		assert.False(t, res.Restored)
		assert.Equal(t, RestoreAlreadyRegistered, res.Reason)

		recs, err := f.store.ListArchive(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.NotNil(t, recs[0].RestoredAt)
	})

	t.Run("confirmed elsewhere", func(t *testing.T) {
		f := newFixture(t)
		s := f.slot(t, day, "11:00", 2)
		other := f.slot(t, day, "13:00", 2)
		require.NoError(t, f.store.AppendArchive(ctx, model.ArchiveRecord{ID: "x1", Registration: archived, Reason: model.ReasonSlotResolved}))
		f.reg(t, "a@x.io", other, 1, model.StatusConfirmed)

		res, err := f.engine.RestoreFromArchiveIfEligible(ctx, "a@x.io", s.ID)
		require.NoError(t, err)
		assert.Equal(t, RestoreConfirmedElsewhere, res.Reason)
		assert.Equal(t, other.ID, res.ConfirmedSlotID)
	})

	t.Run("non restorable reasons", func(t *testing.T) {
		f := newFixture(t)
		s := f.slot(t, day, "11:00", 2)
		require.NoError(t, f.store.AppendArchive(ctx, model.ArchiveRecord{ID: "x1", Registration: archived, Reason: model.CancelReason("")}))
		res, err := f.engine.RestoreFromArchiveIfEligible(ctx, "a@x.io", s.ID)
		require.NoError(t, err)
		assert.Equal(t, RestoreNotFound, res.Reason)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.engine.RestoreFromArchiveIfEligible(ctx, "", s.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRegister_SupersedesArchivedRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	old := f.reg(t, "a@x.io", s, 1, model.StatusWaitlist)
	require.NoError(t, f.engine.archive(ctx, old, model.ReasonSlotResolved))

	res, err := f.engine.Register(ctx, RegisterRequest{Name: "A", Email: "a@x.io", SlotIDs: []string{s.ID}})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	recs, err := f.store.ListArchive(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Restorable())
	f.checkInvariants(t)
}
