package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/lock"
	"github.com/iliyamo/slot-booking/internal/logger"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// Tests run on 2026-10-18; "tomorrow" is 2026-10-19.
var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

const day = "2026-10-20"

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type mailCall struct {
	kind string
	to   string
	slot string
}

// fakeMailer records what the engine asked to send.
type fakeMailer struct {
	calls  []mailCall
	admins bool
	digest *model.Digest
	fail   map[string]bool // kinds that fail
}

func (m *fakeMailer) record(kind, to, slot string) error {
	if m.fail[kind] {
		return assert.AnError
	}
	m.calls = append(m.calls, mailCall{kind, to, slot})
	return nil
}

func (m *fakeMailer) Receipt(ctx context.Context, name, email string, slots []model.Slot) error {
	return m.record("receipt", email, "")
}
func (m *fakeMailer) Confirmed(ctx context.Context, reg model.Registration, slot model.Slot) error {
	return m.record("confirm", reg.Email, slot.ID)
}
func (m *fakeMailer) Reminder(ctx context.Context, reg model.Registration, slot model.Slot) error {
	return m.record("reminder", reg.Email, slot.ID)
}
func (m *fakeMailer) Cancelled(ctx context.Context, name, email string, regs []model.Registration) error {
	return m.record("cancel", email, "")
}
func (m *fakeMailer) SlotCanceled(ctx context.Context, reg model.Registration, slot model.Slot) error {
	return m.record("slot-canceled", reg.Email, slot.ID)
}
func (m *fakeMailer) AdminConfirmed(ctx context.Context, slot model.Slot, members []model.Registration) error {
	return m.record("admin", "", slot.ID)
}
func (m *fakeMailer) AdminDigest(ctx context.Context, d model.Digest) error {
	m.digest = &d
	return m.record("digest", "", "")
}
func (m *fakeMailer) HasAdmins() bool { return m.admins }
func (m *fakeMailer) Flush(ctx context.Context) (model.FlushReport, error) {
	return model.FlushReport{}, nil
}

func (m *fakeMailer) count(kind string) int {
	n := 0
	for _, c := range m.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	engine  *Engine
	store   *repository.MemoryStore
	mail    *fakeMailer
	clock   *fakeClock
	locker  *lock.LocalLocker
	batches int
}

func newFixture(t *testing.T, tweak ...func(*config.Policy)) *fixture {
	t.Helper()
	p := config.DefaultPolicy()
	p.LockWait = time.Second
	for _, fn := range tweak {
		fn(&p)
	}
	f := &fixture{
		store:  repository.NewMemoryStore(),
		mail:   &fakeMailer{fail: map[string]bool{}},
		clock:  &fakeClock{now: testNow},
		locker: lock.NewLocal(),
	}
	f.engine = NewEngine(Deps{
		Store:   f.store,
		Mailer:  f.mail,
		Locker:  f.locker,
		Policy:  p,
		Clock:   f.clock,
		Logger:  logger.Discard(),
		Batches: ScheduleFunc(func() { f.batches++ }),
	})
	return f
}

func (f *fixture) slot(t *testing.T, date, start string, capacity int) model.Slot {
	t.Helper()
	s := model.Slot{
		ID:       model.SlotID(date, start),
		Date:     date,
		Start:    start,
		End:      start[:2] + ":59",
		Capacity: capacity,
		Timezone: "UTC",
		Status:   model.SlotOpen,
	}
	added, err := f.store.InsertSlot(context.Background(), s)
	require.NoError(t, err)
	require.True(t, added)
	return s
}

// reg appends a row submitted n minutes after testNow.
func (f *fixture) reg(t *testing.T, email string, s model.Slot, n int, status model.Status) model.Registration {
	t.Helper()
	r := model.Registration{
		ID:        email + "@" + s.ID,
		Timestamp: testNow.Add(time.Duration(n) * time.Minute),
		Name:      email,
		Email:     email,
		SlotID:    s.ID,
		Date:      s.Date,
		Start:     s.Start,
		End:       s.End,
		Status:    status,
	}
	require.NoError(t, f.store.AppendRegistration(context.Background(), r))
	return r
}

func (f *fixture) statuses(t *testing.T, slotID string) map[string]model.Status {
	t.Helper()
	regs, err := f.store.ListRegistrations(context.Background())
	require.NoError(t, err)
	out := map[string]model.Status{}
	for _, r := range regs {
		if r.SlotID == slotID {
			out[r.Email] = r.Status
		}
	}
	return out
}

func (f *fixture) aggregate(t *testing.T, slotID string) (int, model.SlotStatus) {
	t.Helper()
	s, err := f.store.FindSlot(context.Background(), slotID)
	require.NoError(t, err)
	return s.ConfirmedCount, s.Status
}

func (f *fixture) archiveReasons(t *testing.T) map[string]string {
	t.Helper()
	recs, err := f.store.ListArchive(context.Background())
	require.NoError(t, err)
	out := map[string]string{}
	for _, r := range recs {
		out[r.Registration.Email+"@"+r.Registration.SlotID] = r.Reason
	}
	return out
}

// checkInvariants asserts the rules every completed pass must leave intact.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	regs, err := f.store.ListRegistrations(ctx)
	require.NoError(t, err)
	slots, err := f.store.ListSlots(ctx)
	require.NoError(t, err)
	p := f.engine.Policy()

	seen := map[string]bool{}
	confirmedOn := map[string]int{}
	perSlot := map[string]int{}
	for _, r := range regs {
		key := r.Email + "|" + r.SlotID
		assert.False(t, seen[key], "duplicate live row %s", key)
		seen[key] = true
		if r.Status == model.StatusConfirmed {
			confirmedOn[r.Email]++
			perSlot[r.SlotID]++
		}
	}
	for _, s := range slots {
		n := perSlot[s.ID]
		assert.LessOrEqual(t, n, s.Capacity, "slot %s over capacity", s.ID)
		if n > 0 {
			assert.GreaterOrEqual(t, n, p.MinCapacityToConfirm, "slot %s under minimum", s.ID)
		}
	}
	if !p.AllowMultiple {
		for email, n := range confirmedOn {
			assert.LessOrEqual(t, n, 1, "%s confirmed on %d slots", email, n)
		}
	}

	recs, err := f.store.ListArchive(ctx)
	require.NoError(t, err)
	for _, rec := range recs {
		key := rec.Registration.Email + "|" + rec.Registration.SlotID
		assert.False(t, seen[key] && rec.Restorable(), "%s is live and restorable from archive %s", key, rec.ID)
	}
}

func TestConfirm_TwoPendingFillTheSlot(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)
	f.reg(t, "b@x.io", s, 2, model.StatusPending)

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, ConfirmDone, res.Status)
	assert.True(t, res.Filled)
	assert.Equal(t, 2, res.ConfirmedCount)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, res.NewlyConfirmedEmails)
	assert.Equal(t, map[string]model.Status{"a@x.io": model.StatusConfirmed, "b@x.io": model.StatusConfirmed}, f.statuses(t, s.ID))

	n, st := f.aggregate(t, s.ID)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.SlotFilled, st)
	assert.Equal(t, 2, f.mail.count("confirm"))
	assert.Equal(t, 1, f.mail.count("admin"))

	snaps, err := f.store.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].ActualCount)
	assert.Len(t, snaps[0].Members, 2)

	regs, err := f.store.ListRegistrations(context.Background())
	require.NoError(t, err)
	for _, r := range regs {
		assert.True(t, r.NotifiedConfirm, r.Email)
	}

	// a second pass changes nothing and sends nothing
	res, err = f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, res.NewlyConfirmedEmails)
	assert.Equal(t, 2, f.mail.count("confirm"))
}

func TestConfirm_SinglePendingStaysPending(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, ConfirmBelowMinimum, res.Status)
	assert.False(t, res.Filled)
	assert.Equal(t, model.StatusPending, f.statuses(t, s.ID)["a@x.io"])
	n, st := f.aggregate(t, s.ID)
	assert.Zero(t, n)
	assert.Equal(t, model.SlotOpen, st)
	assert.Empty(t, f.mail.calls)
}

func TestConfirm_EarliestWinAndRestWaitlisted(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	// appended out of submission order
	f.reg(t, "d@x.io", s, 4, model.StatusPending)
	f.reg(t, "b@x.io", s, 2, model.StatusPending)
	f.reg(t, "c@x.io", s, 3, model.StatusPending)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"a@x.io", "b@x.io"}, res.NewlyConfirmedEmails)
	assert.Equal(t, map[string]model.Status{
		"a@x.io": model.StatusConfirmed,
		"b@x.io": model.StatusConfirmed,
		"c@x.io": model.StatusWaitlist,
		"d@x.io": model.StatusWaitlist,
	}, f.statuses(t, s.ID))
}

func TestConfirm_TieBrokenByID(t *testing.T) {
	f := newFixture(t)
	s := f.slot(t, day, "11:00", 2)
	f.reg(t, "c@x.io", s, 1, model.StatusPending)
	f.reg(t, "b@x.io", s, 1, model.StatusPending)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, res.NewlyConfirmedEmails)
}

func TestConfirm_SkipsPeopleConfirmedElsewhere(t *testing.T) {
	f := newFixture(t)
	first := f.slot(t, day, "11:00", 2)
	second := f.slot(t, day, "13:00", 2)
	f.reg(t, "a@x.io", first, 1, model.StatusConfirmed)
	f.reg(t, "z@x.io", first, 1, model.StatusConfirmed)
	f.reg(t, "a@x.io", second, 2, model.StatusPending)
	f.reg(t, "b@x.io", second, 3, model.StatusPending)

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfirmBelowMinimum, res.Status)

	t.Run("allowed when multiple confirmations are on", func(t *testing.T) {
		f := newFixture(t, func(p *config.Policy) { p.AllowMultiple = true })
		first := f.slot(t, day, "11:00", 2)
		second := f.slot(t, day, "13:00", 2)
		f.reg(t, "a@x.io", first, 1, model.StatusConfirmed)
		f.reg(t, "a@x.io", second, 2, model.StatusPending)
		f.reg(t, "b@x.io", second, 3, model.StatusPending)

		res, err := f.engine.ConfirmIfCapacityReached(context.Background(), second.ID)
		require.NoError(t, err)
		assert.Equal(t, ConfirmDone, res.Status)
	})
}

func TestConfirm_RevertsWhenBelowMinimum(t *testing.T) {
	f := newFixture(t, func(p *config.Policy) { p.Capacity = 3; p.MinCapacityToConfirm = 3 })
	s := f.slot(t, day, "11:00", 3)
	f.reg(t, "a@x.io", s, 1, model.StatusConfirmed)
	f.reg(t, "b@x.io", s, 2, model.StatusWaitlist)
	require.NoError(t, f.store.UpsertSnapshot(context.Background(), model.ConfirmedSnapshot{SlotID: s.ID}))

	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, ConfirmBelowMinimum, res.Status)
	assert.Equal(t, map[string]model.Status{"a@x.io": model.StatusPending, "b@x.io": model.StatusPending}, f.statuses(t, s.ID))
	snaps, err := f.store.ListSnapshots(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestConfirm_NotFoundAndPastDate(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.ConfirmIfCapacityReached(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, ConfirmNotFound, res.Status)

	s := f.slot(t, testNow.Format(model.DateLayout), "11:00", 2)
	f.reg(t, "a@x.io", s, 1, model.StatusPending)
	f.reg(t, "b@x.io", s, 2, model.StatusPending)
	res, err = f.engine.ConfirmIfCapacityReached(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfirmPastDate, res.Status)
	assert.Equal(t, model.StatusPending, f.statuses(t, s.ID)["a@x.io"])
}

func TestLockTimeout(t *testing.T) {
	f := newFixture(t, func(p *config.Policy) { p.LockWait = 20 * time.Millisecond })
	release, err := f.locker.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	_, err = f.engine.RunBatch(context.Background())
	assert.ErrorIs(t, err, ErrLockTimeout)

	_, err = f.engine.Cancel(context.Background(), CancelRequest{Email: "a@x.io"})
	assert.ErrorIs(t, err, ErrLockTimeout)
}
