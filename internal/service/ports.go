package service

import (
	"context"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// Store is everything the engine persists.  repository.MySQLStore and
// repository.MemoryStore both satisfy it.  List calls return rows in
// append order.
type Store interface {
	ListSlots(ctx context.Context) ([]model.Slot, error)
	FindSlot(ctx context.Context, id string) (model.Slot, error)
	InsertSlot(ctx context.Context, s model.Slot) (bool, error)
	UpdateAggregate(ctx context.Context, id string, confirmed int, filled bool) error

	ListRegistrations(ctx context.Context) ([]model.Registration, error)
	AppendRegistration(ctx context.Context, r model.Registration) error
	UpdateRegistration(ctx context.Context, r model.Registration) error
	DeleteRegistration(ctx context.Context, id string) error

	AppendArchive(ctx context.Context, rec model.ArchiveRecord) error
	ListArchive(ctx context.Context) ([]model.ArchiveRecord, error)
	MarkRestored(ctx context.Context, id string, at time.Time) error

	ListSnapshots(ctx context.Context) ([]model.ConfirmedSnapshot, error)
	UpsertSnapshot(ctx context.Context, s model.ConfirmedSnapshot) error
	DeleteSnapshot(ctx context.Context, slotID string) error
}

// Mailer renders and dispatches the messages the engine produces.
// notify.Mailer is the production implementation.
type Mailer interface {
	Receipt(ctx context.Context, name, email string, slots []model.Slot) error
	Confirmed(ctx context.Context, reg model.Registration, slot model.Slot) error
	Reminder(ctx context.Context, reg model.Registration, slot model.Slot) error
	Cancelled(ctx context.Context, name, email string, regs []model.Registration) error
	SlotCanceled(ctx context.Context, reg model.Registration, slot model.Slot) error
	AdminConfirmed(ctx context.Context, slot model.Slot, members []model.Registration) error
	AdminDigest(ctx context.Context, d model.Digest) error
	HasAdmins() bool
	Flush(ctx context.Context) (model.FlushReport, error)
}

// BatchScheduler arranges for RunBatch to happen soon.  Calls made while a
// run is already pending are coalesced by the implementation.
type BatchScheduler interface {
	ScheduleBatch()
}

// ScheduleFunc adapts a plain function to BatchScheduler.
type ScheduleFunc func()

func (f ScheduleFunc) ScheduleBatch() { f() }

// Clock abstracts wall time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
