package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/slot-booking/internal/model"
)

// SlotRepo reads and writes the slots table.  The confirmed_count and
// status columns are an aggregate maintained by the engine; the
// registrations table stays authoritative.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, slot_date, start_time, end_time, capacity, location, timezone, confirmed_count, status`

func scanSlot(row interface{ Scan(...any) error }) (model.Slot, error) {
	var s model.Slot
	var status string
	err := row.Scan(&s.ID, &s.Date, &s.Start, &s.End, &s.Capacity, &s.Location, &s.Timezone, &s.ConfirmedCount, &status)
	s.Status = model.SlotStatus(status)
	return s, err
}

// ListSlots returns every slot ordered by date then start time.
func (r *SlotRepo) ListSlots(ctx context.Context) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+slotColumns+` FROM slots ORDER BY slot_date, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindSlot fetches one slot.  It returns ErrNotFound when no row matches.
func (r *SlotRepo) FindSlot(ctx context.Context, id string) (model.Slot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrNotFound
	}
	return s, err
}

// InsertSlot creates the slot unless its ID already exists.  INSERT IGNORE
// keeps slot generation idempotent; the affected row count tells us
// whether anything was written.
func (r *SlotRepo) InsertSlot(ctx context.Context, s model.Slot) (bool, error) {
	if s.Status == "" {
		s.Status = model.SlotOpen
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Date, s.Start, s.End, s.Capacity, s.Location, s.Timezone, s.ConfirmedCount, string(s.Status))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateAggregate records the confirmed count and open/filled status.
func (r *SlotRepo) UpdateAggregate(ctx context.Context, id string, confirmed int, filled bool) error {
	status := model.SlotOpen
	if filled {
		status = model.SlotFilled
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE slots SET confirmed_count = ?, status = ? WHERE id = ?`, confirmed, string(status), id)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when values are unchanged, so only a
	// missing row is treated as an error.
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, id).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
	}
	return nil
}
