package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/slot-booking/internal/model"
)

// RegistrationRepo is the ledger of live registrations.  Rows carry an
// auto-increment seq column so listing returns them in append order.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a RegistrationRepo bound to db.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

const registrationColumns = `id, submitted_at, name, email, slot_id, slot_date, start_time, end_time, status,
	notified_confirm, notified_wait, notified_remind, notes`

// ListRegistrations returns the whole ledger in append order.
func (r *RegistrationRepo) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+registrationColumns+` FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Registration
	for rows.Next() {
		var (
			reg    model.Registration
			status string
		)
		if err := rows.Scan(&reg.ID, &reg.Timestamp, &reg.Name, &reg.Email, &reg.SlotID, &reg.Date, &reg.Start, &reg.End,
			&status, &reg.NotifiedConfirm, &reg.NotifiedWait, &reg.NotifiedRemind, &reg.Notes); err != nil {
			return nil, err
		}
		if reg.Status, err = model.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// AppendRegistration inserts reg.  The unique (email, slot_id) index turns
// a duplicate live registration into ErrConflict.
func (r *RegistrationRepo) AppendRegistration(ctx context.Context, reg model.Registration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registrations (`+registrationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.Timestamp.UTC(), reg.Name, reg.Email, reg.SlotID, reg.Date, reg.Start, reg.End, string(reg.Status),
		reg.NotifiedConfirm, reg.NotifiedWait, reg.NotifiedRemind, reg.Notes)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// UpdateRegistration rewrites the mutable columns of the row with reg.ID.
func (r *RegistrationRepo) UpdateRegistration(ctx context.Context, reg model.Registration) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE registrations SET status = ?, notified_confirm = ?, notified_wait = ?, notified_remind = ?, notes = ?
		 WHERE id = ?`,
		string(reg.Status), reg.NotifiedConfirm, reg.NotifiedWait, reg.NotifiedRemind, reg.Notes, reg.ID)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, reg.ID)
}

// DeleteRegistration removes the row with the given ID.
func (r *RegistrationRepo) DeleteRegistration(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// requireRow distinguishes "nothing changed" from "no such row", since
// MySQL reports zero affected rows for both.
func (r *RegistrationRepo) requireRow(ctx context.Context, res sql.Result, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM registrations WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}
