package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// ArchiveRepo stores frozen copies of registrations that left the ledger.
// Records are append-only apart from the restored_at stamp.
type ArchiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo returns an ArchiveRepo bound to db.
func NewArchiveRepo(db *sql.DB) *ArchiveRepo { return &ArchiveRepo{db: db} }

// AppendArchive inserts rec.
func (r *ArchiveRepo) AppendArchive(ctx context.Context, rec model.ArchiveRecord) error {
	reg := rec.Registration
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO archive_records (id, archived_at, reason, registration_id, submitted_at, name, email, slot_id,
		 slot_date, start_time, end_time, status, notified_confirm, notified_wait, notified_remind, notes, restored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ArchivedAt.UTC(), rec.Reason, reg.ID, reg.Timestamp.UTC(), reg.Name, reg.Email, reg.SlotID,
		reg.Date, reg.Start, reg.End, string(reg.Status), reg.NotifiedConfirm, reg.NotifiedWait, reg.NotifiedRemind,
		reg.Notes, rec.RestoredAt)
	return err
}

// ListArchive returns every record in append order.
func (r *ArchiveRepo) ListArchive(ctx context.Context) ([]model.ArchiveRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, archived_at, reason, registration_id, submitted_at, name, email, slot_id, slot_date, start_time,
		 end_time, status, notified_confirm, notified_wait, notified_remind, notes, restored_at
		 FROM archive_records ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ArchiveRecord
	for rows.Next() {
		var (
			rec      model.ArchiveRecord
			status   string
			restored sql.NullTime
		)
		reg := &rec.Registration
		if err := rows.Scan(&rec.ID, &rec.ArchivedAt, &rec.Reason, &reg.ID, &reg.Timestamp, &reg.Name, &reg.Email,
			&reg.SlotID, &reg.Date, &reg.Start, &reg.End, &status, &reg.NotifiedConfirm, &reg.NotifiedWait,
			&reg.NotifiedRemind, &reg.Notes, &restored); err != nil {
			return nil, err
		}
		if reg.Status, err = model.ParseStatus(status); err != nil {
			return nil, err
		}
		if restored.Valid {
			t := restored.Time
			rec.RestoredAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkRestored stamps the record so it can never be restored again.
func (r *ArchiveRepo) MarkRestored(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE archive_records SET restored_at = ? WHERE id = ? AND restored_at IS NULL`, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
