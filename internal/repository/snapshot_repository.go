package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/slot-booking/internal/model"
)

// SnapshotRepo persists confirmed snapshots, one row per slot, with the
// member list stored as a JSON column.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo returns a SnapshotRepo bound to db.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) ListSnapshots(ctx context.Context) ([]model.ConfirmedSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slot_id, slot_date, start_time, end_time, location, confirmed_at, members, actual_count
		 FROM confirmed_snapshots ORDER BY slot_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ConfirmedSnapshot
	for rows.Next() {
		var (
			s       model.ConfirmedSnapshot
			members []byte
		)
		if err := rows.Scan(&s.SlotID, &s.Date, &s.Start, &s.End, &s.Location, &s.ConfirmedAt, &members, &s.ActualCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(members, &s.Members); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSnapshot replaces the snapshot for s.SlotID.
func (r *SnapshotRepo) UpsertSnapshot(ctx context.Context, s model.ConfirmedSnapshot) error {
	members, err := json.Marshal(s.Members)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO confirmed_snapshots (slot_id, slot_date, start_time, end_time, location, confirmed_at, members, actual_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE slot_date = VALUES(slot_date), start_time = VALUES(start_time),
		   end_time = VALUES(end_time), location = VALUES(location), confirmed_at = VALUES(confirmed_at),
		   members = VALUES(members), actual_count = VALUES(actual_count)`,
		s.SlotID, s.Date, s.Start, s.End, s.Location, s.ConfirmedAt.UTC(), members, s.ActualCount)
	return err
}

// DeleteSnapshot removes the snapshot of slotID; a missing row is not an error.
func (r *SnapshotRepo) DeleteSnapshot(ctx context.Context, slotID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM confirmed_snapshots WHERE slot_id = ?`, slotID)
	return err
}
