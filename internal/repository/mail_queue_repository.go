package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/slot-booking/internal/model"
)

// MailQueueRepo backs the outbound mail queue.
type MailQueueRepo struct {
	db *sql.DB
}

// NewMailQueueRepo returns a MailQueueRepo bound to db.
func NewMailQueueRepo(db *sql.DB) *MailQueueRepo { return &MailQueueRepo{db: db} }

// AppendMail queues msg.
func (r *MailQueueRepo) AppendMail(ctx context.Context, msg model.MailMessage) error {
	meta, err := json.Marshal(msg.Meta)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO mail_queue (id, created_at, type, recipient, subject, body, ics, meta, status, last_tried_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.CreatedAt.UTC(), string(msg.Type), msg.To, msg.Subject, msg.Body, msg.ICS, meta,
		string(msg.Status), msg.LastTriedAt, msg.Error)
	return err
}

// ListPendingMail returns messages still waiting for delivery, oldest first.
func (r *MailQueueRepo) ListPendingMail(ctx context.Context) ([]model.MailMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, type, recipient, subject, body, ics, meta, status, last_tried_at, error
		 FROM mail_queue WHERE status = ? ORDER BY seq`, string(model.MailPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MailMessage
	for rows.Next() {
		var (
			msg       model.MailMessage
			typ, st   string
			meta      []byte
			lastTried sql.NullTime
		)
		if err := rows.Scan(&msg.ID, &msg.CreatedAt, &typ, &msg.To, &msg.Subject, &msg.Body, &msg.ICS, &meta,
			&st, &lastTried, &msg.Error); err != nil {
			return nil, err
		}
		msg.Type, msg.Status = model.MailType(typ), model.MailStatus(st)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &msg.Meta); err != nil {
				return nil, err
			}
		}
		if lastTried.Valid {
			t := lastTried.Time
			msg.LastTriedAt = &t
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// UpdateMail records the outcome of a delivery attempt.
func (r *MailQueueRepo) UpdateMail(ctx context.Context, msg model.MailMessage) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mail_queue SET status = ?, last_tried_at = ?, error = ? WHERE id = ?`,
		string(msg.Status), msg.LastTriedAt, msg.Error, msg.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
