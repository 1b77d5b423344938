package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; every statement is safe to
// re-run against an existing database.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS slots (
		id              VARCHAR(32)  NOT NULL PRIMARY KEY,
		slot_date       CHAR(10)     NOT NULL,
		start_time      CHAR(5)      NOT NULL,
		end_time        CHAR(5)      NOT NULL,
		capacity        INT          NOT NULL,
		location        VARCHAR(255) NOT NULL DEFAULT '',
		timezone        VARCHAR(64)  NOT NULL DEFAULT 'UTC',
		confirmed_count INT          NOT NULL DEFAULT 0,
		status          VARCHAR(16)  NOT NULL DEFAULT 'open',
		KEY idx_slots_date (slot_date, start_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS registrations (
		seq              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id               CHAR(36)     NOT NULL,
		submitted_at     DATETIME(6)  NOT NULL,
		name             VARCHAR(255) NOT NULL,
		email            VARCHAR(255) NOT NULL,
		slot_id          VARCHAR(32)  NOT NULL,
		slot_date        CHAR(10)     NOT NULL,
		start_time       CHAR(5)      NOT NULL,
		end_time         CHAR(5)      NOT NULL,
		status           VARCHAR(16)  NOT NULL,
		notified_confirm BOOLEAN      NOT NULL DEFAULT FALSE,
		notified_wait    BOOLEAN      NOT NULL DEFAULT FALSE,
		notified_remind  BOOLEAN      NOT NULL DEFAULT FALSE,
		notes            VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_registrations_id (id),
		UNIQUE KEY uq_registrations_email_slot (email, slot_id),
		KEY idx_registrations_slot (slot_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS archive_records (
		seq              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id               CHAR(36)     NOT NULL,
		archived_at      DATETIME(6)  NOT NULL,
		reason           VARCHAR(128) NOT NULL,
		registration_id  CHAR(36)     NOT NULL,
		submitted_at     DATETIME(6)  NOT NULL,
		name             VARCHAR(255) NOT NULL,
		email            VARCHAR(255) NOT NULL,
		slot_id          VARCHAR(32)  NOT NULL,
		slot_date        CHAR(10)     NOT NULL,
		start_time       CHAR(5)      NOT NULL,
		end_time         CHAR(5)      NOT NULL,
		status           VARCHAR(16)  NOT NULL,
		notified_confirm BOOLEAN      NOT NULL DEFAULT FALSE,
		notified_wait    BOOLEAN      NOT NULL DEFAULT FALSE,
		notified_remind  BOOLEAN      NOT NULL DEFAULT FALSE,
		notes            VARCHAR(255) NOT NULL DEFAULT '',
		restored_at      DATETIME(6)  NULL,
		UNIQUE KEY uq_archive_id (id),
		KEY idx_archive_email_slot (email, slot_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS confirmed_snapshots (
		slot_id      VARCHAR(32)  NOT NULL PRIMARY KEY,
		slot_date    CHAR(10)     NOT NULL,
		start_time   CHAR(5)      NOT NULL,
		end_time     CHAR(5)      NOT NULL,
		location     VARCHAR(255) NOT NULL DEFAULT '',
		confirmed_at DATETIME(6)  NOT NULL,
		members      JSON         NOT NULL,
		actual_count INT          NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS mail_queue (
		seq           BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id            CHAR(36)     NOT NULL,
		created_at    DATETIME(6)  NOT NULL,
		type          VARCHAR(16)  NOT NULL,
		recipient     VARCHAR(255) NOT NULL,
		subject       VARCHAR(255) NOT NULL,
		body          TEXT         NOT NULL,
		ics           TEXT         NOT NULL,
		meta          JSON         NULL,
		status        VARCHAR(16)  NOT NULL,
		last_tried_at DATETIME(6)  NULL,
		error         TEXT         NOT NULL,
		UNIQUE KEY uq_mail_id (id),
		KEY idx_mail_status (status, seq)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing table.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
