package repository

import "database/sql"

// MySQLStore bundles the MySQL repositories so they can be handed to the
// engine and the mail dispatcher as a single value.
type MySQLStore struct {
	*SlotRepo
	*RegistrationRepo
	*ArchiveRepo
	*SnapshotRepo
	*MailQueueRepo
}

// NewMySQLStore builds every repository on top of db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		SlotRepo:         NewSlotRepo(db),
		RegistrationRepo: NewRegistrationRepo(db),
		ArchiveRepo:      NewArchiveRepo(db),
		SnapshotRepo:     NewSnapshotRepo(db),
		MailQueueRepo:    NewMailQueueRepo(db),
	}
}
