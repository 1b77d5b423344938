// Package repository holds the persistence layer: MySQL-backed repositories
// for slots, registrations, the archive, confirmed snapshots and the mail
// queue, plus an in-memory Store with the same behaviour for development
// and tests.
//
// The sentinel values below let higher layers tell failure scenarios
// apart with errors.Is.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert would break a uniqueness rule,
// such as a second live registration for the same (email, slot).
var ErrConflict = errors.New("conflict")

// isDuplicate reports whether err is a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
