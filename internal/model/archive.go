package model

import (
	"strings"
	"time"
)

// Archive reasons.  Reasons starting with "auto-archived" mark rows that
// were moved out by the batch rather than by a person, and only those can
// be restored.
const (
	ReasonPastDatePending    = "past-date-pending"
	ReasonSlotAlreadyFull    = "slot-already-full"
	ReasonPastConfirmed      = "past-confirmed-cleanup"
	ReasonConfirmedElsewhere = "auto-archived-confirmed-elsewhere"
	ReasonSlotResolved       = "auto-archived-slot-resolved"
	ReasonSlotCanceled       = "slot-canceled"
	ReasonDailyCleanup       = "daily-cleanup-7days"

	restorablePrefix = "auto-archived"
	cancelPrefix     = "cancel:"
)

// CancelReason builds the archive reason recorded for an operator
// cancellation.
func CancelReason(reason string) string {
	if reason == "" {
		reason = "cancel"
	}
	return cancelPrefix + reason
}

// ArchiveRecord is a frozen copy of a registration that left the ledger.
type ArchiveRecord struct {
	ID           string       `json:"id"`
	ArchivedAt   time.Time    `json:"archived_at"`
	Registration Registration `json:"registration"`
	Reason       string       `json:"reason"`
	RestoredAt   *time.Time   `json:"restored_at,omitempty"`
}

// Restorable reports whether the record may still be re-admitted.
func (a ArchiveRecord) Restorable() bool {
	return a.RestoredAt == nil && strings.HasPrefix(a.Reason, restorablePrefix)
}

// Cancelled reports whether the record was written by a cancellation.
func (a ArchiveRecord) Cancelled() bool { return strings.HasPrefix(a.Reason, cancelPrefix) }
