package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a live registration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusWaitlist  Status = "waitlist"
	StatusConfirmed Status = "confirmed"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusWaitlist, StatusConfirmed:
		return true
	}
	return false
}

// ParseStatus converts a stored value into a Status.  Unknown values are
// rejected rather than silently treated as pending.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown registration status %q", v)
	}
	return s, nil
}

// NoteRestored marks a registration that was re-admitted from the archive.
const NoteRestored = "restored-from-archive"

// Registration is one person's request for one slot.
//
// Fields:
//  ID              – opaque key (uuid).
//  Timestamp       – submission time; primary FIFO ordering key.
//  Name, Email     – registrant; email is stored lower-cased.
//  SlotID          – slot the registration targets.
//  Date/Start/End  – denormalised copy of the slot window.
//  Status          – pending, waitlist or confirmed.
//  Notified*       – delivery flags for confirm/waitlist/reminder mails.
//  Notes           – free text, e.g. restored-from-archive.
type Registration struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	SlotID          string    `json:"slot_id"`
	Date            string    `json:"date"`
	Start           string    `json:"start"`
	End             string    `json:"end"`
	Status          Status    `json:"status"`
	NotifiedConfirm bool      `json:"notified_confirm"`
	NotifiedWait    bool      `json:"notified_wait"`
	NotifiedRemind  bool      `json:"notified_remind"`
	Notes           string    `json:"notes,omitempty"`
}

// NormalizeEmail trims and lower-cases an address so it can be used as an
// identity key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
