package model

import "time"

// SnapshotMember is one confirmed person in a ConfirmedSnapshot.
type SnapshotMember struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ConfirmedSnapshot is a denormalised view of a slot's confirmed set.  It
// is a read cache only; the ledger stays authoritative.
type ConfirmedSnapshot struct {
	SlotID      string           `json:"slot_id"`
	Date        string           `json:"date"`
	Start       string           `json:"start"`
	End         string           `json:"end"`
	Location    string           `json:"location"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
	Members     []SnapshotMember `json:"members"`
	ActualCount int              `json:"actual_count"`
}
