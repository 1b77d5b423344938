package model

import "strings"

// DateLayout and TimeLayout are the canonical string forms used for slot
// dates and start/end times.  Both compare correctly as plain strings,
// which the engine relies on for "before tomorrow" checks.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// SlotStatus is the aggregate state of a slot.
type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotFilled SlotStatus = "filled"
)

// Slot is a capacity-limited time window that people register for.
//
// Fields:
//  ID             – Date + "_" + Start without the colon, e.g. 2026-10-20_1100.
//  Date           – calendar day (YYYY-MM-DD) in the slot timezone.
//  Start, End     – HH:MM.
//  Capacity       – maximum number of confirmed registrations.
//  Location       – free text shown in mails and calendar invites.
//  Timezone       – IANA zone name the date/time are expressed in.
//  ConfirmedCount – recorded number of confirmed registrations.
//  Status         – open or filled.
type Slot struct {
	ID             string     `json:"id"`
	Date           string     `json:"date"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Capacity       int        `json:"capacity"`
	Location       string     `json:"location"`
	Timezone       string     `json:"timezone"`
	ConfirmedCount int        `json:"confirmed_count"`
	Status         SlotStatus `json:"status"`
}

// SlotID derives the identifier of the slot starting at start on date.
func SlotID(date, start string) string {
	return date + "_" + strings.ReplaceAll(start, ":", "")
}

// Remaining returns the number of seats that can still be confirmed.
func (s Slot) Remaining() int {
	if n := s.Capacity - s.ConfirmedCount; n > 0 {
		return n
	}
	return 0
}
