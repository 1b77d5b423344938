package model

import "time"

// MailType classifies outbound messages.  Quota rules depend on it.
type MailType string

const (
	MailConfirm  MailType = "confirm"
	MailReminder MailType = "reminder"
	MailReceipt  MailType = "receipt"
	MailAdmin    MailType = "admin"
	MailCancel   MailType = "cancel"
)

// MailStatus is the delivery state of a queued message.
type MailStatus string

const (
	MailPending MailStatus = "pending"
	MailSent    MailStatus = "sent"
	MailError   MailStatus = "error"
)

// MailMessage is an outbound notification.  ICS carries an optional
// calendar attachment.
type MailMessage struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Type        MailType          `json:"type"`
	To          string            `json:"to"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	ICS         string            `json:"ics,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
	Status      MailStatus        `json:"status"`
	LastTriedAt *time.Time        `json:"last_tried_at,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// FlushReport summarises one pass over the pending mail queue.
type FlushReport struct {
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred"`
}

// DigestSlot is one slot line of the daily administrator digest.
type DigestSlot struct {
	Slot      Slot
	Confirmed []Registration
	Pending   int
	Waitlist  int
	// Needed is how many more confirmations the slot requires to reach
	// the minimum; zero once reached.
	Needed int
}

// Digest is the daily administrator overview.
type Digest struct {
	Today string
	Days  []DigestDay
	// Unconfirmed lists slots that have waiting people but nobody
	// confirmed yet.
	Unconfirmed []DigestSlot
}

// DigestDay groups digest lines by date.
type DigestDay struct {
	Date  string
	Slots []DigestSlot
}
