package config

import (
	"errors"
	"fmt"
	"time"
)

// Policy carries the booking rules.  It is built once at start-up and
// handed to the engine explicitly.
type Policy struct {
	Capacity             int            // seats per slot
	MinCapacityToConfirm int            // people needed before a slot is confirmed
	AllowMultiple        bool           // may one email be confirmed on several slots
	Timezone             string         // IANA name used for dates and calendar invites
	Zone                 *time.Location // parsed Timezone
	Location             string         // where the session takes place
	AdminEmails          []string       // recipients of admin updates and digests
	FromName             string         // display name on outgoing mail
	BatchDelay           time.Duration  // delay between a registration and its batch
	LockWait             time.Duration  // how long to wait for the batch lock
	DailyQuota           int            // outbound messages allowed per day
	ReserveForReminders  int            // part of the quota kept for reminders
	ShowOnlyFromTomorrow bool           // hide today's and past slots from the public list
}

// DefaultPolicy returns the rules used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Capacity:             2,
		MinCapacityToConfirm: 2,
		Timezone:             "UTC",
		Zone:                 time.UTC,
		FromName:             "Slot Booking",
		BatchDelay:           30 * time.Second,
		LockWait:             30 * time.Second,
		DailyQuota:           100,
		ReserveForReminders:  50,
		ShowOnlyFromTomorrow: true,
	}
}

// LoadPolicy reads the booking rules from the environment.
func LoadPolicy() (Policy, error) {
	d := DefaultPolicy()
	p := Policy{
		Capacity:             envInt("SLOT_CAPACITY", d.Capacity),
		MinCapacityToConfirm: envInt("MIN_CAPACITY_TO_CONFIRM", d.MinCapacityToConfirm),
		AllowMultiple:        envBool("ALLOW_MULTIPLE_CONFIRMATION_PER_EMAIL", false),
		Timezone:             envStr("SLOT_TIMEZONE", d.Timezone),
		Location:             envStr("LOCATION", d.Location),
		AdminEmails:          envList("ADMIN_EMAILS", nil),
		FromName:             envStr("MAIL_FROM_NAME", d.FromName),
		BatchDelay:           envDur("BATCH_DELAY", d.BatchDelay),
		LockWait:             envDur("LOCK_WAIT", d.LockWait),
		DailyQuota:           envInt("MAIL_DAILY_QUOTA", d.DailyQuota),
		ReserveForReminders:  envInt("MAIL_RESERVE_FOR_REMINDERS", d.ReserveForReminders),
		ShowOnlyFromTomorrow: envBool("SHOW_ONLY_FROM_TOMORROW", d.ShowOnlyFromTomorrow),
	}
	zone, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return Policy{}, fmt.Errorf("SLOT_TIMEZONE: %w", err)
	}
	p.Zone = zone
	return p, p.Validate()
}

// Validate checks the arithmetic the engine relies on.
func (p Policy) Validate() error {
	switch {
	case p.Capacity < 1:
		return errors.New("capacity must be at least 1")
	case p.MinCapacityToConfirm < 1:
		return errors.New("minimum to confirm must be at least 1")
	case p.MinCapacityToConfirm > p.Capacity:
		return fmt.Errorf("minimum to confirm (%d) exceeds capacity (%d)", p.MinCapacityToConfirm, p.Capacity)
	case p.Zone == nil:
		return errors.New("timezone is not loaded")
	case p.ReserveForReminders < 0 || p.DailyQuota < 0:
		return errors.New("mail quota values must not be negative")
	}
	return nil
}
