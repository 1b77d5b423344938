package service

import (
	"sort"

	"github.com/iliyamo/slot-booking/internal/model"
)

// The functions in this file are pure: they look at a snapshot of the
// ledger and decide, and never touch the store.

// sortFIFO orders registrations by submission time, ties broken by ID so
// the order is total.
func sortFIFO(regs []model.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if !regs[i].Timestamp.Equal(regs[j].Timestamp) {
			return regs[i].Timestamp.Before(regs[j].Timestamp)
		}
		return regs[i].ID < regs[j].ID
	})
}

// forSlot returns the live rows of slotID in FIFO order, optionally
// restricted to the given statuses.
func forSlot(regs []model.Registration, slotID string, statuses ...model.Status) []model.Registration {
	var out []model.Registration
	for _, r := range regs {
		if r.SlotID != slotID {
			continue
		}
		if len(statuses) > 0 && !hasStatus(r, statuses...) {
			continue
		}
		out = append(out, r)
	}
	sortFIFO(out)
	return out
}

func hasStatus(r model.Registration, statuses ...model.Status) bool {
	for _, s := range statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

// confirmedIndex maps email to the set of slots it is confirmed on.
type confirmedIndex map[string]map[string]bool

func indexConfirmed(regs []model.Registration) confirmedIndex {
	idx := confirmedIndex{}
	for _, r := range regs {
		if r.Status == model.StatusConfirmed {
			idx.add(r.Email, r.SlotID)
		}
	}
	return idx
}

func (c confirmedIndex) add(email, slotID string) {
	if c[email] == nil {
		c[email] = map[string]bool{}
	}
	c[email][slotID] = true
}

func (c confirmedIndex) in(email, slotID string) bool { return c[email][slotID] }

// elsewhere returns a slot other than slotID that email is confirmed on.
func (c confirmedIndex) elsewhere(email, slotID string) (string, bool) {
	for s := range c[email] {
		if s != slotID {
			return s, true
		}
	}
	return "", false
}

// pickCandidates walks rows (already FIFO) and returns at most limit of
// them, taking each email once and skipping emails for which blocked
// returns true.
func pickCandidates(rows []model.Registration, limit int, blocked func(email string) bool) []model.Registration {
	seen := map[string]bool{}
	var out []model.Registration
	for _, r := range rows {
		if len(out) >= limit {
			break
		}
		if seen[r.Email] {
			continue
		}
		seen[r.Email] = true
		if blocked != nil && blocked(r.Email) {
			continue
		}
		out = append(out, r)
	}
	return out
}
