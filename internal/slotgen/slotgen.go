// Package slotgen expands slot definitions (date ranges, time windows and
// exclusions) into concrete slots.  It does no I/O; inserting the result
// is left to the caller.
package slotgen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/model"
)

// Modes accepted by Expand.
const (
	ModeDateTime = "datetime" // one slot: Date + Start/End or a single window
	ModeDate     = "date"     // every window on Date
	ModeRange    = "range"    // every window on every day FromDate..ToDate
)

// Defaults fill in what a request leaves out.
type Defaults struct {
	Capacity         int
	MinToConfirm     int // a slot smaller than this could never confirm
	Location         string
	Timezone         string
	TimeWindows      []string
	ExcludeDates     []string
	ExcludeDateTimes []string
}

// Request is an ad-hoc "add slots" instruction.
type Request struct {
	Mode            string   `json:"mode"`
	Date            string   `json:"date"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	FromDate        string   `json:"from_date"`
	ToDate          string   `json:"to_date"`
	TimeWindows     []string `json:"time_windows"`
	ExcludeWeekends bool     `json:"exclude_weekends"`
	// RespectExcludes applies the configured exclude dates and date-times.
	RespectExcludes bool   `json:"respect_excludes"`
	Capacity        int    `json:"capacity"`
	Location        string `json:"location"`
	Timezone        string `json:"timezone"`
}

type window struct{ start, end string }

// ParseWindow splits "HH:MM-HH:MM".  Single-digit hours are padded.
func ParseWindow(w string) (start, end string, err error) {
	parts := strings.Split(strings.TrimSpace(w), "-")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("time window %q: want HH:MM-HH:MM", w)
	}
	if start, err = normTime(parts[0]); err != nil {
		return "", "", err
	}
	if end, err = normTime(parts[1]); err != nil {
		return "", "", err
	}
	if end <= start {
		return "", "", fmt.Errorf("time window %q ends before it starts", w)
	}
	return start, end, nil
}

func normTime(v string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return "", fmt.Errorf("time %q: want HH:MM", v)
	}
	return t.Format(model.TimeLayout), nil
}

func normDate(v string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", v)
	}
	return t, nil
}

func parseWindows(ws []string) ([]window, error) {
	out := make([]window, 0, len(ws))
	for _, w := range ws {
		s, e, err := ParseWindow(w)
		if err != nil {
			return nil, err
		}
		out = append(out, window{s, e})
	}
	return out, nil
}

// days lists every date from..to inclusive, optionally skipping weekends.
func days(from, to time.Time, skipWeekends bool) []string {
	var out []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if skipWeekends && (d.Weekday() == time.Saturday || d.Weekday() == time.Sunday) {
			continue
		}
		out = append(out, d.Format(model.DateLayout))
	}
	return out
}

type builder struct {
	capacity int
	location string
	timezone string
	excludes map[string]bool // dates and "date start-end" keys
	slots    []model.Slot
	excluded int
}

func newBuilder(capacity int, location, timezone string, exDates, exDateTimes []string) *builder {
	b := &builder{capacity: capacity, location: location, timezone: timezone, excludes: map[string]bool{}}
	for _, d := range exDates {
		b.excludes[strings.TrimSpace(d)] = true
	}
	for _, dt := range exDateTimes {
		b.excludes[strings.Join(strings.Fields(dt), " ")] = true
	}
	return b
}

func (b *builder) add(date string, w window) {
	if b.excludes[date] || b.excludes[date+" "+w.start+"-"+w.end] {
		b.excluded++
		return
	}
	b.slots = append(b.slots, model.Slot{
		ID:       model.SlotID(date, w.start),
		Date:     date,
		Start:    w.start,
		End:      w.end,
		Capacity: b.capacity,
		Location: b.location,
		Timezone: b.timezone,
		Status:   model.SlotOpen,
	})
}

// FromConfig generates the start-up slot set.  An empty StartDate yields
// no slots.
func FromConfig(cfg config.SlotGenConfig, d Defaults) ([]model.Slot, error) {
	if cfg.StartDate == "" {
		return nil, nil
	}
	from, err := normDate(cfg.StartDate)
	if err != nil {
		return nil, err
	}
	to, err := normDate(cfg.EndDate)
	if err != nil {
		return nil, err
	}
	ws, err := parseWindows(cfg.TimeWindows)
	if err != nil {
		return nil, err
	}
	b := newBuilder(d.Capacity, d.Location, d.Timezone, cfg.ExcludeDates, cfg.ExcludeDateTimes)
	for _, day := range days(from, to, cfg.ExcludeWeekends) {
		for _, w := range ws {
			b.add(day, w)
		}
	}
	return b.slots, nil
}

// Expand turns req into slots.  excluded counts candidates dropped by the
// configured exclusions, which callers report as skipped.
func Expand(req Request, d Defaults) (slots []model.Slot, excluded int, err error) {
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = d.Capacity
	}
	if capacity < d.MinToConfirm {
		return nil, 0, fmt.Errorf("capacity %d is below the %d needed to confirm", capacity, d.MinToConfirm)
	}
	location := firstNonEmpty(req.Location, d.Location)
	timezone := firstNonEmpty(req.Timezone, d.Timezone)
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, 0, fmt.Errorf("timezone %q: %w", timezone, err)
	}

	var exDates, exDateTimes []string
	if req.RespectExcludes {
		exDates, exDateTimes = d.ExcludeDates, d.ExcludeDateTimes
	}
	b := newBuilder(capacity, location, timezone, exDates, exDateTimes)

	windowsOrDefault := func() ([]window, error) {
		if len(req.TimeWindows) == 0 || (len(req.TimeWindows) == 1 && strings.EqualFold(req.TimeWindows[0], "default")) {
			return parseWindows(d.TimeWindows)
		}
		return parseWindows(req.TimeWindows)
	}

	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case ModeDateTime:
		day, err := normDate(req.Date)
		if err != nil {
			return nil, 0, err
		}
		var w window
		if req.Start != "" && req.End != "" {
			if w.start, w.end, err = ParseWindow(req.Start + "-" + req.End); err != nil {
				return nil, 0, err
			}
		} else {
			ws, err := parseWindows(req.TimeWindows)
			if err != nil {
				return nil, 0, err
			}
			if len(ws) != 1 {
				return nil, 0, errors.New("datetime mode needs start/end or exactly one time window")
			}
			w = ws[0]
		}
		b.add(day.Format(model.DateLayout), w)

	case ModeDate:
		day, err := normDate(req.Date)
		if err != nil {
			return nil, 0, err
		}
		ws, err := windowsOrDefault()
		if err != nil {
			return nil, 0, err
		}
		for _, w := range ws {
			b.add(day.Format(model.DateLayout), w)
		}

	case ModeRange:
		from, err := normDate(req.FromDate)
		if err != nil {
			return nil, 0, err
		}
		to, err := normDate(req.ToDate)
		if err != nil {
			return nil, 0, err
		}
		if to.Before(from) {
			return nil, 0, errors.New("to_date is before from_date")
		}
		ws, err := windowsOrDefault()
		if err != nil {
			return nil, 0, err
		}
		for _, day := range days(from, to, req.ExcludeWeekends) {
			for _, w := range ws {
				b.add(day, w)
			}
		}

	default:
		return nil, 0, fmt.Errorf("mode %q: want datetime, date or range", req.Mode)
	}
	return b.slots, b.excluded, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
