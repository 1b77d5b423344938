package notify

import "strings"

// Event is the calendar entry attached to confirmation mails.
type Event struct {
	Title       string
	Date        string // YYYY-MM-DD
	Start, End  string // HH:MM
	Location    string
	Description string
	Timezone    string
}

// ICS renders e as a minimal VCALENDAR with one VEVENT.  Times are local
// to Timezone and carried with a TZID parameter.
func ICS(e Event) string {
	day := strings.ReplaceAll(e.Date, "-", "")
	stamp := func(hm string) string { return day + "T" + strings.ReplaceAll(hm, ":", "") + "00" }
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//slot-booking//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"DTSTART;TZID=" + e.Timezone + ":" + stamp(e.Start),
		"DTEND;TZID=" + e.Timezone + ":" + stamp(e.End),
		"SUMMARY:" + escapeText(e.Title),
		"DESCRIPTION:" + escapeText(e.Description),
		"LOCATION:" + escapeText(e.Location),
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}

// textEscaper applies the RFC 5545 TEXT escaping rules.
var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func escapeText(s string) string { return textEscaper.Replace(s) }
