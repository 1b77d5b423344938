package config

// SlotGenConfig describes the slots generated at start-up.  An empty
// StartDate disables generation.
type SlotGenConfig struct {
	StartDate        string   // first day, YYYY-MM-DD
	EndDate          string   // last day, inclusive
	TimeWindows      []string // "HH:MM-HH:MM"
	ExcludeWeekends  bool
	ExcludeDates     []string // YYYY-MM-DD
	ExcludeDateTimes []string // "YYYY-MM-DD HH:MM-HH:MM"
}

// LoadSlotGenConfig reads SLOT_GEN_* variables.
func LoadSlotGenConfig() SlotGenConfig {
	return SlotGenConfig{
		StartDate:        envStr("SLOT_GEN_START_DATE", ""),
		EndDate:          envStr("SLOT_GEN_END_DATE", ""),
		TimeWindows:      envList("SLOT_GEN_TIME_WINDOWS", []string{"11:00-12:00", "13:20-14:20", "15:00-16:00", "16:50-17:50"}),
		ExcludeWeekends:  envBool("SLOT_GEN_EXCLUDE_WEEKENDS", true),
		ExcludeDates:     envList("SLOT_GEN_EXCLUDE_DATES", nil),
		ExcludeDateTimes: envList("SLOT_GEN_EXCLUDE_DATETIMES", nil),
	}
}
