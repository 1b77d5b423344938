package slotgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/model"
)

var defaults = Defaults{
	Capacity:         2,
	Location:         "Room A",
	Timezone:         "UTC",
	TimeWindows:      []string{"11:00-12:00", "13:20-14:20"},
	ExcludeDates:     []string{"2026-10-21"},
	ExcludeDateTimes: []string{"2026-10-22 13:20-14:20"},
}

func ids(slots []model.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.ID
	}
	return out
}

func TestParseWindow(t *testing.T) {
	s, e, err := ParseWindow(" 9:00-10:30 ")
	require.NoError(t, err)
	assert.Equal(t, "09:00", s)
	assert.Equal(t, "10:30", e)

	for _, bad := range []string{"", "11:00", "11:00-10:00", "aa:bb-12:00"} {
		_, _, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.SlotGenConfig{
		StartDate:        "2026-10-23", // Friday
		EndDate:          "2026-10-26", // Monday
		TimeWindows:      []string{"11:00-12:00", "15:00-16:00"},
		ExcludeWeekends:  true,
		ExcludeDateTimes: []string{"2026-10-26 15:00-16:00"},
	}
	slots, err := FromConfig(cfg, defaults)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-23_1100", "2026-10-23_1500", "2026-10-26_1100"}, ids(slots))
	assert.Equal(t, 2, slots[0].Capacity)
	assert.Equal(t, model.SlotOpen, slots[0].Status)

	none, err := FromConfig(config.SlotGenConfig{}, defaults)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExpand(t *testing.T) {
	t.Run("datetime with explicit times", func(t *testing.T) {
		slots, _, err := Expand(Request{Mode: "datetime", Date: "2026-10-20", Start: "10:00", End: "11:00", Capacity: 4}, defaults)
		require.NoError(t, err)
		require.Len(t, slots, 1)
		assert.Equal(t, "2026-10-20_1000", slots[0].ID)
		assert.Equal(t, 4, slots[0].Capacity)
	})

	t.Run("datetime needs exactly one window", func(t *testing.T) {
		_, _, err := Expand(Request{Mode: "datetime", Date: "2026-10-20", TimeWindows: []string{"10:00-11:00", "12:00-13:00"}}, defaults)
		assert.Error(t, err)
	})

	t.Run("date uses default windows", func(t *testing.T) {
		slots, _, err := Expand(Request{Mode: "DATE", Date: "2026-10-20", TimeWindows: []string{"default"}}, defaults)
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-10-20_1100", "2026-10-20_1320"}, ids(slots))
		assert.Equal(t, "Room A", slots[0].Location)
	})

	t.Run("range respects excludes only when asked", func(t *testing.T) {
		req := Request{Mode: "range", FromDate: "2026-10-21", ToDate: "2026-10-22"}
		slots, excluded, err := Expand(req, defaults)
		require.NoError(t, err)
		assert.Len(t, slots, 4)
		assert.Zero(t, excluded)

		req.RespectExcludes = true
		slots, excluded, err = Expand(req, defaults)
		require.NoError(t, err)
		assert.Equal(t, []string{"2026-10-22_1100"}, ids(slots))
		assert.Equal(t, 3, excluded)
	})

	t.Run("capacity below the minimum", func(t *testing.T) {
		d := defaults
		d.MinToConfirm = 3
		_, _, err := Expand(Request{Mode: "datetime", Date: "2026-10-20", Start: "10:00", End: "11:00", Capacity: 2}, d)
		assert.ErrorContains(t, err, "needed to confirm")

		slots, _, err := Expand(Request{Mode: "datetime", Date: "2026-10-20", Start: "10:00", End: "11:00", Capacity: 3}, d)
		require.NoError(t, err)
		assert.Equal(t, 3, slots[0].Capacity)
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, req := range []Request{
			{Mode: "weekly"},
			{Mode: "date"},
			{Mode: "range", FromDate: "2026-10-22", ToDate: "2026-10-21"},
			{Mode: "date", Date: "2026-10-20", Timezone: "Mars/Base"},
		} {
			_, _, err := Expand(req, defaults)
			assert.Error(t, err, req.Mode)
		}
	})
}
