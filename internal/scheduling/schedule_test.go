package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmb104/Sahatak/pkg/types"
)

// 2026-09-07 is a Monday
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func TestGenerateSlots_TwoSlotMorning(t *testing.T) {
	weekly := types.WeeklySchedule{
		types.Monday: {
			Start: types.ClockTime{Hour: 9},
			End:   types.ClockTime{Hour: 10},
		},
	}

	slots := GenerateSlots(weekly, monday, 30*time.Minute)

	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC), slots[0].End)
	assert.Equal(t, time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC), slots[1].Start)
	assert.Equal(t, time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), slots[1].End)
	assert.True(t, slots[0].Available)
	assert.True(t, slots[1].Available)
}

func TestGenerateSlots_DropsTrailingPartialSlot(t *testing.T) {
	weekly := types.WeeklySchedule{
		types.Monday: {
			Start: types.ClockTime{Hour: 9},
			End:   types.ClockTime{Hour: 10, Minute: 15},
		},
	}

	slots := GenerateSlots(weekly, monday, 30*time.Minute)

	// 09:00-09:30 and 09:30-10:00 fit; 10:00-10:30 would overrun 10:15
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC), slots[1].End)
}

func TestGenerateSlots_AbsentWeekday(t *testing.T) {
	weekly := types.WeeklySchedule{
		types.Tuesday: {
			Start: types.ClockTime{Hour: 9},
			End:   types.ClockTime{Hour: 17},
		},
	}

	slots := GenerateSlots(weekly, monday, 30*time.Minute)
	assert.Empty(t, slots)
}

func TestGenerateSlots_WindowShorterThanStep(t *testing.T) {
	weekly := types.WeeklySchedule{
		types.Monday: {
			Start: types.ClockTime{Hour: 9},
			End:   types.ClockTime{Hour: 9, Minute: 20},
		},
	}

	slots := GenerateSlots(weekly, monday, 30*time.Minute)
	assert.Empty(t, slots)
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	weekly := DefaultWeeklyHours()

	first := GenerateSlots(weekly, monday, 30*time.Minute)
	second := GenerateSlots(weekly, monday, 30*time.Minute)

	assert.Equal(t, first, second)
}

func TestDefaultWeeklyHours_Coverage(t *testing.T) {
	weekly := DefaultWeeklyHours()

	for _, day := range []types.Weekday{types.Monday, types.Tuesday, types.Wednesday, types.Thursday, types.Sunday} {
		hours, ok := weekly[day]
		require.True(t, ok, "%s should be a working day", day)
		assert.Equal(t, types.ClockTime{Hour: 9}, hours.Start)
		assert.Equal(t, types.ClockTime{Hour: 17}, hours.End)
	}

	_, friday := weekly[types.Friday]
	_, saturday := weekly[types.Saturday]
	assert.False(t, friday)
	assert.False(t, saturday)

	// Full default day yields 16 half-hour slots
	assert.Len(t, GenerateSlots(weekly, monday, 30*time.Minute), 16)
}

func TestMarkAvailability(t *testing.T) {
	weekly := DefaultWeeklyHours()
	slots := GenerateSlots(weekly, monday, 30*time.Minute)

	appointments := []*types.Appointment{
		{StartTime: time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC), Status: types.StatusScheduled},
		{StartTime: time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC), Status: types.StatusConfirmed},
		// Cancelled appointments do not occupy their slot
		{StartTime: time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC), Status: types.StatusCancelled},
	}

	marked := MarkAvailability(slots, OccupiedStarts(appointments))

	unavailable := make(map[string]bool)
	for _, slot := range marked {
		if !slot.Available {
			unavailable[slot.Start.Format("15:04")] = true
		}
	}

	assert.Equal(t, map[string]bool{"09:30": true, "11:00": true}, unavailable)
}

func TestSlotAligned(t *testing.T) {
	weekly := types.WeeklySchedule{
		types.Monday: {
			Start: types.ClockTime{Hour: 9},
			End:   types.ClockTime{Hour: 17},
		},
	}
	step := 30 * time.Minute

	tests := []struct {
		name    string
		start   time.Time
		aligned bool
	}{
		{"first slot of the day", monday.Add(9 * time.Hour), true},
		{"grid-aligned afternoon slot", monday.Add(14*time.Hour + 30*time.Minute), true},
		{"last slot of the day", monday.Add(16*time.Hour + 30*time.Minute), true},
		{"off the half-hour grid", monday.Add(9*time.Hour + 15*time.Minute), false},
		{"before opening", monday.Add(8*time.Hour + 30*time.Minute), false},
		{"slot would overrun closing", monday.Add(17 * time.Hour), false},
		{"non-working day", monday.AddDate(0, 0, 1).Add(9 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aligned, slotAligned(weekly, tt.start, step))
		})
	}
}
