package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	ct, err := ParseClockTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 9, Minute: 30}, ct)

	_, err = ParseClockTime("25:00")
	assert.Error(t, err)

	_, err = ParseClockTime("9:30am")
	assert.Error(t, err)
}

func TestClockTime_JSONRoundTrip(t *testing.T) {
	hours := DayHours{
		Start: ClockTime{Hour: 9},
		End:   ClockTime{Hour: 17, Minute: 30},
	}

	data, err := json.Marshal(hours)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"09:00","end":"17:30"}`, string(data))

	var decoded DayHours
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, hours, decoded)
}

func TestClockTime_At(t *testing.T) {
	date := time.Date(2026, 9, 7, 23, 45, 12, 0, time.UTC)
	anchored := ClockTime{Hour: 9, Minute: 30}.At(date)

	assert.Equal(t, time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC), anchored)
}

func TestWeekdayOf(t *testing.T) {
	// 2026-09-07 is a Monday
	assert.Equal(t, Monday, WeekdayOf(time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, Sunday, WeekdayOf(time.Date(2026, 9, 6, 0, 0, 0, 0, time.UTC)))
}

func TestWeeklySchedule_Validate(t *testing.T) {
	valid := WeeklySchedule{
		Monday: {Start: ClockTime{Hour: 9}, End: ClockTime{Hour: 17}},
	}
	assert.NoError(t, valid.Validate())

	inverted := WeeklySchedule{
		Monday: {Start: ClockTime{Hour: 17}, End: ClockTime{Hour: 9}},
	}
	err := inverted.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	empty := WeeklySchedule{
		Monday: {Start: ClockTime{Hour: 9}, End: ClockTime{Hour: 9}},
	}
	assert.Error(t, empty.Validate())
}

func TestAppointmentStatus_Terminal(t *testing.T) {
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusNoShow.Terminal())
}

func TestAppointmentStatus_OccupiesSlot(t *testing.T) {
	assert.True(t, StatusScheduled.OccupiesSlot())
	assert.True(t, StatusConfirmed.OccupiesSlot())
	assert.True(t, StatusInProgress.OccupiesSlot())
	assert.False(t, StatusCompleted.OccupiesSlot())
	assert.False(t, StatusCancelled.OccupiesSlot())
	assert.False(t, StatusNoShow.OccupiesSlot())
}

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
		StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
		StatusInProgress: {StatusCompleted},
		StatusCompleted:  {},
		StatusCancelled:  {},
		StatusNoShow:     {},
	}

	all := []AppointmentStatus{
		StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow,
	}

	for from, targets := range allowed {
		ok := make(map[AppointmentStatus]bool, len(targets))
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			assert.Equal(t, ok[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentType_Valid(t *testing.T) {
	assert.True(t, TypeVideo.Valid())
	assert.True(t, TypeAudio.Valid())
	assert.True(t, TypeChat.Valid())
	assert.False(t, AppointmentType("in_person").Valid())
	assert.False(t, AppointmentType("").Valid())
}

func TestDoctorProfile_Bookable(t *testing.T) {
	assert.True(t, (&DoctorProfile{IsVerified: true, IsActive: true}).Bookable())
	assert.False(t, (&DoctorProfile{IsVerified: false, IsActive: true}).Bookable())
	assert.False(t, (&DoctorProfile{IsVerified: true, IsActive: false}).Bookable())
}
