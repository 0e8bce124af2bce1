package scheduling

import (
	"time"

	"github.com/hmb104/Sahatak/pkg/types"
)

// DefaultSlotDuration is the consultation slot granularity used when the
// configuration does not override it.
const DefaultSlotDuration = 30 * time.Minute

// DefaultWeeklyHours returns the fallback schedule applied to doctors who have
// not configured their working hours: Monday through Thursday and Sunday,
// 09:00 to 17:00.
func DefaultWeeklyHours() types.WeeklySchedule {
	nineToFive := types.DayHours{
		Start: types.ClockTime{Hour: 9},
		End:   types.ClockTime{Hour: 17},
	}
	return types.WeeklySchedule{
		types.Monday:    nineToFive,
		types.Tuesday:   nineToFive,
		types.Wednesday: nineToFive,
		types.Thursday:  nineToFive,
		types.Sunday:    nineToFive,
	}
}

// GenerateSlots expands a weekly schedule into candidate slots for one
// calendar date. It walks from the day's start to its end in fixed steps and
// drops a trailing window that would run past the end. A weekday absent from
// the schedule yields no slots; that is not an error. The function is pure:
// identical inputs always produce identical output.
func GenerateSlots(weekly types.WeeklySchedule, date time.Time, step time.Duration) []types.Slot {
	hours, ok := weekly[types.WeekdayOf(date)]
	if !ok {
		return nil
	}

	dayEnd := hours.End.At(date)

	var slots []types.Slot
	for cur := hours.Start.At(date); !cur.Add(step).After(dayEnd); cur = cur.Add(step) {
		slots = append(slots, types.Slot{
			Start:     cur,
			End:       cur.Add(step),
			Available: true,
		})
	}
	return slots
}

// OccupiedStarts collects the start times of day held by appointments that
// still occupy their slot.
func OccupiedStarts(appointments []*types.Appointment) map[types.ClockTime]struct{} {
	occupied := make(map[types.ClockTime]struct{}, len(appointments))
	for _, apt := range appointments {
		if apt.Status.OccupiesSlot() {
			occupied[types.ClockTimeOf(apt.StartTime)] = struct{}{}
		}
	}
	return occupied
}

// MarkAvailability flags each slot whose start time is already booked.
func MarkAvailability(slots []types.Slot, occupied map[types.ClockTime]struct{}) []types.Slot {
	for i := range slots {
		_, taken := occupied[types.ClockTimeOf(slots[i].Start)]
		slots[i].Available = !taken
	}
	return slots
}

// slotAligned reports whether start falls on the schedule's slot grid for its
// weekday: on a step boundary from the day's start, with the full slot inside
// working hours.
func slotAligned(weekly types.WeeklySchedule, start time.Time, step time.Duration) bool {
	hours, ok := weekly[types.WeekdayOf(start)]
	if !ok {
		return false
	}

	dayStart := hours.Start.At(start)
	dayEnd := hours.End.At(start)

	offset := start.Sub(dayStart)
	if offset < 0 || offset%step != 0 {
		return false
	}
	return !start.Add(step).After(dayEnd)
}
