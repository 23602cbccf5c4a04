package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/cosmetology-assistant/internal/apperr"
	"github.com/wolfman30/cosmetology-assistant/internal/calendar"
)

type fakeBusy struct {
	intervals []calendar.Interval
	err       error
	calls     int
	start     time.Time
	end       time.Time
}

func (f *fakeBusy) ListBusy(_ context.Context, start, end time.Time) ([]calendar.Interval, error) {
	f.calls++
	f.start, f.end = start, end
	return f.intervals, f.err
}

func minsk(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Minsk")
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, day, hour, minute int) time.Time {
	return time.Date(2024, time.December, day, hour, minute, 0, 0, loc)
}

func TestGenerateFirstSlot(t *testing.T) {
	loc := minsk(t)
	engine := NewEngine(nil, loc, nil)

	tests := []struct {
		name      string
		now       time.Time
		daysAhead int
		wantFirst time.Time
		wantCount int
	}{
		{"lead time rounds up to the hour", at(loc, 2, 10, 20), 1, at(loc, 2, 13, 0), 5},
		{"early morning starts at opening", at(loc, 2, 6, 0), 1, at(loc, 2, 9, 0), 9},
		{"past cutoff starts next morning", at(loc, 2, 19, 0), 1, at(loc, 3, 9, 0), 9},
		{"floor past closing yields nothing today", at(loc, 2, 16, 30), 2, at(loc, 3, 9, 0), 9},
		{"sunday is skipped", at(loc, 7, 19, 0), 2, at(loc, 9, 9, 0), 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := engine.Generate(tt.now, nil, tt.daysAhead, time.Hour)
			require.Len(t, slots, tt.wantCount)
			assert.True(t, slots[0].Start.Equal(tt.wantFirst), "first slot %s", slots[0].Start)
		})
	}
}

func TestGenerateSkipsBusyIntervals(t *testing.T) {
	loc := minsk(t)
	engine := NewEngine(nil, loc, nil)
	busy := []calendar.Interval{{Start: at(loc, 2, 14, 30), End: at(loc, 2, 15, 30)}}

	slots := engine.Generate(at(loc, 2, 8, 0), busy, 1, time.Hour)

	var hours []int
	for _, s := range slots {
		hours = append(hours, s.Start.Hour())
	}
	assert.Equal(t, []int{10, 11, 12, 13, 16, 17}, hours)
}

func TestGenerateInvariants(t *testing.T) {
	loc := minsk(t)
	engine := NewEngine(nil, loc, nil)
	schedule := DefaultSchedule()
	busy := []calendar.Interval{
		{Start: at(loc, 3, 9, 0), End: at(loc, 3, 12, 0)},
		{Start: at(loc, 4, 0, 0), End: at(loc, 5, 0, 0)},
		{Start: at(loc, 6, 13, 15), End: at(loc, 6, 13, 45)},
	}

	for _, now := range []time.Time{
		at(loc, 1, 12, 0), at(loc, 2, 0, 5), at(loc, 2, 7, 59), at(loc, 2, 15, 1),
		at(loc, 3, 17, 59), at(loc, 5, 18, 0), at(loc, 6, 23, 30),
	} {
		slots := engine.Generate(now, busy, 7, time.Hour)
		floor := now.Add(schedule.LeadTime)
		for i, s := range slots {
			assert.False(t, s.Start.Before(floor), "slot %s before floor %s", s.Start, floor)
			assert.True(t, schedule.WorkDays[s.Start.Weekday()], "slot %s on day off", s.Start)
			assert.False(t, calendar.AnyOverlap(busy, s.Start, s.End), "slot %s overlaps busy", s.Start)
			assert.False(t, s.End.After(time.Date(s.Start.Year(), s.Start.Month(), s.Start.Day(), 18, 0, 0, 0, loc)))
			if i > 0 {
				assert.True(t, slots[i-1].Start.Before(s.Start))
			}
		}
	}
}

func TestGenerateCapsSlotCount(t *testing.T) {
	loc := minsk(t)
	engine := NewEngine(nil, loc, nil)

	slots := engine.Generate(at(loc, 2, 6, 0), nil, 14, time.Hour)
	assert.Len(t, slots, 50)
}

func TestGetAvailableSlotsQueriesOnce(t *testing.T) {
	loc := minsk(t)
	busy := &fakeBusy{}
	now := at(loc, 2, 10, 20)
	engine := NewEngine(busy, loc, nil, WithClock(func() time.Time { return now }))

	slots, err := engine.GetAvailableSlots(context.Background(), 3, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, slots)
	assert.Equal(t, 1, busy.calls)
	assert.True(t, busy.start.Equal(at(loc, 2, 12, 20)))
	assert.True(t, busy.end.Equal(at(loc, 5, 0, 0)))
}

func TestGetAvailableSlotsErrors(t *testing.T) {
	loc := minsk(t)

	_, err := NewEngine(nil, loc, nil).GetAvailableSlots(context.Background(), 14, time.Hour)
	assert.ErrorIs(t, err, calendar.ErrNotConfigured)
	assert.ErrorIs(t, err, apperr.ErrTransient)

	busy := &fakeBusy{err: errors.New("connection reset")}
	_, err = NewEngine(busy, loc, nil).GetAvailableSlots(context.Background(), 14, time.Hour)
	assert.ErrorIs(t, err, apperr.ErrTransient)
}
