package availability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlotLabels(t *testing.T) {
	loc := minsk(t)
	s := NewSlot(at(loc, 16, 14, 0), time.Hour, loc)

	assert.Equal(t, "16.12.2024", s.DateLabel)
	assert.Equal(t, "14:00", s.TimeLabel)
	assert.Equal(t, "Пн", s.WeekdayLabel)
	assert.Equal(t, "16.12.2024 (Пн) 14:00", s.Display)
	assert.Equal(t, time.Hour, s.Duration())
}

func TestSlotJSONRoundTripKeepsOffset(t *testing.T) {
	loc := minsk(t)
	original := NewSlot(at(loc, 16, 14, 0), time.Hour, loc)

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"start":"2024-12-16T14:00:00+03:00"`)

	var decoded Slot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Equal(original))
	_, offset := decoded.Start.Zone()
	assert.Equal(t, 3*60*60, offset)

	list := []Slot{original, NewSlot(at(loc, 17, 9, 0), time.Hour, loc)}
	data, err = json.Marshal(list)
	require.NoError(t, err)
	var decodedList []Slot
	require.NoError(t, json.Unmarshal(data, &decodedList))
	require.Len(t, decodedList, 2)
	assert.True(t, decodedList[1].Equal(list[1]))
}

func TestSlotUnmarshalNaiveTimestampUsesClinicZone(t *testing.T) {
	var s Slot
	err := json.Unmarshal([]byte(`{"start":"2024-12-16T11:00:00","end":"2024-12-16T12:00:00"}`), &s)
	require.NoError(t, err)
	assert.Equal(t, ClinicLocation, s.Start.Location())
	assert.Equal(t, 11, s.Start.Hour())
	_, offset := s.Start.Zone()
	assert.Equal(t, 3*60*60, offset)
	assert.Equal(t, 8, s.Start.UTC().Hour())
}

func TestSlotUnmarshalRejectsBadInterval(t *testing.T) {
	var s Slot
	err := json.Unmarshal([]byte(`{"start":"2024-12-16T12:00:00+03:00","end":"2024-12-16T11:00:00+03:00"}`), &s)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"start":"tomorrow","end":"2024-12-16T11:00:00+03:00"}`), &s)
	assert.Error(t, err)
}

func TestPaginateByDate(t *testing.T) {
	loc := minsk(t)
	var slots []Slot
	for day := 2; day <= 6; day++ {
		for _, hour := range []int{10, 11} {
			slots = append(slots, NewSlot(at(loc, day, hour, 0), time.Hour, loc))
		}
	}

	first := Paginate(slots, 0, DatesPerPage)
	require.Len(t, first.Groups, 3)
	assert.Equal(t, 2, first.TotalPages)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)
	assert.Equal(t, 0, first.Groups[0].Slots[0].Index)

	second := Paginate(slots, 1, DatesPerPage)
	require.Len(t, second.Groups, 2)
	assert.True(t, second.HasPrev)
	assert.False(t, second.HasNext)
	assert.Equal(t, 6, second.Groups[0].Slots[0].Index)
	assert.Equal(t, "05.12.2024", second.Groups[0].DateLabel)

	clamped := Paginate(slots, 9, DatesPerPage)
	assert.Equal(t, 1, clamped.Page)

	assert.Empty(t, Paginate(nil, 0, DatesPerPage).Groups)
}
