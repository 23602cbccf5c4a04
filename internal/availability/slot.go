// Package availability computes bookable appointment slots by subtracting
// calendar busy time from the clinic's working-hours grid.
package availability

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout    = "02.01.2006"
	timeLayout    = "15:04"
	naiveLayout   = "2006-01-02T15:04:05"
	displayFormat = "%s (%s) %s"
)

// ClinicLocation is applied to timestamps decoded without an offset.
var ClinicLocation = loadClinicLocation()

func loadClinicLocation() *time.Location {
	if loc, err := time.LoadLocation("Europe/Minsk"); err == nil {
		return loc
	}
	return time.FixedZone("+03", 3*60*60)
}

var weekdayShort = map[time.Weekday]string{
	time.Monday:    "Пн",
	time.Tuesday:   "Вт",
	time.Wednesday: "Ср",
	time.Thursday:  "Чт",
	time.Friday:    "Пт",
	time.Saturday:  "Сб",
	time.Sunday:    "Вс",
}

// Slot is an immutable bookable interval with its presentation labels.
type Slot struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	DateLabel    string    `json:"date_label"`
	TimeLabel    string    `json:"time_label"`
	WeekdayLabel string    `json:"weekday_label"`
	Display      string    `json:"display"`
}

// NewSlot builds a slot in loc with labels such as "16.12.2024 (Пн) 14:00".
func NewSlot(start time.Time, duration time.Duration, loc *time.Location) Slot {
	if loc == nil {
		loc = start.Location()
	}
	start = start.In(loc)
	weekday := weekdayShort[start.Weekday()]
	return Slot{
		Start:        start,
		End:          start.Add(duration),
		DateLabel:    start.Format(dateLayout),
		TimeLabel:    start.Format(timeLayout),
		WeekdayLabel: weekday,
		Display:      fmt.Sprintf(displayFormat, start.Format(dateLayout), weekday, start.Format(timeLayout)),
	}
}

// Equal compares instants and labels; locations may differ.
func (s Slot) Equal(other Slot) bool {
	return s.Start.Equal(other.Start) &&
		s.End.Equal(other.End) &&
		s.DateLabel == other.DateLabel &&
		s.TimeLabel == other.TimeLabel &&
		s.WeekdayLabel == other.WeekdayLabel &&
		s.Display == other.Display
}

// Duration returns End - Start.
func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

type slotJSON struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	DateLabel    string `json:"date_label"`
	TimeLabel    string `json:"time_label"`
	WeekdayLabel string `json:"weekday_label"`
	Display      string `json:"display"`
}

// MarshalJSON always writes RFC 3339 timestamps with an explicit offset.
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(slotJSON{
		Start:        s.Start.Format(time.RFC3339),
		End:          s.End.Format(time.RFC3339),
		DateLabel:    s.DateLabel,
		TimeLabel:    s.TimeLabel,
		WeekdayLabel: s.WeekdayLabel,
		Display:      s.Display,
	})
}

// UnmarshalJSON accepts RFC 3339 timestamps. Timestamps without an offset
// are localized to ClinicLocation.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("availability: decode slot: %w", err)
	}
	start, err := parseTimestamp(raw.Start)
	if err != nil {
		return fmt.Errorf("availability: decode slot start: %w", err)
	}
	end, err := parseTimestamp(raw.End)
	if err != nil {
		return fmt.Errorf("availability: decode slot end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("availability: decode slot: end %s not after start %s", raw.End, raw.Start)
	}
	*s = Slot{
		Start:        start,
		End:          end,
		DateLabel:    raw.DateLabel,
		TimeLabel:    raw.TimeLabel,
		WeekdayLabel: raw.WeekdayLabel,
		Display:      raw.Display,
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	loc := ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(naiveLayout, value, loc)
}
