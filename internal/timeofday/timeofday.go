// Package timeofday implements a minute-granularity wall-clock time used for
// task start and end times. A day runs from 00:00 to 23:59; there are no
// overnight values.
package timeofday

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// Layouts accepted by Parse, most specific first.
var layouts = []string{"15:04:05", "15:04"}

// EndOfDay is the latest representable time, 23:59.
var EndOfDay = Time{minutes: minutesPerDay - 1}

// Time is a time of day stored as minutes since midnight.
type Time struct {
	minutes int
}

// New returns the time hour:minute.
func New(hour, minute int) (Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Time{}, &ParseError{Value: fmt.Sprintf("%02d:%02d", hour, minute)}
	}
	return Time{minutes: hour*minutesPerHour + minute}, nil
}

// MustNew is like New but panics on out-of-range input.
func MustNew(hour, minute int) Time {
	t, err := New(hour, minute)
	if err != nil {
		panic(err)
	}
	return t
}

// FromClock extracts the time of day from a timestamp, dropping seconds.
func FromClock(ts time.Time) Time {
	return Time{minutes: ts.Hour()*minutesPerHour + ts.Minute()}
}

// Parse reads "HH:MM:SS" or "HH:MM". Seconds are accepted and dropped.
func Parse(value string) (Time, error) {
	raw := strings.TrimSpace(value)
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return FromClock(parsed), nil
		}
	}
	return Time{}, &ParseError{Value: value}
}

// ParseOptional parses value, treating an empty string as "no time".
func ParseOptional(value string) (*Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := Parse(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (t Time) Hour() int   { return t.minutes / minutesPerHour }
func (t Time) Minute() int { return t.minutes % minutesPerHour }

// Minutes returns the number of minutes since midnight.
func (t Time) Minutes() int { return t.minutes }

func (t Time) Before(u Time) bool { return t.minutes < u.minutes }
func (t Time) After(u Time) bool  { return t.minutes > u.minutes }

// Add moves t forward by the given hours and minutes. Minute overflow carries
// into the hour and the hour wraps modulo 24, so 23:45 + 0h30m is 00:15.
// Negative arguments move backwards and wrap the same way.
func (t Time) Add(hours, minutes int) Time {
	total := t.minutes + hours*minutesPerHour + minutes
	total %= minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	return Time{minutes: total}
}

// AddClamped is Add without the wrap: results past the end of the day
// saturate at EndOfDay.
func (t Time) AddClamped(hours, minutes int) Time {
	total := t.minutes + hours*minutesPerHour + minutes
	switch {
	case total >= minutesPerDay:
		return EndOfDay
	case total < 0:
		return Time{}
	}
	return Time{minutes: total}
}

// Diff returns the hours and minutes that separate start from end, so that
// start.Add(Diff(start, end)) == end. end must be strictly after start on the
// same day.
func Diff(start, end Time) (hours, minutes int, err error) {
	if !end.After(start) {
		return 0, 0, &InvalidRangeError{Start: start, End: end}
	}
	delta := end.minutes - start.minutes
	return delta / minutesPerHour, delta % minutesPerHour, nil
}

// SnapHalfHour moves t onto a half-hour boundary of the same hour: minutes
// past 30 become :30, minutes before 30 become :00, and :30 stays put.
func (t Time) SnapHalfHour() Time {
	switch m := t.Minute(); {
	case m > 30:
		return Time{minutes: t.Hour()*minutesPerHour + 30}
	case m < 30:
		return Time{minutes: t.Hour() * minutesPerHour}
	}
	return t
}

// On places t on the calendar day of date, in date's location.
func (t Time) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

// String formats t as HH:MM:SS, the wire format of task times.
func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

// Short formats t as HH:MM for display.
func (t Time) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ParseError{Value: string(data)}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
