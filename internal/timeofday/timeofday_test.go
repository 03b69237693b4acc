package timeofday

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Time
	}{
		{"08:15:00", MustNew(8, 15)},
		{"08:15", MustNew(8, 15)},
		{" 23:59:59 ", MustNew(23, 59)},
		{"0:05", MustNew(0, 5)},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "noon", "24:00", "10:60", "10h30", "10:3"} {
		_, err := Parse(in)
		var perr *ParseError
		require.Truef(t, errors.As(err, &perr), "Parse(%q) error = %v, want *ParseError", in, err)
		assert.Equal(t, in, perr.Value)
	}
}

func TestParseOptional(t *testing.T) {
	got, err := ParseOptional("  ")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptional("09:30:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, MustNew(9, 30), *got)
}

func TestAdd_CarriesMinutesAndWrapsHours(t *testing.T) {
	tests := []struct {
		start          Time
		hours, minutes int
		want           Time
	}{
		{MustNew(23, 45), 0, 30, MustNew(0, 15)},
		{MustNew(8, 0), 0, 30, MustNew(8, 30)},
		{MustNew(9, 45), 1, 30, MustNew(11, 15)},
		{MustNew(10, 59), 0, 1, MustNew(11, 0)},
		{MustNew(22, 0), 3, 0, MustNew(1, 0)},
		{MustNew(0, 10), 0, -20, MustNew(23, 50)},
		{MustNew(12, 0), 0, 125, MustNew(14, 5)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.start.Add(tt.hours, tt.minutes), "%s + %dh%dm", tt.start, tt.hours, tt.minutes)
	}
}

func TestAddClamped(t *testing.T) {
	assert.Equal(t, EndOfDay, MustNew(23, 45).AddClamped(0, 30))
	assert.Equal(t, MustNew(23, 59), MustNew(23, 29).AddClamped(0, 30))
	assert.Equal(t, MustNew(10, 15), MustNew(9, 45).AddClamped(0, 30))
}

func TestDiff_InverseOfAdd(t *testing.T) {
	for start := 0; start < minutesPerDay; start += 37 {
		for end := start + 1; end < minutesPerDay; end += 53 {
			t1, t2 := Time{minutes: start}, Time{minutes: end}
			h, m, err := Diff(t1, t2)
			require.NoError(t, err)
			require.True(t, m >= 0 && m < 60, "minutes out of range: %d", m)
			require.Equal(t, t2, t1.Add(h, m), "%s -> %s", t1, t2)
		}
	}
}

func TestDiff_Borrow(t *testing.T) {
	h, m, err := Diff(MustNew(9, 45), MustNew(11, 15))
	require.NoError(t, err)
	assert.Equal(t, 1, h)
	assert.Equal(t, 30, m)
}

func TestDiff_InvalidRange(t *testing.T) {
	for _, tc := range [][2]Time{
		{MustNew(10, 0), MustNew(10, 0)},
		{MustNew(10, 0), MustNew(9, 59)},
		{MustNew(10, 30), MustNew(10, 15)},
	} {
		_, _, err := Diff(tc[0], tc[1])
		var rerr *InvalidRangeError
		require.True(t, errors.As(err, &rerr), "Diff(%s, %s) error = %v", tc[0], tc[1], err)
	}
}

func TestSnapHalfHour(t *testing.T) {
	assert.Equal(t, MustNew(10, 30), MustNew(10, 45).SnapHalfHour())
	assert.Equal(t, MustNew(10, 0), MustNew(10, 10).SnapHalfHour())
	assert.Equal(t, MustNew(10, 30), MustNew(10, 30).SnapHalfHour())
	assert.Equal(t, MustNew(10, 0), MustNew(10, 0).SnapHalfHour())
	assert.Equal(t, MustNew(23, 30), MustNew(23, 59).SnapHalfHour())
}

func TestFormatAndOn(t *testing.T) {
	tm := MustNew(7, 5)
	assert.Equal(t, "07:05:00", tm.String())
	assert.Equal(t, "07:05", tm.Short())

	day := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 14, 7, 5, 0, 0, time.UTC), tm.On(day))
}

func TestJSON(t *testing.T) {
	type row struct {
		Start *Time `json:"start_time"`
		End   *Time `json:"end_time"`
	}
	start := MustNew(8, 0)
	data, err := json.Marshal(row{Start: &start})
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_time":"08:00:00","end_time":null}`, string(data))

	var back row
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Start)
	assert.Equal(t, start, *back.Start)
	assert.Nil(t, back.End)

	err = json.Unmarshal([]byte(`{"start_time":"8 o'clock"}`), &back)
	var perr *ParseError
	assert.True(t, errors.As(err, &perr))
}
