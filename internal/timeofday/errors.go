package timeofday

import "fmt"

// ParseError reports a malformed time-of-day string.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid time of day %q: expected HH:MM or HH:MM:SS", e.Value)
}

// InvalidRangeError reports an end time that does not follow its start on the
// same day.
type InvalidRangeError struct {
	Start Time
	End   Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("end time %s is not after start time %s", e.End.Short(), e.Start.Short())
}
