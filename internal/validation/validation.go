// Package validation provides input validation for operator-supplied values.
package validation

import (
	"errors"
	"regexp"
	"strconv"
)

var (
	// ErrInvalidTime indicates a time-of-day outside strict HH:MM form.
	ErrInvalidTime = errors.New("time must be HH:MM (00-23:00-59)")
	// ErrInvalidInterval indicates a minute interval outside [1,1440].
	ErrInvalidInterval = errors.New("interval must be a whole number of minutes between 1 and 1440")
)

var timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// TimeOfDay validates a strict HH:MM string and decomposes it into hour and
// minute. "25:00" and "9:30" are both rejected; schedules are written with
// zero-padded fields only.
func TimeOfDay(s string) (hour, minute int, err error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, ErrInvalidTime
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// MinuteInterval validates a backup cadence in minutes, bounded to one day.
func MinuteInterval(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 1440 {
		return 0, ErrInvalidInterval
	}
	return n, nil
}
