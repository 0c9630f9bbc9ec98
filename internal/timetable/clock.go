package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinutesPerHour = 60
	HoursPerDay    = 24
	MinutesPerDay  = HoursPerDay * MinutesPerHour
)

// ErrInvalidClock is returned when a time of day cannot be parsed or is out of range.
var ErrInvalidClock = errors.New("invalid time of day")

// Clock is a time of day expressed as whole minutes since midnight.
type Clock int

// ParseClock accepts zero padded "HH:MM" values between 00:00 and 23:59.
// A trailing ":00" seconds component is tolerated because Postgres TIME
// columns and HTML time inputs may emit it.
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) == 3 && parts[2] == "00" {
		parts = parts[:2]
	}
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if hours < 0 || hours >= HoursPerDay || minutes < 0 || minutes >= MinutesPerHour {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(hours*MinutesPerHour + minutes), nil
}

// MustClock is ParseClock for literals in tests and fixtures.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Valid reports whether c lies within a single day, 00:00 to 23:59.
func (c Clock) Valid() bool {
	return c >= 0 && c < MinutesPerDay
}

// Hour returns the hour row the clock falls in.
func (c Clock) Hour() int {
	return int(c) / MinutesPerHour
}

// Minute returns the offset in minutes within the hour row.
func (c Clock) Minute() int {
	return int(c) % MinutesPerHour
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidClock, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
