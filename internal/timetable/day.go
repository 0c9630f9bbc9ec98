package timetable

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDay = errors.New("invalid day of week")

// Day is a weekday label. The week starts on Monday.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const DaysPerWeek = 7

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Week lists the days in display order.
func Week() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// ParseDay matches full or three letter day names, ignoring case.
func ParseDay(s string) (Day, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) >= 3 {
		for i, candidate := range dayNames {
			full := strings.ToLower(candidate)
			if name == full || name == full[:3] {
				return Day(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// Weekday converts to the time package numbering where Sunday is zero.
func (d Day) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % DaysPerWeek)
}

// DayOf returns the Day a calendar date falls on.
func DayOf(t time.Time) Day {
	return Day((int(t.Weekday()) + DaysPerWeek - 1) % DaysPerWeek)
}

func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDay, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
