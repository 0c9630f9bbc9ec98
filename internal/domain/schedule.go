package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

const (
	// DefaultGroupName names the group every owner starts with.
	DefaultGroupName = "My Schedule"

	maxGroupNameLen = 64
	maxLabelLen     = 120
	maxDetailsLen   = 1000
)

// Palette lists the colours offered by the activity form.
var Palette = []string{"#E5F6FD", "#FFF4E5", "#F5E6FF", "#E8F5E9", "#FFF0F0", "#FFF8E1", "#F3E5F5"}

var hexColour = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

var (
	// ErrValidation wraps every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrGroupNotFound is returned when a group does not exist for the owner.
	ErrGroupNotFound = errors.New("schedule group not found")
	// ErrActivityNotFound is returned when an activity does not exist for the owner.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrDefaultGroupImmutable guards the default group against rename and delete.
	ErrDefaultGroupImmutable = errors.New("the default schedule group cannot be renamed or deleted")
	// ErrDefaultGroupExists is reported by repositories when a second default group is inserted.
	ErrDefaultGroupExists = errors.New("owner already has a default group")
	// ErrInvalidCursor is returned for undecodable pagination tokens.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Group is a named schedule owned by one user.
type Group struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Activity is a weekly recurring time block inside a group.
type Activity struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	GroupID   string          `json:"group_id"`
	Day       timetable.Day   `json:"day"`
	Start     timetable.Clock `json:"start_time"`
	End       timetable.Clock `json:"end_time"`
	Label     string          `json:"activity"`
	Color     string          `json:"color"`
	Details   string          `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Entry strips the activity down to what the layout engine needs.
func (a Activity) Entry() timetable.Entry {
	return timetable.Entry{ID: a.ID, Day: a.Day, Start: a.Start, End: a.End}
}

// Entries converts a slice of activities for layout.
func Entries(activities []Activity) []timetable.Entry {
	out := make([]timetable.Entry, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Entry())
	}
	return out
}

// Cursor models the pagination token for group listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func normalizeGroupName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(trimmed) > maxGroupNameLen {
		return "", invalid("name", "must be at most 64 characters")
	}
	return trimmed, nil
}

func parseDay(value string) (timetable.Day, error) {
	day, err := timetable.ParseDay(value)
	if err != nil {
		return 0, invalid("day", "must be a weekday name such as Monday")
	}
	return day, nil
}

func parseClock(field, value string) (timetable.Clock, error) {
	c, err := timetable.ParseClock(value)
	if err != nil {
		return 0, invalid(field, "must be a time formatted HH:MM")
	}
	return c, nil
}

func normalizeColour(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Palette[0], nil
	}
	if !hexColour.MatchString(trimmed) {
		return "", invalid("color", "must be a hex colour like #E5F6FD")
	}
	return strings.ToUpper(trimmed), nil
}

// validateActivity checks a fully merged activity before it is stored.
func validateActivity(a *Activity) error {
	a.Label = strings.TrimSpace(a.Label)
	if a.Label == "" {
		return invalid("activity", "is required")
	}
	if utf8.RuneCountInString(a.Label) > maxLabelLen {
		return invalid("activity", "must be at most 120 characters")
	}
	a.Details = strings.TrimSpace(a.Details)
	if utf8.RuneCountInString(a.Details) > maxDetailsLen {
		return invalid("details", "must be at most 1000 characters")
	}
	if err := a.Entry().Validate(); err != nil {
		if errors.Is(err, timetable.ErrEmptyInterval) {
			return invalid("end_time", "end time must be after start time")
		}
		return invalid("day", err.Error())
	}
	colour, err := normalizeColour(a.Color)
	if err != nil {
		return err
	}
	a.Color = colour
	return nil
}
