// Package export turns a laid out week into files people take elsewhere:
// iCalendar feeds and PNG images.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/render"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

const (
	productID   = "-//Wiiks//Weekly Schedules//EN"
	uidDomain   = "wiiks"
	localLayout = "20060102T150405"
)

// ICSOptions anchors the weekly recurrence in time.
type ICSOptions struct {
	Name string
	// From is the first day events may start on. Only its date is used.
	From time.Time
	// Location interprets activity clock times. Defaults to UTC.
	Location *time.Location
	// Weeks limits how many times each event repeats. Zero repeats forever.
	Weeks int
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

var weekdays = map[timetable.Day]rrule.Weekday{
	timetable.Monday:    rrule.MO,
	timetable.Tuesday:   rrule.TU,
	timetable.Wednesday: rrule.WE,
	timetable.Thursday:  rrule.TH,
	timetable.Friday:    rrule.FR,
	timetable.Saturday:  rrule.SA,
	timetable.Sunday:    rrule.SU,
}

// ICS writes blocks as weekly recurring VEVENTs. Each event starts on the
// first matching weekday on or after opts.From.
func ICS(w io.Writer, blocks []render.Block, opts ICSOptions) error {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	from := opts.From
	if from.IsZero() {
		from = now()
	}
	from = from.In(loc)
	midnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRTimezone(loc.String())
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	stamp := now().UTC()
	tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{loc.String()}}
	for _, b := range blocks {
		first, rule, err := firstOccurrence(b, midnight, opts.Weeks)
		if err != nil {
			return fmt.Errorf("activity %s: %w", b.ID, err)
		}
		end := first.Add(time.Duration(b.End-b.Start) * time.Minute)

		ev := cal.AddEvent(b.ID + "@" + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(b.Label)
		if b.Details != "" {
			ev.SetDescription(b.Details)
		}
		if loc == time.UTC {
			ev.SetStartAt(first)
			ev.SetEndAt(end)
		} else {
			ev.SetProperty(ical.ComponentPropertyDtStart, first.Format(localLayout), tzid)
			ev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localLayout), tzid)
		}
		ev.AddRrule(rule)
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// firstOccurrence returns the first start of b on or after midnight and the
// RRULE value that repeats it.
func firstOccurrence(b render.Block, midnight time.Time, weeks int) (time.Time, string, error) {
	if err := (timetable.Entry{ID: b.ID, Day: b.Day, Start: b.Start, End: b.End}).Validate(); err != nil {
		return time.Time{}, "", err
	}
	wd, ok := weekdays[b.Day]
	if !ok {
		return time.Time{}, "", errors.New("no weekday mapping")
	}

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   time.Date(midnight.Year(), midnight.Month(), midnight.Day(), b.Start.Hour(), b.Start.Minute(), 0, 0, midnight.Location()),
		Byweekday: []rrule.Weekday{wd},
		Count:     weeks,
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return time.Time{}, "", err
	}
	first := r.After(midnight, true)
	if first.IsZero() {
		return time.Time{}, "", errors.New("recurrence has no occurrence")
	}

	// RRuleString leaves DTSTART out; it is written as its own property.
	return first, opt.RRuleString(), nil
}
