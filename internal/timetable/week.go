package timetable

import "sort"

type DayLayout struct {
	Day        Day                  `json:"day"`
	Placements map[string]Placement `json:"placements"`
}

// WeekLayout is the layout of a whole week. Days always holds Monday to
// Sunday in order. Rows span [FirstHour, LastHour).
type WeekLayout struct {
	Policy      Policy      `json:"policy"`
	RowHeightPx float64     `json:"row_height_px"`
	FirstHour   int         `json:"first_hour"`
	LastHour    int         `json:"last_hour"`
	Days        []DayLayout `json:"days"`
}

// Placement finds an activity anywhere in the week.
func (w WeekLayout) Placement(id string) (Placement, bool) {
	for _, d := range w.Days {
		if p, ok := d.Placements[id]; ok {
			return p, true
		}
	}
	return Placement{}, false
}

// OffsetPx is the distance from the top of the grid to the activity's row.
func (w WeekLayout) OffsetPx(e Entry) float64 {
	return float64(e.Start.Hour()-w.FirstHour) * w.RowHeightPx
}

// Partition splits entries into day buckets sorted by start then id.
// Entries with an invalid day are dropped.
func Partition(entries []Entry) map[Day][]Entry {
	buckets := make(map[Day][]Entry, DaysPerWeek)
	for _, e := range entries {
		if !e.Day.Valid() {
			continue
		}
		buckets[e.Day] = append(buckets[e.Day], e)
	}
	for d, bucket := range buckets {
		buckets[d] = sortedCopy(bucket)
	}
	return buckets
}

// LayoutWeek lays out each day bucket independently.
func LayoutWeek(entries []Entry, opts Options) WeekLayout {
	opts = opts.withDefaults()
	week := WeekLayout{
		Policy:      opts.Policy,
		RowHeightPx: opts.RowHeightPx,
		FirstHour:   0,
		LastHour:    HoursPerDay,
		Days:        make([]DayLayout, 0, DaysPerWeek),
	}
	if opts.ActiveHoursOnly {
		if first, last, ok := ActiveHours(entries); ok {
			week.FirstHour, week.LastHour = first, last
		}
	}
	buckets := Partition(entries)
	for _, d := range Week() {
		week.Days = append(week.Days, DayLayout{Day: d, Placements: Layout(buckets[d], opts)})
	}
	return week
}

// ActiveHours returns the smallest hour range [first, last) that covers every
// entry. ok is false when there is nothing to cover.
func ActiveHours(entries []Entry) (first, last int, ok bool) {
	first, last = HoursPerDay, 0
	for _, e := range entries {
		if e.Start >= e.End {
			continue
		}
		ok = true
		first = min(first, e.Start.Hour())
		// An activity ending exactly on the hour does not need the next row.
		last = max(last, (int(e.End)+MinutesPerHour-1)/MinutesPerHour)
	}
	if !ok {
		return 0, 0, false
	}
	return first, last, true
}

// ActiveAt lists the entries on day that cover the minute at, i.e.
// start <= at < end, ordered by start then id.
func ActiveAt(entries []Entry, day Day, at Clock) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Day == day && e.Start <= at && at < e.End {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out
}
