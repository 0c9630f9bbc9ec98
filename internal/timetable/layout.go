// Package timetable places weekly activities on an hour-row grid.
//
// Vertical geometry depends only on an activity's own interval. Horizontal
// geometry splits the column between overlapping activities according to a
// Policy. Every function here is pure and safe for concurrent use.
package timetable

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultRowHeightPx is the pixel height of one hour row.
const DefaultRowHeightPx = 60.0

var (
	// ErrEmptyInterval is returned for an entry that does not end after it starts.
	ErrEmptyInterval = errors.New("end time must be after start time")
	// ErrInvalidPolicy is returned by ParsePolicy for an unknown policy name.
	ErrInvalidPolicy = errors.New("unknown layout policy")
)

// Policy selects how overlapping activities share a column.
type Policy string

const (
	// PolicyOverlapGroup gives every activity 1/n of the column where n is
	// the activity itself plus everything that overlaps it. Chained overlaps
	// can therefore report different widths for neighbours.
	PolicyOverlapGroup Policy = "overlap-group"
	// PolicyLanes colours each connected run of overlapping activities with
	// the fewest lanes so no two overlapping activities share one.
	PolicyLanes Policy = "lanes"
)

// ParsePolicy maps a case-insensitive policy name to a Policy; empty means
// PolicyOverlapGroup.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOverlapGroup:
		return PolicyOverlapGroup, nil
	case PolicyLanes:
		return PolicyLanes, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Entry is the part of an activity that affects layout.
type Entry struct {
	ID    string `json:"id"`
	Day   Day    `json:"day"`
	Start Clock  `json:"start_time"`
	End   Clock  `json:"end_time"`
}

// Validate enforces the invariants an entry needs before it is laid out.
func (e Entry) Validate() error {
	if !e.Day.Valid() {
		return ErrInvalidDay
	}
	if !e.Start.Valid() || !e.End.Valid() {
		return ErrInvalidClock
	}
	if e.Start >= e.End {
		return ErrEmptyInterval
	}
	return nil
}

// Minutes is the length of the interval.
func (e Entry) Minutes() int {
	return int(e.End - e.Start)
}

// Overlaps reports whether the half-open intervals of a and b intersect.
// Touching endpoints do not count.
func Overlaps(a, b Entry) bool {
	return max(a.Start, b.Start) < min(a.End, b.End)
}

// Placement positions one activity. Top, Width and Left are percentages;
// Top is relative to the hour row the activity starts in.
type Placement struct {
	Top      float64 `json:"top"`
	HeightPx float64 `json:"height_px"`
	Width    float64 `json:"width"`
	Left     float64 `json:"left"`
	Lane     int     `json:"lane"`
	Lanes    int     `json:"lanes"`
}

// Options tunes a layout run. Zero values fall back to the defaults.
type Options struct {
	RowHeightPx float64
	Policy      Policy
	// ActiveHoursOnly trims the week grid to the hours that hold activities.
	ActiveHoursOnly bool
}

func (o Options) withDefaults() Options {
	if o.RowHeightPx <= 0 {
		o.RowHeightPx = DefaultRowHeightPx
	}
	if o.Policy == "" {
		o.Policy = PolicyOverlapGroup
	}
	return o
}

// lane is a horizontal slot index together with the number of slots the
// column is divided into for that activity.
type lane struct {
	index int
	count int
}

// Layout places one day bucket. The input is not modified and its order
// does not matter. Entries are assumed to have distinct IDs.
func Layout(bucket []Entry, opts Options) map[string]Placement {
	opts = opts.withDefaults()
	placements := make(map[string]Placement, len(bucket))
	if len(bucket) == 0 {
		return placements
	}

	sorted := sortedCopy(bucket)
	var lanes []lane
	switch opts.Policy {
	case PolicyLanes:
		lanes = colourLanes(sorted)
	default:
		lanes = localGroups(sorted)
	}

	for i, e := range sorted {
		width := 100 / float64(lanes[i].count)
		placements[e.ID] = Placement{
			Top:      float64(e.Start.Minute()) / MinutesPerHour * 100,
			HeightPx: float64(e.Minutes()) / MinutesPerHour * opts.RowHeightPx,
			Width:    width,
			Left:     float64(lanes[i].index) * width,
			Lane:     lanes[i].index,
			Lanes:    lanes[i].count,
		}
	}
	return placements
}

func sortedCopy(bucket []Entry) []Entry {
	sorted := make([]Entry, len(bucket))
	copy(sorted, bucket)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// localGroups expects sorted input, so filtering it keeps the group in
// (start, id) order and the position of X is its lane.
func localGroups(sorted []Entry) []lane {
	out := make([]lane, len(sorted))
	for i, x := range sorted {
		count := 0
		for j, y := range sorted {
			if j != i && !Overlaps(x, y) {
				continue
			}
			if j == i {
				out[i].index = count
			}
			count++
		}
		out[i].count = count
	}
	return out
}

// colourLanes sweeps sorted input. A cluster closes when the next start is at
// or after the furthest end seen so far; every member of a cluster shares
// its lane count.
func colourLanes(sorted []Entry) []lane {
	out := make([]lane, len(sorted))
	var laneEnds []Clock
	clusterStart := 0
	var clusterEnd Clock

	closeCluster := func(upto int) {
		for j := clusterStart; j < upto; j++ {
			out[j].count = len(laneEnds)
		}
		laneEnds = laneEnds[:0]
		clusterStart = upto
	}

	for i, e := range sorted {
		if i > 0 && e.Start >= clusterEnd {
			closeCluster(i)
		}
		free := -1
		for l, end := range laneEnds {
			if end <= e.Start {
				free = l
				break
			}
		}
		if free < 0 {
			free = len(laneEnds)
			laneEnds = append(laneEnds, e.End)
		} else {
			laneEnds[free] = e.End
		}
		out[i].index = free
		if i == 0 || e.End > clusterEnd {
			clusterEnd = e.End
		}
	}
	closeCluster(len(sorted))
	return out
}
