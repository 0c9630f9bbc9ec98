package api

import (
	"time"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
)

// GroupRequest is the payload for creating or renaming a group.
type GroupRequest struct {
	Name string `json:"name"`
}

// CreateActivityRequest is the payload for POST /v1/groups/{id}/activities.
// Day is a weekday name, times are HH:MM.
type CreateActivityRequest struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Activity  string `json:"activity"`
	Color     string `json:"color,omitempty"`
	Details   string `json:"details,omitempty"`
}

// UpdateActivityRequest carries the fields to change; absent fields are kept.
type UpdateActivityRequest struct {
	GroupID   *string `json:"group_id,omitempty"`
	Day       *string `json:"day,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Activity  *string `json:"activity,omitempty"`
	Color     *string `json:"color,omitempty"`
	Details   *string `json:"details,omitempty"`
}

// GroupView is the public shape of a schedule group.
type GroupView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListGroupsResponse packages a page of groups.
type ListGroupsResponse struct {
	Items      []GroupView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ActivityView is the public shape of an activity.
type ActivityView struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Day       string    `json:"day"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Activity  string    `json:"activity"`
	Color     string    `json:"color"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListActivitiesResponse packages a group's activities.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// TimetableResponse is a group's week with its layout.
type TimetableResponse struct {
	Group      GroupView            `json:"group"`
	Activities []ActivityView       `json:"activities"`
	Layout     timetable.WeekLayout `json:"layout"`
}

// LayoutEntry is one interval posted to the stateless layout endpoint.
type LayoutEntry struct {
	ID        string `json:"id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// LayoutRequest is the payload for POST /v1/timetable/layout.
type LayoutRequest struct {
	Policy      string        `json:"policy,omitempty"`
	RowHeight   float64       `json:"row_height,omitempty"`
	ActiveHours bool          `json:"active_hours,omitempty"`
	Activities  []LayoutEntry `json:"activities"`
}

func toGroupView(g domain.Group) GroupView {
	return GroupView{
		ID:        g.ID,
		Name:      g.Name,
		IsDefault: g.IsDefault,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:        a.ID,
		GroupID:   a.GroupID,
		Day:       a.Day.String(),
		StartTime: a.Start.String(),
		EndTime:   a.End.String(),
		Activity:  a.Label,
		Color:     a.Color,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
