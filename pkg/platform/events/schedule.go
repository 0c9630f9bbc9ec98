// Package events defines the payloads published for schedule changes.
package events

import "time"

// Event types written to the outbox.
const (
	GroupCreated    = "schedule.group.created"
	GroupRenamed    = "schedule.group.renamed"
	GroupDeleted    = "schedule.group.deleted"
	ActivityCreated = "schedule.activity.created"
	ActivityUpdated = "schedule.activity.updated"
	ActivityDeleted = "schedule.activity.deleted"
)

// Topics carrying the events above.
const (
	TopicGroups     = "schedule_group_events"
	TopicActivities = "schedule_activity_events"
)

// GroupChanged is emitted for every group lifecycle event.
type GroupChanged struct {
	GroupID    string    `json:"group_id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	IsDefault  bool      `json:"is_default"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityChanged is emitted when an activity is created, updated or
// deleted. Times are "HH:MM" strings so non-Go consumers can read them.
type ActivityChanged struct {
	ActivityID      string    `json:"activity_id"`
	OwnerID         string    `json:"owner_id"`
	GroupID         string    `json:"group_id"`
	PreviousGroupID string    `json:"previous_group_id,omitempty"`
	Day             string    `json:"day"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Activity        string    `json:"activity"`
	Color           string    `json:"color"`
	Details         string    `json:"details,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Envelope is the subset of fields every schedule event carries. Consumers
// decode into it to route a message without knowing its concrete type.
type Envelope struct {
	OwnerID         string `json:"owner_id"`
	GroupID         string `json:"group_id"`
	PreviousGroupID string `json:"previous_group_id,omitempty"`
	ActivityID      string `json:"activity_id,omitempty"`
}
