package outbox

import "github.com/SyahrulApr86/Weekly-Schedules/pkg/platform/events"

// SchemaCatalogEntry holds the JSON schema registered for an event type.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.GroupCreated:    {Schema: groupChangedSchema},
	events.GroupRenamed:    {Schema: groupChangedSchema},
	events.GroupDeleted:    {Schema: groupChangedSchema},
	events.ActivityCreated: {Schema: activityChangedSchema},
	events.ActivityUpdated: {Schema: activityChangedSchema},
	events.ActivityDeleted: {Schema: activityChangedSchema},
}

const groupChangedSchema = `{
  "type": "object",
  "title": "ScheduleGroupChanged",
  "properties": {
    "group_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "name": {"type": "string"},
    "is_default": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["group_id", "owner_id", "name", "is_default", "occurred_at"],
  "additionalProperties": false
}`

const activityChangedSchema = `{
  "type": "object",
  "title": "ScheduleActivityChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "group_id": {"type": "string"},
    "previous_group_id": {"type": "string"},
    "day": {"type": "string", "enum": ["Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"]},
    "start_time": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"},
    "end_time": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"},
    "activity": {"type": "string"},
    "color": {"type": "string"},
    "details": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "group_id", "day", "start_time", "end_time", "activity", "color", "occurred_at"],
  "additionalProperties": false
}`
