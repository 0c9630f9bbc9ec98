// Package postgres stores schedules in Postgres and records outbox events in
// the same transaction as every change.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/domain"
	"github.com/SyahrulApr86/Weekly-Schedules/internal/timetable"
	"github.com/SyahrulApr86/Weekly-Schedules/pkg/platform/events"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for schedules and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withOwner runs fn in a transaction scoped to ownerID by row level security.
// The transaction commits when fn returns nil.
func (r *Repository) withOwner(ctx context.Context, ownerID string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", ownerID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const groupColumns = `group_id::text, owner_id, name, is_default, created_at, updated_at`

func scanGroup(row pgx.Row) (domain.Group, error) {
	var g domain.Group
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.IsDefault, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// ListGroups returns groups ordered by creation time with keyset pagination.
func (r *Repository) ListGroups(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Group, *domain.Cursor, error) {
	args := []interface{}{ownerID, limit}
	query := `SELECT ` + groupColumns + ` FROM schedule_groups WHERE owner_id=$1`
	if cursor != nil {
		query += ` AND (created_at, group_id) > ($3, $4::uuid)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at, group_id LIMIT $2`

	results := make([]domain.Group, 0, limit)
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			g, err := scanGroup(rows)
			if err != nil {
				return err
			}
			results = append(results, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

func (r *Repository) GetGroup(ctx context.Context, ownerID, groupID string) (*domain.Group, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, nil
	}
	var group *domain.Group
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		g, err := scanGroup(tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM schedule_groups WHERE owner_id=$1 AND group_id=$2`, ownerID, groupID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		group = &g
		return nil
	})
	return group, err
}

func (r *Repository) CreateGroup(ctx context.Context, group domain.Group) error {
	err := r.withOwner(ctx, group.OwnerID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schedule_groups (group_id, owner_id, name, is_default, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			group.ID, group.OwnerID, group.Name, group.IsDefault, group.CreatedAt, group.UpdatedAt,
		); err != nil {
			return err
		}
		return r.insertGroupEvent(ctx, tx, group, events.GroupCreated)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && group.IsDefault {
		return domain.ErrDefaultGroupExists
	}
	return err
}

func (r *Repository) RenameGroup(ctx context.Context, group domain.Group) error {
	return r.withOwner(ctx, group.OwnerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE schedule_groups SET name=$1, updated_at=$2 WHERE owner_id=$3 AND group_id=$4 AND NOT is_default`,
			group.Name, group.UpdatedAt, group.OwnerID, group.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrGroupNotFound
		}
		return r.insertGroupEvent(ctx, tx, group, events.GroupRenamed)
	})
}

// DeleteGroup relies on ON DELETE CASCADE for the group's activities.
func (r *Repository) DeleteGroup(ctx context.Context, group domain.Group) error {
	return r.withOwner(ctx, group.OwnerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM schedule_groups WHERE owner_id=$1 AND group_id=$2 AND NOT is_default`, group.OwnerID, group.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrGroupNotFound
		}
		return r.insertGroupEvent(ctx, tx, group, events.GroupDeleted)
	})
}

const activityColumns = `activity_id::text, owner_id, group_id::text, day, start_minute, end_minute, activity, color, COALESCE(details, ''), created_at, updated_at`

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a          domain.Activity
		day        int16
		start, end int16
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.GroupID, &day, &start, &end, &a.Label, &a.Color, &a.Details, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Day = timetable.Day(day)
	a.Start = timetable.Clock(start)
	a.End = timetable.Clock(end)
	return a, nil
}

func (r *Repository) ListActivities(ctx context.Context, ownerID, groupID string) ([]domain.Activity, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return []domain.Activity{}, nil
	}
	results := make([]domain.Activity, 0)
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+activityColumns+` FROM schedule_activities WHERE owner_id=$1 AND group_id=$2 ORDER BY day, start_minute, activity_id`,
			ownerID, groupID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanActivity(rows)
			if err != nil {
				return err
			}
			results = append(results, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) GetActivity(ctx context.Context, ownerID, activityID string) (*domain.Activity, error) {
	if _, err := uuid.Parse(activityID); err != nil {
		return nil, nil
	}
	var activity *domain.Activity
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		a, err := scanActivity(tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM schedule_activities WHERE owner_id=$1 AND activity_id=$2`, ownerID, activityID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		activity = &a
		return nil
	})
	return activity, err
}

func (r *Repository) CreateActivity(ctx context.Context, a domain.Activity) error {
	return r.withOwner(ctx, a.OwnerID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schedule_activities (activity_id, owner_id, group_id, day, start_minute, end_minute, activity, color, details, created_at, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			a.ID, a.OwnerID, a.GroupID, int16(a.Day), int16(a.Start), int16(a.End), a.Label, a.Color, nullIfEmpty(a.Details), a.CreatedAt, a.UpdatedAt,
		); err != nil {
			return err
		}
		return r.insertActivityEvent(ctx, tx, a, "", events.ActivityCreated)
	})
}

func (r *Repository) UpdateActivity(ctx context.Context, a domain.Activity, previousGroupID string) error {
	return r.withOwner(ctx, a.OwnerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE schedule_activities
                SET group_id=$1, day=$2, start_minute=$3, end_minute=$4, activity=$5, color=$6, details=$7, updated_at=$8
              WHERE owner_id=$9 AND activity_id=$10`,
			a.GroupID, int16(a.Day), int16(a.Start), int16(a.End), a.Label, a.Color, nullIfEmpty(a.Details), a.UpdatedAt, a.OwnerID, a.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		moved := ""
		if previousGroupID != a.GroupID {
			moved = previousGroupID
		}
		return r.insertActivityEvent(ctx, tx, a, moved, events.ActivityUpdated)
	})
}

func (r *Repository) DeleteActivity(ctx context.Context, a domain.Activity) error {
	return r.withOwner(ctx, a.OwnerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM schedule_activities WHERE owner_id=$1 AND activity_id=$2`, a.OwnerID, a.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		return r.insertActivityEvent(ctx, tx, a, "", events.ActivityDeleted)
	})
}

func (r *Repository) insertGroupEvent(ctx context.Context, tx pgx.Tx, g domain.Group, eventType string) error {
	return r.insertOutbox(ctx, tx, outboxRecord{
		ownerID:       g.OwnerID,
		aggregateType: "schedule_group",
		aggregateID:   g.ID,
		groupID:       g.ID,
		eventType:     eventType,
		payload: events.GroupChanged{
			GroupID:    g.ID,
			OwnerID:    g.OwnerID,
			Name:       g.Name,
			IsDefault:  g.IsDefault,
			OccurredAt: g.UpdatedAt,
		},
	})
}

func (r *Repository) insertActivityEvent(ctx context.Context, tx pgx.Tx, a domain.Activity, previousGroupID, eventType string) error {
	return r.insertOutbox(ctx, tx, outboxRecord{
		ownerID:       a.OwnerID,
		aggregateType: "schedule_activity",
		aggregateID:   a.ID,
		groupID:       a.GroupID,
		eventType:     eventType,
		payload: events.ActivityChanged{
			ActivityID:      a.ID,
			OwnerID:         a.OwnerID,
			GroupID:         a.GroupID,
			PreviousGroupID: previousGroupID,
			Day:             a.Day.String(),
			StartTime:       a.Start.String(),
			EndTime:         a.End.String(),
			Activity:        a.Label,
			Color:           a.Color,
			Details:         a.Details,
			OccurredAt:      a.UpdatedAt,
		},
	})
}

type outboxRecord struct {
	ownerID       string
	aggregateType string
	aggregateID   string
	groupID       string
	eventType     string
	payload       interface{}
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[rec.eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", rec.eventType)
	}

	const stmt = `INSERT INTO outbox (event_uuid, owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		uuid.NewString(),
		rec.ownerID,
		rec.aggregateType,
		rec.aggregateID,
		rec.eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(rec),
		body,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(outboxRecord) string
}

// Both topics key on owner and group so each group's changes stay ordered
// within a topic.
func byGroup(rec outboxRecord) string { return rec.ownerID + ":" + rec.groupID }

var eventCatalog = map[string]EventMetadata{
	events.GroupCreated:    {Topic: events.TopicGroups, SchemaSubject: events.TopicGroups + "-value", PartitionKeyFn: byGroup},
	events.GroupRenamed:    {Topic: events.TopicGroups, SchemaSubject: events.TopicGroups + "-value", PartitionKeyFn: byGroup},
	events.GroupDeleted:    {Topic: events.TopicGroups, SchemaSubject: events.TopicGroups + "-value", PartitionKeyFn: byGroup},
	events.ActivityCreated: {Topic: events.TopicActivities, SchemaSubject: events.TopicActivities + "-value", PartitionKeyFn: byGroup},
	events.ActivityUpdated: {Topic: events.TopicActivities, SchemaSubject: events.TopicActivities + "-value", PartitionKeyFn: byGroup},
	events.ActivityDeleted: {Topic: events.TopicActivities, SchemaSubject: events.TopicActivities + "-value", PartitionKeyFn: byGroup},
}
