package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SyahrulApr86/Weekly-Schedules/internal/cache"
	"github.com/SyahrulApr86/Weekly-Schedules/pkg/platform/events"
)

// Chain runs handlers in order and stops at the first failure.
type Chain []Handler

// Handle implements Handler.
func (c Chain) Handle(ctx context.Context, ev Event) error {
	for _, h := range c {
		if err := h.Handle(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// AuditHandler records every event in schedule_audit. Redelivered events are
// ignored because the event id is the primary key.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle implements Handler.
func (h *AuditHandler) Handle(ctx context.Context, ev Event) error {
	env, err := envelope(ev)
	if err != nil {
		return err
	}

	tx, err := h.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", env.OwnerID); err != nil {
		return err
	}

	receivedAt := ev.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schedule_audit (event_uuid, owner_id, group_id, event_type, topic, kafka_partition, kafka_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (event_uuid) DO NOTHING`,
		ev.EventID, env.OwnerID, env.GroupID, ev.EventType, ev.Topic, ev.Partition, ev.Offset, []byte(ev.Payload), receivedAt,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InvalidationHandler drops cached timetables for the groups an event touches.
// A moved activity invalidates both its old and its new group.
type InvalidationHandler struct {
	invalidator cache.Invalidator
}

// NewInvalidationHandler constructs an InvalidationHandler.
func NewInvalidationHandler(invalidator cache.Invalidator) *InvalidationHandler {
	return &InvalidationHandler{invalidator: invalidator}
}

// Handle implements Handler.
func (h *InvalidationHandler) Handle(ctx context.Context, ev Event) error {
	env, err := envelope(ev)
	if err != nil {
		return err
	}

	errs := h.invalidator.InvalidateGroup(ctx, env.OwnerID, env.GroupID)
	if env.PreviousGroupID != "" && env.PreviousGroupID != env.GroupID {
		errs = errors.Join(errs, h.invalidator.InvalidateGroup(ctx, env.OwnerID, env.PreviousGroupID))
	}
	return errs
}

func envelope(ev Event) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(ev.Payload, &env); err != nil {
		return env, fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	if env.OwnerID == "" {
		env.OwnerID = ev.OwnerID
	}
	if env.OwnerID == "" || env.GroupID == "" {
		return env, fmt.Errorf("%s payload is missing owner_id or group_id", ev.EventType)
	}
	return env, nil
}
