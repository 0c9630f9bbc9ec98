package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/SyahrulApr86/Weekly-Schedules/pkg/platform/events"
)

func TestDeliverSetsHeadersAndFraming(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, time.Millisecond, 5)

	msg := Message{
		EventID:       1,
		EventUUID:     "2f1d3c8e-8f3a-4b43-9a8e-0d7f1c2b3a4d",
		OwnerID:       "owner-1",
		AggregateType: "schedule_activity",
		AggregateID:   "act-1",
		EventType:     events.ActivityCreated,
		Topic:         events.TopicActivities,
		SchemaSubject: events.TopicActivities + "-value",
		PartitionKey:  "owner-1:group-1",
		Payload:       []byte(`{"activity_id":"act-1"}`),
	}

	require.NoError(t, d.deliver(context.Background(), []Message{msg}))
	require.Len(t, producer.writes, 1)
	require.Equal(t, events.TopicActivities, producer.writes[0].topic)

	record := producer.writes[0].messages[0]
	require.Equal(t, "owner-1:group-1", string(record.Key))
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, `{"activity_id":"act-1"}`, string(record.Value[5:]))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, events.ActivityCreated, headers[HeaderEventType])
	require.Equal(t, msg.EventUUID, headers[HeaderEventID])
	require.Equal(t, "owner-1", headers[HeaderOwnerID])
	require.Equal(t, msg.SchemaSubject, headers[HeaderSchemaSubject])
}

func TestDeliverBatchesByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 7}
	d := NewDispatcher(nil, producer, registry, time.Millisecond, 5)

	group := func(id int64, eventType string) Message {
		return Message{EventID: id, EventType: eventType, Topic: events.TopicGroups, SchemaSubject: events.TopicGroups + "-value", PartitionKey: "o:g", Payload: []byte(`{}`)}
	}
	activity := Message{EventID: 3, EventType: events.ActivityDeleted, Topic: events.TopicActivities, SchemaSubject: events.TopicActivities + "-value", PartitionKey: "o:g", Payload: []byte(`{}`)}

	require.NoError(t, d.deliver(context.Background(), []Message{group(1, events.GroupCreated), activity, group(2, events.GroupRenamed)}))

	require.Len(t, producer.writes, 2)
	require.Equal(t, events.TopicGroups, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, events.TopicActivities, producer.writes[1].topic)
	require.Len(t, registry.calls, 2, "one registry lookup per subject")

	require.NoError(t, d.deliver(context.Background(), []Message{group(4, events.GroupDeleted)}))
	require.Len(t, registry.calls, 2)
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	d := NewDispatcher(nil, producer, registry, time.Millisecond, 5)

	err := d.deliver(context.Background(), []Message{{EventType: "schedule.unknown", Topic: "x"}})
	require.ErrorContains(t, err, "no schema metadata for event_type=schedule.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesRegistryErrors(t *testing.T) {
	registry := &stubRegistry{err: errors.New("registry down")}
	d := NewDispatcher(nil, &stubProducer{}, registry, time.Millisecond, 5)

	err := d.deliver(context.Background(), []Message{{EventType: events.GroupCreated, Topic: events.TopicGroups, SchemaSubject: "s"}})
	require.ErrorContains(t, err, "registry down")
}

func TestSchemaCatalogCoversEveryEventType(t *testing.T) {
	for _, eventType := range []string{
		events.GroupCreated, events.GroupRenamed, events.GroupDeleted,
		events.ActivityCreated, events.ActivityUpdated, events.ActivityDeleted,
	} {
		entry, ok := schemaCatalog[eventType]
		require.Truef(t, ok, "missing schema for %s", eventType)
		require.NotEmpty(t, entry.Schema)
	}
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute)

	require.Equal(t, time.Minute, m.backoffDelay(0))
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(8))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, subject)
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
