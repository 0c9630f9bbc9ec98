// Package consumer reads schedule events back from Kafka for auditing and
// cache invalidation.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys written by the outbox dispatcher.
const (
	headerEventType     = "event_type"
	headerEventID       = "event_id"
	headerOwnerID       = "owner_id"
	headerSchemaSubject = "schema_subject"
)

// Reader is the subset of *kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded events.
type Handler interface {
	Handle(context.Context, Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Event is a decoded schedule event.
type Event struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	EventID       string
	OwnerID       string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger overrides the processor logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry makes the processor retry a failing handler attempts times,
// sleeping delay between tries, before leaving the message uncommitted.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.retryDelay = delay
	}
}

// Processor fetches messages, decodes them and hands them to a Handler.
// Messages are committed only after the handler succeeds. Malformed
// messages are committed straight away so they cannot block the partition.
type Processor struct {
	reader     Reader
	handler    Handler
	logger     *log.Logger
	attempts   int
	retryDelay time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   log.New(os.Stdout, "[consumer] ", log.LstdFlags),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		ev, decodeErr := decode(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Printf("commit error after decode failure: %v", commitErr)
			}
			continue
		}

		if handleErr := p.handle(ctx, ev); handleErr != nil {
			p.logger.Printf("handler error (event_type=%s, event_id=%s, owner=%s): %v", ev.EventType, ev.EventID, ev.OwnerID, handleErr)
			recordHandlerError(ev)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
			continue
		}
		recordProcessed(ev)
	}
}

func (p *Processor) handle(ctx context.Context, ev Event) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.handler.Handle(ctx, ev); err == nil {
			return nil
		}
		if attempt == p.attempts || p.retryDelay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(p.retryDelay):
		}
	}
	return err
}

func decode(msg kafka.Message) (Event, error) {
	if len(msg.Value) < 5 {
		return Event{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Event{}, fmt.Errorf("unknown magic byte %d", msg.Value[0])
	}

	eventType, ok := header(msg, headerEventType)
	if !ok {
		return Event{}, errors.New("missing event_type header")
	}
	eventID, ok := header(msg, headerEventID)
	if !ok {
		return Event{}, errors.New("missing event_id header")
	}
	ownerID, _ := header(msg, headerOwnerID)
	subject, _ := header(msg, headerSchemaSubject)

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Event{}, errors.New("payload is not valid JSON")
	}

	return Event{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     eventType,
		EventID:       eventID,
		OwnerID:       ownerID,
		SchemaSubject: subject,
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}, nil
}

func header(msg kafka.Message, key string) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
