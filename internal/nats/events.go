package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/RomanRochniak/CapstoneGym/internal/model"
)

const (
	// StreamName is the JetStream stream holding chat exchange events.
	StreamName = "GYM_CHAT"

	// SubjectPrefix prefixes every chat event subject.
	SubjectPrefix = "chat"

	streamMaxAge = 30 * 24 * time.Hour
)

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher writes exchange events to the GYM_CHAT stream.
type EventPublisher struct {
	js streamPublisher
}

// NewEventPublisher creates a publisher on client's JetStream context.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{js: client.JetStream()}
}

// EnsureStream creates the chat stream if it does not exist yet.
func (p *EventPublisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("nats: look up stream: %w", err)
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      streamMaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Gym assistant chat exchanges",
	})
	if err != nil {
		return fmt.Errorf("nats: create stream: %w", err)
	}
	return nil
}

// EventSubject returns the subject for an exchange event.
func EventSubject(userID, sessionID uint, eventType model.EventType) string {
	return fmt.Sprintf("%s.%d.%d.%s", SubjectPrefix, userID, sessionID, eventType)
}

// PublishExchange publishes event and waits for the stream ack.
func (p *EventPublisher) PublishExchange(ctx context.Context, event *model.ExchangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats: marshal event: %w", err)
	}

	subject := EventSubject(event.UserID, event.SessionID, event.Type)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("nats: publish %s: %w", subject, err)
	}
	return nil
}
