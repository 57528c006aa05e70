// Package service implements the chat exchange workflow.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
	"github.com/RomanRochniak/CapstoneGym/internal/llm"
	"github.com/RomanRochniak/CapstoneGym/internal/model"
	"github.com/RomanRochniak/CapstoneGym/internal/sitecontext"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
)

const (
	// HistoryLimit is the number of stored turns considered per request,
	// including the message being answered.
	HistoryLimit = 10

	// SessionListLimit caps GET /api/ai/sessions/.
	SessionListLimit = 50

	suggestionCount = 3
	publishTimeout  = 2 * time.Second
)

var (
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("message is required")
	// ErrGeneration marks failures of the response provider. The provider
	// error stays in the chain.
	ErrGeneration = errors.New("response generation failed")
)

// ConversationStore persists sessions and messages.
type ConversationStore interface {
	GetOrCreateSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error)
	AppendMessage(ctx context.Context, session *model.ChatSession, role model.Role, content string, meta map[string]any) (*model.ChatMessage, error)
	RecentHistory(ctx context.Context, sessionID uint, limit int) ([]model.ChatMessage, error)
	ListSessions(ctx context.Context, userID uint, limit int) ([]model.ChatSession, error)
	SessionMessages(ctx context.Context, sessionID, userID uint) ([]model.ChatMessage, error)
	DeactivateSession(ctx context.Context, sessionID, userID uint) error
}

// ContextBuilder snapshots the site data visible to a user.
type ContextBuilder interface {
	Build(ctx context.Context, userID uint, limit int) (*model.SiteContext, error)
}

// Responder generates assistant replies.
type Responder interface {
	GenerateResponse(ctx context.Context, userMessage string, history []llm.Message, siteContext, suggestions any) (*llm.Response, error)
}

// EventPublisher receives one event per chat exchange.
type EventPublisher interface {
	PublishExchange(ctx context.Context, event *model.ExchangeEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishExchange implements EventPublisher.
func (NopPublisher) PublishExchange(context.Context, *model.ExchangeEvent) error { return nil }

// ChatService runs chat exchanges and exposes the caller's sessions.
type ChatService struct {
	store     ConversationStore
	builder   ContextBuilder
	responder Responder
	events    EventPublisher
	logger    *logger.Logger
}

// NewChatService creates a chat service. A nil publisher disables events.
func NewChatService(store ConversationStore, builder ContextBuilder, responder Responder, events EventPublisher, log *logger.Logger) *ChatService {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ChatService{
		store:     store,
		builder:   builder,
		responder: responder,
		events:    events,
		logger:    log.Named("chat"),
	}
}

// Send stores the user's message, asks the responder for a reply and stores
// the reply. A failed generation keeps the user message and returns an error
// wrapping ErrGeneration.
func (s *ChatService) Send(ctx context.Context, userID uint, req *model.ChatRequest) (*model.ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	var sessionID uint
	if ref := req.SessionID; ref != nil {
		if *ref < 0 {
			return nil, db.ErrSessionNotFound
		}
		sessionID = uint(*ref)
	}
	session, err := s.store.GetOrCreateSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.AppendMessage(ctx, session, model.RoleUser, text, nil); err != nil {
		return nil, err
	}

	stored, err := s.store.RecentHistory(ctx, session.ID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	// The newest entry is the message just stored; it is sent separately.
	if len(stored) > 0 {
		stored = stored[:len(stored)-1]
	}
	history := make([]llm.Message, len(stored))
	for i, m := range stored {
		history[i] = llm.Message{Role: string(m.Role), Content: m.Content}
	}

	site, err := s.builder.Build(ctx, userID, sitecontext.DefaultLimit)
	if err != nil {
		return nil, err
	}
	suggestions := sitecontext.Suggestions(site, text, suggestionCount)

	var goal model.Goal
	if suggestions.GoalDetected != nil {
		goal = *suggestions.GoalDetected
	}

	start := time.Now()
	resp, err := s.responder.GenerateResponse(ctx, text, history, site.PromptContext(), suggestions)
	latency := time.Since(start)
	if err != nil {
		s.publish(ctx, &model.ExchangeEvent{
			Type:      model.EventTypeFailed,
			UserID:    userID,
			SessionID: session.ID,
			Goal:      goal,
			Reason:    err.Error(),
			LatencyMs: latency.Milliseconds(),
		})
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	meta := map[string]any{
		"provider": resp.Provider,
		"model":    resp.Model,
	}
	for k, v := range resp.Meta {
		meta[k] = v
	}
	if _, err := s.store.AppendMessage(ctx, session, model.RoleAssistant, resp.Text, meta); err != nil {
		return nil, err
	}

	s.publish(ctx, &model.ExchangeEvent{
		Type:      model.EventTypeCompleted,
		UserID:    userID,
		SessionID: session.ID,
		Provider:  resp.Provider,
		Model:     resp.Model,
		Goal:      goal,
		LatencyMs: latency.Milliseconds(),
	})

	return &model.ChatResponse{
		SessionID:   session.ID,
		Response:    resp.Text,
		Provider:    resp.Provider,
		Model:       resp.Model,
		Suggestions: suggestions,
	}, nil
}

// ListSessions returns the caller's active sessions, newest activity first.
func (s *ChatService) ListSessions(ctx context.Context, userID uint) (*model.ListSessionsResponse, error) {
	sessions, err := s.store.ListSessions(ctx, userID, SessionListLimit)
	if err != nil {
		return nil, err
	}
	return &model.ListSessionsResponse{Sessions: sessions}, nil
}

// Messages returns the full log of one of the caller's active sessions.
func (s *ChatService) Messages(ctx context.Context, userID, sessionID uint) (*model.ListMessagesResponse, error) {
	msgs, err := s.store.SessionMessages(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &model.ListMessagesResponse{SessionID: sessionID, Messages: msgs}, nil
}

// CloseSession deactivates one of the caller's sessions.
func (s *ChatService) CloseSession(ctx context.Context, userID, sessionID uint) error {
	return s.store.DeactivateSession(ctx, sessionID, userID)
}

// publish is best effort; failures are logged and never reach the caller.
func (s *ChatService) publish(ctx context.Context, event *model.ExchangeEvent) {
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.PublishExchange(ctx, event); err != nil {
		s.logger.Warn("failed to publish exchange event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Uint("session_id", event.SessionID),
			zap.Error(err),
		)
	}
}
