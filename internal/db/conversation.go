package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/RomanRochniak/CapstoneGym/internal/model"
	"github.com/RomanRochniak/CapstoneGym/pkg/metrics"
)

// ErrSessionNotFound is returned when a session does not exist, belongs to
// another user, or has been deactivated.
var ErrSessionNotFound = errors.New("session not found")

// ConversationStore persists chat sessions and their messages.
type ConversationStore struct {
	db *gorm.DB
}

// NewConversationStore creates a conversation store.
func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// GetOrCreateSession returns the caller's active session sessionID, or
// creates a new untitled one when sessionID is zero.
func (s *ConversationStore) GetOrCreateSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error) {
	if sessionID == 0 {
		session := &model.ChatSession{
			UserID:   userID,
			Title:    "",
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
			return nil, fmt.Errorf("db: create session: %w", err)
		}
		metrics.SessionsTotal.Inc()
		return session, nil
	}
	return s.activeSession(ctx, sessionID, userID)
}

func (s *ConversationStore) activeSession(ctx context.Context, sessionID, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: load session %d: %w", sessionID, err)
	}
	return &session, nil
}

// AppendMessage adds a message to the session and bumps its updated_at.
// meta is stored as given; pass nil for none.
func (s *ConversationStore) AppendMessage(ctx context.Context, session *model.ChatSession, role model.Role, content string, meta map[string]any) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		SessionID: session.ID,
		Role:      role,
		Content:   content,
	}
	if meta != nil {
		msg.Meta = datatypes.JSONMap(meta)
	}

	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.ChatSession{}).
			Where("id = ?", session.ID).
			Update("updated_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("db: append %s message to session %d: %w", role, session.ID, err)
	}
	session.UpdatedAt = now

	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	return msg, nil
}

// RecentHistory returns up to limit of the session's most recent non-system
// messages, oldest first.
func (s *ConversationStore) RecentHistory(ctx context.Context, sessionID uint, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}

	var msgs []model.ChatMessage
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND role <> ?", sessionID, model.RoleSystem).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("db: load history for session %d: %w", sessionID, err)
	}

	slices.Reverse(msgs)
	return msgs, nil
}

// ListSessions returns the user's active sessions, most recently updated first.
func (s *ConversationStore) ListSessions(ctx context.Context, userID uint, limit int) ([]model.ChatSession, error) {
	sessions := []model.ChatSession{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("db: list sessions for user %d: %w", userID, err)
	}
	return sessions, nil
}

// SessionMessages returns every message of an active session owned by
// userID, in chronological order.
func (s *ConversationStore) SessionMessages(ctx context.Context, sessionID, userID uint) ([]model.ChatMessage, error) {
	if _, err := s.activeSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	msgs := []model.ChatMessage{}
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("db: list messages for session %d: %w", sessionID, err)
	}
	return msgs, nil
}

// DeactivateSession soft-disables an active session owned by userID.
func (s *ConversationStore) DeactivateSession(ctx context.Context, sessionID, userID uint) error {
	result := s.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("db: deactivate session %d: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
