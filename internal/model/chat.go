// Package model defines data structures for the gym assistant.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatSession is a persisted conversation thread owned by one user.
type ChatSession struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint          `gorm:"not null;index:idx_chat_sessions_user_active,priority:1" json:"user_id"`
	Title     string        `gorm:"size:120;not null;default:''" json:"title"`
	IsActive  bool          `gorm:"not null;default:true;index:idx_chat_sessions_user_active,priority:2" json:"is_active"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `gorm:"index:idx_chat_sessions_user_active,priority:3" json:"updated_at"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// ChatMessage is one entry of a session's append-only log.
type ChatMessage struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uint              `gorm:"not null;index:idx_chat_messages_session_created,priority:1;index:idx_chat_messages_session_role_created,priority:1" json:"session_id"`
	Role      Role              `gorm:"size:12;not null;index:idx_chat_messages_session_role_created,priority:2" json:"role"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`
	CreatedAt time.Time         `gorm:"index:idx_chat_messages_session_created,priority:2;index:idx_chat_messages_session_role_created,priority:3" json:"created_at"`
}

// ChatRequest is the body of POST /api/ai/chat/.
type ChatRequest struct {
	Message   string      `json:"message"`
	SessionID *SessionRef `json:"session_id,omitempty"`
}

// SessionRef is the session id a client continues. It decodes from a JSON
// integer or a string holding one. Zero starts a new session; negative
// values match no session.
type SessionRef int64

// UnmarshalJSON implements json.Unmarshaler.
func (r *SessionRef) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("session_id: %w", err)
		}
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("session_id: %w", err)
	}
	*r = SessionRef(n)
	return nil
}

// ChatResponse is returned for a successful chat exchange.
type ChatResponse struct {
	SessionID   uint         `json:"session_id"`
	Response    string       `json:"response"`
	Provider    string       `json:"provider"`
	Model       string       `json:"model"`
	Suggestions *Suggestions `json:"suggestions"`
}

// ListSessionsResponse is the response for listing chat sessions.
type ListSessionsResponse struct {
	Sessions []ChatSession `json:"sessions"`
}

// ListMessagesResponse is the response for listing a session's messages.
type ListMessagesResponse struct {
	SessionID uint          `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}
