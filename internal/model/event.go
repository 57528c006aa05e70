package model

import (
	"time"
)

// EventType represents the outcome recorded for a chat exchange.
type EventType string

const (
	EventTypeCompleted EventType = "completed"
	EventTypeFailed    EventType = "failed"
)

// ExchangeEvent records one chat request and how it ended.
type ExchangeEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    uint      `json:"user_id"`
	SessionID uint      `json:"session_id"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Goal      Goal      `json:"goal,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
