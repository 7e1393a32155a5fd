package domain

import (
	"context"
	"time"
)

// Role constants for message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageStatus tracks the lifecycle of a message in a conversation.
type MessageStatus string

const (
	StatusComplete MessageStatus = "complete"
	StatusPending  MessageStatus = "pending"
	StatusFailed   MessageStatus = "failed"
)

// Message represents a single message in a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Conversation holds an ordered sequence of messages owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile holds per-user display preferences.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Language    string    `json:"language"`
	Theme       string    `json:"theme"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Usage is the per-user daily message counter backing the rate-limit banner.
type Usage struct {
	UserID string `json:"user_id"`
	Day    string `json:"day"` // YYYY-MM-DD, UTC
	Count  int    `json:"count"`
}

// ConversationStore is the backend persistence contract.
// SaveConversation replaces the stored message list with conv.Messages.
type ConversationStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]Message, error)
	SaveConversation(ctx context.Context, conv *Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	DeleteAllConversations(ctx context.Context, userID string) error
	GetUsage(ctx context.Context, userID, day string) (Usage, error)
	IncrementUsage(ctx context.Context, userID, day string) (Usage, error)
	Close() error
}

// Reply is the AI webhook's answer to one question.
type Reply struct {
	Text  string
	Empty bool
}

// AIClient asks the AI webhook a single question.
type AIClient interface {
	Ask(ctx context.Context, question string) (Reply, error)
}
