// Package messaging implements the two-party conversation engine and the message engine.
//
// Every operation receives an already-authenticated models.Identity. The message engine
// gates each read and write on conversation membership, which it asks the conversation
// engine for.
package messaging

import (
	"collective/backend/internal/models"
	"context"
	"time"
)

// Store is the persistence the engines need. storage.Service implements it on
// PostgreSQL and memory.Store in process.
type Store interface {
	UserExists(ctx context.Context, userID string) (bool, error)

	// FindConversationBetween returns the ID of the conversation both users belong to,
	// or "" when there is none.
	FindConversationBetween(ctx context.Context, userA, userB string) (string, error)
	// CreateConversation inserts the conversation and its participant rows atomically.
	// If another conversation already holds the same pair, its ID is returned instead.
	CreateConversation(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) (string, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	// GetCounterpartID returns the other participant of the conversation, or "" if missing.
	GetCounterpartID(ctx context.Context, conversationID, userID string) (string, error)
	ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)

	SaveMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns the conversation's messages ordered by SentAt, then ID.
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	// MarkRead sets ReadAt on unread messages addressed to recipientID. A non-nil ids
	// restricts the update to those message IDs; nil marks every unread message.
	MarkRead(ctx context.Context, conversationID, recipientID string, ids []uint, at time.Time) (int64, error)
	RecentMessages(ctx context.Context, limit int) ([]models.MonitoredMessage, error)
}
