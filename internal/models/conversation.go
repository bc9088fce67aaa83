package models

import "time"

// Conversation is a strictly two-party thread between users.
// PairKey holds the canonical form of the participant pair and is unique, so at most one
// conversation can exist for any unordered pair of users.
type Conversation struct {
	// ID is the unique identifier of the conversation (UUID).
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// PairKey is PairKey(userA, userB) of the two participants.
	PairKey string `gorm:"uniqueIndex;not null" json:"-"`
	// CreatedAt is the timestamp when the conversation was first opened.
	CreatedAt time.Time `json:"created_at"`
}

// ConversationParticipant links a user to a conversation.
// The composite primary key guarantees a user appears at most once per conversation.
type ConversationParticipant struct {
	ConversationID string    `gorm:"primaryKey;type:uuid" json:"conversation_id"`
	UserID         string    `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	JoinedAt       time.Time `gorm:"not null" json:"joined_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	User         User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// PairKey returns the order-independent key for two user IDs.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	ConversationID   string     `json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	OtherUserID      string     `json:"other_user_id"`
	OtherUserEmail   string     `json:"other_user_email"`
	OtherUserRole    Role       `json:"other_user_role"`
	OtherDisplayName string     `json:"other_display_name"`
	LastMessage      *string    `json:"last_message"`
	LastMessageAt    *time.Time `json:"last_message_time"`
	UnreadCount      int64      `json:"unread_count"`
}
