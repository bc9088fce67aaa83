package models

import "time"

// Message represents a direct message saved in the PostgreSQL database.
// The auto-increment ID doubles as the insertion sequence used to break SentAt ties.
type Message struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	// ConversationID is the conversation the message belongs to.
	ConversationID string `gorm:"type:uuid;not null;index:idx_conversation_sent,priority:1" json:"conversation_id"`
	// SenderID and RecipientID are always the two participants of the conversation.
	SenderID    string `gorm:"type:uuid;not null" json:"sender_id"`
	RecipientID string `gorm:"type:uuid;not null;index:idx_recipient_unread" json:"recipient_id"`
	// Content is the text body of the message.
	Content string `gorm:"type:text;not null" json:"content"`
	// SentAt is when the message was stored.
	SentAt time.Time `gorm:"not null;index:idx_conversation_sent,priority:2" json:"sent_at"`
	// ReadAt stays nil until the recipient views the conversation, then never changes.
	ReadAt *time.Time `gorm:"index:idx_recipient_unread" json:"read_at"`

	// SenderEmail is filled by reads that join the sender; it is not a column.
	SenderEmail string `gorm:"->;-:migration" json:"sender_email,omitempty"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	Sender       User         `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
	Recipient    User         `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsRead reports whether the recipient has seen the message.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// MonitoredMessage is a message enriched with both parties for the admin monitor.
type MonitoredMessage struct {
	ID             uint       `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderEmail    string     `json:"sender_email"`
	SenderRole     Role       `json:"sender_role"`
	RecipientID    string     `json:"recipient_id"`
	RecipientEmail string     `json:"recipient_email"`
	RecipientRole  Role       `json:"recipient_role"`
	Content        string     `json:"content"`
	SentAt         time.Time  `json:"sent_at"`
	ReadAt         *time.Time `json:"read_at"`
}
