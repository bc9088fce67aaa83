package messaging

import (
	"collective/backend/internal/config"
	"collective/backend/internal/models"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// ParticipantGate answers membership questions for the message engine.
type ParticipantGate interface {
	AssertParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// MessageService creates messages, replays conversations and tracks read state.
type MessageService struct {
	Store Store
	Gate  ParticipantGate
	Now   func() time.Time
}

func NewMessageService(s Store, gate ParticipantGate) *MessageService {
	return &MessageService{Store: s, Gate: gate, Now: time.Now}
}

// NewEngines wires both engines over one store.
func NewEngines(s Store) (*ConversationService, *MessageService) {
	conversations := NewConversationService(s)
	messages := NewMessageService(s, conversations)
	conversations.SetMessageSender(messages)
	return conversations, messages
}

// ValidateContent rejects blank content and content over config.MaxMessageLength runes.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidContent)
	}
	if utf8.RuneCountInString(content) > config.MaxMessageLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidContent, config.MaxMessageLength)
	}
	return nil
}

func (s *MessageService) gate(ctx context.Context, conversationID, userID string) error {
	ok, err := s.Gate.AssertParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// Send stores a message from sender to the other participant of the conversation.
func (s *MessageService) Send(ctx context.Context, conversationID string, sender models.Identity, content string) (*models.Message, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if err := s.gate(ctx, conversationID, sender.ID); err != nil {
		return nil, err
	}

	recipientID, err := s.Store.GetCounterpartID(ctx, conversationID, sender.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if recipientID == "" {
		logrus.WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"sender_id":       sender.ID,
		}).Error("conversation has a single participant")
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, ErrRecipientNotFound)
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       sender.ID,
		RecipientID:    recipientID,
		Content:        content,
		SentAt:         s.Now().UTC(),
	}
	if err := s.Store.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.SenderEmail = sender.Email
	return msg, nil
}

// ListMessages returns the conversation in chronological order without touching read state.
func (s *MessageService) ListMessages(ctx context.Context, conversationID string, viewer models.Identity) ([]models.Message, error) {
	if err := s.gate(ctx, conversationID, viewer.ID); err != nil {
		return nil, err
	}
	return s.list(ctx, conversationID)
}

// MarkRead marks every unread message addressed to the viewer as read now.
func (s *MessageService) MarkRead(ctx context.Context, conversationID string, viewer models.Identity) (int64, error) {
	if err := s.gate(ctx, conversationID, viewer.ID); err != nil {
		return 0, err
	}
	return s.markRead(ctx, conversationID, viewer.ID, nil, s.Now().UTC())
}

// Fetch is ListMessages followed by MarkRead under a single membership check.
// Only the returned messages are marked, so a message stored in between stays unread.
// The returned messages already carry the read timestamp that was stored.
func (s *MessageService) Fetch(ctx context.Context, conversationID string, viewer models.Identity) ([]models.Message, error) {
	if err := s.gate(ctx, conversationID, viewer.ID); err != nil {
		return nil, err
	}

	msgs, err := s.list(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var unread []uint
	for _, m := range msgs {
		if m.RecipientID == viewer.ID && m.ReadAt == nil {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return msgs, nil
	}

	now := s.Now().UTC()
	if _, err := s.markRead(ctx, conversationID, viewer.ID, unread, now); err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].RecipientID == viewer.ID && msgs[i].ReadAt == nil {
			readAt := now
			msgs[i].ReadAt = &readAt
		}
	}
	return msgs, nil
}

func (s *MessageService) list(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs, err := s.Store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

func (s *MessageService) markRead(ctx context.Context, conversationID, recipientID string, ids []uint, at time.Time) (int64, error) {
	n, err := s.Store.MarkRead(ctx, conversationID, recipientID, ids, at)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}

// Recent returns the latest messages across all conversations for the admin monitor.
func (s *MessageService) Recent(ctx context.Context, actor models.Identity, limit int) ([]models.MonitoredMessage, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if limit <= 0 || limit > config.MonitorMessageLimit {
		limit = config.MonitorMessageLimit
	}
	msgs, err := s.Store.RecentMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if msgs == nil {
		msgs = []models.MonitoredMessage{}
	}
	return msgs, nil
}
