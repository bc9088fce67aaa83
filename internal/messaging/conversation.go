package messaging

import (
	"collective/backend/internal/models"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageSender delivers the optional first message of a new conversation.
type MessageSender interface {
	Send(ctx context.Context, conversationID string, sender models.Identity, content string) (*models.Message, error)
}

// ConversationService owns the two-party conversation lifecycle and membership checks.
type ConversationService struct {
	Store    Store
	Messages MessageSender
	Now      func() time.Time
}

// NewConversationService creates a conversation engine. Call SetMessageSender before
// creating conversations with an initial message.
func NewConversationService(s Store) *ConversationService {
	return &ConversationService{Store: s, Now: time.Now}
}

func (c *ConversationService) SetMessageSender(sender MessageSender) {
	c.Messages = sender
}

// FindOrCreate returns the conversation between initiator and participantID, creating it
// on first contact, and sends initialMessage from the initiator when it is non-empty.
func (c *ConversationService) FindOrCreate(ctx context.Context, initiator models.Identity, participantID, initialMessage string) (string, error) {
	if participantID == initiator.ID {
		return "", ErrSelfConversation
	}
	if initialMessage != "" {
		if err := ValidateContent(initialMessage); err != nil {
			return "", err
		}
	}

	exists, err := c.Store.UserExists(ctx, participantID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !exists {
		return "", ErrParticipantNotFound
	}

	conversationID, err := c.Store.FindConversationBetween(ctx, initiator.ID, participantID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if conversationID == "" {
		conversationID, err = c.create(ctx, initiator.ID, participantID)
		if err != nil {
			return "", err
		}
	}

	if initialMessage != "" {
		if c.Messages == nil {
			return "", fmt.Errorf("%w: no message sender configured", ErrIntegrity)
		}
		if _, err := c.Messages.Send(ctx, conversationID, initiator, initialMessage); err != nil {
			return "", err
		}
	}

	return conversationID, nil
}

func (c *ConversationService) create(ctx context.Context, initiatorID, participantID string) (string, error) {
	now := c.Now().UTC()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		PairKey:   models.PairKey(initiatorID, participantID),
		CreatedAt: now,
	}
	participants := []models.ConversationParticipant{
		{ConversationID: conv.ID, UserID: initiatorID, JoinedAt: now},
		{ConversationID: conv.ID, UserID: participantID, JoinedAt: now},
	}

	id, err := c.Store.CreateConversation(ctx, conv, participants)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	log := logrus.WithFields(logrus.Fields{"conversation_id": id, "initiator_id": initiatorID, "participant_id": participantID})
	if id != conv.ID {
		log.Info("conversation created concurrently, reusing existing one")
	} else {
		log.Info("conversation created")
	}
	return id, nil
}

// List returns the viewer's conversations, most recent activity first.
func (c *ConversationService) List(ctx context.Context, viewer models.Identity) ([]models.ConversationSummary, error) {
	summaries, err := c.Store.ListConversationSummaries(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	return summaries, nil
}

// AssertParticipant reports whether userID is a member of the conversation.
func (c *ConversationService) AssertParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if conversationID == "" || userID == "" {
		return false, nil
	}
	ok, err := c.Store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ok, nil
}
