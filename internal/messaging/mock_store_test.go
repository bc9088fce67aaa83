package messaging_test

import (
	"collective/backend/internal/models"
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FindConversationBetween(ctx context.Context, userA, userB string) (string, error) {
	args := m.Called(ctx, userA, userB)
	return args.String(0), args.Error(1)
}

func (m *MockStore) CreateConversation(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) (string, error) {
	args := m.Called(ctx, conv, participants)
	return args.String(0), args.Error(1)
}

func (m *MockStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) GetCounterpartID(ctx context.Context, conversationID, userID string) (string, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockStore) ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSummary), args.Error(1)
}

func (m *MockStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) MarkRead(ctx context.Context, conversationID, recipientID string, ids []uint, at time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, recipientID, ids, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) RecentMessages(ctx context.Context, limit int) ([]models.MonitoredMessage, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MonitoredMessage), args.Error(1)
}
