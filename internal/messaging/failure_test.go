package messaging_test

import (
	"collective/backend/internal/messaging"
	"collective/backend/internal/models"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errDB = errors.New("connection reset by peer")

func TestFindOrCreate_ReusesConversationCreatedConcurrently(t *testing.T) {
	// Arrange
	store := new(MockStore)
	conversations, _ := messaging.NewEngines(store)
	ctx := context.Background()

	store.On("UserExists", ctx, bob.ID).Return(true, nil)
	store.On("FindConversationBetween", ctx, alice.ID, bob.ID).Return("", nil)
	store.On("CreateConversation", ctx,
		mock.MatchedBy(func(c *models.Conversation) bool { return c.PairKey == models.PairKey(alice.ID, bob.ID) }),
		mock.MatchedBy(func(p []models.ConversationParticipant) bool { return len(p) == 2 }),
	).Return("existing-conversation", nil)

	// Act
	id, err := conversations.FindOrCreate(ctx, alice, bob.ID, "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "existing-conversation", id)
	store.AssertExpectations(t)
}

func TestFindOrCreate_CreatesTwoDistinctParticipants(t *testing.T) {
	store := new(MockStore)
	conversations, _ := messaging.NewEngines(store)
	ctx := context.Background()

	var got []models.ConversationParticipant
	store.On("UserExists", ctx, bob.ID).Return(true, nil)
	store.On("FindConversationBetween", ctx, alice.ID, bob.ID).Return("", nil)
	store.On("CreateConversation", ctx, mock.AnythingOfType("*models.Conversation"), mock.Anything).
		Run(func(args mock.Arguments) {
			got = args.Get(2).([]models.ConversationParticipant)
		}).
		Return("c1", nil)

	_, err := conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, []string{got[0].UserID, got[1].UserID})
	assert.Equal(t, got[0].JoinedAt, got[1].JoinedAt)
}

func TestFindOrCreate_InvalidMessageWritesNothing(t *testing.T) {
	store := new(MockStore)
	conversations, _ := messaging.NewEngines(store)

	_, err := conversations.FindOrCreate(context.Background(), alice, bob.ID, "\n")
	assert.ErrorIs(t, err, messaging.ErrInvalidContent)
	store.AssertNotCalled(t, "UserExists", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_PersistenceFailure(t *testing.T) {
	// Arrange
	store := new(MockStore)
	_, messages := messaging.NewEngines(store)
	ctx := context.Background()

	store.On("IsParticipant", ctx, "c1", alice.ID).Return(true, nil)
	store.On("GetCounterpartID", ctx, "c1", alice.ID).Return(bob.ID, nil)
	store.On("SaveMessage", ctx, mock.AnythingOfType("*models.Message")).Return(errDB)

	// Act
	msg, err := messages.Send(ctx, "c1", alice, "hello")

	// Assert
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, messaging.ErrPersistence)
	assert.True(t, messaging.IsInternal(err))
	assert.NotContains(t, err.Error(), "%!")
}

func TestSend_GateFailureIsInternal(t *testing.T) {
	store := new(MockStore)
	_, messages := messaging.NewEngines(store)
	ctx := context.Background()

	store.On("IsParticipant", ctx, "c1", alice.ID).Return(false, errDB)

	_, err := messages.Send(ctx, "c1", alice, "hello")
	assert.ErrorIs(t, err, messaging.ErrPersistence)
	store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestFetch_MarkReadFailureReturnsError(t *testing.T) {
	// Arrange
	store := new(MockStore)
	_, messages := messaging.NewEngines(store)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	messages.Now = func() time.Time { return now }

	store.On("IsParticipant", ctx, "c1", bob.ID).Return(true, nil)
	store.On("ListMessages", ctx, "c1").Return([]models.Message{{ID: 1, ConversationID: "c1", SenderID: alice.ID, RecipientID: bob.ID}}, nil)
	store.On("MarkRead", ctx, "c1", bob.ID, []uint{1}, now).Return(int64(0), errDB)

	// Act
	msgs, err := messages.Fetch(ctx, "c1", bob)

	// Assert
	assert.Nil(t, msgs)
	assert.ErrorIs(t, err, messaging.ErrPersistence)
}

func TestFetch_ReflectsReadTimestamp(t *testing.T) {
	store := new(MockStore)
	_, messages := messaging.NewEngines(store)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	messages.Now = func() time.Time { return now }

	store.On("IsParticipant", ctx, "c1", bob.ID).Return(true, nil)
	store.On("ListMessages", ctx, "c1").Return([]models.Message{
		{ID: 1, SenderID: alice.ID, RecipientID: bob.ID, ReadAt: &earlier},
		{ID: 2, SenderID: alice.ID, RecipientID: bob.ID},
		{ID: 3, SenderID: bob.ID, RecipientID: alice.ID},
	}, nil)
	store.On("MarkRead", ctx, "c1", bob.ID, []uint{2}, now).Return(int64(1), nil)

	msgs, err := messages.Fetch(ctx, "c1", bob)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, earlier, *msgs[0].ReadAt)
	assert.Equal(t, now, *msgs[1].ReadAt)
	assert.Nil(t, msgs[2].ReadAt)
	store.AssertNumberOfCalls(t, "IsParticipant", 1)
}

func TestFetch_NothingUnreadSkipsMarkRead(t *testing.T) {
	store := new(MockStore)
	_, messages := messaging.NewEngines(store)
	ctx := context.Background()

	store.On("IsParticipant", ctx, "c1", alice.ID).Return(true, nil)
	store.On("ListMessages", ctx, "c1").Return([]models.Message{
		{ID: 1, SenderID: alice.ID, RecipientID: bob.ID},
	}, nil)

	msgs, err := messages.Fetch(ctx, "c1", alice)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAssertParticipant_EmptyIDs(t *testing.T) {
	store := new(MockStore)
	conversations, _ := messaging.NewEngines(store)

	ok, err := conversations.AssertParticipant(context.Background(), "", alice.ID)
	assert.NoError(t, err)
	assert.False(t, ok)
	store.AssertNotCalled(t, "IsParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestList_PersistenceFailure(t *testing.T) {
	store := new(MockStore)
	conversations, _ := messaging.NewEngines(store)
	ctx := context.Background()
	store.On("ListConversationSummaries", ctx, alice.ID).Return(nil, errDB)

	_, err := conversations.List(ctx, alice)
	assert.ErrorIs(t, err, messaging.ErrPersistence)
}
