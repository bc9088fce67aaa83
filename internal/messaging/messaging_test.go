package messaging_test

import (
	"collective/backend/internal/messaging"
	"collective/backend/internal/models"
	"collective/backend/internal/storage/memory"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Identity{ID: "11111111-1111-1111-1111-111111111111", Email: "alice@example.com", Role: models.RoleCompany}
	bob   = models.Identity{ID: "22222222-2222-2222-2222-222222222222", Email: "bob@example.com", Role: models.RoleInvestor}
	carol = models.Identity{ID: "33333333-3333-3333-3333-333333333333", Email: "carol@example.com", Role: models.RoleInvestor}
	admin = models.Identity{ID: "44444444-4444-4444-4444-444444444444", Email: "admin@example.com", Role: models.RoleAdmin}
)

// clock hands out strictly increasing times, one second apart.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store         *memory.Store
	conversations *messaging.ConversationService
	messages      *messaging.MessageService
	clock         *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, id := range []models.Identity{alice, bob, carol, admin} {
		require.NoError(t, store.CreateUser(ctx, &models.User{ID: id.ID, Email: id.Email, Role: id.Role}))
	}

	clk := newClock()
	conversations, messages := messaging.NewEngines(store)
	conversations.Now = clk.Now
	messages.Now = clk.Now
	return &fixture{store: store, conversations: conversations, messages: messages, clock: clk}
}

func TestAliceAndBob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Alice opens the conversation with a greeting.
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "Hi Bob")
	require.NoError(t, err)
	require.NotEmpty(t, c1)

	msgs, err := f.messages.ListMessages(ctx, c1, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, alice.ID, msgs[0].SenderID)
	assert.Equal(t, bob.ID, msgs[0].RecipientID)
	assert.Equal(t, "Hi Bob", msgs[0].Content)
	assert.Nil(t, msgs[0].ReadAt)

	// Bob reaching out finds the same conversation.
	again, err := f.conversations.FindOrCreate(ctx, bob, alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, c1, again)

	// Bob reads it.
	msgs, err = f.messages.Fetch(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].ReadAt)

	// Bob replies.
	reply, err := f.messages.Send(ctx, c1, bob, "Hey Alice")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, reply.SenderID)
	assert.Equal(t, alice.ID, reply.RecipientID)
	assert.Equal(t, bob.Email, reply.SenderEmail)

	// Alice reads both in order; only the reply was unread for her.
	msgs, err = f.messages.Fetch(ctx, c1, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi Bob", msgs[0].Content)
	assert.Equal(t, "Hey Alice", msgs[1].Content)
	assert.True(t, msgs[0].SentAt.Before(msgs[1].SentAt))
	require.NotNil(t, msgs[1].ReadAt)
	assert.Equal(t, "alice@example.com", msgs[0].SenderEmail)

	// Bob's list shows nothing unread; Alice's too.
	for _, viewer := range []models.Identity{alice, bob} {
		list, err := f.conversations.List(ctx, viewer)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, c1, list[0].ConversationID)
		assert.Zero(t, list[0].UnreadCount)
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, "Hey Alice", *list[0].LastMessage)
	}
}

func TestFindOrCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.conversations.FindOrCreate(ctx, alice, alice.ID, "")
	assert.ErrorIs(t, err, messaging.ErrSelfConversation)

	_, err = f.conversations.FindOrCreate(ctx, alice, "99999999-9999-9999-9999-999999999999", "")
	assert.ErrorIs(t, err, messaging.ErrParticipantNotFound)

	_, err = f.conversations.FindOrCreate(ctx, alice, bob.ID, "   ")
	assert.ErrorIs(t, err, messaging.ErrInvalidContent)

	// Nothing was written by the rejected calls.
	list, err := f.conversations.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFindOrCreate_ConcurrentCallsShareOneConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			initiator, other := alice, bob
			if i%2 == 1 {
				initiator, other = bob, alice
			}
			id, err := f.conversations.FindOrCreate(ctx, initiator, other.ID, "")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := f.conversations.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSend_ContentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", " \n\t ", true},
		{"one char", "x", false},
		{"at limit", strings.Repeat("a", 5000), false},
		{"over limit", strings.Repeat("a", 5001), true},
		{"multibyte at limit", strings.Repeat("é", 5000), false},
		{"multibyte over limit", strings.Repeat("é", 5001), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messages.Send(ctx, c1, alice, tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, messaging.ErrInvalidContent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNonParticipantIsRejectedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "private")
	require.NoError(t, err)

	_, err = f.messages.Send(ctx, c1, carol, "let me in")
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = f.messages.ListMessages(ctx, c1, carol)
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = f.messages.MarkRead(ctx, c1, carol)
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = f.messages.Fetch(ctx, c1, carol)
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	_, err = f.messages.Fetch(ctx, "no-such-conversation", alice)
	assert.ErrorIs(t, err, messaging.ErrNotParticipant)

	// Carol's attempts changed nothing for Bob.
	msgs, err := f.messages.ListMessages(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].ReadAt)
}

func TestListMessages_IsPureAndMarkReadIsSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "one")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, c1, alice, "two")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, c1, bob, "three")
	require.NoError(t, err)

	msgs, err := f.messages.ListMessages(ctx, c1, bob)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Nil(t, m.ReadAt)
	}

	n, err := f.messages.MarkRead(ctx, c1, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	msgs, err = f.messages.ListMessages(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.NotNil(t, msgs[0].ReadAt)
	assert.NotNil(t, msgs[1].ReadAt)
	assert.Nil(t, msgs[2].ReadAt, "bob's own message stays unread until alice opens it")

	// Marking again touches nothing and leaves timestamps alone.
	first := *msgs[0].ReadAt
	n, err = f.messages.MarkRead(ctx, c1, bob)
	require.NoError(t, err)
	assert.Zero(t, n)
	msgs, err = f.messages.Fetch(ctx, c1, bob)
	require.NoError(t, err)
	assert.Equal(t, first, *msgs[0].ReadAt)
}

func TestListMessages_TiesBrokenByInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)

	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.messages.Now = func() time.Time { return frozen }
	for _, text := range []string{"a", "b", "c"} {
		_, err := f.messages.Send(ctx, c1, alice, text)
		require.NoError(t, err)
	}

	msgs, err := f.messages.ListMessages(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[0].Content)
	assert.Equal(t, "b", msgs[1].Content)
	assert.Equal(t, "c", msgs[2].Content)
	assert.Less(t, msgs[0].ID, msgs[1].ID)
}

func TestList_OrderAndUnreadCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withBob, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "hello bob")
	require.NoError(t, err)
	withCarol, err := f.conversations.FindOrCreate(ctx, carol, alice.ID, "hello alice")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, withCarol, carol, "are you there?")
	require.NoError(t, err)
	empty, err := f.conversations.FindOrCreate(ctx, admin, alice.ID, "")
	require.NoError(t, err)

	list, err := f.conversations.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, withCarol, list[0].ConversationID)
	assert.Equal(t, int64(2), list[0].UnreadCount)
	assert.Equal(t, carol.ID, list[0].OtherUserID)
	assert.Equal(t, carol.Email, list[0].OtherDisplayName)

	assert.Equal(t, withBob, list[1].ConversationID)
	assert.Zero(t, list[1].UnreadCount, "alice's own message is not unread for her")

	assert.Equal(t, empty, list[2].ConversationID)
	assert.Nil(t, list[2].LastMessage)
	assert.Nil(t, list[2].LastMessageAt)

	// Bob sees his single conversation with one unread message.
	list, err = f.conversations.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].UnreadCount)

	_, err = f.messages.Fetch(ctx, withBob, bob)
	require.NoError(t, err)
	list, err = f.conversations.List(ctx, bob)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestList_DisplayNameFromProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveCompanyProfile(ctx, &models.CompanyProfile{UserID: alice.ID, CompanyName: "Acme"}))

	_, err := f.conversations.FindOrCreate(ctx, bob, alice.ID, "")
	require.NoError(t, err)

	list, err := f.conversations.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Acme", list[0].OtherDisplayName)
	assert.Equal(t, models.RoleCompany, list[0].OtherUserRole)
}

func TestSend_MissingCounterpartIsIntegrityError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)

	f.store.RemoveParticipant(c1, bob.ID)

	_, err = f.messages.Send(ctx, c1, alice, "anyone?")
	assert.ErrorIs(t, err, messaging.ErrIntegrity)
	assert.ErrorIs(t, err, messaging.ErrRecipientNotFound)
	assert.True(t, messaging.IsInternal(err))
}

func TestRecent_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "first")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, c1, bob, "second")
	require.NoError(t, err)

	_, err = f.messages.Recent(ctx, alice, 10)
	assert.ErrorIs(t, err, messaging.ErrForbidden)

	recent, err := f.messages.Recent(ctx, admin, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Content)
	assert.Equal(t, bob.Email, recent[0].SenderEmail)
	assert.Equal(t, alice.Email, recent[0].RecipientEmail)
	assert.Equal(t, models.RoleCompany, recent[0].RecipientRole)

	recent, err = f.messages.Recent(ctx, admin, 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

// arrivingStore stores one more message right after the first ListMessages call returns.
type arrivingStore struct {
	*memory.Store
	once   sync.Once
	arrive func()
}

func (s *arrivingStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs, err := s.Store.ListMessages(ctx, conversationID)
	s.once.Do(s.arrive)
	return msgs, err
}

func TestFetch_LeavesMessagesStoredDuringFetchUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "seen")
	require.NoError(t, err)

	store := &arrivingStore{Store: f.store}
	store.arrive = func() {
		require.NoError(t, store.Store.SaveMessage(ctx, &models.Message{
			ConversationID: c1,
			SenderID:       alice.ID,
			RecipientID:    bob.ID,
			Content:        "late",
			SentAt:         f.clock.Now(),
		}))
	}
	_, messages := messaging.NewEngines(store)
	messages.Now = f.clock.Now

	msgs, err := messages.Fetch(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].ReadAt)

	all, err := f.messages.ListMessages(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.NotNil(t, all[0].ReadAt)
	assert.Equal(t, "late", all[1].Content)
	assert.Nil(t, all[1].ReadAt)

	list, err := f.conversations.List(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list[0].UnreadCount)
}

func TestFetch_ChronologicalRegardlessOfInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)

	base := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	for _, step := range []struct {
		content string
		at      time.Time
	}{
		{"t3", base.Add(3 * time.Minute)},
		{"t1", base.Add(1 * time.Minute)},
		{"t2", base.Add(2 * time.Minute)},
	} {
		at := step.at
		f.messages.Now = func() time.Time { return at }
		_, err := f.messages.Send(ctx, c1, alice, step.content)
		require.NoError(t, err)
	}

	f.messages.Now = func() time.Time { return base.Add(time.Hour) }
	msgs, err := f.messages.Fetch(ctx, c1, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "t1", msgs[0].Content)
	assert.Equal(t, "t2", msgs[1].Content)
	assert.Equal(t, "t3", msgs[2].Content)
	assert.Greater(t, msgs[0].ID, msgs[2].ID, "t1 was stored after t3")
}

func TestFindOrCreate_ExactlyTwoParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c1, err := f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.conversations.FindOrCreate(ctx, bob, alice.ID, "")
		require.NoError(t, err)
		assert.Equal(t, c1, again)
		again, err = f.conversations.FindOrCreate(ctx, alice, bob.ID, "")
		require.NoError(t, err)
		assert.Equal(t, c1, again)
	}
	assert.Equal(t, 2, f.store.ParticipantCount(c1))

	for _, viewer := range []models.Identity{alice, bob} {
		ok, err := f.conversations.AssertParticipant(ctx, c1, viewer.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := f.conversations.AssertParticipant(ctx, c1, carol.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
