// Package memory is an in-process storage backend. It implements the same store
// interfaces as storage.Service and is used for tests and STORAGE_BACKEND=memory.
package memory

import (
	"collective/backend/internal/account"
	"collective/backend/internal/models"
	"collective/backend/internal/storage"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type session struct {
	identity  models.Identity
	expiresAt time.Time
}

var _ storage.Storage = (*Store)(nil)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users         map[string]models.User
	emails        map[string]string
	conversations map[string]models.Conversation
	pairs         map[string]string
	participants  map[string][]string
	messages      []models.Message
	nextID        uint
	companies     map[string]models.CompanyProfile
	investors     map[string]models.InvestorProfile
	sessions      map[string]session

	Now func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[string]models.User),
		emails:        make(map[string]string),
		conversations: make(map[string]models.Conversation),
		pairs:         make(map[string]string),
		participants:  make(map[string][]string),
		companies:     make(map[string]models.CompanyProfile),
		investors:     make(map[string]models.InvestorProfile),
		sessions:      make(map[string]session),
		Now:           time.Now,
	}
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.emails[email]; ok {
		return account.ErrEmailTaken
	}
	if err := user.BeforeCreate(nil); err != nil {
		return err
	}
	now := s.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	s.users[user.ID] = *user
	s.emails[email] = user.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = s.Now().UTC()
	s.users[id] = u
	return nil
}

// DeleteUser drops the user, their profiles and every conversation they took part in.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.emails, strings.ToLower(u.Email))
	delete(s.companies, id)
	delete(s.investors, id)

	gone := make(map[string]bool)
	for convID, members := range s.participants {
		for _, member := range members {
			if member == id {
				gone[convID] = true
			}
		}
	}
	for convID := range gone {
		delete(s.pairs, s.conversations[convID].PairKey)
		delete(s.conversations, convID)
		delete(s.participants, convID)
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if !gone[m.ConversationID] && m.SenderID != id && m.RecipientID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[userID]
	return ok, nil
}

// --- conversations ---

func (s *Store) FindConversationBetween(ctx context.Context, userA, userB string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pairs[models.PairKey(userA, userB)], nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pairs[conv.PairKey]; ok {
		return existing, nil
	}
	s.conversations[conv.ID] = *conv
	s.pairs[conv.PairKey] = conv.ID
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	s.participants[conv.ID] = ids
	return conv.ID, nil
}

func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.participants[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetCounterpartID(ctx context.Context, conversationID, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.participants[conversationID] {
		if id != userID {
			return id, nil
		}
	}
	return "", nil
}

// RemoveParticipant drops a membership row. Only tests use it, to build broken conversations.
func (s *Store) RemoveParticipant(conversationID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.participants[conversationID][:0]
	for _, id := range s.participants[conversationID] {
		if id != userID {
			ids = append(ids, id)
		}
	}
	s.participants[conversationID] = ids
}

// ParticipantCount returns the number of membership rows of a conversation.
func (s *Store) ParticipantCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.participants[conversationID])
}

func (s *Store) displayName(u models.User) string {
	if c, ok := s.companies[u.ID]; ok && c.CompanyName != "" {
		return c.CompanyName
	}
	if i, ok := s.investors[u.ID]; ok && i.FullName != "" {
		return i.FullName
	}
	return u.Email
}

func (s *Store) ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []models.ConversationSummary{}
	for convID, members := range s.participants {
		member := false
		other := ""
		for _, id := range members {
			if id == userID {
				member = true
			} else {
				other = id
			}
		}
		if !member {
			continue
		}

		conv := s.conversations[convID]
		sum := models.ConversationSummary{ConversationID: convID, CreatedAt: conv.CreatedAt, OtherUserID: other}
		if u, ok := s.users[other]; ok {
			sum.OtherUserEmail = u.Email
			sum.OtherUserRole = u.Role
			sum.OtherDisplayName = s.displayName(u)
		}

		var last *models.Message
		for i := range s.messages {
			m := &s.messages[i]
			if m.ConversationID != convID {
				continue
			}
			if last == nil || m.SentAt.After(last.SentAt) || (m.SentAt.Equal(last.SentAt) && m.ID > last.ID) {
				last = m
			}
			if m.RecipientID == userID && m.ReadAt == nil {
				sum.UnreadCount++
			}
		}
		if last != nil {
			content := last.Content
			sentAt := last.SentAt
			sum.LastMessage = &content
			sum.LastMessageAt = &sentAt
		}
		summaries = append(summaries, sum)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt == nil:
			return true
		case a.LastMessageAt == nil && b.LastMessageAt != nil:
			return false
		case a.LastMessageAt != nil && !a.LastMessageAt.Equal(*b.LastMessageAt):
			return a.LastMessageAt.After(*b.LastMessageAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ConversationID < b.ConversationID
	})
	return summaries, nil
}

// --- messages ---

func (s *Store) SaveMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	msg.ID = s.nextID
	stored := *msg
	stored.SenderEmail = ""
	s.messages = append(s.messages, stored)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := []models.Message{}
	for _, m := range s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if m.ReadAt != nil {
			readAt := *m.ReadAt
			m.ReadAt = &readAt
		}
		if u, ok := s.users[m.SenderID]; ok {
			m.SenderEmail = u.Email
		}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
	return msgs, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID, recipientID string, ids []uint, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var only map[uint]bool
	if ids != nil {
		only = make(map[uint]bool, len(ids))
		for _, id := range ids {
			only[id] = true
		}
	}

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if only != nil && !only[m.ID] {
			continue
		}
		if m.ConversationID == conversationID && m.RecipientID == recipientID && m.ReadAt == nil {
			readAt := at
			m.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (s *Store) RecentMessages(ctx context.Context, limit int) ([]models.MonitoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].ID > msgs[j].ID
		}
		return msgs[i].SentAt.After(msgs[j].SentAt)
	})
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}

	out := make([]models.MonitoredMessage, 0, len(msgs))
	for _, m := range msgs {
		sender, recipient := s.users[m.SenderID], s.users[m.RecipientID]
		out = append(out, models.MonitoredMessage{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderEmail:    sender.Email,
			SenderRole:     sender.Role,
			RecipientID:    m.RecipientID,
			RecipientEmail: recipient.Email,
			RecipientRole:  recipient.Role,
			Content:        m.Content,
			SentAt:         m.SentAt,
			ReadAt:         m.ReadAt,
		})
	}
	return out, nil
}

// --- profiles ---

func (s *Store) SaveCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	if existing, ok := s.companies[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.companies[p.UserID] = *p
	return nil
}

func (s *Store) SaveInvestorProfile(ctx context.Context, p *models.InvestorProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	if existing, ok := s.investors[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.investors[p.UserID] = *p
	return nil
}

func (s *Store) GetCompanyProfile(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.companies[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetInvestorProfile(ctx context.Context, userID string) (*models.InvestorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.investors[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// --- sessions ---

func (s *Store) SaveSession(ctx context.Context, sid string, identity models.Identity, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sid] = session{identity: identity, expiresAt: s.Now().Add(ttl)}
	return nil
}

func (s *Store) GetSession(ctx context.Context, sid string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return nil, nil
	}
	if !s.Now().Before(sess.expiresAt) {
		delete(s.sessions, sid)
		return nil, nil
	}
	identity := sess.identity
	return &identity, nil
}

func (s *Store) DeleteSession(ctx context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sid)
	return nil
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sid, sess := range s.sessions {
		if sess.identity.ID == userID {
			delete(s.sessions, sid)
		}
	}
	return nil
}
