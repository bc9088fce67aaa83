package storage

import (
	"collective/backend/internal/account"
	"collective/backend/internal/messaging"
	"collective/backend/internal/models"
	"collective/backend/internal/profile"
	"collective/backend/internal/session"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is everything the services persist. Service implements it on PostgreSQL and
// Redis, memory.Store in process.
type Storage interface {
	messaging.Store
	account.Store
	profile.Store
	session.Store
}

var _ Storage = (*Service)(nil)

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates every table.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.CompanyProfile{},
		&models.InvestorProfile{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	)
}

// isUUID guards uuid columns against arbitrary path input, which PostgreSQL would reject
// with a syntax error instead of simply matching nothing.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// --- users ---

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	err := s.DB.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return account.ErrEmailTaken
	}
	return err
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at desc, id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Service) UpdateUserRole(ctx context.Context, id string, role models.Role) error {
	if !isUUID(id) {
		return account.ErrUserNotFound
	}
	result := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"role":       role,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return account.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user's conversations first; the remaining rows (participants,
// messages, profiles) go with the ON DELETE CASCADE foreign keys.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if !isUUID(id) {
		return account.ErrUserNotFound
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		joined := tx.Model(&models.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", id)
		if err := tx.Where("id IN (?)", joined).Delete(&models.Conversation{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return account.ErrUserNotFound
		}
		return nil
	})
}

func (s *Service) UserExists(ctx context.Context, userID string) (bool, error) {
	if !isUUID(userID) {
		return false, nil
	}
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- conversations ---

func (s *Service) conversationByPairKey(ctx context.Context, pairKey string) (string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Conversation{}).
		Where("pair_key = ?", pairKey).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

func (s *Service) FindConversationBetween(ctx context.Context, userA, userB string) (string, error) {
	return s.conversationByPairKey(ctx, models.PairKey(userA, userB))
}

// CreateConversation inserts the conversation and both participant rows in one transaction.
// Losing the race on the pair_key unique index returns the winner's ID.
func (s *Service) CreateConversation(ctx context.Context, conv *models.Conversation, participants []models.ConversationParticipant) (string, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conv).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&participants).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		id, findErr := s.conversationByPairKey(ctx, conv.PairKey)
		if findErr != nil {
			return "", findErr
		}
		if id == "" {
			return "", err
		}
		return id, nil
	}
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *Service) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if !isUUID(conversationID) || !isUUID(userID) {
		return false, nil
	}
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) GetCounterpartID(ctx context.Context, conversationID, userID string) (string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, userID).
		Limit(1).
		Pluck("user_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

const conversationSummariesSQL = `
	SELECT
		c.id AS conversation_id,
		c.created_at,
		COALESCE(u.id::text, '') AS other_user_id,
		COALESCE(u.email, '') AS other_user_email,
		COALESCE(u.role, '') AS other_user_role,
		COALESCE(cp.company_name, ip.full_name, u.email, '') AS other_display_name,
		lm.content AS last_message,
		lm.sent_at AS last_message_at,
		(
			SELECT COUNT(*) FROM messages um
			WHERE um.conversation_id = c.id AND um.recipient_id = @user AND um.read_at IS NULL
		) AS unread_count
	FROM conversation_participants me
	JOIN conversations c ON c.id = me.conversation_id
	LEFT JOIN conversation_participants other ON other.conversation_id = c.id AND other.user_id <> me.user_id
	LEFT JOIN users u ON u.id = other.user_id
	LEFT JOIN company_profiles cp ON cp.user_id = u.id
	LEFT JOIN investor_profiles ip ON ip.user_id = u.id
	LEFT JOIN LATERAL (
		SELECT m.content, m.sent_at FROM messages m
		WHERE m.conversation_id = c.id
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT 1
	) lm ON true
	WHERE me.user_id = @user
	ORDER BY lm.sent_at DESC NULLS LAST, c.created_at DESC, c.id`

// ListConversationSummaries builds the inbox of userID in one query. Conversations without
// messages sort after all others.
func (s *Service) ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := s.DB.WithContext(ctx).
		Raw(conversationSummariesSQL, map[string]interface{}{"user": userID}).
		Scan(&summaries).Error
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("failed to list conversations")
		return nil, err
	}
	return summaries, nil
}

// --- messages ---

func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		logrus.WithError(err).WithField("conversation_id", msg.ConversationID).Error("failed to save message")
		return err
	}
	return nil
}

func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Select("messages.*, users.email AS sender_email").
		Joins("LEFT JOIN users ON users.id = messages.sender_id").
		Where("messages.conversation_id = ?", conversationID).
		Order("messages.sent_at ASC, messages.id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Service) MarkRead(ctx context.Context, conversationID, recipientID string, ids []uint, at time.Time) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND recipient_id = ? AND read_at IS NULL", conversationID, recipientID)
	if ids != nil {
		if len(ids) == 0 {
			return 0, nil
		}
		q = q.Where("id IN ?", ids)
	}
	result := q.Update("read_at", at)
	return result.RowsAffected, result.Error
}

const recentMessagesSQL = `
	SELECT
		m.id, m.conversation_id, m.content, m.sent_at, m.read_at,
		m.sender_id, s.email AS sender_email, s.role AS sender_role,
		m.recipient_id, r.email AS recipient_email, r.role AS recipient_role
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.recipient_id
	ORDER BY m.sent_at DESC, m.id DESC
	LIMIT ?`

func (s *Service) RecentMessages(ctx context.Context, limit int) ([]models.MonitoredMessage, error) {
	var msgs []models.MonitoredMessage
	if err := s.DB.WithContext(ctx).Raw(recentMessagesSQL, limit).Scan(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// --- profiles ---

var (
	companyProfileColumns = []string{
		"company_name", "industry", "location", "founding_year", "team_size", "website",
		"description", "funding_type", "funding_amount_sought", "equity", "monthly_revenue",
		"pitch_deck", "profile_complete", "updated_at",
	}
	investorProfileColumns = []string{
		"full_name", "investor_type", "company_fund_name", "location_city", "location_country",
		"investment_stages", "typical_investment_size", "interested_industries",
		"investment_criteria", "linkedin_profile", "website", "profile_complete", "updated_at",
	}
)

func (s *Service) SaveCompanyProfile(ctx context.Context, p *models.CompanyProfile) error {
	return s.DB.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(companyProfileColumns),
		}).
		Create(p).Error
}

func (s *Service) SaveInvestorProfile(ctx context.Context, p *models.InvestorProfile) error {
	return s.DB.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(investorProfileColumns),
		}).
		Create(p).Error
}

func (s *Service) GetCompanyProfile(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	if !isUUID(userID) {
		return nil, nil
	}
	var p models.CompanyProfile
	err := s.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) GetInvestorProfile(ctx context.Context, userID string) (*models.InvestorProfile, error) {
	if !isUUID(userID) {
		return nil, nil
	}
	var p models.InvestorProfile
	err := s.DB.WithContext(ctx).First(&p, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
