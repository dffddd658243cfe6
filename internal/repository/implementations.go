package repository

import (
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RepositoryManager bundles all repositories behind one constructor
type RepositoryManager struct {
	Messages        models.MessageRepository
	UserContexts    models.UserContextRepository
	BehaviorPattern models.BehaviorPatternRepository
	AnalyticsEvents models.AnalyticsEventRepository
	MarketGuides    models.MarketGuideRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Messages:        NewMessageRepository(db),
		UserContexts:    NewUserContextRepository(db),
		BehaviorPattern: NewBehaviorPatternRepository(db),
		AnalyticsEvents: NewAnalyticsEventRepository(db),
		MarketGuides:    NewMarketGuideRepository(db),
	}
}

// MessageRepositoryImpl implements MessageRepository
type MessageRepositoryImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) models.MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

func (r *MessageRepositoryImpl) Append(msg *models.ConversationMessage) error {
	return r.db.Create(msg).Error
}

func (r *MessageRepositoryImpl) GetByConversation(conversationID string, limit int) ([]models.ConversationMessage, error) {
	var messages []models.ConversationMessage
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Restore arrival order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) CountByUser(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ConversationMessage{}).
		Where("user_id = ? AND author = ?", userID, string(models.AuthorUser)).
		Count(&count).Error
	return count, err
}

// UserContextRepositoryImpl implements UserContextRepository
type UserContextRepositoryImpl struct {
	db *gorm.DB
}

func NewUserContextRepository(db *gorm.DB) models.UserContextRepository {
	return &UserContextRepositoryImpl{db: db}
}

func (r *UserContextRepositoryImpl) Save(record *models.UserContextRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(record).Error
}

func (r *UserContextRepositoryImpl) GetByUserID(userID string) (*models.UserContextRecord, error) {
	var record models.UserContextRecord
	err := r.db.Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *UserContextRepositoryImpl) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.UserContextRecord{}).Error
}

// BehaviorPatternRepositoryImpl implements BehaviorPatternRepository
type BehaviorPatternRepositoryImpl struct {
	db *gorm.DB
}

func NewBehaviorPatternRepository(db *gorm.DB) models.BehaviorPatternRepository {
	return &BehaviorPatternRepositoryImpl{db: db}
}

func (r *BehaviorPatternRepositoryImpl) Save(record *models.BehaviorPatternRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "interactions", "last_learned", "updated_at"}),
	}).Create(record).Error
}

func (r *BehaviorPatternRepositoryImpl) GetByUserID(userID string) (*models.BehaviorPatternRecord, error) {
	var record models.BehaviorPatternRecord
	err := r.db.Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *BehaviorPatternRepositoryImpl) Delete(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.BehaviorPatternRecord{}).Error
}

// AnalyticsEventRepositoryImpl implements AnalyticsEventRepository
type AnalyticsEventRepositoryImpl struct {
	db *gorm.DB
}

func NewAnalyticsEventRepository(db *gorm.DB) models.AnalyticsEventRepository {
	return &AnalyticsEventRepositoryImpl{db: db}
}

func (r *AnalyticsEventRepositoryImpl) Create(event *models.AnalyticsEventRecord) error {
	return r.db.Create(event).Error
}

func (r *AnalyticsEventRepositoryImpl) GetByUser(userID string, from, to time.Time) ([]models.AnalyticsEventRecord, error) {
	var events []models.AnalyticsEventRecord
	err := r.db.Where("user_id = ? AND occurred_at BETWEEN ? AND ?", userID, from, to).
		Order("occurred_at").
		Find(&events).Error
	return events, err
}

func (r *AnalyticsEventRepositoryImpl) GetAll(from, to time.Time) ([]models.AnalyticsEventRecord, error) {
	var events []models.AnalyticsEventRecord
	err := r.db.Where("occurred_at BETWEEN ? AND ?", from, to).
		Order("occurred_at").
		Find(&events).Error
	return events, err
}

func (r *AnalyticsEventRepositoryImpl) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("occurred_at < ?", cutoff).Delete(&models.AnalyticsEventRecord{})
	return result.RowsAffected, result.Error
}

func (r *AnalyticsEventRepositoryImpl) DeleteOldestForUser(userID string, keep int) error {
	// Keep the newest `keep` events, drop the rest oldest-first
	subQuery := r.db.Model(&models.AnalyticsEventRecord{}).
		Select("id").
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		Limit(keep)

	return r.db.Where("user_id = ? AND id NOT IN (?)", userID, subQuery).
		Delete(&models.AnalyticsEventRecord{}).Error
}

// MarketGuideRepositoryImpl implements MarketGuideRepository
type MarketGuideRepositoryImpl struct {
	db *gorm.DB
}

func NewMarketGuideRepository(db *gorm.DB) models.MarketGuideRepository {
	return &MarketGuideRepositoryImpl{db: db}
}

func (r *MarketGuideRepositoryImpl) Upsert(guide *models.MarketGuide) error {
	var existing models.MarketGuide
	err := r.db.Where("country_code = ? AND title = ?", guide.CountryCode, guide.Title).
		First(&existing).Error
	if err == nil {
		existing.Content = guide.Content
		existing.ContentHash = guide.ContentHash
		existing.SourceURL = guide.SourceURL
		existing.LastCrawled = guide.LastCrawled
		return r.db.Save(&existing).Error
	}
	return r.db.Create(guide).Error
}

func (r *MarketGuideRepositoryImpl) GetByCountry(countryCode string) ([]models.MarketGuide, error) {
	var guides []models.MarketGuide
	err := r.db.Where("country_code = ?", countryCode).
		Order("last_crawled DESC").
		Find(&guides).Error
	return guides, err
}
