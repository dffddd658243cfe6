package models

// GORM models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationMessage persists one entry of a conversation's ordered log.
type ConversationMessage struct {
	BaseModel
	MessageID      string    `json:"message_id" gorm:"unique;not null"`
	ConversationID string    `json:"conversation_id" gorm:"index;not null"`
	UserID         string    `json:"user_id" gorm:"index"`
	Author         string    `json:"author" gorm:"not null;check:author IN ('user','assistant')"`
	Text           string    `json:"text" gorm:"not null"`
	IntentName     string    `json:"intent_name"`
	Confidence     float64   `json:"confidence"`
	SentAt         time.Time `json:"sent_at" gorm:"default:NOW()"`
}

// UserContextRecord stores the serialized per-user working state.
type UserContextRecord struct {
	BaseModel
	UserID string `json:"user_id" gorm:"unique;not null"`
	Data   string `json:"data" gorm:"type:jsonb;not null"`
}

// BehaviorPatternRecord stores the serialized learning profile for a user.
type BehaviorPatternRecord struct {
	BaseModel
	UserID       string    `json:"user_id" gorm:"unique;not null"`
	Data         string    `json:"data" gorm:"type:jsonb;not null"`
	Interactions int       `json:"interactions" gorm:"default:0"`
	LastLearned  time.Time `json:"last_learned" gorm:"default:NOW()"`
}

// AnalyticsEventRecord persists one telemetry event.
type AnalyticsEventRecord struct {
	BaseModel
	EventID        string    `json:"event_id" gorm:"unique;not null"`
	UserID         string    `json:"user_id" gorm:"index;not null"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Kind           string    `json:"kind" gorm:"index;not null"`
	Payload        string    `json:"payload" gorm:"type:jsonb"`
	OccurredAt     time.Time `json:"occurred_at" gorm:"index;default:NOW()"`
}

// MarketGuide caches scraped country commercial-guide content used to back
// market research answers.
type MarketGuide struct {
	BaseModel
	CountryCode string     `json:"country_code" gorm:"index;not null"`
	CountryName string     `json:"country_name" gorm:"not null"`
	Title       string     `json:"title" gorm:"not null"`
	Content     string     `json:"content" gorm:"not null"`
	SourceURL   string     `json:"source_url"`
	ContentHash string     `json:"content_hash"`
	LastCrawled *time.Time `json:"last_crawled"`
}

// Repository interfaces for the persistence collaborator

type MessageRepository interface {
	Append(msg *ConversationMessage) error
	GetByConversation(conversationID string, limit int) ([]ConversationMessage, error)
	CountByUser(userID string) (int64, error)
}

type UserContextRepository interface {
	Save(record *UserContextRecord) error
	GetByUserID(userID string) (*UserContextRecord, error)
	Delete(userID string) error
}

type BehaviorPatternRepository interface {
	Save(record *BehaviorPatternRecord) error
	GetByUserID(userID string) (*BehaviorPatternRecord, error)
	Delete(userID string) error
}

type AnalyticsEventRepository interface {
	Create(event *AnalyticsEventRecord) error
	GetByUser(userID string, from, to time.Time) ([]AnalyticsEventRecord, error)
	GetAll(from, to time.Time) ([]AnalyticsEventRecord, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
	DeleteOldestForUser(userID string, keep int) error
}

type MarketGuideRepository interface {
	Upsert(guide *MarketGuide) error
	GetByCountry(countryCode string) ([]MarketGuide, error)
}

// TableName methods for custom table names
func (ConversationMessage) TableName() string   { return "conversation_messages" }
func (UserContextRecord) TableName() string     { return "user_contexts" }
func (BehaviorPatternRecord) TableName() string { return "behavior_patterns" }
func (AnalyticsEventRecord) TableName() string  { return "analytics_events" }
func (MarketGuide) TableName() string           { return "market_guides" }

// Model validation methods
func (m *ConversationMessage) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message ID is required")
	}
	if m.ConversationID == "" {
		return fmt.Errorf("conversation ID is required")
	}
	if m.Author != string(AuthorUser) && m.Author != string(AuthorAssistant) {
		return fmt.Errorf("invalid author: %s", m.Author)
	}
	if m.Text == "" {
		return fmt.Errorf("message text is required")
	}
	return nil
}

func (e *AnalyticsEventRecord) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event ID is required")
	}
	if e.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	validKinds := map[string]bool{
		string(EventMessageSent):       true,
		string(EventResponseGenerated): true,
		string(EventActionClicked):     true,
		string(EventNavigation):        true,
		string(EventFeedbackGiven):     true,
		string(EventTaskCompleted):     true,
	}
	if !validKinds[e.Kind] {
		return fmt.Errorf("invalid event kind: %s", e.Kind)
	}
	return nil
}

func (g *MarketGuide) Validate() error {
	if g.CountryCode == "" {
		return fmt.Errorf("country code is required")
	}
	if g.Content == "" {
		return fmt.Errorf("guide content is required")
	}
	return nil
}

// GORM hooks
func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	return m.Validate()
}

func (e *AnalyticsEventRecord) BeforeCreate(tx *gorm.DB) error {
	return e.Validate()
}

func (g *MarketGuide) BeforeCreate(tx *gorm.DB) error {
	return g.Validate()
}
