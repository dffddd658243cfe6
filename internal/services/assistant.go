package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/atlas-exports/exportpilot/internal/analytics"
	"github.com/atlas-exports/exportpilot/internal/config"
	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/nlu"
	"github.com/atlas-exports/exportpilot/internal/personalization"
	"github.com/atlas-exports/exportpilot/internal/responder"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	maxMessageLength   = 2000
	lowConfidenceBar   = 0.5
	maxCachedContexts  = 512
	maxAlternatives    = 3
	recommendationsCap = 5
	maxVisitedPages    = 20
	maxTrackedActions  = 20
	maxTrackedSearches = 10
)

var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrMessageTooLong   = errors.New("message text exceeds 2000 characters")
	ErrMissingUserID    = errors.New("user ID is required")
	ErrInvalidSessionID = errors.New("session ID is malformed")
)

// lastInteraction remembers the most recent (intent, response) pair per
// user so later feedback can be learned against it.
type lastInteraction struct {
	intent   models.Intent
	response models.Response
}

// AssistantService runs the message pipeline: validate, classify, generate,
// personalize, then record telemetry. One instance serves all users.
// Mutations of a user's context are serialized through a per-user lock;
// the async learner only ever sees a snapshot.
type AssistantService struct {
	cfg          config.AssistantConfig
	classifier   *nlu.Classifier
	generator    *responder.Generator
	personalizer *personalization.Engine
	analytics    *analytics.Aggregator
	messages     models.MessageRepository
	contexts     models.UserContextRepository
	logger       *logrus.Logger

	mu           sync.Mutex
	contextCache map[string]*contextEntry
	recent       map[string]lastInteraction
	userLocks    map[string]*sync.Mutex
}

type contextEntry struct {
	ctx      *models.UserContext
	lastUsed time.Time
}

func NewAssistantService(
	cfg config.AssistantConfig,
	classifier *nlu.Classifier,
	generator *responder.Generator,
	personalizer *personalization.Engine,
	aggregator *analytics.Aggregator,
	messages models.MessageRepository,
	contexts models.UserContextRepository,
	logger *logrus.Logger,
) *AssistantService {
	return &AssistantService{
		cfg:          cfg,
		classifier:   classifier,
		generator:    generator,
		personalizer: personalizer,
		analytics:    aggregator,
		messages:     messages,
		contexts:     contexts,
		logger:       logger,
		contextCache: make(map[string]*contextEntry),
		recent:       make(map[string]lastInteraction),
		userLocks:    make(map[string]*sync.Mutex),
	}
}

func (s *AssistantService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// HandleMessage processes one user message end to end and returns the
// assistant reply.
func (s *AssistantService) HandleMessage(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	start := time.Now()

	text := strings.TrimSpace(req.Message)
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = utils.NewConversationID()
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	uctx := s.loadContext(req.UserID)
	now := time.Now()
	uctx.Session.MessageCount++
	uctx.Session.LastActiveAt = now
	if uctx.Session.StartedAt.IsZero() {
		uctx.Session.StartedAt = now
		uctx.Session.SessionID = utils.GenerateSessionID(req.UserID)
	}

	intent := s.classifier.Classify(text, uctx)

	userMessage := models.Message{
		ID:             utils.NewMessageID(),
		ConversationID: conversationID,
		Author:         models.AuthorUser,
		Text:           text,
		Timestamp:      now,
		Intent:         &intent,
	}
	s.appendHistory(uctx, userMessage)
	s.persistMessage(req.UserID, userMessage)

	response := s.generator.Generate(ctx, intent, uctx, text)
	response = s.personalizer.Adapt(response, req.UserID, uctx)

	assistantMessage := models.Message{
		ID:             utils.NewMessageID(),
		ConversationID: conversationID,
		Author:         models.AuthorAssistant,
		Text:           response.Text,
		Timestamp:      time.Now(),
	}
	s.appendHistory(uctx, assistantMessage)
	s.persistMessage(req.UserID, assistantMessage)

	s.rememberInteraction(req.UserID, intent, response)
	s.persistContext(uctx)

	// Fire-and-forget profile update against a snapshot; the live context
	// keeps mutating under the user lock. Feedback-driven learning happens
	// separately in HandleFeedback.
	learnCtx := cloneContext(uctx)
	go s.personalizer.Learn(req.UserID, intent, response, nil, learnCtx)

	s.recordEvent(models.AnalyticsEvent{
		UserID:         req.UserID,
		ConversationID: conversationID,
		SessionID:      uctx.Session.SessionID,
		Kind:           models.EventMessageSent,
		Payload: map[string]interface{}{
			"intent":     string(intent.Name),
			"confidence": intent.Confidence,
		},
	})
	s.recordEvent(models.AnalyticsEvent{
		UserID:         req.UserID,
		ConversationID: conversationID,
		SessionID:      uctx.Session.SessionID,
		Kind:           models.EventResponseGenerated,
		Payload: map[string]interface{}{
			"quick_actions": len(response.QuickActions),
			"has_visual":    response.Visualization != nil,
		},
	})

	var alternatives []models.Intent
	if intent.Confidence < lowConfidenceBar {
		alternatives = s.classifier.SuggestAlternatives(text, uctx)
		if len(alternatives) > maxAlternatives {
			alternatives = alternatives[:maxAlternatives]
		}
	}

	return &models.ChatResponse{
		ConversationID: conversationID,
		Intent:         intent,
		Response:       response,
		Alternatives:   alternatives,
		PromptFeedback: s.analytics.ShouldPromptFeedback(req.UserID),
		ResponseTime:   int(time.Since(start).Milliseconds()),
	}, nil
}

// HandleFeedback records a rating and re-learns the user's last interaction
// with the feedback attached.
func (s *AssistantService) HandleFeedback(req models.FeedbackRequest) error {
	if req.UserID == "" {
		return ErrMissingUserID
	}
	if req.Helpful == nil {
		return errors.New("helpful flag is required")
	}

	feedback := &models.Feedback{Helpful: *req.Helpful, Comment: req.Comment}

	s.recordEvent(models.AnalyticsEvent{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Kind:           models.EventFeedbackGiven,
		Payload: map[string]interface{}{
			"helpful": feedback.Helpful,
			"comment": feedback.Comment,
		},
	})

	s.mu.Lock()
	last, ok := s.recent[req.UserID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	learnCtx := cloneContext(s.loadContext(req.UserID))
	lock.Unlock()

	go s.personalizer.Learn(req.UserID, last.intent, last.response, feedback, learnCtx)
	return nil
}

// RecordEvent ingests a client-side telemetry event and folds navigation
// and action events into the user's session state so session-level learning
// sees real pages and actions.
func (s *AssistantService) RecordEvent(req models.EventRequest) error {
	if req.SessionID != "" && !utils.ValidateSessionID(req.SessionID) {
		return ErrInvalidSessionID
	}

	if err := s.analytics.Record(models.AnalyticsEvent{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
		Kind:           req.Kind,
		Payload:        req.Payload,
	}); err != nil {
		return err
	}

	s.applySessionEvent(req)
	return nil
}

// applySessionEvent updates the session portion of the user context from a
// telemetry event. Only navigation and action events carry session signal.
func (s *AssistantService) applySessionEvent(req models.EventRequest) {
	switch req.Kind {
	case models.EventNavigation, models.EventActionClicked:
	default:
		return
	}

	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	uctx := s.loadContext(req.UserID)
	now := time.Now()
	uctx.Session.LastActiveAt = now
	if uctx.Session.StartedAt.IsZero() {
		uctx.Session.StartedAt = now
		uctx.Session.SessionID = utils.GenerateSessionID(req.UserID)
	}

	switch req.Kind {
	case models.EventNavigation:
		if page, ok := req.Payload["page"].(string); ok && page != "" {
			uctx.Session.CurrentPage = page
			uctx.Session.VisitedPages = appendBounded(uctx.Session.VisitedPages, page, maxVisitedPages)
		}
	case models.EventActionClicked:
		if action, ok := req.Payload["action"].(string); ok && action != "" {
			uctx.Session.ActionsIssued = appendBounded(uctx.Session.ActionsIssued, action, maxTrackedActions)
		}
		if query, ok := req.Payload["query"].(string); ok && query != "" {
			uctx.Session.RecentSearches = appendBounded(uctx.Session.RecentSearches, query, maxTrackedSearches)
		}
	}

	s.persistContext(uctx)
}

// Recommendations returns the ranked personalization suggestions for a
// user.
func (s *AssistantService) Recommendations(userID string, limit int) ([]models.Recommendation, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if limit <= 0 || limit > recommendationsCap {
		limit = recommendationsCap
	}

	lock := s.userLock(userID)
	lock.Lock()
	uctx := cloneContext(s.loadContext(userID))
	lock.Unlock()

	return s.personalizer.Recommend(userID, uctx, limit), nil
}

// ResetPersonalization discards everything learned about a user.
func (s *AssistantService) ResetPersonalization(userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.contextCache, userID)
	delete(s.recent, userID)
	s.mu.Unlock()

	if s.contexts != nil {
		if err := s.contexts.Delete(userID); err != nil {
			return err
		}
	}
	return s.personalizer.Reset(userID)
}

// cloneContext returns a deep copy safe to read outside the user lock.
func cloneContext(uctx *models.UserContext) *models.UserContext {
	clone := *uctx
	clone.History = append([]models.Message(nil), uctx.History...)
	clone.Business.Products = append([]string(nil), uctx.Business.Products...)
	clone.Business.TargetMarkets = append([]string(nil), uctx.Business.TargetMarkets...)
	clone.Session.VisitedPages = append([]string(nil), uctx.Session.VisitedPages...)
	clone.Session.ActionsIssued = append([]string(nil), uctx.Session.ActionsIssued...)
	clone.Session.RecentSearches = append([]string(nil), uctx.Session.RecentSearches...)
	return &clone
}

// appendBounded appends value and drops the oldest entries past limit.
func appendBounded(list []string, value string, limit int) []string {
	list = append(list, value)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}

// appendHistory keeps the per-user history bounded to the configured limit.
func (s *AssistantService) appendHistory(uctx *models.UserContext, msg models.Message) {
	uctx.History = append(uctx.History, msg)
	if limit := s.cfg.HistoryLimit; limit > 0 && len(uctx.History) > limit {
		uctx.History = uctx.History[len(uctx.History)-limit:]
	}
}

func (s *AssistantService) rememberInteraction(userID string, intent models.Intent, response models.Response) {
	s.mu.Lock()
	s.recent[userID] = lastInteraction{intent: intent, response: response}
	s.mu.Unlock()
}

// loadContext returns the user's working context, checking the in-memory
// cache, then storage, then creating a fresh one. The cache is bounded;
// the least recently used entry is evicted on overflow.
func (s *AssistantService) loadContext(userID string) *models.UserContext {
	s.mu.Lock()
	if entry, ok := s.contextCache[userID]; ok {
		entry.lastUsed = time.Now()
		s.mu.Unlock()
		return entry.ctx
	}
	s.mu.Unlock()

	uctx := s.loadStoredContext(userID)
	if uctx == nil {
		uctx = &models.UserContext{
			UserID: userID,
			Business: models.BusinessProfile{
				Experience: models.TierBeginner,
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contextCache) >= maxCachedContexts {
		s.evictOldestLocked()
	}
	s.contextCache[userID] = &contextEntry{ctx: uctx, lastUsed: time.Now()}
	return uctx
}

func (s *AssistantService) loadStoredContext(userID string) *models.UserContext {
	if s.contexts == nil {
		return nil
	}
	record, err := s.contexts.GetByUserID(userID)
	if err != nil || record == nil {
		return nil
	}
	var uctx models.UserContext
	if err := json.Unmarshal([]byte(record.Data), &uctx); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Error("Failed to decode stored user context")
		return nil
	}
	return &uctx
}

func (s *AssistantService) evictOldestLocked() {
	oldestKey := ""
	var oldest time.Time
	for key, entry := range s.contextCache {
		if oldestKey == "" || entry.lastUsed.Before(oldest) {
			oldestKey = key
			oldest = entry.lastUsed
		}
	}
	if oldestKey != "" {
		delete(s.contextCache, oldestKey)
	}
}

func (s *AssistantService) persistContext(uctx *models.UserContext) {
	if s.contexts == nil {
		return
	}
	data, err := json.Marshal(uctx)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", uctx.UserID).
			Error("Failed to encode user context")
		return
	}
	record := &models.UserContextRecord{UserID: uctx.UserID, Data: string(data)}
	if err := s.contexts.Save(record); err != nil {
		s.logger.WithError(err).WithField("user_id", uctx.UserID).
			Error("Failed to persist user context")
	}
}

func (s *AssistantService) persistMessage(userID string, msg models.Message) {
	if s.messages == nil {
		return
	}
	record := &models.ConversationMessage{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Author:         string(msg.Author),
		Text:           msg.Text,
		SentAt:         msg.Timestamp,
	}
	if msg.Intent != nil {
		record.IntentName = string(msg.Intent.Name)
		record.Confidence = msg.Intent.Confidence
	}
	if err := s.messages.Append(record); err != nil {
		s.logger.WithError(err).WithField("message_id", msg.ID).
			Error("Failed to persist conversation message")
	}
}

func (s *AssistantService) recordEvent(event models.AnalyticsEvent) {
	if err := s.analytics.Record(event); err != nil {
		s.logger.WithError(err).WithField("kind", string(event.Kind)).
			Warn("Failed to record analytics event")
	}
}
