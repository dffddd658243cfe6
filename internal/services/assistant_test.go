package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atlas-exports/exportpilot/internal/analytics"
	"github.com/atlas-exports/exportpilot/internal/config"
	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/nlu"
	"github.com/atlas-exports/exportpilot/internal/personalization"
	"github.com/atlas-exports/exportpilot/internal/responder"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	appended []models.ConversationMessage
}

func (r *fakeMessageRepo) Append(msg *models.ConversationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended = append(r.appended, *msg)
	return nil
}

func (r *fakeMessageRepo) GetByConversation(conversationID string, limit int) ([]models.ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ConversationMessage
	for _, msg := range r.appended {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) CountByUser(userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, msg := range r.appended {
		if msg.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakeContextRepo struct {
	mu      sync.Mutex
	records map[string]*models.UserContextRecord
}

func newFakeContextRepo() *fakeContextRepo {
	return &fakeContextRepo{records: map[string]*models.UserContextRecord{}}
}

func (r *fakeContextRepo) Save(record *models.UserContextRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[record.UserID] = &clone
	return nil
}

func (r *fakeContextRepo) GetByUserID(userID string) (*models.UserContextRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *fakeContextRepo) Delete(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, userID)
	return nil
}

type fakePatternRepo struct {
	mu      sync.Mutex
	records map[string]*models.BehaviorPatternRecord
}

func newFakePatternRepo() *fakePatternRepo {
	return &fakePatternRepo{records: map[string]*models.BehaviorPatternRecord{}}
}

func (r *fakePatternRepo) Save(record *models.BehaviorPatternRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[record.UserID] = &clone
	return nil
}

func (r *fakePatternRepo) GetByUserID(userID string) (*models.BehaviorPatternRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (r *fakePatternRepo) Delete(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, userID)
	return nil
}

type serviceFixture struct {
	service      *AssistantService
	messages     *fakeMessageRepo
	contexts     *fakeContextRepo
	personalizer *personalization.Engine
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := config.DefaultAssistantConfig()
	cfg.TemplateSeed = 42

	classifier := nlu.NewClassifier(nlu.NewExtractor(logger), cfg.ConfidenceFloor, logger)
	generator := responder.NewGenerator(nil, cfg.TemplateSeed, logger)
	personalizer := personalization.NewEngine(newFakePatternRepo(), cfg.TemplateSeed, logger)
	aggregator := analytics.NewAggregator(nil, cfg.FeedbackEvery, cfg.RetentionDays, cfg.MaxEventsPerUser, logger)

	messages := &fakeMessageRepo{}
	contexts := newFakeContextRepo()

	service := NewAssistantService(cfg, classifier, generator, personalizer, aggregator, messages, contexts, logger)
	return &serviceFixture{
		service:      service,
		messages:     messages,
		contexts:     contexts,
		personalizer: personalizer,
	}
}

func TestHandleMessage_FullPipeline(t *testing.T) {
	fx := newServiceFixture(t)

	resp, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID:  "u1",
		Message: "find buyers for textiles in Germany",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, models.IntentFindBuyers, resp.Intent.Name)
	assert.NotEmpty(t, resp.Response.Text)
	assert.GreaterOrEqual(t, resp.ResponseTime, 0)

	// Both sides of the exchange are persisted.
	fx.messages.mu.Lock()
	defer fx.messages.mu.Unlock()
	require.Len(t, fx.messages.appended, 2)
	assert.Equal(t, string(models.AuthorUser), fx.messages.appended[0].Author)
	assert.Equal(t, string(models.AuthorAssistant), fx.messages.appended[1].Author)
}

func TestHandleMessage_InputValidation(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: strings.Repeat("a", maxMessageLength+1),
	})
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = fx.service.HandleMessage(context.Background(), models.ChatRequest{
		Message: "hello",
	})
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestHandleMessage_ConversationIDReused(t *testing.T) {
	fx := newServiceFixture(t)

	first, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "find buyers",
	})
	require.NoError(t, err)

	second, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", ConversationID: first.ConversationID, Message: "what about Germany",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
}

func TestHandleMessage_FeedbackPromptCadence(t *testing.T) {
	fx := newServiceFixture(t)

	prompts := []bool{}
	for i := 0; i < 6; i++ {
		resp, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
			UserID: "u1", Message: "find buyers",
		})
		require.NoError(t, err)
		prompts = append(prompts, resp.PromptFeedback)
	}

	assert.Equal(t, []bool{false, false, true, false, false, true}, prompts)
}

func TestHandleMessage_UnknownStillAnswers(t *testing.T) {
	fx := newServiceFixture(t)

	resp, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "qwerty asdfgh",
	})
	require.NoError(t, err)

	assert.Equal(t, models.IntentUnknown, resp.Intent.Name)
	assert.NotEmpty(t, resp.Response.Text)
	assert.NotEmpty(t, resp.Response.QuickActions)
}

func TestHandleMessage_HistoryBounded(t *testing.T) {
	fx := newServiceFixture(t)
	fx.service.cfg.HistoryLimit = 4

	for i := 0; i < 5; i++ {
		_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
			UserID: "u1", Message: "find buyers",
		})
		require.NoError(t, err)
	}

	uctx := fx.service.loadContext("u1")
	assert.Len(t, uctx.History, 4)
}

func TestHandleMessage_ConcurrentSameUser(t *testing.T) {
	fx := newServiceFixture(t)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
				UserID: "u1", Message: "find buyers",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	uctx := fx.service.loadContext("u1")
	assert.Equal(t, callers, uctx.Session.MessageCount)
	assert.Len(t, uctx.History, 2*callers)
}

func TestRecordEvent_UpdatesSessionState(t *testing.T) {
	fx := newServiceFixture(t)

	pages := []string{"dashboard", "buyers", "markets"}
	for _, page := range pages {
		require.NoError(t, fx.service.RecordEvent(models.EventRequest{
			UserID: "u1", Kind: models.EventNavigation,
			Payload: map[string]interface{}{"page": page},
		}))
	}
	require.NoError(t, fx.service.RecordEvent(models.EventRequest{
		UserID: "u1", Kind: models.EventActionClicked,
		Payload: map[string]interface{}{"action": "search", "query": "coffee importers"},
	}))

	uctx := fx.service.loadContext("u1")
	assert.Equal(t, "markets", uctx.Session.CurrentPage)
	assert.Equal(t, pages, uctx.Session.VisitedPages)
	assert.Equal(t, []string{"search"}, uctx.Session.ActionsIssued)
	assert.Equal(t, []string{"coffee importers"}, uctx.Session.RecentSearches)

	// Message events carry no session signal.
	require.NoError(t, fx.service.RecordEvent(models.EventRequest{
		UserID: "u1", Kind: models.EventMessageSent,
		Payload: map[string]interface{}{"page": "settings"},
	}))
	assert.Equal(t, "markets", fx.service.loadContext("u1").Session.CurrentPage)
}

func TestRecordEvent_NavigationFlowsFeedLearning(t *testing.T) {
	fx := newServiceFixture(t)

	for _, page := range []string{"dashboard", "buyers", "markets"} {
		require.NoError(t, fx.service.RecordEvent(models.EventRequest{
			UserID: "u1", Kind: models.EventNavigation,
			Payload: map[string]interface{}{"page": page},
		}))
	}

	_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "find buyers",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		pattern := fx.personalizer.GetPattern("u1")
		if pattern == nil {
			return false
		}
		return pattern.Sessions.CommonFlows["dashboard>buyers>markets"] == 1 &&
			len(pattern.Sessions.PreferredStartPages) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordEvent_RejectsMalformedSessionID(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.service.RecordEvent(models.EventRequest{
		UserID: "u1", SessionID: "not-a-session-id", Kind: models.EventNavigation,
		Payload: map[string]interface{}{"page": "dashboard"},
	})
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	require.NoError(t, fx.service.RecordEvent(models.EventRequest{
		UserID: "u1", SessionID: utils.GenerateSessionID("u1"), Kind: models.EventNavigation,
		Payload: map[string]interface{}{"page": "dashboard"},
	}))
}

func TestHandleFeedback_LearnsLastInteraction(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "what customs documentation do I need",
	})
	require.NoError(t, err)

	helpful := true
	require.NoError(t, fx.service.HandleFeedback(models.FeedbackRequest{
		UserID: "u1", Helpful: &helpful,
	}))

	assert.Eventually(t, func() bool {
		pattern := fx.personalizer.GetPattern("u1")
		if pattern == nil {
			return false
		}
		for _, stat := range pattern.TopIntents {
			if stat.Intent == models.IntentComplianceHelp && stat.Frequency >= 2 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleFeedback_Validation(t *testing.T) {
	fx := newServiceFixture(t)

	helpful := true
	assert.ErrorIs(t, fx.service.HandleFeedback(models.FeedbackRequest{Helpful: &helpful}), ErrMissingUserID)
	assert.Error(t, fx.service.HandleFeedback(models.FeedbackRequest{UserID: "u1"}))
}

func TestRecommendations(t *testing.T) {
	fx := newServiceFixture(t)

	recommendations, err := fx.service.Recommendations("u1", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, recommendations)
	assert.LessOrEqual(t, len(recommendations), 3)

	_, err = fx.service.Recommendations("", 3)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestResetPersonalization(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "find buyers",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return fx.personalizer.GetPattern("u1") != nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, fx.service.ResetPersonalization("u1"))
	assert.Nil(t, fx.personalizer.GetPattern("u1"))

	stored, err := fx.contexts.GetByUserID("u1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestContextPersistedAcrossServices(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.HandleMessage(context.Background(), models.ChatRequest{
		UserID: "u1", Message: "find buyers",
	})
	require.NoError(t, err)

	// A second service instance sharing the store sees the same context.
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := config.DefaultAssistantConfig()
	fresh := NewAssistantService(cfg,
		nlu.NewClassifier(nlu.NewExtractor(logger), cfg.ConfidenceFloor, logger),
		responder.NewGenerator(nil, 42, logger),
		personalization.NewEngine(newFakePatternRepo(), 42, logger),
		analytics.NewAggregator(nil, 3, 30, 1000, logger),
		fx.messages, fx.contexts, logger)

	uctx := fresh.loadContext("u1")
	assert.Equal(t, 1, uctx.Session.MessageCount)
	assert.Len(t, uctx.History, 2)
}
