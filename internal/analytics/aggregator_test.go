package analytics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventRepo struct {
	mu      sync.Mutex
	created []models.AnalyticsEventRecord
	purged  time.Time
	trimmed map[string]int
}

func (r *fakeEventRepo) Create(event *models.AnalyticsEventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, *event)
	return nil
}

func (r *fakeEventRepo) GetByUser(userID string, from, to time.Time) ([]models.AnalyticsEventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AnalyticsEventRecord
	for _, record := range r.created {
		if record.UserID == userID && !record.OccurredAt.Before(from) && !record.OccurredAt.After(to) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) GetAll(from, to time.Time) ([]models.AnalyticsEventRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AnalyticsEventRecord
	for _, record := range r.created {
		if !record.OccurredAt.Before(from) && !record.OccurredAt.After(to) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = cutoff
	return 0, nil
}

func (r *fakeEventRepo) DeleteOldestForUser(userID string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trimmed == nil {
		r.trimmed = map[string]int{}
	}
	r.trimmed[userID] = keep
	return nil
}

func newTestAggregator(repo models.AnalyticsEventRepository) *Aggregator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAggregator(repo, 3, 30, 1000, logger)
}

func feedbackEvent(userID string, helpful bool) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		UserID:  userID,
		Kind:    models.EventFeedbackGiven,
		Payload: map[string]interface{}{"helpful": helpful},
	}
}

func taskEvent(userID string, completed bool) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		UserID:  userID,
		Kind:    models.EventTaskCompleted,
		Payload: map[string]interface{}{"completed": completed},
	}
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	repo := &fakeEventRepo{}
	agg := newTestAggregator(repo)

	require.NoError(t, agg.Record(models.AnalyticsEvent{
		UserID: "u1",
		Kind:   models.EventMessageSent,
	}))

	require.Len(t, repo.created, 1)
	assert.NotEmpty(t, repo.created[0].EventID)
	assert.False(t, repo.created[0].OccurredAt.IsZero())
}

func TestRecord_RejectsInvalidEvents(t *testing.T) {
	agg := newTestAggregator(nil)

	assert.Error(t, agg.Record(models.AnalyticsEvent{Kind: models.EventMessageSent}))
	assert.Error(t, agg.Record(models.AnalyticsEvent{UserID: "u1"}))
}

func TestTaskCompletion_OneOfTwo(t *testing.T) {
	agg := newTestAggregator(nil)

	require.NoError(t, agg.Record(taskEvent("u1", true)))
	require.NoError(t, agg.Record(taskEvent("u1", false)))

	assert.InDelta(t, 50.0, agg.TaskCompletion("u1", TimeRange{}), 0.001)
	assert.InDelta(t, 50.0, agg.TaskCompletion("", TimeRange{}), 0.001)
}

func TestResponseAccuracy(t *testing.T) {
	agg := newTestAggregator(nil)

	require.NoError(t, agg.Record(feedbackEvent("u1", true)))
	require.NoError(t, agg.Record(feedbackEvent("u1", true)))
	require.NoError(t, agg.Record(feedbackEvent("u1", false)))
	require.NoError(t, agg.Record(feedbackEvent("u2", false)))

	assert.InDelta(t, 66.666, agg.ResponseAccuracy("u1", TimeRange{}), 0.01)
	assert.InDelta(t, 50.0, agg.ResponseAccuracy("", TimeRange{}), 0.001)
	assert.Zero(t, agg.ResponseAccuracy("nobody", TimeRange{}))
}

func TestRetentionRate(t *testing.T) {
	agg := newTestAggregator(nil)

	// u1 returns for a second session, u2 does not.
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s1", Kind: models.EventMessageSent}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s2", Kind: models.EventMessageSent}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u2", SessionID: "s3", Kind: models.EventMessageSent}))

	assert.InDelta(t, 50.0, agg.RetentionRate(), 0.001)
}

func TestShouldPromptFeedback_EveryThirdMessage(t *testing.T) {
	agg := newTestAggregator(nil)

	assert.False(t, agg.ShouldPromptFeedback("u1"))

	for i := 1; i <= 7; i++ {
		require.NoError(t, agg.Record(models.AnalyticsEvent{
			UserID: "u1",
			Kind:   models.EventMessageSent,
		}))
		want := i%3 == 0
		assert.Equal(t, want, agg.ShouldPromptFeedback("u1"), "message %d", i)
	}
}

func TestPerUserEventCap(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	agg := NewAggregator(nil, 3, 30, 5, logger)

	for i := 0; i < 8; i++ {
		require.NoError(t, agg.Record(models.AnalyticsEvent{
			ID:     fmt.Sprintf("e%d", i),
			UserID: "u1",
			Kind:   models.EventActionClicked,
		}))
	}

	summary := agg.InteractionPatterns("u1")
	assert.Equal(t, 5, summary.TotalEvents)

	// Oldest events are the ones evicted.
	agg.mu.RLock()
	assert.Equal(t, "e3", agg.events["u1"][0].ID)
	agg.mu.RUnlock()
}

func TestSweep_PurgesExpiredEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	agg := newTestAggregator(repo)

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }

	require.NoError(t, agg.Record(models.AnalyticsEvent{
		UserID:    "u1",
		Kind:      models.EventMessageSent,
		Timestamp: now.AddDate(0, 0, -40),
	}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{
		UserID:    "u1",
		Kind:      models.EventMessageSent,
		Timestamp: now.AddDate(0, 0, -1),
	}))

	removed := agg.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, agg.InteractionPatterns("u1").TotalEvents)
	assert.Equal(t, now.AddDate(0, 0, -30), repo.purged)
}

func TestSweep_TrimsStoredEventsPerUser(t *testing.T) {
	repo := &fakeEventRepo{}
	agg := newTestAggregator(repo)

	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", Kind: models.EventMessageSent}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u2", Kind: models.EventMessageSent}))

	agg.Sweep()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 1000, repo.trimmed["u1"])
	assert.Equal(t, 1000, repo.trimmed["u2"])
}

func TestRestore_RebuildsFromStore(t *testing.T) {
	repo := &fakeEventRepo{}
	first := newTestAggregator(repo)

	for i := 0; i < 3; i++ {
		require.NoError(t, first.Record(models.AnalyticsEvent{UserID: "u1", Kind: models.EventMessageSent}))
	}
	require.NoError(t, first.Record(feedbackEvent("u1", true)))
	require.NoError(t, first.Record(feedbackEvent("u1", false)))

	restarted := newTestAggregator(repo)
	require.NoError(t, restarted.Restore())

	// Metrics and feedback cadence survive the restart.
	assert.InDelta(t, 50.0, restarted.ResponseAccuracy("u1", TimeRange{}), 0.001)
	assert.True(t, restarted.ShouldPromptFeedback("u1"))
	assert.Equal(t, 5, restarted.InteractionPatterns("u1").TotalEvents)
}

func TestInteractionPatterns_FallsBackToStore(t *testing.T) {
	repo := &fakeEventRepo{}
	first := newTestAggregator(repo)

	require.NoError(t, first.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s1", Kind: models.EventMessageSent}))
	require.NoError(t, first.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s1", Kind: models.EventActionClicked}))

	// A fresh aggregator with an empty in-memory log reads from storage.
	cold := newTestAggregator(repo)
	summary := cold.InteractionPatterns("u1")
	assert.Equal(t, 2, summary.TotalEvents)
	assert.Equal(t, 1, summary.Sessions)
}

func TestDashboard_TimeSeriesByDay(t *testing.T) {
	agg := newTestAggregator(nil)

	day1 := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)

	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", Kind: models.EventMessageSent, Timestamp: day1}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", Kind: models.EventMessageSent, Timestamp: day1.Add(time.Hour)}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u2", Kind: models.EventMessageSent, Timestamp: day2}))
	require.NoError(t, agg.Record(taskEvent("u1", true)))

	stats := agg.Dashboard(TimeRange{From: day1, To: day2.Add(time.Hour)})

	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.ActiveUsers)
	require.Len(t, stats.TimeSeries, 2)
	assert.Equal(t, "2026-08-20", stats.TimeSeries[0].Date)
	assert.Equal(t, 2, stats.TimeSeries[0].Events)
	assert.Equal(t, "2026-08-21", stats.TimeSeries[1].Date)
	assert.Equal(t, 1, stats.TimeSeries[1].Events)
}

func TestInteractionPatterns(t *testing.T) {
	agg := newTestAggregator(nil)

	base := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s1", Kind: models.EventMessageSent, Timestamp: base}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s1", Kind: models.EventMessageSent, Timestamp: base.Add(time.Minute)}))
	require.NoError(t, agg.Record(models.AnalyticsEvent{UserID: "u1", SessionID: "s2", Kind: models.EventActionClicked, Timestamp: base.Add(time.Hour * 20)}))

	summary := agg.InteractionPatterns("u1")
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Equal(t, 2, summary.ByKind[models.EventMessageSent])
	assert.Equal(t, 14, summary.BusiestHour)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, base, summary.FirstSeen)
}
