package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TimeRange bounds a query. Zero From or To means unbounded on that side.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (tr TimeRange) contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && t.After(tr.To) {
		return false
	}
	return true
}

// InteractionSummary describes one user's recorded activity.
type InteractionSummary struct {
	UserID      string                   `json:"user_id"`
	TotalEvents int                      `json:"total_events"`
	ByKind      map[models.EventKind]int `json:"by_kind"`
	BusiestHour int                      `json:"busiest_hour"`
	Sessions    int                      `json:"sessions"`
	FirstSeen   time.Time                `json:"first_seen"`
	LastSeen    time.Time                `json:"last_seen"`
}

// DailyCount is one calendar-day bucket of the dashboard time series.
type DailyCount struct {
	Date   string `json:"date"`
	Events int    `json:"events"`
}

// DashboardStats is the aggregate view served to the analytics dashboard.
type DashboardStats struct {
	TotalEvents    int          `json:"total_events"`
	ActiveUsers    int          `json:"active_users"`
	AccuracyRate   float64      `json:"accuracy_rate"`
	CompletionRate float64      `json:"completion_rate"`
	RetentionRate  float64      `json:"retention_rate"`
	TimeSeries     []DailyCount `json:"time_series"`
}

// Aggregator keeps an append-only, per-user event log in memory with
// write-through persistence. Per-user lists are capped; the oldest events
// are evicted first.
type Aggregator struct {
	repo   models.AnalyticsEventRepository
	logger *logrus.Logger

	feedbackEvery    int
	retentionDays    int
	maxEventsPerUser int

	mu            sync.RWMutex
	events        map[string][]models.AnalyticsEvent
	messageCounts map[string]int

	now     func() time.Time
	sweeper *cron.Cron
}

// NewAggregator creates an analytics aggregator. feedbackEvery controls the
// feedback-prompt cadence, retentionDays the sweep cutoff, maxEventsPerUser
// the per-user memory cap.
func NewAggregator(repo models.AnalyticsEventRepository, feedbackEvery, retentionDays, maxEventsPerUser int, logger *logrus.Logger) *Aggregator {
	if feedbackEvery <= 0 {
		feedbackEvery = 3
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if maxEventsPerUser <= 0 {
		maxEventsPerUser = 1000
	}
	return &Aggregator{
		repo:             repo,
		logger:           logger,
		feedbackEvery:    feedbackEvery,
		retentionDays:    retentionDays,
		maxEventsPerUser: maxEventsPerUser,
		events:           make(map[string][]models.AnalyticsEvent),
		messageCounts:    make(map[string]int),
		now:              time.Now,
	}
}

// Record appends one event. IDs and timestamps are filled in when missing.
// Persistence failures are logged, not surfaced; the in-memory log keeps
// the event either way.
func (a *Aggregator) Record(event models.AnalyticsEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("event user ID is required")
	}
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.ID == "" {
		event.ID = utils.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now()
	}

	a.mu.Lock()
	list := append(a.events[event.UserID], event)
	if len(list) > a.maxEventsPerUser {
		list = list[len(list)-a.maxEventsPerUser:]
	}
	a.events[event.UserID] = list
	if event.Kind == models.EventMessageSent {
		a.messageCounts[event.UserID]++
	}
	a.mu.Unlock()

	a.persist(event)
	return nil
}

func (a *Aggregator) persist(event models.AnalyticsEvent) {
	if a.repo == nil {
		return
	}
	record := &models.AnalyticsEventRecord{
		EventID:        event.ID,
		UserID:         event.UserID,
		ConversationID: event.ConversationID,
		SessionID:      event.SessionID,
		Kind:           string(event.Kind),
		Payload:        encodePayload(event.Payload),
		OccurredAt:     event.Timestamp,
	}
	if err := a.repo.Create(record); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": event.ID,
			"user_id":  event.UserID,
		}).Error("Failed to persist analytics event")
	}
}

// Restore reloads the retained event window from storage, rebuilding the
// per-user logs and the feedback cadence counters after a restart.
func (a *Aggregator) Restore() error {
	if a.repo == nil {
		return nil
	}

	to := a.now()
	from := to.AddDate(0, 0, -a.retentionDays)
	records, err := a.repo.GetAll(from, to)
	if err != nil {
		return fmt.Errorf("failed to load stored analytics events: %w", err)
	}

	events := make(map[string][]models.AnalyticsEvent)
	counts := make(map[string]int)
	for _, record := range records {
		event := recordToEvent(record)
		events[event.UserID] = append(events[event.UserID], event)
		if event.Kind == models.EventMessageSent {
			counts[event.UserID]++
		}
	}
	for userID, list := range events {
		sort.Slice(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
		if len(list) > a.maxEventsPerUser {
			list = list[len(list)-a.maxEventsPerUser:]
		}
		events[userID] = list
	}

	a.mu.Lock()
	a.events = events
	a.messageCounts = counts
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"events": len(records),
		"users":  len(events),
	}).Info("Restored analytics events from storage")
	return nil
}

// ResponseAccuracy is the share of feedback events marked helpful, as a
// percentage. Empty userID aggregates across all users.
func (a *Aggregator) ResponseAccuracy(userID string, tr TimeRange) float64 {
	helpfulCount, total := 0, 0
	a.forEach(userID, tr, func(event models.AnalyticsEvent) {
		if event.Kind != models.EventFeedbackGiven {
			return
		}
		total++
		if boolPayload(event.Payload, "helpful") {
			helpfulCount++
		}
	})
	return percentage(helpfulCount, total)
}

// TaskCompletion is the share of task events marked completed, as a
// percentage. Empty userID aggregates across all users.
func (a *Aggregator) TaskCompletion(userID string, tr TimeRange) float64 {
	completed, total := 0, 0
	a.forEach(userID, tr, func(event models.AnalyticsEvent) {
		if event.Kind != models.EventTaskCompleted {
			return
		}
		total++
		if boolPayload(event.Payload, "completed") {
			completed++
		}
	})
	return percentage(completed, total)
}

// RetentionRate is the share of users seen in more than one session, as a
// percentage of all recorded users.
func (a *Aggregator) RetentionRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	users, returning := 0, 0
	for _, list := range a.events {
		if len(list) == 0 {
			continue
		}
		users++
		sessions := map[string]bool{}
		for _, event := range list {
			if event.SessionID != "" {
				sessions[event.SessionID] = true
			}
		}
		if len(sessions) > 1 {
			returning++
		}
	}
	return percentage(returning, users)
}

// InteractionPatterns summarizes one user's recorded activity. Users absent
// from the in-memory log fall back to storage.
func (a *Aggregator) InteractionPatterns(userID string) InteractionSummary {
	summary := InteractionSummary{
		UserID: userID,
		ByKind: map[models.EventKind]int{},
	}

	a.mu.RLock()
	list := a.events[userID]
	a.mu.RUnlock()
	if len(list) == 0 {
		list = a.loadUserEvents(userID)
	}

	var hours [24]int
	sessions := map[string]bool{}
	for _, event := range list {
		summary.TotalEvents++
		summary.ByKind[event.Kind]++
		hours[event.Timestamp.Hour()]++
		if event.SessionID != "" {
			sessions[event.SessionID] = true
		}
		if summary.FirstSeen.IsZero() || event.Timestamp.Before(summary.FirstSeen) {
			summary.FirstSeen = event.Timestamp
		}
		if event.Timestamp.After(summary.LastSeen) {
			summary.LastSeen = event.Timestamp
		}
	}
	summary.Sessions = len(sessions)

	for hour, count := range hours {
		if count > hours[summary.BusiestHour] {
			summary.BusiestHour = hour
		}
	}
	return summary
}

// Dashboard aggregates the headline metrics plus a per-calendar-day event
// time series for the given range.
func (a *Aggregator) Dashboard(tr TimeRange) DashboardStats {
	stats := DashboardStats{
		AccuracyRate:   a.ResponseAccuracy("", tr),
		CompletionRate: a.TaskCompletion("", tr),
		RetentionRate:  a.RetentionRate(),
	}

	days := map[string]int{}
	activeUsers := map[string]bool{}
	a.forEach("", tr, func(event models.AnalyticsEvent) {
		stats.TotalEvents++
		activeUsers[event.UserID] = true
		days[event.Timestamp.Format("2006-01-02")]++
	})
	stats.ActiveUsers = len(activeUsers)

	stats.TimeSeries = make([]DailyCount, 0, len(days))
	for date, count := range days {
		stats.TimeSeries = append(stats.TimeSeries, DailyCount{Date: date, Events: count})
	}
	sortDailyCounts(stats.TimeSeries)
	return stats
}

// ShouldPromptFeedback reports whether the user's message count has hit the
// feedback cadence (every Nth message).
func (a *Aggregator) ShouldPromptFeedback(userID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	count := a.messageCounts[userID]
	return count > 0 && count%a.feedbackEvery == 0
}

// Sweep purges events older than the retention window from memory and
// storage, returning the number of in-memory events removed.
func (a *Aggregator) Sweep() int {
	cutoff := a.now().AddDate(0, 0, -a.retentionDays)

	a.mu.Lock()
	removed := 0
	for userID, list := range a.events {
		kept := list[:0]
		for _, event := range list {
			if event.Timestamp.After(cutoff) {
				kept = append(kept, event)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(a.events, userID)
		} else {
			a.events[userID] = kept
		}
	}
	a.mu.Unlock()

	if a.repo != nil {
		purged, err := a.repo.DeleteOlderThan(cutoff)
		if err != nil {
			a.logger.WithError(err).Error("Failed to purge old analytics events")
		} else if purged > 0 {
			a.logger.WithField("purged", purged).Info("Purged expired analytics events")
		}

		// The in-memory cap holds for storage too, enforced per user on
		// each sweep rather than on every write.
		a.mu.RLock()
		userIDs := make([]string, 0, len(a.events))
		for userID := range a.events {
			userIDs = append(userIDs, userID)
		}
		a.mu.RUnlock()
		for _, userID := range userIDs {
			if err := a.repo.DeleteOldestForUser(userID, a.maxEventsPerUser); err != nil {
				a.logger.WithError(err).WithField("user_id", userID).
					Warn("Failed to trim stored analytics events")
			}
		}
	}
	return removed
}

// StartSweeper runs Sweep on an hourly schedule until StopSweeper is
// called.
func (a *Aggregator) StartSweeper() error {
	if a.sweeper != nil {
		return fmt.Errorf("sweeper already running")
	}
	a.sweeper = cron.New()
	if _, err := a.sweeper.AddFunc("@hourly", func() { a.Sweep() }); err != nil {
		a.sweeper = nil
		return fmt.Errorf("failed to schedule analytics sweep: %w", err)
	}
	a.sweeper.Start()
	a.logger.Info("Analytics retention sweeper started")
	return nil
}

func (a *Aggregator) StopSweeper() {
	if a.sweeper == nil {
		return
	}
	a.sweeper.Stop()
	a.sweeper = nil
}

// forEach visits matching events in recorded order. Empty userID visits all
// users.
func (a *Aggregator) forEach(userID string, tr TimeRange, visit func(models.AnalyticsEvent)) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if userID != "" {
		for _, event := range a.events[userID] {
			if tr.contains(event.Timestamp) {
				visit(event)
			}
		}
		return
	}
	for _, list := range a.events {
		for _, event := range list {
			if tr.contains(event.Timestamp) {
				visit(event)
			}
		}
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func boolPayload(payload map[string]interface{}, key string) bool {
	if payload == nil {
		return false
	}
	value, ok := payload[key].(bool)
	return ok && value
}

func sortDailyCounts(series []DailyCount) {
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})
}

func encodePayload(payload map[string]interface{}) string {
	if len(payload) == 0 {
		return "{}"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodePayload(raw string) map[string]interface{} {
	if raw == "" || raw == "{}" {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload
}

func recordToEvent(record models.AnalyticsEventRecord) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		ID:             record.EventID,
		UserID:         record.UserID,
		ConversationID: record.ConversationID,
		SessionID:      record.SessionID,
		Kind:           models.EventKind(record.Kind),
		Timestamp:      record.OccurredAt,
		Payload:        decodePayload(record.Payload),
	}
}

// loadUserEvents pulls one user's retained events from storage.
func (a *Aggregator) loadUserEvents(userID string) []models.AnalyticsEvent {
	if a.repo == nil {
		return nil
	}
	to := a.now()
	records, err := a.repo.GetByUser(userID, to.AddDate(0, 0, -a.retentionDays), to)
	if err != nil {
		a.logger.WithError(err).WithField("user_id", userID).
			Warn("Failed to load stored analytics events")
		return nil
	}
	events := make([]models.AnalyticsEvent, 0, len(records))
	for _, record := range records {
		events = append(events, recordToEvent(record))
	}
	return events
}
