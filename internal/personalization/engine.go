package personalization

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	topIntentLimit        = 10
	styleShiftProbability = 0.2
	shortTextThreshold    = 100
	longTextThreshold     = 300
	flowWindow            = 3
	maxCachedPatterns     = 1024
)

// Engine maintains per-user behavior patterns and uses them to rank
// recommendations and adapt responses. Learn calls for the same user are
// serialized through a per-user lock; the read-modify-write on a pattern
// is not otherwise atomic.
type Engine struct {
	repo   models.BehaviorPatternRepository
	logger *logrus.Logger

	mu       sync.Mutex
	patterns map[string]*models.BehaviorPattern
	locks    map[string]*sync.Mutex
	rng      *rand.Rand

	now func() time.Time
}

// NewEngine creates a personalization engine. seed fixes the learning-style
// adjustment dice for reproducible tests; pass 0 for time-based seeding.
func NewEngine(repo models.BehaviorPatternRepository, seed int64, logger *logrus.Logger) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		repo:     repo,
		logger:   logger,
		patterns: make(map[string]*models.BehaviorPattern),
		locks:    make(map[string]*sync.Mutex),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
	}
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

// Learn folds one interaction into the user's behavior pattern. It never
// returns an error to the caller; persistence failures are logged and the
// in-memory pattern keeps the update.
func (e *Engine) Learn(userID string, intent models.Intent, response models.Response, feedback *models.Feedback, uctx *models.UserContext) {
	if userID == "" || intent.Name == "" {
		return
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pattern := e.loadPattern(userID)
	if pattern == nil {
		pattern = &models.BehaviorPattern{
			UserID: userID,
			Style:  models.StyleGuided,
			Content: models.ContentPreferences{
				ResponseLength: models.LengthMedium,
			},
			Sessions: models.SessionStats{
				CommonFlows: map[string]int{},
			},
		}
	}

	outcome := 1.0
	if feedback != nil && !feedback.Helpful {
		outcome = 0.0
	}

	e.updateIntentStats(pattern, intent.Name, outcome)
	pattern.HourHistogram[e.now().Hour()]++

	if feedback != nil {
		e.updateContentPreferences(pattern, response, feedback)
	}
	if uctx != nil {
		e.updateSessionStats(pattern, &uctx.Session)
	}
	if outcome == 1.0 {
		e.maybeShiftStyle(pattern, intent.Name)
	}

	pattern.Interactions++
	pattern.UpdatedAt = e.now()

	e.storePattern(pattern)
	e.persistPattern(pattern)
}

// updateIntentStats increments the intent's frequency, folds the outcome
// into its running success average, and keeps the list at the top 10 by
// frequency.
func (e *Engine) updateIntentStats(pattern *models.BehaviorPattern, name models.IntentName, outcome float64) {
	found := false
	for i := range pattern.TopIntents {
		if pattern.TopIntents[i].Intent == name {
			pattern.TopIntents[i].Frequency++
			pattern.TopIntents[i].SuccessRate = (pattern.TopIntents[i].SuccessRate + outcome) / 2
			found = true
			break
		}
	}
	if !found {
		pattern.TopIntents = append(pattern.TopIntents, models.IntentStat{
			Intent:      name,
			Frequency:   1,
			SuccessRate: outcome,
		})
	}

	sort.SliceStable(pattern.TopIntents, func(i, j int) bool {
		return pattern.TopIntents[i].Frequency > pattern.TopIntents[j].Frequency
	})
	if len(pattern.TopIntents) > topIntentLimit {
		pattern.TopIntents = pattern.TopIntents[:topIntentLimit]
	}
}

func (e *Engine) updateContentPreferences(pattern *models.BehaviorPattern, response models.Response, feedback *models.Feedback) {
	if feedback.Helpful {
		if len(response.Text) < shortTextThreshold {
			pattern.Content.ResponseLength = shiftLength(pattern.Content.ResponseLength, -1)
		} else if len(response.Text) > longTextThreshold {
			pattern.Content.ResponseLength = shiftLength(pattern.Content.ResponseLength, +1)
		}
	}

	pattern.Content.PreferQuickActions = len(response.QuickActions) > 0

	if feedback.Helpful && response.Visualization != nil {
		pattern.Content.IncludeVisuals = true
		kind := response.Visualization.Kind
		if kind != "" && !containsString(pattern.Content.VisualTypes, kind) {
			pattern.Content.VisualTypes = append(pattern.Content.VisualTypes, kind)
		}
	}
}

// shiftLength moves the length bucket one step toward short (-1) or
// long (+1).
func shiftLength(current models.ResponseLength, direction int) models.ResponseLength {
	order := []models.ResponseLength{models.LengthShort, models.LengthMedium, models.LengthLong}
	idx := 1
	for i, l := range order {
		if l == current {
			idx = i
			break
		}
	}
	idx += direction
	if idx < 0 {
		idx = 0
	}
	if idx > len(order)-1 {
		idx = len(order) - 1
	}
	return order[idx]
}

func (e *Engine) updateSessionStats(pattern *models.BehaviorPattern, session *models.SessionState) {
	if pattern.Sessions.CommonFlows == nil {
		pattern.Sessions.CommonFlows = map[string]int{}
	}

	if session.CurrentPage != "" && !containsString(pattern.Sessions.PreferredStartPages, session.CurrentPage) {
		pattern.Sessions.PreferredStartPages = append(pattern.Sessions.PreferredStartPages, session.CurrentPage)
	}

	if !session.StartedAt.IsZero() && !session.LastActiveAt.IsZero() {
		lengthMinutes := session.LastActiveAt.Sub(session.StartedAt).Minutes()
		if lengthMinutes >= 0 {
			if pattern.Sessions.AverageLengthMinutes == 0 {
				pattern.Sessions.AverageLengthMinutes = lengthMinutes
			} else {
				pattern.Sessions.AverageLengthMinutes = (pattern.Sessions.AverageLengthMinutes + lengthMinutes) / 2
			}
		}
	}

	if len(session.VisitedPages) >= flowWindow {
		flow := strings.Join(session.VisitedPages[len(session.VisitedPages)-flowWindow:], ">")
		pattern.Sessions.CommonFlows[flow]++
	}
}

// maybeShiftStyle nudges the learning-style tag with a fixed small
// probability when specific intents succeed. A weak heuristic, not a
// guarantee.
func (e *Engine) maybeShiftStyle(pattern *models.BehaviorPattern, name models.IntentName) {
	var target models.LearningStyle
	switch name {
	case models.IntentPlatformNavigation:
		target = models.StyleGuided
	case models.IntentGeneralExportAdvice:
		target = models.StyleExploratory
	case models.IntentFindBuyers, models.IntentMarketResearch:
		target = models.StyleDirect
	default:
		return
	}

	e.mu.Lock()
	roll := e.rng.Float64()
	e.mu.Unlock()
	if roll < styleShiftProbability {
		pattern.Style = target
	}
}

// GetPattern returns a snapshot of the user's behavior pattern, or nil if
// the user has not interacted yet. The snapshot is independent of the
// cached pattern, which concurrent Learn calls keep mutating.
func (e *Engine) GetPattern(userID string) *models.BehaviorPattern {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pattern := e.loadPattern(userID)
	if pattern == nil {
		return nil
	}
	return clonePattern(pattern)
}

func clonePattern(pattern *models.BehaviorPattern) *models.BehaviorPattern {
	clone := *pattern
	clone.TopIntents = append([]models.IntentStat(nil), pattern.TopIntents...)
	clone.Sessions.PreferredStartPages = append([]string(nil), pattern.Sessions.PreferredStartPages...)
	if pattern.Sessions.CommonFlows != nil {
		clone.Sessions.CommonFlows = make(map[string]int, len(pattern.Sessions.CommonFlows))
		for flow, count := range pattern.Sessions.CommonFlows {
			clone.Sessions.CommonFlows[flow] = count
		}
	}
	clone.Content.VisualTypes = append([]string(nil), pattern.Content.VisualTypes...)
	return &clone
}

// Reset discards the user's learned pattern in memory and in storage.
func (e *Engine) Reset(userID string) error {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	delete(e.patterns, userID)
	e.mu.Unlock()

	if e.repo == nil {
		return nil
	}
	if err := e.repo.Delete(userID); err != nil {
		return fmt.Errorf("failed to reset behavior pattern: %w", err)
	}
	return nil
}

// loadPattern checks the in-memory cache first, then storage. Callers must
// hold the user lock.
func (e *Engine) loadPattern(userID string) *models.BehaviorPattern {
	e.mu.Lock()
	cached, ok := e.patterns[userID]
	e.mu.Unlock()
	if ok {
		return cached
	}

	if e.repo == nil {
		return nil
	}
	record, err := e.repo.GetByUserID(userID)
	if err != nil || record == nil {
		return nil
	}

	var pattern models.BehaviorPattern
	if err := json.Unmarshal([]byte(record.Data), &pattern); err != nil {
		e.logger.WithError(err).WithField("user_id", userID).
			Error("Failed to decode stored behavior pattern")
		return nil
	}

	e.storePattern(&pattern)
	return &pattern
}

func (e *Engine) storePattern(pattern *models.BehaviorPattern) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.patterns) >= maxCachedPatterns {
		for key := range e.patterns {
			if key != pattern.UserID {
				delete(e.patterns, key)
				break
			}
		}
	}
	e.patterns[pattern.UserID] = pattern
}

func (e *Engine) persistPattern(pattern *models.BehaviorPattern) {
	if e.repo == nil {
		return
	}

	data, err := json.Marshal(pattern)
	if err != nil {
		e.logger.WithError(err).WithField("user_id", pattern.UserID).
			Error("Failed to encode behavior pattern")
		return
	}

	record := &models.BehaviorPatternRecord{
		UserID:       pattern.UserID,
		Data:         string(data),
		Interactions: pattern.Interactions,
		LastLearned:  pattern.UpdatedAt,
	}
	if err := e.repo.Save(record); err != nil {
		e.logger.WithError(err).WithField("user_id", pattern.UserID).
			Error("Failed to persist behavior pattern")
	}
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
