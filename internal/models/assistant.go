package models

import (
	"time"
)

// Conversation domain types shared by the nlu, responder, personalization
// and analytics packages.

type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

// Message is one entry in a conversation log. Immutable once created.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Author         Author    `json:"author"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	Intent         *Intent   `json:"intent,omitempty"`
}

// IntentName is drawn from a closed catalog.
type IntentName string

const (
	IntentFindBuyers          IntentName = "FIND_BUYERS"
	IntentMarketResearch      IntentName = "MARKET_RESEARCH"
	IntentComplianceHelp      IntentName = "COMPLIANCE_HELP"
	IntentQuotationHelp       IntentName = "QUOTATION_HELP"
	IntentPlatformNavigation  IntentName = "PLATFORM_NAVIGATION"
	IntentOnboardingHelp      IntentName = "ONBOARDING_HELP"
	IntentGeneralExportAdvice IntentName = "GENERAL_EXPORT_ADVICE"
	IntentUnknown             IntentName = "UNKNOWN"
)

// Intent is the classified purpose of a user message. Produced fresh per
// message, never mutated after being returned.
type Intent struct {
	Name            IntentName `json:"name"`
	Confidence      float64    `json:"confidence"`
	Entities        []Entity   `json:"entities"`
	MatchedKeywords []string   `json:"matched_keywords"`
	EntityCount     int        `json:"entity_count"`
}

type EntityType string

const (
	EntityCountry    EntityType = "COUNTRY"
	EntityProduct    EntityType = "PRODUCT"
	EntityIndustry   EntityType = "INDUSTRY"
	EntityCurrency   EntityType = "CURRENCY"
	EntityAmount     EntityType = "AMOUNT"
	EntityDate       EntityType = "DATE"
	EntityTariffCode EntityType = "TARIFF_CODE"
)

// Entity is a typed, located span of text. Start/End index the original
// message ([start,end) byte offsets).
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

type ExperienceTier string

const (
	TierBeginner     ExperienceTier = "beginner"
	TierIntermediate ExperienceTier = "intermediate"
	TierAdvanced     ExperienceTier = "advanced"
)

type BusinessProfile struct {
	Industry      string         `json:"industry"`
	Products      []string       `json:"products"`
	TargetMarkets []string       `json:"target_markets"`
	Experience    ExperienceTier `json:"experience"`
	CompanySize   string         `json:"company_size"`
}

type SessionState struct {
	SessionID      string    `json:"session_id"`
	CurrentPage    string    `json:"current_page"`
	StartedAt      time.Time `json:"started_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
	VisitedPages   []string  `json:"visited_pages"`
	ActionsIssued  []string  `json:"actions_issued"`
	RecentSearches []string  `json:"recent_searches"`
	MessageCount   int       `json:"message_count"`
}

type Preferences struct {
	ShareUsageData bool `json:"share_usage_data"`
	CompactMode    bool `json:"compact_mode"`
}

// UserContext is the per-user working state. Owned by the session; mutated
// in place by the assistant pipeline and persisted on every update.
type UserContext struct {
	UserID      string          `json:"user_id"`
	Business    BusinessProfile `json:"business"`
	Session     SessionState    `json:"session"`
	Preferences Preferences     `json:"preferences"`
	History     []Message       `json:"history"`
}

// IntentStat is one ranked (intent, frequency, success-rate) tuple.
type IntentStat struct {
	Intent      IntentName `json:"intent"`
	Frequency   int        `json:"frequency"`
	SuccessRate float64    `json:"success_rate"`
}

type SessionStats struct {
	AverageLengthMinutes float64        `json:"average_length_minutes"`
	PreferredStartPages  []string       `json:"preferred_start_pages"`
	CommonFlows          map[string]int `json:"common_flows"`
}

type ResponseLength string

const (
	LengthShort  ResponseLength = "short"
	LengthMedium ResponseLength = "medium"
	LengthLong   ResponseLength = "long"
)

type ContentPreferences struct {
	ResponseLength     ResponseLength `json:"response_length"`
	IncludeVisuals     bool           `json:"include_visuals"`
	PreferQuickActions bool           `json:"prefer_quick_actions"`
	VisualTypes        []string       `json:"visual_types"`
}

type LearningStyle string

const (
	StyleGuided      LearningStyle = "guided"
	StyleExploratory LearningStyle = "exploratory"
	StyleDirect      LearningStyle = "direct"
)

// BehaviorPattern is the accumulated per-user interaction model. Created
// lazily on first interaction; only deleted on explicit user reset.
type BehaviorPattern struct {
	UserID        string             `json:"user_id"`
	TopIntents    []IntentStat       `json:"top_intents"`
	HourHistogram [24]int            `json:"hour_histogram"`
	Sessions      SessionStats       `json:"sessions"`
	Content       ContentPreferences `json:"content"`
	Style         LearningStyle      `json:"style"`
	Interactions  int                `json:"interactions"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type QuickAction struct {
	Label  string `json:"label"`
	Action string `json:"action"` // navigate, search, create, analyze, export, filter
	Target string `json:"target"`
}

type NavigationHint struct {
	Page   string            `json:"page"`
	Params map[string]string `json:"params,omitempty"`
}

type Visualization struct {
	Kind  string                 `json:"kind"` // chart, table, map
	Title string                 `json:"title"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Response is the assistant reply for one user message.
type Response struct {
	Text              string          `json:"text"`
	QuickActions      []QuickAction   `json:"quick_actions"`
	Navigation        *NavigationHint `json:"navigation,omitempty"`
	Visualization     *Visualization  `json:"visualization,omitempty"`
	FollowUpQuestions []string        `json:"follow_up_questions"`
}

type Feedback struct {
	Helpful bool   `json:"helpful"`
	Comment string `json:"comment,omitempty"`
}

type EventKind string

const (
	EventMessageSent       EventKind = "message_sent"
	EventResponseGenerated EventKind = "response_generated"
	EventActionClicked     EventKind = "action_clicked"
	EventNavigation        EventKind = "navigation"
	EventFeedbackGiven     EventKind = "feedback_given"
	EventTaskCompleted     EventKind = "task_completed"
)

// AnalyticsEvent is an append-only telemetry record.
type AnalyticsEvent struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	ConversationID string                 `json:"conversation_id"`
	SessionID      string                 `json:"session_id"`
	Kind           EventKind              `json:"kind"`
	Timestamp      time.Time              `json:"timestamp"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"` // feature, content, growth, industry
	Priority    Priority `json:"priority"`
	Confidence  float64  `json:"confidence"`
}
