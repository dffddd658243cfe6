package models

type ChatRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

type ChatResponse struct {
	ConversationID string   `json:"conversation_id"`
	Intent         Intent   `json:"intent"`
	Response       Response `json:"response"`
	Alternatives   []Intent `json:"alternatives,omitempty"`
	PromptFeedback bool     `json:"prompt_feedback"`
	ResponseTime   int      `json:"response_time_ms"`
}

type FeedbackRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Helpful        *bool  `json:"helpful" binding:"required"`
	Comment        string `json:"comment"`
}

type EventRequest struct {
	UserID         string                 `json:"user_id" binding:"required"`
	ConversationID string                 `json:"conversation_id"`
	SessionID      string                 `json:"session_id"`
	Kind           EventKind              `json:"kind" binding:"required"`
	Payload        map[string]interface{} `json:"payload"`
}
