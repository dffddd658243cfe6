// internal/api/handlers/chat.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atlas-exports/exportpilot/internal/models"
	"github.com/atlas-exports/exportpilot/internal/services"
	"github.com/atlas-exports/exportpilot/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const chatTimeout = 10 * time.Second

type ChatHandler struct {
	assistant *services.AssistantService
	logger    *logrus.Logger
}

func NewChatHandler(assistant *services.AssistantService, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		logger:    logger,
	}
}

// HandleChat processes one conversational message
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid chat request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":         req.UserID,
		"conversation_id": req.ConversationID,
		"ip_address":      c.ClientIP(),
	}).Info("Processing chat message")

	ctx, cancel := context.WithTimeout(c.Request.Context(), chatTimeout)
	defer cancel()

	resp, err := h.assistant.HandleMessage(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			utils.ErrorResponse(c, http.StatusBadRequest, "Message cannot be empty", nil)
		case errors.Is(err, services.ErrMessageTooLong):
			utils.ErrorResponse(c, http.StatusBadRequest, "Message too long (max 2000 characters)", nil)
		case errors.Is(err, services.ErrMissingUserID):
			utils.ErrorResponse(c, http.StatusBadRequest, "User ID is required", nil)
		default:
			h.logger.WithError(err).Error("Chat processing failed")
			utils.ErrorResponse(c, http.StatusInternalServerError, "Chat processing failed", err)
		}
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":       req.UserID,
		"intent":        string(resp.Intent.Name),
		"confidence":    resp.Intent.Confidence,
		"response_time": resp.ResponseTime,
	}).Info("Chat message processed")

	utils.SuccessResponse(c, http.StatusOK, "Message processed", resp)
}

// HandleFeedback records a rating for the user's last response
func (h *ChatHandler) HandleFeedback(c *gin.Context) {
	var req models.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid feedback format", err)
		return
	}

	if err := h.assistant.HandleFeedback(req); err != nil {
		h.logger.WithError(err).Error("Failed to record feedback")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to record feedback", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"helpful": *req.Helpful,
	}).Info("Feedback recorded")

	utils.SuccessResponse(c, http.StatusCreated, "Feedback recorded", nil)
}

// HandleEvent ingests a client-side telemetry event
func (h *ChatHandler) HandleEvent(c *gin.Context) {
	var req models.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event format", err)
		return
	}

	if err := h.assistant.RecordEvent(req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Event recorded", nil)
}

// HandleRecommendations returns ranked personalization suggestions
func (h *ChatHandler) HandleRecommendations(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'user_id' is required", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	recommendations, err := h.assistant.Recommendations(userID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build recommendations")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to build recommendations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Recommendations retrieved", recommendations)
}

// HandleReset discards everything learned about a user
func (h *ChatHandler) HandleReset(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "User ID is required", nil)
		return
	}

	if err := h.assistant.ResetPersonalization(userID); err != nil {
		h.logger.WithError(err).Error("Failed to reset personalization")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to reset personalization", err)
		return
	}

	h.logger.WithField("user_id", userID).Info("Personalization reset")
	utils.SuccessResponse(c, http.StatusOK, "Personalization reset", nil)
}
