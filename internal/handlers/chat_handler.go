package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"healthbridge/internal/auth"
	"healthbridge/internal/models"
	"healthbridge/internal/services"
)

// ChatHandler handles HTTP requests for the chat pipeline
type ChatHandler struct {
	chatService *services.ChatService
	logger      *log.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, logger *log.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

// Chat handles chat requests
// @Summary Chat with the medical assistant
// @Description Run the full pipeline: scoped retrieval, task selection, task execution, and role formatting
// @Tags chat
// @Accept json
// @Produce json
// @Param query body models.ChatRequest true "Chat request"
// @Success 200 {object} models.ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /ai/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var reqBody models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	query := models.Query{
		Message:        reqBody.Message,
		UserID:         identity.UserID,
		Role:           identity.Role,
		ConversationID: reqBody.ConversationID,
	}

	resp, err := h.chatService.HandleChat(r.Context(), query)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// AnalyzeQuery handles task analysis requests
// @Summary Analyze a query
// @Description Show how a query would be classified without executing any task
// @Tags chat
// @Accept json
// @Produce json
// @Param query body models.ChatRequest true "Query to analyze"
// @Success 200 {object} AnalyzeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /analyze-query [post]
func (h *ChatHandler) AnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var reqBody models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reqBody.Message == "" {
		h.sendError(w, http.StatusBadRequest, "Field 'message' is required")
		return
	}

	analysis := h.chatService.AnalyzeQuery(models.Query{
		Message: reqBody.Message,
		UserID:  identity.UserID,
		Role:    identity.Role,
	})

	h.sendJSON(w, http.StatusOK, AnalyzeResponse{
		UserID:   identity.UserID,
		Query:    reqBody.Message,
		UserRole: identity.Role,
		Analysis: analysis,
	})
}

func (h *ChatHandler) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		h.sendError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	h.logger.Printf("Chat failed: %v", err)
	h.sendError(w, http.StatusInternalServerError, err.Error())
}

// Helper methods

func (h *ChatHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *ChatHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// Response types

type AnalyzeResponse struct {
	UserID   string                    `json:"user_id"`
	Query    string                    `json:"query"`
	UserRole string                    `json:"user_role"`
	Analysis models.TaskClassification `json:"analysis"`
}
