package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"healthbridge/internal/auth"
	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
	"healthbridge/internal/services"
)

// ProfileHandler handles user profile and conversation listing requests
type ProfileHandler struct {
	profiles repositories.ProfileStore
	memory   *services.MemoryService
	logger   *log.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles repositories.ProfileStore, memory *services.MemoryService, logger *log.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		memory:   memory,
		logger:   logger,
	}
}

// SetProfile handles profile updates
// @Summary Set user profile
// @Description Create or update the caller's profile. The role always comes from the access token.
// @Tags profile
// @Accept json
// @Produce json
// @Param profile body ProfileRequestBody true "Profile"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /user/profile [post]
func (h *ProfileHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var reqBody ProfileRequestBody
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile := models.UserProfile{
		UserID:            identity.UserID,
		Role:              identity.Role,
		Specialty:         reqBody.Specialty,
		MedicalConditions: reqBody.MedicalConditions,
		LastUpdated:       time.Now(),
	}

	if err := h.profiles.Save(r.Context(), profile); err != nil {
		h.logger.Printf("Failed to save profile: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	h.sendJSON(w, http.StatusOK, ProfileResponse{
		Status:  "success",
		UserID:  identity.UserID,
		Profile: &profile,
	})
}

// GetProfile handles profile reads
// @Summary Get user profile
// @Description Return the caller's stored profile
// @Tags profile
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /user/profile [get]
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.profiles.Get(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			h.sendError(w, http.StatusNotFound, "Profile not found")
			return
		}
		h.logger.Printf("Failed to load profile: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	h.sendJSON(w, http.StatusOK, ProfileResponse{
		Status:  "success",
		UserID:  identity.UserID,
		Profile: profile,
	})
}

// Conversations handles conversation listing
// @Summary List conversations
// @Description Return the caller's conversations with start time and message counts
// @Tags profile
// @Produce json
// @Success 200 {object} ConversationsResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /user/conversations [get]
func (h *ProfileHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversations, err := h.memory.Conversations(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Printf("Failed to list conversations: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if conversations == nil {
		conversations = []models.ConversationInfo{}
	}

	h.sendJSON(w, http.StatusOK, ConversationsResponse{
		UserID:        identity.UserID,
		Conversations: conversations,
	})
}

// Helper methods

func (h *ProfileHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *ProfileHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// Request and response types

type ProfileRequestBody struct {
	Specialty         string   `json:"specialty,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
}

type ProfileResponse struct {
	Status  string              `json:"status"`
	UserID  string              `json:"user_id"`
	Profile *models.UserProfile `json:"profile,omitempty"`
}

type ConversationsResponse struct {
	UserID        string                    `json:"user_id"`
	Conversations []models.ConversationInfo `json:"conversations"`
}
