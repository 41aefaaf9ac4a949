package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"healthbridge/internal/auth"
	"healthbridge/internal/config"
	"healthbridge/internal/models"
)

// AuthHandler handles login requests
type AuthHandler struct {
	tokens *auth.TokenService
	users  map[string]config.User
	logger *log.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens *auth.TokenService, users map[string]config.User, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Login handles credential exchange
// @Summary Log in
// @Description Exchange username and password for a bearer token carrying the user's role
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var reqBody models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reqBody.Username == "" || reqBody.Password == "" {
		h.sendError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, ok := h.users[reqBody.Username]
	if !ok || user.Password != reqBody.Password {
		h.logger.Printf("Failed login attempt for user '%s'", reqBody.Username)
		h.sendError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	role := user.Role
	if role != models.RoleDoctor {
		role = models.RolePatient
	}

	token, err := h.tokens.Issue(reqBody.Username, role)
	if err != nil {
		h.logger.Printf("Failed to issue token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	h.logger.Printf("User '%s' logged in (role: %s)", reqBody.Username, role)

	h.sendJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		UserID:      reqBody.Username,
		Role:        role,
		ExpiresIn:   int(h.tokens.Expiry().Seconds()),
	})
}

// Helper methods

func (h *AuthHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *AuthHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
