package models

import "time"

// UserProfile holds per-user role and preference data.
type UserProfile struct {
	UserID            string    `json:"user_id"`
	Role              string    `json:"role"` // "doctor" or "patient"
	Specialty         string    `json:"specialty,omitempty"`
	MedicalConditions []string  `json:"medical_conditions,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}
