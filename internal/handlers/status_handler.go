package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"healthbridge/internal/repositories"
	"healthbridge/internal/services"
)

// StatusHandler serves the health and system status endpoints
type StatusHandler struct {
	vectorRepo repositories.VectorRepository
	runner     services.TaskRunner
	memory     *services.MemoryService
	profiles   repositories.ProfileStore
	version    string
	logger     *log.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	vectorRepo repositories.VectorRepository,
	runner services.TaskRunner,
	memory *services.MemoryService,
	profiles repositories.ProfileStore,
	version string,
	logger *log.Logger,
) *StatusHandler {
	return &StatusHandler{
		vectorRepo: vectorRepo,
		runner:     runner,
		memory:     memory,
		profiles:   profiles,
		version:    version,
		logger:     logger,
	}
}

// Home serves the service banner
// @Summary Service info
// @Description Health banner with the available endpoints
// @Tags status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *StatusHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "HealthBridge AI API",
		"version": h.version,
		"features": map[string]string{
			"role_based_responses": "doctor/patient",
			"conversation_memory":  "enabled",
			"rag_integration":      "enabled",
			"auto_task_selection":  "enabled",
		},
		"endpoints": map[string]string{
			"login":              "/auth/login (POST)",
			"ai_chat":            "/ai/chat (POST) - MAIN ENDPOINT",
			"rag_only":           "/rag/query (POST)",
			"analyze_query":      "/analyze-query (POST)",
			"user_profile":       "/user/profile (GET, POST)",
			"user_conversations": "/user/conversations (GET)",
			"status":             "/status (GET)",
		},
	})
}

// Health serves the liveness probe
// @Summary Health check
// @Tags status
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Status serves the system status report
// @Summary System status
// @Description Connectivity and collection counts for the vector store and the task runner
// @Tags status
// @Produce json
// @Success 200 {object} StatusReport
// @Router /status [get]
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report := StatusReport{
		ChromaDBStatus: "connected",
		CrewStatus:     "available",
		Collections:    []CollectionStatus{},
		AvailableTasks: services.AvailableTaskKeys(),
	}

	collections, err := h.vectorRepo.ListCollections(ctx)
	if err != nil {
		h.logger.Printf("Failed to list collections: %v", err)
		report.ChromaDBStatus = "unavailable"
	} else {
		for name, count := range collections {
			report.Collections = append(report.Collections, CollectionStatus{Name: name, Count: count})
		}
	}

	if err := h.runner.HealthCheck(ctx); err != nil {
		h.logger.Printf("Task runner health check failed: %v", err)
		report.CrewStatus = "unavailable"
	}

	report.UsersInMemory = h.memory.UserCount(ctx)
	if count, err := h.profiles.Count(ctx); err == nil {
		report.UserProfiles = count
	}

	h.sendJSON(w, http.StatusOK, report)
}

// Helper methods

func (h *StatusHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

// Response types

type StatusReport struct {
	ChromaDBStatus string             `json:"chromadb_status"`
	Collections    []CollectionStatus `json:"collections"`
	CrewStatus     string             `json:"crew_status"`
	AvailableTasks []string           `json:"available_tasks"`
	UsersInMemory  int                `json:"users_in_memory"`
	UserProfiles   int                `json:"user_profiles"`
}

type CollectionStatus struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
