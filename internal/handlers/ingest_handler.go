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

// IngestHandler handles document ingestion requests
type IngestHandler struct {
	ingestService *services.IngestService
	logger        *log.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestService *services.IngestService, logger *log.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

// Ingest handles ingestion runs
// @Summary Ingest medical documents
// @Description Index guideline and patient record files from the configured data directory into the vector store
// @Tags admin
// @Accept json
// @Produce json
// @Param request body IngestRequestBody false "Ingestion request"
// @Success 200 {object} services.IngestResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerAuth
// @Router /admin/ingest [post]
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if identity.Role != models.RoleDoctor {
		h.sendError(w, http.StatusForbidden, "Ingestion requires the doctor role")
		return
	}

	var reqBody IngestRequestBody
	if r.Body != nil {
		// Body is optional; the configured data directory is the default.
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
	}

	h.logger.Printf("Ingestion requested (data_dir: %q)", reqBody.DataDir)

	result, err := h.ingestService.IngestDirectory(r.Context(), reqBody.DataDir)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			h.sendError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.Printf("Ingestion failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sendJSON(w, http.StatusOK, result)
}

// Helper methods

func (h *IngestHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *IngestHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// Request types

type IngestRequestBody struct {
	DataDir string `json:"data_dir,omitempty"`
}
