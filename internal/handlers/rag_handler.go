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

// RAGHandler handles HTTP requests for pure retrieval operations
type RAGHandler struct {
	retrievalService *services.RetrievalService
	policy           RAGPolicy
	logger           *log.Logger
}

// RAGPolicy carries the per-role retrieval defaults.
type RAGPolicy struct {
	TopK              int
	DoctorTopK        int
	DistanceThreshold float64
}

// NewRAGHandler creates a new RAG handler
func NewRAGHandler(retrievalService *services.RetrievalService, policy RAGPolicy, logger *log.Logger) *RAGHandler {
	return &RAGHandler{
		retrievalService: retrievalService,
		policy:           policy,
		logger:           logger,
	}
}

// Query handles retrieval-only requests
// @Summary Retrieve medical context
// @Description Perform scoped similarity search without task execution. Patients search their own records, doctors the guideline corpus.
// @Tags rag
// @Accept json
// @Produce json
// @Param query body RAGQueryRequestBody true "RAG query"
// @Success 200 {object} models.RAGQueryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Security BearerAuth
// @Router /rag/query [post]
func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		h.sendError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var reqBody RAGQueryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.logger.Printf("RAG query from user '%s': %s", identity.UserID, reqBody.Message)

	req := services.RetrievalRequest{
		QueryText:         reqBody.Message,
		TopK:              reqBody.TopK,
		DistanceThreshold: h.policy.DistanceThreshold,
	}
	if identity.Role == models.RoleDoctor {
		req.SourceType = models.SourceTypeGuideline
		if req.TopK <= 0 {
			req.TopK = h.policy.DoctorTopK
		}
	} else {
		req.SourceType = models.SourceTypePatient
		req.UserID = identity.UserID
		if req.TopK <= 0 {
			req.TopK = h.policy.TopK
		}
	}

	resp, err := h.retrievalService.Retrieve(r.Context(), req)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			h.sendError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.Printf("Retrieval failed: %v", err)
		h.sendError(w, http.StatusBadGateway, "Medical knowledge base is unavailable")
		return
	}

	results := resp.RankedResults()
	status := "success"
	if len(results) == 0 {
		status = "no_data"
		results = []models.RetrievedChunk{}
	}

	h.sendJSON(w, http.StatusOK, models.RAGQueryResponse{
		Status:  status,
		UserID:  identity.UserID,
		Query:   reqBody.Message,
		Results: results,
	})
}

// Helper methods

func (h *RAGHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *RAGHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// Request types

type RAGQueryRequestBody struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k,omitempty"`
}
