package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
)

// RetrievalRequest describes one similarity search against the medical corpus.
type RetrievalRequest struct {
	QueryText         string
	SourceType        string // "patient" or "guideline"
	UserID            string // required for patient scope
	TopK              int
	DistanceThreshold float64
}

// RetrievalResponse holds retrieved chunks ranked by ascending distance.
type RetrievalResponse struct {
	Chunks       []*repositories.DocumentChunk
	SearchTimeMs float64
}

// BuildScopeFilter builds the access-control predicate for a retrieval.
//
// Guideline scope matches the shared corpus only. Patient scope requires a
// user id and matches the conjunction of source_type and patient_id; both
// clauses are required for the isolation invariant.
func BuildScopeFilter(sourceType, userID string) (map[string]interface{}, error) {
	switch sourceType {
	case models.SourceTypeGuideline:
		return map[string]interface{}{
			"source_type": map[string]interface{}{"$eq": models.SourceTypeGuideline},
		}, nil

	case models.SourceTypePatient:
		if strings.TrimSpace(userID) == "" {
			return nil, NewValidationError("user_id", "user_id is required for patient data queries")
		}
		return map[string]interface{}{
			"$and": []map[string]interface{}{
				{"source_type": map[string]interface{}{"$eq": models.SourceTypePatient}},
				{"patient_id": map[string]interface{}{"$eq": userID}},
			},
		}, nil

	default:
		return nil, NewValidationError("source_type", fmt.Sprintf("unknown source type: %q", sourceType))
	}
}

// filterByDistance discards chunks beyond the relevance cutoff, preserving
// the relative order of the remainder.
func filterByDistance(chunks []*repositories.DocumentChunk, threshold float64) []*repositories.DocumentChunk {
	kept := make([]*repositories.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Distance <= threshold {
			kept = append(kept, chunk)
		}
	}
	return kept
}

// RetrievalService performs security-partitioned similarity search.
type RetrievalService struct {
	vectorRepo repositories.VectorRepository
	collection string
	logger     *log.Logger
}

// NewRetrievalService creates a retrieval service over the given collection.
func NewRetrievalService(vectorRepo repositories.VectorRepository, collection string, logger *log.Logger) *RetrievalService {
	return &RetrievalService{
		vectorRepo: vectorRepo,
		collection: collection,
		logger:     logger,
	}
}

// Retrieve validates the request, applies the security partition and the
// distance cutoff, and returns chunks ranked by ascending distance.
//
// On any backend failure it fails closed: the error is a
// *RetrievalBackendError and no chunks are returned.
func (s *RetrievalService) Retrieve(ctx context.Context, req RetrievalRequest) (*RetrievalResponse, error) {
	startTime := time.Now()

	if strings.TrimSpace(req.QueryText) == "" {
		return nil, NewValidationError("query_text", "query text must not be empty")
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}
	if req.DistanceThreshold <= 0 {
		req.DistanceThreshold = 1.6
	}

	where, err := BuildScopeFilter(req.SourceType, req.UserID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.vectorRepo.SearchChunks(ctx, s.collection, req.QueryText, req.TopK, where)
	if err != nil {
		s.logger.Printf("Vector search failed: %v", err)
		return nil, &RetrievalBackendError{Err: err}
	}

	// Responses must be non-decreasing by distance regardless of backend
	// ordering.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Distance < chunks[j].Distance
	})

	// The where predicate is the primary control; re-checking the results
	// keeps patient isolation intact if the backend mishandles it.
	if req.SourceType == models.SourceTypePatient {
		scoped := chunks[:0]
		for _, chunk := range chunks {
			if chunk.SourceType() == models.SourceTypePatient && chunk.PatientID() == req.UserID {
				scoped = append(scoped, chunk)
			}
		}
		chunks = scoped
	}

	chunks = filterByDistance(chunks, req.DistanceThreshold)

	searchTime := time.Since(startTime).Seconds() * 1000
	s.logger.Printf("Retrieved %d chunks for %s scope in %.2fms", len(chunks), req.SourceType, searchTime)

	return &RetrievalResponse{
		Chunks:       chunks,
		SearchTimeMs: searchTime,
	}, nil
}

// RankedResults converts a retrieval response into ranked display results
// with similarity scores.
func (r *RetrievalResponse) RankedResults() []models.RetrievedChunk {
	results := make([]models.RetrievedChunk, 0, len(r.Chunks))
	for i, chunk := range r.Chunks {
		results = append(results, models.RetrievedChunk{
			Rank:            i + 1,
			Content:         chunk.Content,
			Metadata:        chunk.Metadata,
			SimilarityScore: chunk.SimilarityScore(),
		})
	}
	return results
}
