package repositories

import (
	"context"
)

// VectorRepository defines the interface for vector database operations.
// This abstracts ChromaDB and allows for easy testing and implementation
// swapping. The store is responsible for embedding query texts; callers pass
// plain text and a metadata predicate.
type VectorRepository interface {
	// SearchChunks runs a nearest-neighbor query restricted by the given
	// metadata predicate and returns results ranked by ascending distance.
	SearchChunks(ctx context.Context, collectionName string, queryText string, topK int, where map[string]interface{}) ([]*DocumentChunk, error)

	// StoreDocuments adds document texts with their metadata to a collection.
	StoreDocuments(ctx context.Context, collectionName string, ids []string, documents []string, metadatas []map[string]interface{}) error

	// CountChunks returns the number of chunks stored in a collection.
	CountChunks(ctx context.Context, collectionName string) (int, error)

	// ListCollections returns all collection names with their counts.
	ListCollections(ctx context.Context) (map[string]int, error)

	// ResetCollection drops and recreates a collection.
	ResetCollection(ctx context.Context, collectionName string) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// DocumentChunk is a retrieved unit from the vector store. Distance is the
// raw similarity distance (lower = more relevant); ranking always uses it.
type DocumentChunk struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// SimilarityScore exposes the distance as a display-only similarity value.
func (c *DocumentChunk) SimilarityScore() float64 {
	return 1.0 - c.Distance
}

// SourceType returns the chunk's owning corpus ("patient" or "guideline").
func (c *DocumentChunk) SourceType() string {
	if s, ok := c.Metadata["source_type"].(string); ok {
		return s
	}
	return ""
}

// PatientID returns the owning patient id for patient-scoped chunks.
func (c *DocumentChunk) PatientID() string {
	if s, ok := c.Metadata["patient_id"].(string); ok {
		return s
	}
	return ""
}

// VectorRepositoryError represents errors from the vector repository.
type VectorRepositoryError struct {
	Operation string
	Err       error
	Message   string
}

func (e *VectorRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *VectorRepositoryError) Unwrap() error {
	return e.Err
}

// NewVectorRepositoryError creates a new vector repository error.
func NewVectorRepositoryError(operation string, err error, message string) *VectorRepositoryError {
	return &VectorRepositoryError{
		Operation: operation,
		Err:       err,
		Message:   message,
	}
}
