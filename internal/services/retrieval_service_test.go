package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
)

// ============================================================================
// Mocks
// ============================================================================

type MockVectorRepository struct {
	mock.Mock
}

func (m *MockVectorRepository) SearchChunks(ctx context.Context, collectionName string, queryText string, topK int, where map[string]interface{}) ([]*repositories.DocumentChunk, error) {
	args := m.Called(ctx, collectionName, queryText, topK, where)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.DocumentChunk), args.Error(1)
}

func (m *MockVectorRepository) StoreDocuments(ctx context.Context, collectionName string, ids []string, documents []string, metadatas []map[string]interface{}) error {
	args := m.Called(ctx, collectionName, ids, documents, metadatas)
	return args.Error(0)
}

func (m *MockVectorRepository) CountChunks(ctx context.Context, collectionName string) (int, error) {
	args := m.Called(ctx, collectionName)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorRepository) ListCollections(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockVectorRepository) ResetCollection(ctx context.Context, collectionName string) error {
	args := m.Called(ctx, collectionName)
	return args.Error(0)
}

func (m *MockVectorRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockVectorRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ============================================================================
// Test Setup
// ============================================================================

const testCollection = "healthbridge_ai"

func setupTestRetrievalService(t *testing.T) (*RetrievalService, *MockVectorRepository) {
	mockRepo := new(MockVectorRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	service := NewRetrievalService(mockRepo, testCollection, logger)
	return service, mockRepo
}

func patientChunk(id, patientID, content string, distance float64) *repositories.DocumentChunk {
	return &repositories.DocumentChunk{
		ID:      id,
		Content: content,
		Metadata: map[string]interface{}{
			"source_type": models.SourceTypePatient,
			"patient_id":  patientID,
		},
		Distance: distance,
	}
}

func guidelineChunk(id, content string, distance float64) *repositories.DocumentChunk {
	return &repositories.DocumentChunk{
		ID:      id,
		Content: content,
		Metadata: map[string]interface{}{
			"source_type": models.SourceTypeGuideline,
		},
		Distance: distance,
	}
}

// ============================================================================
// Scope Filter Tests
// ============================================================================

func TestBuildScopeFilter_Guideline(t *testing.T) {
	filter, err := BuildScopeFilter(models.SourceTypeGuideline, "")

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"source_type": map[string]interface{}{"$eq": "guideline"},
	}, filter)
}

func TestBuildScopeFilter_Patient(t *testing.T) {
	filter, err := BuildScopeFilter(models.SourceTypePatient, "p001")

	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"$and": []map[string]interface{}{
			{"source_type": map[string]interface{}{"$eq": "patient"}},
			{"patient_id": map[string]interface{}{"$eq": "p001"}},
		},
	}, filter)
}

func TestBuildScopeFilter_PatientWithoutUserID(t *testing.T) {
	_, err := BuildScopeFilter(models.SourceTypePatient, "  ")

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "user_id", validationErr.Field)
}

func TestBuildScopeFilter_UnknownSourceType(t *testing.T) {
	_, err := BuildScopeFilter("everything", "p001")

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

// ============================================================================
// Retrieve Tests
// ============================================================================

func TestRetrieve_GuidelineScope(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	expectedWhere, _ := BuildScopeFilter(models.SourceTypeGuideline, "")
	mockRepo.On("SearchChunks", ctx, testCollection, "hypertension management", 5, expectedWhere).
		Return([]*repositories.DocumentChunk{
			guidelineChunk("g1", "First-line treatment for hypertension includes ACE inhibitors.", 0.4),
			guidelineChunk("g2", "Lifestyle modification is recommended for all stages.", 0.9),
		}, nil)

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:  "hypertension management",
		SourceType: models.SourceTypeGuideline,
		TopK:       5,
	})

	assert.NoError(t, err)
	assert.Len(t, resp.Chunks, 2)
	mockRepo.AssertExpectations(t)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	service, _ := setupTestRetrievalService(t)

	_, err := service.Retrieve(context.Background(), RetrievalRequest{
		QueryText:  "   ",
		SourceType: models.SourceTypeGuideline,
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRetrieve_DefaultsApplied(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	expectedWhere, _ := BuildScopeFilter(models.SourceTypeGuideline, "")
	mockRepo.On("SearchChunks", ctx, testCollection, "chest pain", 3, expectedWhere).
		Return([]*repositories.DocumentChunk{}, nil)

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:  "chest pain",
		SourceType: models.SourceTypeGuideline,
	})

	assert.NoError(t, err)
	assert.Empty(t, resp.Chunks)
	mockRepo.AssertExpectations(t)
}

func TestRetrieve_ResultsSortedByDistance(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			guidelineChunk("g3", "third", 1.2),
			guidelineChunk("g1", "first", 0.2),
			guidelineChunk("g2", "second", 0.7),
		}, nil)

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:  "ordering",
		SourceType: models.SourceTypeGuideline,
	})

	assert.NoError(t, err)
	assert.Len(t, resp.Chunks, 3)
	assert.Equal(t, "g1", resp.Chunks[0].ID)
	assert.Equal(t, "g2", resp.Chunks[1].ID)
	assert.Equal(t, "g3", resp.Chunks[2].ID)
}

func TestRetrieve_DistanceThresholdApplied(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			guidelineChunk("near", "relevant", 0.5),
			guidelineChunk("far", "irrelevant", 1.9),
		}, nil)

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:         "threshold",
		SourceType:        models.SourceTypeGuideline,
		DistanceThreshold: 1.6,
	})

	assert.NoError(t, err)
	assert.Len(t, resp.Chunks, 1)
	assert.Equal(t, "near", resp.Chunks[0].ID)
}

func TestRetrieve_PatientIsolation(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	// A misbehaving backend returns another patient's chunk despite the
	// where predicate.
	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return([]*repositories.DocumentChunk{
			patientChunk("own", "p001", "Patient p001 visit notes.", 0.3),
			patientChunk("other", "p002", "Patient p002 visit notes.", 0.4),
			guidelineChunk("shared", "General guidance.", 0.5),
		}, nil)

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:  "my last visit",
		SourceType: models.SourceTypePatient,
		UserID:     "p001",
	})

	assert.NoError(t, err)
	assert.Len(t, resp.Chunks, 1)
	assert.Equal(t, "own", resp.Chunks[0].ID)
}

func TestRetrieve_BackendFailureFailsClosed(t *testing.T) {
	service, mockRepo := setupTestRetrievalService(t)
	ctx := context.Background()

	mockRepo.On("SearchChunks", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	resp, err := service.Retrieve(ctx, RetrievalRequest{
		QueryText:  "anything",
		SourceType: models.SourceTypePatient,
		UserID:     "p001",
	})

	assert.Nil(t, resp)
	var backendErr *RetrievalBackendError
	assert.ErrorAs(t, err, &backendErr)
}

func TestRankedResults(t *testing.T) {
	resp := &RetrievalResponse{
		Chunks: []*repositories.DocumentChunk{
			guidelineChunk("g1", "first", 0.2),
			guidelineChunk("g2", "second", 0.7),
		},
	}

	results := resp.RankedResults()

	assert.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.InDelta(t, 0.8, results[0].SimilarityScore, 0.001)
	assert.InDelta(t, 0.3, results[1].SimilarityScore, 0.001)
}
