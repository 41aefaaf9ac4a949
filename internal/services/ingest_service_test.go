package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"healthbridge/internal/config"
)

// ============================================================================
// Test Setup
// ============================================================================

func setupTestIngestService(t *testing.T) (*IngestService, *MockVectorRepository) {
	mockRepo := new(MockVectorRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	service := NewIngestService(mockRepo, testCollection, config.IngestConfig{
		ChunkSize:    1000,
		ChunkOverlap: 150,
	}, logger)
	return service, mockRepo
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	assert.NoError(t, os.MkdirAll(dir, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// ============================================================================
// ChunkText Tests
// ============================================================================

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkText("short document", 1000, 150)

	assert.Len(t, chunks, 1)
	assert.Equal(t, "short document", chunks[0])
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("   ", 1000, 150))
}

func TestChunkText_OverlapWindows(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100, 20)

	// Steps of 80: windows start at 0, 80, and 160; the last one reaches the
	// end of the text.
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)
}

func TestChunkText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30)
	chunks := ChunkText(text, 100, 0)

	assert.Equal(t, text, strings.Join(chunks, ""))
}

// ============================================================================
// IngestDirectory Tests
// ============================================================================

func TestIngestDirectory_GuidelinesAndPatientRecords(t *testing.T) {
	service, mockRepo := setupTestIngestService(t)
	ctx := context.Background()

	dataDir := t.TempDir()
	writeTestFile(t, filepath.Join(dataDir, guidelinesDir), "hypertension.txt",
		"Hypertension guideline content.")
	writeTestFile(t, filepath.Join(dataDir, patientRecordsDir), "patient-p001_visit.txt",
		"Visit notes for patient p001.")

	var storedMetadatas [][]map[string]interface{}
	mockRepo.On("StoreDocuments", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			storedMetadatas = append(storedMetadatas, args.Get(4).([]map[string]interface{}))
		}).
		Return(nil)

	result, err := service.IngestDirectory(ctx, dataDir)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 2, result.ChunksStored)
	assert.Empty(t, result.SkippedFiles)

	assert.Len(t, storedMetadatas, 2)
	guidelineMeta := storedMetadatas[0][0]
	assert.Equal(t, "guideline", guidelineMeta["source_type"])
	assert.NotContains(t, guidelineMeta, "patient_id")
	patientMeta := storedMetadatas[1][0]
	assert.Equal(t, "patient", patientMeta["source_type"])
	assert.Equal(t, "p001", patientMeta["patient_id"])
}

func TestIngestDirectory_SkipsUnattributablePatientFiles(t *testing.T) {
	service, mockRepo := setupTestIngestService(t)
	ctx := context.Background()

	dataDir := t.TempDir()
	writeTestFile(t, filepath.Join(dataDir, patientRecordsDir), "notes.txt",
		"Record without a patient id in the filename.")

	result, err := service.IngestDirectory(ctx, dataDir)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.FilesProcessed)
	assert.Equal(t, []string{"notes.txt"}, result.SkippedFiles)
	mockRepo.AssertNotCalled(t, "StoreDocuments",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestDirectory_IgnoresNonTextFiles(t *testing.T) {
	service, mockRepo := setupTestIngestService(t)
	ctx := context.Background()

	dataDir := t.TempDir()
	writeTestFile(t, filepath.Join(dataDir, guidelinesDir), "scan.pdf", "binary-ish")
	writeTestFile(t, filepath.Join(dataDir, guidelinesDir), "guide.md", "# Guide\ncontent")

	mockRepo.On("StoreDocuments", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	result, err := service.IngestDirectory(ctx, dataDir)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
}

func TestIngestDirectory_MissingSubdirsAreSkipped(t *testing.T) {
	service, _ := setupTestIngestService(t)

	result, err := service.IngestDirectory(context.Background(), t.TempDir())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.FilesProcessed)
}

func TestIngestDirectory_NoDataDirConfigured(t *testing.T) {
	service, _ := setupTestIngestService(t)

	_, err := service.IngestDirectory(context.Background(), "")

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestIngestDirectory_ChunksLongDocuments(t *testing.T) {
	service, mockRepo := setupTestIngestService(t)
	ctx := context.Background()

	dataDir := t.TempDir()
	writeTestFile(t, filepath.Join(dataDir, guidelinesDir), "long.txt",
		strings.Repeat("guideline text ", 200))

	var storedDocs []string
	mockRepo.On("StoreDocuments", ctx, testCollection, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			storedDocs = args.Get(3).([]string)
		}).
		Return(nil)

	result, err := service.IngestDirectory(ctx, dataDir)

	assert.NoError(t, err)
	assert.Greater(t, result.ChunksStored, 1)
	assert.Equal(t, result.ChunksStored, len(storedDocs))
}
