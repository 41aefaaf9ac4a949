package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"healthbridge/internal/config"
	"healthbridge/internal/models"
	"healthbridge/internal/repositories"
)

// guidelinesDir and patientRecordsDir are the expected subdirectories of the
// ingest data directory.
const (
	guidelinesDir     = "medical_guidelines"
	patientRecordsDir = "patient_records"
)

// patientFilePattern extracts the patient id from record filenames like
// "patient-p001_visit_notes.txt".
var patientFilePattern = regexp.MustCompile(`^patient-([A-Za-z0-9]+)_`)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	FilesProcessed int      `json:"files_processed"`
	ChunksStored   int      `json:"chunks_stored"`
	SkippedFiles   []string `json:"skipped_files,omitempty"`
}

// IngestService loads medical guideline and patient record files into the
// vector store, chunked with overlap and tagged with the scope metadata the
// retrieval filters depend on.
type IngestService struct {
	vectorRepo repositories.VectorRepository
	collection string
	cfg        config.IngestConfig
	logger     *log.Logger
}

// NewIngestService creates an ingest service targeting the given collection.
func NewIngestService(vectorRepo repositories.VectorRepository, collection string, cfg config.IngestConfig, logger *log.Logger) *IngestService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 150
	}
	return &IngestService{
		vectorRepo: vectorRepo,
		collection: collection,
		cfg:        cfg,
		logger:     logger,
	}
}

// IngestDirectory indexes every document under dataDir. Guidelines live in
// medical_guidelines/ and are shared; patient files live in patient_records/
// and must carry the patient id in their filename to be scoped correctly.
// Files that cannot be attributed are skipped, never stored unscoped.
func (s *IngestService) IngestDirectory(ctx context.Context, dataDir string) (*IngestResult, error) {
	if dataDir == "" {
		dataDir = s.cfg.DataDir
	}
	if dataDir == "" {
		return nil, NewValidationError("data_dir", "data directory is not configured")
	}

	result := &IngestResult{}

	guidelines := filepath.Join(dataDir, guidelinesDir)
	if err := s.ingestTree(ctx, guidelines, models.SourceTypeGuideline, result); err != nil {
		return nil, err
	}

	records := filepath.Join(dataDir, patientRecordsDir)
	if err := s.ingestTree(ctx, records, models.SourceTypePatient, result); err != nil {
		return nil, err
	}

	s.logger.Printf("Ingestion complete: %d files, %d chunks stored, %d skipped",
		result.FilesProcessed, result.ChunksStored, len(result.SkippedFiles))
	return result, nil
}

func (s *IngestService) ingestTree(ctx context.Context, root, sourceType string, result *IngestResult) error {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		s.logger.Printf("Ingest directory %s not found, skipping", root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ingest directory %s: %w", root, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isTextFile(entry.Name()) {
			continue
		}
		path := filepath.Join(root, entry.Name())

		patientID := ""
		if sourceType == models.SourceTypePatient {
			m := patientFilePattern.FindStringSubmatch(entry.Name())
			if m == nil {
				s.logger.Printf("Skipping %s: patient id not encoded in filename", entry.Name())
				result.SkippedFiles = append(result.SkippedFiles, entry.Name())
				continue
			}
			patientID = m[1]
		}

		stored, err := s.ingestFile(ctx, path, sourceType, patientID)
		if err != nil {
			return err
		}
		result.FilesProcessed++
		result.ChunksStored += stored
	}
	return nil
}

func (s *IngestService) ingestFile(ctx context.Context, path, sourceType, patientID string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	chunks := ChunkText(string(content), s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	ids := make([]string, len(chunks))
	metadatas := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		ids[i] = uuid.NewString()
		meta := map[string]interface{}{
			"source_type": sourceType,
			"source_file": filepath.Base(path),
			"chunk_index": i,
		}
		if patientID != "" {
			meta["patient_id"] = patientID
		}
		metadatas[i] = meta
	}

	if err := s.vectorRepo.StoreDocuments(ctx, s.collection, ids, chunks, metadatas); err != nil {
		return 0, fmt.Errorf("failed to store chunks from %s: %w", path, err)
	}

	s.logger.Printf("Indexed %s: %d chunks (%s scope)", filepath.Base(path), len(chunks), sourceType)
	return len(chunks), nil
}

// ChunkText splits text into overlapping windows. Each chunk is at most size
// bytes and consecutive chunks share overlap bytes of context.
func ChunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(text) {
			break
		}
	}
	return chunks
}

func isTextFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	}
	return false
}
