package repositories

import (
	"context"
	"fmt"

	"healthbridge/internal/db"
)

// ChromaVectorRepository implements VectorRepository using ChromaDB.
type ChromaVectorRepository struct {
	client *db.ChromaDBClient
}

// NewChromaVectorRepository creates a new ChromaDB-backed vector repository.
func NewChromaVectorRepository(client *db.ChromaDBClient) VectorRepository {
	return &ChromaVectorRepository{
		client: client,
	}
}

// SearchChunks runs a similarity query and flattens the first (and only)
// query's result lists into ranked DocumentChunks.
func (r *ChromaVectorRepository) SearchChunks(ctx context.Context, collectionName string, queryText string, topK int, where map[string]interface{}) ([]*DocumentChunk, error) {
	results, err := r.client.Query(ctx, collectionName, []string{queryText}, topK, where)
	if err != nil {
		return nil, NewVectorRepositoryError("search_chunks", err, "")
	}

	chunks := make([]*DocumentChunk, 0)
	if len(results.IDs) > 0 {
		for i := range results.IDs[0] {
			metadata := make(map[string]interface{})
			if len(results.Metadatas) > 0 && len(results.Metadatas[0]) > i {
				metadata = results.Metadatas[0][i]
			}

			var content string
			if len(results.Documents) > 0 && len(results.Documents[0]) > i {
				content = results.Documents[0][i]
			}

			var distance float64
			if len(results.Distances) > 0 && len(results.Distances[0]) > i {
				distance = results.Distances[0][i]
			}

			chunks = append(chunks, &DocumentChunk{
				ID:       results.IDs[0][i],
				Content:  content,
				Metadata: metadata,
				Distance: distance,
			})
		}
	}

	return chunks, nil
}

// StoreDocuments adds document texts with metadata to a collection.
func (r *ChromaVectorRepository) StoreDocuments(ctx context.Context, collectionName string, ids []string, documents []string, metadatas []map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(documents) || (metadatas != nil && len(metadatas) != len(ids)) {
		return NewVectorRepositoryError("store_documents", nil,
			fmt.Sprintf("mismatched lengths: %d ids, %d documents", len(ids), len(documents)))
	}

	if err := r.client.AddDocuments(ctx, collectionName, ids, documents, metadatas); err != nil {
		return NewVectorRepositoryError("store_documents", err,
			fmt.Sprintf("failed to store %d documents", len(ids)))
	}

	return nil
}

// CountChunks returns the number of chunks in a collection.
func (r *ChromaVectorRepository) CountChunks(ctx context.Context, collectionName string) (int, error) {
	count, err := r.client.CountCollection(ctx, collectionName)
	if err != nil {
		return 0, NewVectorRepositoryError("count_chunks", err, "")
	}
	return count, nil
}

// ListCollections returns collection names with their chunk counts.
func (r *ChromaVectorRepository) ListCollections(ctx context.Context) (map[string]int, error) {
	collections, err := r.client.ListCollections(ctx)
	if err != nil {
		return nil, NewVectorRepositoryError("list_collections", err, "")
	}

	counts := make(map[string]int, len(collections))
	for _, col := range collections {
		count, err := r.client.CountCollection(ctx, col.Name)
		if err != nil {
			// Report the collection as present even when counting fails.
			counts[col.Name] = 0
			continue
		}
		counts[col.Name] = count
	}

	return counts, nil
}

// ResetCollection drops and recreates a collection.
func (r *ChromaVectorRepository) ResetCollection(ctx context.Context, collectionName string) error {
	// A missing collection is fine; recreate below either way.
	_ = r.client.DeleteCollection(ctx, collectionName)

	if _, err := r.client.GetOrCreateCollection(ctx, collectionName); err != nil {
		return NewVectorRepositoryError("reset_collection", err, "failed to recreate collection: "+collectionName)
	}
	return nil
}

// Ping checks if ChromaDB is alive.
func (r *ChromaVectorRepository) Ping(ctx context.Context) error {
	if err := r.client.Heartbeat(ctx); err != nil {
		return NewVectorRepositoryError("ping", err, "ChromaDB heartbeat failed")
	}
	return nil
}

// Close closes the ChromaDB client.
func (r *ChromaVectorRepository) Close() error {
	r.client.Close()
	return nil
}
