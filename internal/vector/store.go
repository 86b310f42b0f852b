// Package vector provides per-index chunk tables with similarity search.
package vector

import (
	"context"

	"github.com/hyperjump/semindex/internal/models"
)

// Store is the vector table of one index.
type Store interface {
	// ReplaceFile removes every record of file and inserts records in its place.
	// Readers never observe a state where both old and new records are present.
	ReplaceFile(ctx context.Context, file string, records []models.ChunkRecord) error
	// DeleteFile removes every record of file.
	DeleteFile(ctx context.Context, file string) error
	// Query returns up to k records nearest to vector, ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Match is one record returned by Query.
type Match struct {
	Record   models.ChunkRecord
	Distance float64 // 1 - cosine similarity
}
