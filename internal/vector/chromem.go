package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/models"
)

const collectionName = "chunks"

const (
	metaFile       = "file"
	metaChunkIndex = "chunk_index"
	metaArchived   = "archived"
)

var errNoEmbedder = errors.New("chromem store expects precomputed embeddings")

// ChromemStore is a Store persisted by chromem-go, one document per chunk.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromemStore opens (or creates) a persistent chromem database in dir.
func NewChromemStore(dir string, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	ef := func(context.Context, string) ([]float32, error) { return nil, errNoEmbedder }
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	logger.Debug("chromem store opened", zap.String("dir", dir), zap.Int("documents", col.Count()))
	return &ChromemStore{db: db, collection: col, logger: logger}, nil
}

// ReplaceFile deletes file's documents and adds records while holding the write lock.
func (s *ChromemStore) ReplaceFile(ctx context.Context, file string, records []models.ChunkRecord) error {
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if r.File != file {
			return fmt.Errorf("record %s belongs to %s, not %s", r.ID, r.File, file)
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Vector,
			Metadata: map[string]string{
				metaFile:       r.File,
				metaChunkIndex: strconv.Itoa(r.ChunkIndex),
				metaArchived:   strconv.FormatBool(r.Archived),
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.Delete(ctx, map[string]string{metaFile: file}, nil); err != nil {
		return fmt.Errorf("chromem delete %s: %w", file, err)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("chromem add %s: %w", file, err)
	}
	return nil
}

// DeleteFile removes file's documents.
func (s *ChromemStore) DeleteFile(ctx context.Context, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.Delete(ctx, map[string]string{metaFile: file}, nil); err != nil {
		return fmt.Errorf("chromem delete %s: %w", file, err)
	}
	return nil
}

// Query runs a nearest-neighbour query. chromem requires nResults <= collection size.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := s.collection.Count()
	if k <= 0 || count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		chunkIndex, _ := strconv.Atoi(r.Metadata[metaChunkIndex])
		archived, _ := strconv.ParseBool(r.Metadata[metaArchived])
		matches[i] = Match{
			Record: models.ChunkRecord{
				ID:         r.ID,
				File:       r.Metadata[metaFile],
				ChunkIndex: chunkIndex,
				Content:    r.Content,
				Vector:     r.Embedding,
				Archived:   archived,
			},
			Distance: 1 - float64(r.Similarity),
		}
	}
	return topK(matches, k), nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Close releases nothing; chromem writes each document on add.
func (s *ChromemStore) Close() error {
	return nil
}
