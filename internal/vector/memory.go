package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hyperjump/semindex/internal/models"
)

// MemoryStore is a brute-force in-memory Store. Nothing is persisted; used by tests and
// by the "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.ChunkRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// ReplaceFile swaps file's records under one write lock.
func (m *MemoryStore) ReplaceFile(ctx context.Context, file string, records []models.ChunkRecord) error {
	for _, r := range records {
		if r.File != file {
			return fmt.Errorf("record %s belongs to %s, not %s", r.ID, r.File, file)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = appendCopies(removeFile(m.records, file), records)
	return nil
}

// DeleteFile removes file's records.
func (m *MemoryStore) DeleteFile(ctx context.Context, file string) error {
	m.mu.Lock()
	m.records = removeFile(m.records, file)
	m.mu.Unlock()
	return nil
}

// Query scores every record and returns the k closest.
func (m *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(m.records))
	for _, r := range m.records {
		if len(r.Vector) != len(vector) {
			return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), len(r.Vector))
		}
		matches = append(matches, Match{Record: r, Distance: Distance(vector, r.Vector)})
	}
	return topK(matches, k), nil
}

// Count returns the number of records.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

func removeFile(records []models.ChunkRecord, file string) []models.ChunkRecord {
	kept := records[:0]
	for _, r := range records {
		if r.File != file {
			kept = append(kept, r)
		}
	}
	return kept
}

func appendCopies(dst, src []models.ChunkRecord) []models.ChunkRecord {
	for _, r := range src {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		dst = append(dst, r)
	}
	return dst
}

// topK sorts by ascending distance, breaking ties by file then chunk index, and truncates.
func topK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Record.File != b.Record.File {
			return a.Record.File < b.Record.File
		}
		return a.Record.ChunkIndex < b.Record.ChunkIndex
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
