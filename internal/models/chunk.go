// Package models defines core data structures for chunk records, indexing results, and search hits.
package models

// ChunkRecord is one embedded slice of a file stored in an index's vector table.
type ChunkRecord struct {
	ID         string    `json:"id"`
	File       string    `json:"file"` // path relative to the project root, slash-separated
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Vector     []float32 `json:"-"`
	Archived   bool      `json:"archived"`
}

// FileOutcome reports what IndexFile did with a single file.
type FileOutcome string

const (
	// OutcomeIndexed means the file was chunked, embedded and persisted.
	OutcomeIndexed FileOutcome = "indexed"
	// OutcomeUnchanged means the cached hash matched; nothing was embedded.
	OutcomeUnchanged FileOutcome = "unchanged"
	// OutcomeNotIndexed means the file could not be read; index state was left untouched.
	OutcomeNotIndexed FileOutcome = "not_indexed"
)

// IndexAllResult holds aggregate counts for a bulk indexing pass.
// Skipped covers unchanged and unreadable files; Failed counts embed or store errors.
type IndexAllResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// FreshenResult holds counts from a freshen pass over the hash cache.
type FreshenResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// IndexStats describes the size of one index.
type IndexStats struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FileCount   int    `json:"file_count"`
	ChunkCount  int    `json:"chunk_count"`
	DiskBytes   *int64 `json:"disk_usage_bytes,omitempty"`
}
