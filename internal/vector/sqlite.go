package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/models"
)

// SQLiteFileName is the database file created inside the vector directory.
const SQLiteFileName = "vectors.db"

// SQLiteStore keeps chunks and their vectors in one SQLite table and scores them in Go.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens or creates dir/vectors.db and initializes the schema.
func NewSQLiteStore(dir string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, SQLiteFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		file TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceFile deletes and inserts in a single transaction.
func (s *SQLiteStore) ReplaceFile(ctx context.Context, file string, records []models.ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file = ?`, file); err != nil {
		return fmt.Errorf("delete %s: %w", file, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, file, chunk_index, content, archived, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range records {
		if r.File != file {
			return fmt.Errorf("record %s belongs to %s, not %s", r.ID, r.File, file)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.File, r.ChunkIndex, r.Content, r.Archived, float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", r.ChunkIndex, file, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteFile removes file's rows.
func (s *SQLiteStore) DeleteFile(ctx context.Context, file string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE file = ?`, file)
	if err != nil {
		return fmt.Errorf("delete %s: %w", file, err)
	}
	return nil
}

// Query scans the table and returns the k closest rows.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, file, chunk_index, content, archived, vector FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var r models.ChunkRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.File, &r.ChunkIndex, &r.Content, &r.Archived, &blob); err != nil {
			return nil, err
		}
		r.Vector = bytesToFloat32Slice(blob)
		if len(r.Vector) != len(vector) {
			return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), len(r.Vector))
		}
		matches = append(matches, Match{Record: r, Distance: Distance(vector, r.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(matches, k), nil
}

// Count returns the number of rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
