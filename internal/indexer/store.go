package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/embedding"
	"github.com/hyperjump/semindex/internal/extract"
	"github.com/hyperjump/semindex/internal/hashcache"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/vector"
)

// VectorDir is the vector backend directory inside an index state directory.
const VectorDir = "vectors"

// LockFile is the advisory lock file inside an index state directory. Clear keeps it.
const LockFile = ".lock"

// ProgressFunc is called after each file of a bulk pass.
type ProgressFunc func(processed, total int, path string)

// Options describes one index on disk.
type Options struct {
	Name          string
	Description   string
	Pattern       string
	Root          string   // absolute project root
	StateDir      string   // absolute <project>/<state_root>/<name>
	Exclude       []string // project-wide exclude globs
	ChunkMaxChars int
	Backend       string // vector backend name, see vector.Open
}

// Store owns one index: its hash cache and vector table. Writes are serialized.
type Store struct {
	opts      Options
	provider  embedding.Provider
	extractor *extract.Extractor
	logger    *zap.Logger

	mu      sync.Mutex // serializes writers
	cache   *hashcache.Cache
	vmu     sync.RWMutex // guards the vectors field, swapped by Clear
	vectors vector.Store
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for per-file warnings and progress.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithVectorStore replaces the backend opened from Options.Backend.
func WithVectorStore(v vector.Store) Option {
	return func(s *Store) { s.vectors = v }
}

// Open loads (or creates) the index state under opts.StateDir.
func Open(opts Options, provider embedding.Provider, options ...Option) (*Store, error) {
	if opts.Root == "" || opts.StateDir == "" {
		return nil, errors.New("index root and state dir are required")
	}
	if opts.ChunkMaxChars <= 0 {
		opts.ChunkMaxChars = DefaultMaxChars
	}
	s := &Store{
		opts:      opts,
		provider:  provider,
		extractor: extract.NewExtractor(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("index", opts.Name))

	if err := os.MkdirAll(opts.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	cache, err := hashcache.Load(opts.StateDir)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	if s.vectors == nil {
		v, err := vector.Open(opts.Backend, filepath.Join(opts.StateDir, VectorDir), s.logger)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		s.vectors = v
	}
	return s, nil
}

// Name returns the index name.
func (s *Store) Name() string { return s.opts.Name }

// Vectors returns the index's vector table for querying.
func (s *Store) Vectors() vector.Store {
	s.vmu.RLock()
	defer s.vmu.RUnlock()
	return s.vectors
}

// Provider returns the embedding provider used for indexing.
func (s *Store) Provider() embedding.Provider { return s.provider }

// Close closes the vector table.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectors.Close()
}

// IndexFile brings one file up to date. Unreadable files are reported as
// OutcomeNotIndexed without touching state; an error means embedding or storage
// failed and the cached hash was left as it was.
func (s *Store) IndexFile(ctx context.Context, path string) (models.FileOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexFile(ctx, path)
}

func (s *Store) indexFile(ctx context.Context, path string) (models.FileOutcome, error) {
	abs, rel, err := s.resolve(path)
	if err != nil {
		return models.OutcomeNotIndexed, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		s.logger.Warn("file unreadable, not indexed", zap.String("path", rel), zap.Error(err))
		return models.OutcomeNotIndexed, nil
	}
	return s.indexBytes(ctx, rel, data)
}

func (s *Store) indexBytes(ctx context.Context, rel string, data []byte) (models.FileOutcome, error) {
	hash := hashcache.HashContent(data)
	prev, had := s.cache.Get(rel)
	if had && prev == hash {
		s.logger.Debug("file unchanged", zap.String("path", rel))
		return models.OutcomeUnchanged, nil
	}

	text, err := s.extractor.ExtractBytes(data, filepath.Ext(rel))
	if err != nil {
		s.logger.Warn("file content not extractable, not indexed", zap.String("path", rel), zap.Error(err))
		return models.OutcomeNotIndexed, nil
	}

	chunks := Chunk(text, s.opts.ChunkMaxChars)
	archived := IsArchived(rel, text)
	records := make([]models.ChunkRecord, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.provider.Embed(ctx, chunk)
		if err != nil {
			return models.OutcomeNotIndexed, fmt.Errorf("embed %s chunk %d: %w", rel, i, err)
		}
		records = append(records, models.ChunkRecord{
			ID:         uuid.NewString(),
			File:       rel,
			ChunkIndex: i,
			Content:    chunk,
			Vector:     vec,
			Archived:   archived,
		})
	}

	if err := s.vectors.ReplaceFile(ctx, rel, records); err != nil {
		return models.OutcomeNotIndexed, fmt.Errorf("store %s: %w", rel, err)
	}
	s.cache.Set(rel, hash)
	if err := s.cache.Save(); err != nil {
		if had {
			s.cache.Set(rel, prev)
		} else {
			s.cache.Delete(rel)
		}
		return models.OutcomeNotIndexed, fmt.Errorf("persist hash cache: %w", err)
	}
	s.logger.Debug("file indexed", zap.String("path", rel), zap.Int("chunks", len(records)), zap.Bool("archived", archived))
	return models.OutcomeIndexed, nil
}

// IndexAll indexes every file matching the index pattern and none of ignore or the
// project excludes, in sorted order. Per-file failures are counted, not returned.
func (s *Store) IndexAll(ctx context.Context, ignore []string, progress ProgressFunc) (models.IndexAllResult, error) {
	var result models.IndexAllResult
	files, err := s.Enumerate(ctx, ignore)
	if err != nil {
		return result, fmt.Errorf("enumerate %s: %w", s.opts.Name, err)
	}
	result.Total = len(files)
	s.logger.Info("indexing started", zap.Int("files", result.Total))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := s.indexFile(ctx, rel)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			s.logger.Warn("file failed to index", zap.String("path", rel), zap.Error(err))
		case outcome == models.OutcomeIndexed:
			result.Indexed++
		default:
			result.Skipped++
		}
		if progress != nil {
			progress(i+1, result.Total, rel)
		}
	}
	s.logger.Info("indexing finished",
		zap.Int("indexed", result.Indexed), zap.Int("skipped", result.Skipped), zap.Int("failed", result.Failed))
	return result, nil
}

// Enumerate lists the files the index covers.
func (s *Store) Enumerate(ctx context.Context, ignore []string) ([]string, error) {
	globs := make([]string, 0, len(ignore)+len(s.opts.Exclude)+1)
	globs = append(globs, ignore...)
	globs = append(globs, s.opts.Exclude...)
	if rel, err := filepath.Rel(s.opts.Root, s.opts.StateDir); err == nil && !strings.HasPrefix(rel, "..") {
		// the state root itself, e.g. ".semindex/**"
		first := strings.Split(filepath.ToSlash(rel), "/")[0]
		globs = append(globs, first+"/**")
	}
	return enumerate(ctx, s.opts.Root, s.opts.Pattern, globs)
}

// Clear drops every chunk and cached hash, leaving an empty index.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vectors.Close(); err != nil {
		s.logger.Warn("closing vector store before clear", zap.Error(err))
	}
	entries, err := os.ReadDir(s.opts.StateDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read state dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() == LockFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.opts.StateDir, e.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	if err := os.MkdirAll(s.opts.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	s.cache.Reset()
	v, err := vector.Open(s.opts.Backend, filepath.Join(s.opts.StateDir, VectorDir), s.logger)
	if err != nil {
		return fmt.Errorf("reopen vector store: %w", err)
	}
	s.vmu.Lock()
	s.vectors = v
	s.vmu.Unlock()
	s.logger.Info("index cleared")
	return nil
}

// Stats reports file and chunk counts plus on-disk size.
func (s *Store) Stats(ctx context.Context) (models.IndexStats, error) {
	chunks, err := s.vectors.Count(ctx)
	if err != nil {
		return models.IndexStats{}, err
	}
	stats := models.IndexStats{
		Name:        s.opts.Name,
		Description: s.opts.Description,
		FileCount:   s.cache.Len(),
		ChunkCount:  chunks,
	}
	if size, err := DiskUsage(s.opts.StateDir); err == nil {
		stats.DiskBytes = &size
	}
	return stats, nil
}

// DiskUsage sums the sizes of regular files under dir.
func DiskUsage(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// resolve returns the absolute path and the slash-separated path relative to the root.
func (s *Store) resolve(path string) (abs, rel string, err error) {
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(s.opts.Root, path)
	}
	r, err := filepath.Rel(s.opts.Root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s is outside the project root", path)
	}
	return abs, filepath.ToSlash(r), nil
}
