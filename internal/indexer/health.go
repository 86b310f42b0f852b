package indexer

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/hashcache"
	"github.com/hyperjump/semindex/internal/models"
)

const (
	// mismatchFloor is the smallest file-count drift ever reported as a mismatch.
	mismatchFloor = 5
	// mismatchRatio is the drift, relative to the expected count, tolerated before reindexing.
	mismatchRatio = 0.2
)

// Assess classifies expected (files on disk) against cached (files in the hash cache).
func Assess(expected, cached int) models.HealthReport {
	report := models.HealthReport{Expected: expected, Cached: cached, Reason: models.ReasonOK}
	switch {
	case cached == 0 && expected > 0:
		report.Reason = models.ReasonEmpty
	case math.Abs(float64(expected-cached)) > math.Max(mismatchFloor, mismatchRatio*float64(expected)):
		report.Reason = models.ReasonMismatch
	}
	report.NeedsReindex = report.Reason != models.ReasonOK
	return report
}

// CheckHealth compares the number of files the index should cover with the number cached.
// Only counts are compared; content drift is Freshen's job.
func (s *Store) CheckHealth(ctx context.Context, ignore []string) (models.HealthReport, error) {
	files, err := s.Enumerate(ctx, ignore)
	if err != nil {
		return models.HealthReport{}, fmt.Errorf("enumerate %s: %w", s.opts.Name, err)
	}
	report := Assess(len(files), s.cache.Len())
	s.logger.Debug("health checked",
		zap.Int("expected", report.Expected), zap.Int("cached", report.Cached), zap.String("reason", string(report.Reason)))
	return report, nil
}

// Freshen revisits every cached path. Files that can no longer be read are dropped
// from the cache and their chunks deleted; files whose content changed are reindexed.
func (s *Store) Freshen(ctx context.Context) (models.FreshenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := s.cache.Paths()
	result := models.FreshenResult{Checked: len(paths)}
	dirty := false
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		data, err := os.ReadFile(filepath.Join(s.opts.Root, filepath.FromSlash(rel)))
		if err != nil {
			if delErr := s.vectors.DeleteFile(ctx, rel); delErr != nil {
				result.Failed++
				s.logger.Warn("failed to delete chunks of missing file", zap.String("path", rel), zap.Error(delErr))
				continue
			}
			s.cache.Delete(rel)
			dirty = true
			result.Deleted++
			s.logger.Debug("dropped missing file", zap.String("path", rel))
			continue
		}
		if cached, _ := s.cache.Get(rel); cached == hashcache.HashContent(data) {
			continue
		}
		outcome, err := s.indexBytes(ctx, rel, data)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Warn("failed to reindex changed file", zap.String("path", rel), zap.Error(err))
		case outcome == models.OutcomeIndexed:
			result.Updated++
		}
	}
	if dirty {
		if err := s.cache.Save(); err != nil {
			return result, fmt.Errorf("persist hash cache: %w", err)
		}
	}
	if result.Updated+result.Deleted+result.Failed > 0 {
		s.logger.Info("index freshened",
			zap.Int("checked", result.Checked), zap.Int("updated", result.Updated),
			zap.Int("deleted", result.Deleted), zap.Int("failed", result.Failed))
	}
	return result, nil
}
