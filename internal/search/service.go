// Package search answers semantic queries against one index or all of them.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/semindex/internal/embedding"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/vector"
)

// ErrUnknownIndex is returned for a query naming an index the service does not hold.
var ErrUnknownIndex = errors.New("unknown index")

// archivedOverfetch is how many candidates per requested hit are fetched when archived
// chunks will be filtered out.
const archivedOverfetch = 3

// Source is a searchable index. *indexer.Store implements it.
type Source interface {
	Name() string
	Vectors() vector.Store
}

// Service runs queries. The query is embedded once and reused for every index.
type Service struct {
	provider embedding.Provider
	sources  []Source
	byName   map[string]Source
	enabled  func(name string) bool
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEnabled limits "all" queries to sources for which fn returns true. It is
// consulted on every query so indexes can be toggled at runtime.
func WithEnabled(fn func(name string) bool) Option {
	return func(s *Service) { s.enabled = fn }
}

// New returns a service over sources. For "all" queries, ties in distance keep the
// order of sources.
func New(provider embedding.Provider, sources []Source, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		sources:  sources,
		byName:   make(map[string]Source, len(sources)),
	}
	for _, src := range sources {
		s.byName[src.Name()] = src
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Search runs req. Empty indexes give empty results.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	targets := s.sources
	if req.Index == models.AllIndexes && s.enabled != nil {
		targets = make([]Source, 0, len(s.sources))
		for _, src := range s.sources {
			if s.enabled(src.Name()) {
				targets = append(targets, src)
			}
		}
	}
	if req.Index != models.AllIndexes {
		src, ok := s.byName[req.Index]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, req.Index)
		}
		targets = []Source{src}
	}

	vec, err := s.provider.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	perIndex := make([][]*models.SearchHit, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range targets {
		i, src := i, src
		g.Go(func() error {
			hits, err := queryOne(gctx, src, vec, req.Limit, req.IncludeArchived)
			if err != nil {
				return fmt.Errorf("query index %s: %w", src.Name(), err)
			}
			perIndex[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var hits []*models.SearchHit
	for _, h := range perIndex {
		hits = append(hits, h...)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	if hits == nil {
		hits = []*models.SearchHit{}
	}

	s.logger.Debug("search",
		zap.String("index", req.Index), zap.Int("hits", len(hits)), zap.Duration("took", time.Since(start)))
	return &models.SearchResponse{
		Query:     req.Query,
		Index:     req.Index,
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

func queryOne(ctx context.Context, src Source, vec []float32, limit int, includeArchived bool) ([]*models.SearchHit, error) {
	k := limit
	if !includeArchived {
		k = limit * archivedOverfetch
	}
	matches, err := src.Vectors().Query(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]*models.SearchHit, 0, len(matches))
	for _, m := range matches {
		if m.Record.Archived && !includeArchived {
			continue
		}
		hits = append(hits, &models.SearchHit{
			Index:      src.Name(),
			File:       m.Record.File,
			ChunkIndex: m.Record.ChunkIndex,
			Content:    m.Record.Content,
			Distance:   m.Distance,
			Archived:   m.Record.Archived,
		})
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}
