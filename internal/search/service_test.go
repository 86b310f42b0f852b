package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/semindex/internal/embedding"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/vector"
)

type memSource struct {
	name  string
	store *vector.MemoryStore
}

func (m *memSource) Name() string          { return m.name }
func (m *memSource) Vectors() vector.Store { return m.store }

type doc struct {
	file     string
	chunks   []string
	archived bool
}

func newSource(t *testing.T, emb embedding.Provider, name string, docs ...doc) *memSource {
	t.Helper()
	ctx := context.Background()
	src := &memSource{name: name, store: vector.NewMemoryStore()}
	for _, d := range docs {
		records := make([]models.ChunkRecord, 0, len(d.chunks))
		for i, c := range d.chunks {
			v, err := emb.Embed(ctx, c)
			require.NoError(t, err)
			records = append(records, models.ChunkRecord{
				ID: fmt.Sprintf("%s#%d", d.file, i), File: d.file, ChunkIndex: i,
				Content: c, Vector: v, Archived: d.archived,
			})
		}
		require.NoError(t, src.store.ReplaceFile(ctx, d.file, records))
	}
	return src
}

func TestSearch_singleIndex(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	code := newSource(t, emb, "code",
		doc{file: "main.go", chunks: []string{"package main", "func main() {}"}},
		doc{file: "util.go", chunks: []string{"func helper() int"}},
	)
	svc := New(emb, []Source{code})

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "func main() {}", Index: "code", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "main.go", resp.Hits[0].File)
	assert.Equal(t, 1, resp.Hits[0].ChunkIndex)
	assert.Equal(t, "code", resp.Hits[0].Index)
	assert.InDelta(t, 0, resp.Hits[0].Distance, 1e-5)
	assert.LessOrEqual(t, resp.Hits[0].Distance, resp.Hits[1].Distance)
}

func TestSearch_archivedFiltering(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	notes := newSource(t, emb, "docs",
		doc{file: "archive/old.md", chunks: []string{"release plan"}, archived: true},
		doc{file: "archive/older.md", chunks: []string{"release plan"}, archived: true},
		doc{file: "plan.md", chunks: []string{"current roadmap"}},
		doc{file: "notes.md", chunks: []string{"meeting notes"}},
	)
	svc := New(emb, []Source{notes})
	ctx := context.Background()

	resp, err := svc.Search(ctx, models.SearchRequest{Query: "release plan", Index: "docs", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	for _, h := range resp.Hits {
		assert.False(t, h.Archived, h.File)
	}

	resp, err = svc.Search(ctx, models.SearchRequest{Query: "release plan", Index: "docs", Limit: 2, IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	for _, h := range resp.Hits {
		assert.True(t, h.Archived, h.File)
	}
}

func TestSearch_allIndexes(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	code := newSource(t, emb, "code", doc{file: "a.go", chunks: []string{"open the database", "close it"}})
	docs := newSource(t, emb, "docs", doc{file: "db.md", chunks: []string{"open the database"}})
	empty := newSource(t, emb, "config")
	svc := New(emb, []Source{code, docs, empty})

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "open the database", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, models.AllIndexes, resp.Index)
	require.Len(t, resp.Hits, 2)
	// equal distances keep source order
	assert.Equal(t, "code", resp.Hits[0].Index)
	assert.Equal(t, "docs", resp.Hits[1].Index)
	assert.Equal(t, 4, emb.Calls(), "three chunks plus one query embedding")

	resp, err = svc.Search(context.Background(), models.SearchRequest{Query: "open the database", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 3)
	for i := 1; i < len(resp.Hits); i++ {
		assert.LessOrEqual(t, resp.Hits[i-1].Distance, resp.Hits[i].Distance)
	}
}

func TestSearch_allSkipsDisabled(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	code := newSource(t, emb, "code", doc{file: "a.go", chunks: []string{"open the database"}})
	docs := newSource(t, emb, "docs", doc{file: "db.md", chunks: []string{"open the database"}})
	off := map[string]bool{"docs": true}
	svc := New(emb, []Source{code, docs}, WithEnabled(func(name string) bool { return !off[name] }))

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "open the database"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "code", resp.Hits[0].Index)

	delete(off, "docs")
	resp, err = svc.Search(context.Background(), models.SearchRequest{Query: "open the database"})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 2)
}

func TestSearch_emptyIndex(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	svc := New(emb, []Source{newSource(t, emb, "code")})

	resp, err := svc.Search(context.Background(), models.SearchRequest{Query: "anything", Index: "code"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Hits)
	assert.Empty(t, resp.Hits)
}

func TestSearch_errors(t *testing.T) {
	emb := embedding.NewMockEmbedder(16)
	svc := New(emb, []Source{newSource(t, emb, "code")})
	ctx := context.Background()

	_, err := svc.Search(ctx, models.SearchRequest{Query: "x", Index: "nope"})
	assert.ErrorIs(t, err, ErrUnknownIndex)

	_, err = svc.Search(ctx, models.SearchRequest{})
	assert.Error(t, err)

	emb.SetUnavailable(errors.New("no model"))
	_, err = svc.Search(ctx, models.SearchRequest{Query: "x"})
	assert.ErrorIs(t, err, embedding.ErrUnavailable)
}
