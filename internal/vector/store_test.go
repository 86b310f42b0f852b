package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/semindex/internal/models"
)

func rec(file string, idx int, vec ...float32) models.ChunkRecord {
	return models.ChunkRecord{
		ID:         file + "#" + string(rune('0'+idx)),
		File:       file,
		ChunkIndex: idx,
		Content:    file + " chunk",
		Vector:     vec,
	}
}

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{}
	for _, b := range []Backend{BackendMemory, BackendSQLite, BackendChromem} {
		s, err := Open(string(b), t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Open(%s): %v", b, err)
		}
		t.Cleanup(func() { _ = s.Close() })
		stores[string(b)] = s
	}
	return stores
}

func TestStore_ReplaceAndQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ReplaceFile(ctx, "a.txt", []models.ChunkRecord{rec("a.txt", 0, 1, 0, 0), rec("a.txt", 1, 0.9, 0.1, 0)}); err != nil {
				t.Fatal(err)
			}
			if err := s.ReplaceFile(ctx, "b.txt", []models.ChunkRecord{rec("b.txt", 0, 0, 1, 0)}); err != nil {
				t.Fatal(err)
			}
			n, err := s.Count(ctx)
			if err != nil || n != 3 {
				t.Fatalf("Count=%d err=%v, want 3", n, err)
			}
			matches, err := s.Query(ctx, []float32{1, 0, 0}, 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(matches) != 2 {
				t.Fatalf("expected 2 matches, got %d", len(matches))
			}
			if matches[0].Record.File != "a.txt" || matches[0].Record.ChunkIndex != 0 {
				t.Errorf("top match = %+v", matches[0].Record)
			}
			if math.Abs(matches[0].Distance) > 1e-5 {
				t.Errorf("identical vector distance = %f, want 0", matches[0].Distance)
			}
			if matches[0].Distance > matches[1].Distance {
				t.Error("matches not ordered by ascending distance")
			}
		})
	}
}

func TestStore_ReplaceRemovesOldRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			old := []models.ChunkRecord{rec("a.txt", 0, 1, 0), rec("a.txt", 1, 0, 1), rec("a.txt", 2, 1, 1)}
			if err := s.ReplaceFile(ctx, "a.txt", old); err != nil {
				t.Fatal(err)
			}
			fresh := rec("a.txt", 0, 1, 0)
			fresh.ID = "new"
			fresh.Archived = true
			if err := s.ReplaceFile(ctx, "a.txt", []models.ChunkRecord{fresh}); err != nil {
				t.Fatal(err)
			}
			n, _ := s.Count(ctx)
			if n != 1 {
				t.Fatalf("Count=%d after replace, want 1", n)
			}
			matches, err := s.Query(ctx, []float32{1, 0}, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(matches) != 1 || matches[0].Record.ID != "new" || !matches[0].Record.Archived {
				t.Errorf("unexpected matches: %+v", matches)
			}
		})
	}
}

func TestStore_DeleteFile(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.ReplaceFile(ctx, "a.txt", []models.ChunkRecord{rec("a.txt", 0, 1, 0)})
			_ = s.ReplaceFile(ctx, "b.txt", []models.ChunkRecord{rec("b.txt", 0, 0, 1)})
			if err := s.DeleteFile(ctx, "a.txt"); err != nil {
				t.Fatal(err)
			}
			if err := s.DeleteFile(ctx, "missing.txt"); err != nil {
				t.Errorf("deleting an absent file should not fail: %v", err)
			}
			matches, _ := s.Query(ctx, []float32{1, 0}, 10)
			if len(matches) != 1 || matches[0].Record.File != "b.txt" {
				t.Errorf("unexpected matches after delete: %+v", matches)
			}
		})
	}
}

func TestStore_QueryEmpty(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			matches, err := s.Query(ctx, []float32{1, 0}, 5)
			if err != nil {
				t.Fatal(err)
			}
			if len(matches) != 0 {
				t.Errorf("expected no matches, got %d", len(matches))
			}
		})
	}
}

func TestStore_RejectsForeignRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.ReplaceFile(ctx, "a.txt", []models.ChunkRecord{rec("b.txt", 0, 1)}); err == nil {
				t.Error("expected error for record of another file")
			}
		})
	}
}

func TestPersistentStores_Reopen(t *testing.T) {
	ctx := context.Background()
	for _, b := range []Backend{BackendSQLite, BackendChromem} {
		t.Run(string(b), func(t *testing.T) {
			dir := t.TempDir()
			s, err := Open(string(b), dir, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.ReplaceFile(ctx, "a.txt", []models.ChunkRecord{rec("a.txt", 0, 1, 0), rec("a.txt", 1, 0, 1)}); err != nil {
				t.Fatal(err)
			}
			_ = s.Close()

			reopened, err := Open(string(b), dir, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer reopened.Close()
			n, _ := reopened.Count(ctx)
			if n != 2 {
				t.Errorf("Count after reopen = %d, want 2", n)
			}
		})
	}
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open("faiss", t.TempDir(), nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Distance = %f, want %f", got, tt.want)
			}
		})
	}
}
