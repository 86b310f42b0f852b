package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/semindex/internal/config"
	"github.com/hyperjump/semindex/internal/embedding"
	"github.com/hyperjump/semindex/internal/registry"
	"github.com/hyperjump/semindex/internal/search"
	"github.com/hyperjump/semindex/internal/workspace"
)

type testServer struct {
	root    string
	handler http.Handler
	emb     *embedding.MockEmbedder
	ws      *workspace.Workspace
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Vector.Backend = "memory"
	cfg.Indexes = map[string]config.IndexConfig{
		"notes": {Pattern: "**/*.md"},
	}
	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("install the tool"), 0600); err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewMockEmbedder(8)
	ws, err := workspace.Open(root, workspace.WithConfig(cfg), workspace.WithProvider(emb))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	srv := NewServer(ws, cfg.Server, nil)
	return &testServer{root: root, handler: srv.Router(), emb: emb, ws: ws}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestIndexThenSearch(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/index", map[string]interface{}{"index": "notes"})
	if w.Code != http.StatusOK {
		t.Fatalf("index status: got %d body %s", w.Code, w.Body.String())
	}
	var indexed struct {
		Reports []workspace.IndexReport `json:"reports"`
	}
	decode(t, w, &indexed)
	if len(indexed.Reports) != 1 || indexed.Reports[0].Result.Indexed != 1 {
		t.Errorf("reports = %+v", indexed.Reports)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "install the tool"})
	if w.Code != http.StatusOK {
		t.Fatalf("search status: got %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Index string `json:"index"`
		Hits  []struct {
			Index    string  `json:"index"`
			File     string  `json:"file"`
			Distance float64 `json:"distance"`
		} `json:"hits"`
	}
	decode(t, w, &resp)
	if resp.Index != "all" || len(resp.Hits) != 1 || resp.Hits[0].File != "a.md" || resp.Hits[0].Index != "notes" {
		t.Errorf("search response = %+v", resp)
	}
}

func TestIndex_emptyBodyMeansAll(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/index", nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d body %s", w.Code, w.Body.String())
	}
}

func TestSearch_badRequests(t *testing.T) {
	ts := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json: got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "x", "index": "nope"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown index: got %d", w.Code)
	}

	ts.emb.SetUnavailable(errors.New("no model"))
	w = ts.do(t, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "x"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("backend unavailable: got %d", w.Code)
	}
}

func TestStatusAndClear(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/index", map[string]interface{}{})

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var st struct {
		Indexes []workspace.IndexStatus `json:"indexes"`
	}
	decode(t, w, &st)
	if len(st.Indexes) != 1 || st.Indexes[0].ChunkCount != 1 {
		t.Errorf("status = %+v", st.Indexes)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/indexes/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear: got %d body %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, "/api/v1/status?index=notes", nil)
	decode(t, w, &st)
	if st.Indexes[0].ChunkCount != 0 {
		t.Errorf("after clear: %+v", st.Indexes[0])
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/indexes/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown index: got %d", w.Code)
	}
}

func TestNotifyAndToggle(t *testing.T) {
	ts := newTestServer(t)
	path := filepath.Join(ts.root, "a.md")

	w := ts.do(t, http.MethodPost, "/api/v1/notify", map[string]string{"path": path})
	if w.Code != http.StatusAccepted {
		t.Fatalf("notify: got %d", w.Code)
	}
	var out struct {
		Queued bool `json:"queued"`
	}
	decode(t, w, &out)
	if !out.Queued || ts.ws.Queue().Pending() != 1 {
		t.Errorf("queued = %v, pending = %d", out.Queued, ts.ws.Queue().Pending())
	}

	w = ts.do(t, http.MethodPost, "/api/v1/notify", map[string]string{"path": path, "kind": "remove"})
	decode(t, w, &out)
	if out.Queued {
		t.Error("remove events should not be queued")
	}

	w = ts.do(t, http.MethodPost, "/api/v1/notify", map[string]string{"path": path, "kind": "touch"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: got %d", w.Code)
	}
	w = ts.do(t, http.MethodPost, "/api/v1/notify", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path: got %d", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/indexes/notes/disable", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("disable: got %d", w.Code)
	}
	if ts.ws.Queue().Pending() != 0 {
		t.Error("disabling an index should drop its queued changes")
	}
	w = ts.do(t, http.MethodPost, "/api/v1/indexes/notes/enable", nil)
	if w.Code != http.StatusOK {
		t.Errorf("enable: got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", registry.ErrUnknownIndex), http.StatusNotFound},
		{search.ErrUnknownIndex, http.StatusNotFound},
		{workspace.ErrLocked, http.StatusConflict},
		{workspace.ErrDisabled, http.StatusConflict},
		{fmt.Errorf("%w: offline", workspace.ErrBackendUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
