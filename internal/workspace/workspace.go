// Package workspace wires the indexes of one project together and exposes the
// operations behind the CLI and the HTTP API.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/config"
	"github.com/hyperjump/semindex/internal/embedding"
	"github.com/hyperjump/semindex/internal/indexer"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/queue"
	"github.com/hyperjump/semindex/internal/registry"
	"github.com/hyperjump/semindex/internal/search"
	"github.com/hyperjump/semindex/internal/watcher"
)

var (
	// ErrBackendUnavailable is returned by manual operations when the embedding backend cannot be used.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")
	// ErrLocked is returned when another process holds an index's lock.
	ErrLocked = errors.New("index is locked by another process")
	// ErrDisabled is returned when a manual operation names a disabled index.
	ErrDisabled = errors.New("index is disabled")
)

// Progress reports bulk indexing progress for one index.
type Progress func(index string, processed, total int, path string)

// IndexReport is the outcome of Index for one index.
type IndexReport struct {
	Name   string                `json:"name"`
	Result models.IndexAllResult `json:"result"`
}

// IndexStatus describes one index for Status.
type IndexStatus struct {
	models.IndexStats
	Pattern string               `json:"pattern"`
	Enabled bool                 `json:"enabled"`
	Health  *models.HealthReport `json:"health,omitempty"`
}

// SyncReport is what Sync did for one index.
type SyncReport struct {
	Name    string                 `json:"name"`
	Health  models.HealthReport    `json:"health"`
	Indexed *models.IndexAllResult `json:"indexed,omitempty"`
	Freshen *models.FreshenResult  `json:"freshen,omitempty"`
}

// Workspace is an opened project.
type Workspace struct {
	root     string
	cfg      *config.Config
	registry *registry.Registry
	provider *embedding.CachedProvider // query embeddings; stores and queue use the inner provider
	stores   map[string]*indexer.Store
	search   *search.Service
	queue    *queue.Queue
	logger   *zap.Logger
}

type options struct {
	cfg      *config.Config
	provider embedding.Provider
	logger   *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConfig uses cfg instead of loading .semindex.yaml from the root.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithProvider uses p instead of the provider named in the config.
func WithProvider(p embedding.Provider) Option {
	return func(o *options) { o.provider = p }
}

// Open loads the project at root and opens a store for every enabled index.
func Open(root string, opts ...Option) (*Workspace, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.LoadOrDefault(abs, o.logger)
	}
	cfg.Root = abs
	config.ApplyDefaults(cfg)

	reg, err := registry.New(cfg)
	if err != nil {
		return nil, err
	}
	inner := o.provider
	if inner == nil {
		inner = embedding.NewProvider(cfg.Embedding, o.logger)
	}

	w := &Workspace{
		root:     abs,
		cfg:      cfg,
		registry: reg,
		provider: embedding.NewCachedProvider(inner, cfg.Embedding.CacheSize),
		stores:   make(map[string]*indexer.Store),
		logger:   o.logger,
	}

	var sources []search.Source
	targets := make(map[string]queue.Target)
	for _, ix := range reg.Enabled() {
		store, err := indexer.Open(indexer.Options{
			Name:          ix.Name,
			Description:   ix.Description,
			Pattern:       ix.Pattern,
			Root:          abs,
			StateDir:      filepath.Join(cfg.StateDir(), ix.Name),
			Exclude:       reg.Exclude(),
			ChunkMaxChars: cfg.ChunkMaxChars,
			Backend:       cfg.Vector.Backend,
		}, inner, indexer.WithLogger(o.logger))
		if err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("open index %s: %w", ix.Name, err)
		}
		w.stores[ix.Name] = store
		sources = append(sources, store)
		targets[ix.Name] = store
	}
	w.search = search.New(w.provider, sources,
		search.WithEnabled(reg.IsEnabled), search.WithLogger(o.logger))
	w.queue = queue.New(abs, reg, targets, inner,
		queue.WithDebounce(cfg.Debounce()), queue.WithLogger(o.logger))

	o.logger.Debug("workspace opened", zap.String("root", abs), zap.Strings("indexes", w.enabledNames()))
	return w, nil
}

// Root returns the absolute project root.
func (w *Workspace) Root() string { return w.root }

// Config returns the effective configuration.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Registry returns the resolved indexes.
func (w *Workspace) Registry() *registry.Registry { return w.registry }

// Queue returns the change queue fed by Notify and the watcher.
func (w *Workspace) Queue() *queue.Queue { return w.queue }

func (w *Workspace) enabledNames() []string {
	var names []string
	for _, ix := range w.registry.Enabled() {
		if _, ok := w.stores[ix.Name]; ok {
			names = append(names, ix.Name)
		}
	}
	return names
}

// resolve returns the enabled indexes named by nameOrAll.
func (w *Workspace) resolve(nameOrAll string) ([]*registry.Index, error) {
	indexes, err := w.registry.Resolve(nameOrAll)
	if err != nil {
		return nil, err
	}
	var out []*registry.Index
	for _, ix := range indexes {
		if _, ok := w.stores[ix.Name]; !ok || !w.registry.IsEnabled(ix.Name) {
			if nameOrAll == ix.Name {
				return nil, fmt.Errorf("%w: %s", ErrDisabled, ix.Name)
			}
			continue
		}
		out = append(out, ix)
	}
	return out, nil
}

func (w *Workspace) available(ctx context.Context) error {
	if err := w.provider.Available(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// lock takes the advisory lock of one index directory.
func (w *Workspace) lock(name string) (*flock.Flock, error) {
	fl := flock.New(filepath.Join(w.cfg.StateDir(), name, indexer.LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock index %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, name)
	}
	return fl, nil
}

// Index runs a bulk pass over the named index, or every enabled one. With force the
// index is cleared first so every file is re-embedded.
func (w *Workspace) Index(ctx context.Context, nameOrAll string, force bool, progress Progress) ([]IndexReport, error) {
	indexes, err := w.resolve(nameOrAll)
	if err != nil {
		return nil, err
	}
	if err := w.available(ctx); err != nil {
		return nil, err
	}
	defer w.unload()

	reports := make([]IndexReport, 0, len(indexes))
	for _, ix := range indexes {
		report, err := w.indexOne(ctx, ix, force, progress)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (w *Workspace) indexOne(ctx context.Context, ix *registry.Index, force bool, progress Progress) (IndexReport, error) {
	store := w.stores[ix.Name]
	fl, err := w.lock(ix.Name)
	if err != nil {
		return IndexReport{}, err
	}
	defer func() { _ = fl.Unlock() }()

	if force {
		if err := store.Clear(ctx); err != nil {
			return IndexReport{}, fmt.Errorf("clear %s: %w", ix.Name, err)
		}
	}
	var fn indexer.ProgressFunc
	if progress != nil {
		fn = func(processed, total int, path string) { progress(ix.Name, processed, total, path) }
	}
	result, err := store.IndexAll(ctx, ix.Ignore, fn)
	return IndexReport{Name: ix.Name, Result: result}, err
}

// Search runs a semantic query.
func (w *Workspace) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	if req.Index != "" && req.Index != models.AllIndexes {
		if _, err := w.resolve(req.Index); err != nil {
			return nil, err
		}
	}
	if err := w.available(ctx); err != nil {
		return nil, err
	}
	return w.search.Search(ctx, req)
}

// Status describes the named index, or every configured one including disabled indexes.
func (w *Workspace) Status(ctx context.Context, nameOrAll string) ([]IndexStatus, error) {
	var indexes []*registry.Index
	if nameOrAll == "" || nameOrAll == models.AllIndexes {
		for _, name := range w.registry.Names() {
			ix, err := w.registry.Get(name)
			if err != nil {
				return nil, err
			}
			indexes = append(indexes, ix)
		}
	} else {
		ix, err := w.registry.Get(nameOrAll)
		if err != nil {
			return nil, err
		}
		indexes = []*registry.Index{ix}
	}

	out := make([]IndexStatus, 0, len(indexes))
	for _, ix := range indexes {
		st := IndexStatus{
			IndexStats: models.IndexStats{Name: ix.Name, Description: ix.Description},
			Pattern:    ix.Pattern,
			Enabled:    ix.Enabled,
		}
		if store, ok := w.stores[ix.Name]; ok {
			stats, err := store.Stats(ctx)
			if err != nil {
				return nil, fmt.Errorf("stats %s: %w", ix.Name, err)
			}
			st.IndexStats = stats
			health, err := store.CheckHealth(ctx, ix.Ignore)
			if err != nil {
				return nil, fmt.Errorf("health %s: %w", ix.Name, err)
			}
			st.Health = &health
		}
		out = append(out, st)
	}
	return out, nil
}

// DoctorReport summarises whether a project is ready for semantic search.
type DoctorReport struct {
	Root         string        `json:"root"`
	ConfigFile   string        `json:"config_file,omitempty"`
	Enabled      bool          `json:"enabled"`
	AutoIndex    bool          `json:"auto_index"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model,omitempty"`
	VectorStore  string        `json:"vector_store"`
	Available    bool          `json:"available"`
	BackendError string        `json:"backend_error,omitempty"`
	Indexes      []IndexStatus `json:"indexes"`
}

// Doctor checks the config, the embedding backend and every index.
func (w *Workspace) Doctor(ctx context.Context) (*DoctorReport, error) {
	rep := &DoctorReport{
		Root:        w.root,
		Enabled:     w.cfg.EnabledOrDefault(),
		AutoIndex:   w.cfg.AutoIndexOrDefault(),
		Provider:    w.cfg.Embedding.Provider,
		Model:       w.cfg.Embedding.Model,
		VectorStore: w.cfg.Vector.Backend,
		Available:   true,
	}
	if path := filepath.Join(w.root, config.FileName); fileExists(path) {
		rep.ConfigFile = path
	}
	if err := w.available(ctx); err != nil {
		rep.Available = false
		rep.BackendError = err.Error()
	}
	statuses, err := w.Status(ctx, models.AllIndexes)
	if err != nil {
		return nil, err
	}
	rep.Indexes = statuses
	return rep, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Clear empties the named index, or every enabled one.
func (w *Workspace) Clear(ctx context.Context, nameOrAll string) ([]string, error) {
	indexes, err := w.resolve(nameOrAll)
	if err != nil {
		return nil, err
	}
	var cleared []string
	for _, ix := range indexes {
		fl, err := w.lock(ix.Name)
		if err != nil {
			return cleared, err
		}
		err = w.stores[ix.Name].Clear(ctx)
		_ = fl.Unlock()
		if err != nil {
			return cleared, fmt.Errorf("clear %s: %w", ix.Name, err)
		}
		cleared = append(cleared, ix.Name)
	}
	return cleared, nil
}

// Sync brings every enabled index up to date: a full pass when its health check asks
// for one, otherwise a freshen of the cached files. It is a no-op when auto indexing
// is off or the backend is unavailable.
func (w *Workspace) Sync(ctx context.Context) ([]SyncReport, error) {
	if !w.cfg.EnabledOrDefault() || !w.cfg.AutoIndexOrDefault() {
		return nil, nil
	}
	if err := w.provider.Available(ctx); err != nil {
		w.logger.Info("embedding backend unavailable, skipping sync", zap.Error(err))
		return nil, nil
	}
	defer w.unload()

	indexes, err := w.resolve(models.AllIndexes)
	if err != nil {
		return nil, err
	}
	var reports []SyncReport
	for _, ix := range indexes {
		store := w.stores[ix.Name]
		health, err := store.CheckHealth(ctx, ix.Ignore)
		if err != nil {
			return reports, fmt.Errorf("health %s: %w", ix.Name, err)
		}
		report := SyncReport{Name: ix.Name, Health: health}
		if health.NeedsReindex {
			res, err := store.IndexAll(ctx, ix.Ignore, nil)
			if err != nil {
				return reports, err
			}
			report.Indexed = &res
		} else {
			res, err := store.Freshen(ctx)
			if err != nil {
				return reports, err
			}
			report.Freshen = &res
		}
		w.logger.Info("index synced", zap.String("index", ix.Name), zap.String("health", string(health.Reason)))
		reports = append(reports, report)
	}
	return reports, nil
}

// SetEnabled toggles an index at runtime. Disabling drops its queued changes; an index
// disabled at Open cannot be enabled without reopening the workspace.
func (w *Workspace) SetEnabled(name string, enabled bool) error {
	if _, err := w.registry.Get(name); err != nil {
		return err
	}
	if _, ok := w.stores[name]; enabled && !ok {
		return fmt.Errorf("%w: %s was disabled when the workspace was opened", ErrDisabled, name)
	}
	if err := w.registry.SetEnabled(name, enabled); err != nil {
		return err
	}
	if enabled {
		w.queue.EnableIndex(name)
	} else {
		w.queue.DisableIndex(name)
	}
	return nil
}

// Notify forwards a change notification to the queue.
func (w *Workspace) Notify(path string, kind queue.EventKind) bool {
	if !w.cfg.EnabledOrDefault() || !w.cfg.AutoIndexOrDefault() {
		return false
	}
	return w.queue.Notify(path, kind)
}

// Watch starts a file-system watcher feeding the queue. Excluded directories and the
// state root are not watched.
func (w *Workspace) Watch(ctx context.Context) (*watcher.Watcher, error) {
	stateRel, err := filepath.Rel(w.root, w.cfg.StateDir())
	if err != nil {
		stateRel = ""
	}
	stateRel = filepath.ToSlash(stateRel)
	skip := func(rel string) bool {
		if stateRel != "" && (rel == stateRel || strings.HasPrefix(rel, stateRel+"/")) {
			return true
		}
		// probe a child so "**/node_modules/**" matches the directory itself
		return w.registry.Excluded(rel + "/_")
	}
	wt := watcher.New(w.root, notifyFunc(w.Notify), watcher.WithSkipDir(skip), watcher.WithLogger(w.logger))
	if err := wt.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	return wt, nil
}

type notifyFunc func(string, queue.EventKind) bool

func (f notifyFunc) Notify(path string, kind queue.EventKind) bool { return f(path, kind) }

func (w *Workspace) unload() {
	if err := w.provider.Unload(); err != nil {
		w.logger.Debug("model unload failed", zap.Error(err))
	}
}

// Close stops the queue and closes every store and the provider.
func (w *Workspace) Close() error {
	if w.queue != nil {
		w.queue.Close()
	}
	var errs []error
	for _, s := range w.stores {
		errs = append(errs, s.Close())
	}
	errs = append(errs, w.provider.Close())
	return errors.Join(errs...)
}
