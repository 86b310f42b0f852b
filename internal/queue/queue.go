// Package queue debounces file-change notifications and reindexes the affected files
// once edits have settled.
package queue

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/models"
)

// Defaults for New.
const (
	DefaultDebounce     = 2 * time.Second
	DefaultSafetyMargin = 100 * time.Millisecond
)

// EventKind classifies a file-system notification.
type EventKind int

const (
	EventCreate EventKind = iota + 1
	EventWrite
	EventRemove
	EventRename
	EventChmod
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	case EventChmod:
		return "chmod"
	}
	return "unknown"
}

// ParseEventKind maps "create", "write", ... back to an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	for k := EventCreate; k <= EventChmod; k++ {
		if strings.EqualFold(k.String(), s) {
			return k, true
		}
	}
	return 0, false
}

// Claimer decides which indexes a root-relative path belongs to.
type Claimer interface {
	Claim(relPath string) []string
}

// Target reindexes a single file. *indexer.Store implements it.
type Target interface {
	IndexFile(ctx context.Context, path string) (models.FileOutcome, error)
}

// Backend is the embedding capability the queue checks before a flush and releases after.
type Backend interface {
	Available(ctx context.Context) error
	Unload() error
}

// FlushReport summarizes one drain of ripe entries.
type FlushReport struct {
	Indexed    int
	Unchanged  int
	NotIndexed int
	Failed     int
	Dropped    int // ripe entries discarded because the backend was unavailable
}

type entry struct {
	path       string
	indexes    []string
	enqueuedAt time.Time
	seq        uint64
}

// Queue holds at most one pending entry per path. A single timer, re-armed on every
// accepted notification, drains entries whose last notification is at least one
// debounce interval old.
type Queue struct {
	root     string
	claimer  Claimer
	targets  map[string]Target
	backend  Backend
	debounce time.Duration
	margin   time.Duration
	now      func() time.Time
	logger   *zap.Logger
	onFlush  func(FlushReport)

	mu       sync.Mutex
	pending  map[string]*entry
	disabled map[string]bool
	seq      uint64
	timer    *time.Timer
	closed   bool

	flushMu sync.Mutex
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithDebounce sets the quiet period a path must see before it is reindexed.
func WithDebounce(d time.Duration) Option {
	return func(q *Queue) { q.debounce = d }
}

// WithSafetyMargin sets the extra delay added to the timer beyond the debounce.
func WithSafetyMargin(d time.Duration) Option {
	return func(q *Queue) { q.margin = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithFlushHook is called with the report of every drain that had ripe entries.
func WithFlushHook(fn func(FlushReport)) Option {
	return func(q *Queue) { q.onFlush = fn }
}

// New returns a queue for the project at root. targets maps index names to the
// stores that reindex them.
func New(root string, claimer Claimer, targets map[string]Target, backend Backend, opts ...Option) *Queue {
	q := &Queue{
		root:     filepath.Clean(root),
		claimer:  claimer,
		targets:  targets,
		backend:  backend,
		debounce: DefaultDebounce,
		margin:   DefaultSafetyMargin,
		now:      time.Now,
		pending:  make(map[string]*entry),
		disabled: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = zap.NewNop()
	}
	return q
}

// Notify records a change to path. It returns false when the notification was ignored:
// not a content edit, outside the root, or claimed by no enabled index.
func (q *Queue) Notify(path string, kind EventKind) bool {
	if kind != EventCreate && kind != EventWrite {
		return false
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(q.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(q.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	rel = filepath.ToSlash(rel)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	var indexes []string
	for _, name := range q.claimer.Claim(rel) {
		if _, ok := q.targets[name]; ok && !q.disabled[name] {
			indexes = append(indexes, name)
		}
	}
	if len(indexes) == 0 {
		return false
	}

	q.seq++
	q.pending[path] = &entry{path: path, indexes: indexes, enqueuedAt: q.now(), seq: q.seq}
	q.arm(q.debounce + q.margin)
	q.logger.Debug("change queued", zap.String("path", rel), zap.Stringer("kind", kind), zap.Strings("indexes", indexes))
	return true
}

// arm (re)starts the single timer. Callers hold q.mu.
func (q *Queue) arm(d time.Duration) {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(d, q.fire)
}

func (q *Queue) fire() {
	q.drain(context.Background(), q.now())
}

// drain processes entries that are ripe at now and re-arms the timer for the rest.
func (q *Queue) drain(ctx context.Context, now time.Time) FlushReport {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var report FlushReport
	ripe := q.takeRipe(now)
	if len(ripe) == 0 {
		return report
	}

	if err := q.backend.Available(ctx); err != nil {
		report.Dropped = len(ripe)
		q.logger.Info("embedding backend unavailable, dropping queued changes",
			zap.Int("files", len(ripe)), zap.Error(err))
		q.report(report)
		return report
	}

	var order []string
	groups := make(map[string][]*entry)
	for _, e := range ripe {
		for _, name := range e.indexes {
			if _, seen := groups[name]; !seen {
				order = append(order, name)
			}
			groups[name] = append(groups[name], e)
		}
	}
	for _, name := range order {
		target := q.targets[name]
		for _, e := range groups[name] {
			outcome, err := target.IndexFile(ctx, e.path)
			switch {
			case err != nil:
				report.Failed++
				q.logger.Warn("queued reindex failed", zap.String("index", name), zap.String("path", e.path), zap.Error(err))
			case outcome == models.OutcomeIndexed:
				report.Indexed++
			case outcome == models.OutcomeUnchanged:
				report.Unchanged++
			default:
				report.NotIndexed++
			}
		}
	}
	if err := q.backend.Unload(); err != nil {
		q.logger.Debug("model unload failed", zap.Error(err))
	}
	q.logger.Info("queued changes flushed",
		zap.Int("indexed", report.Indexed), zap.Int("unchanged", report.Unchanged),
		zap.Int("not_indexed", report.NotIndexed), zap.Int("failed", report.Failed))
	q.report(report)
	return report
}

func (q *Queue) report(r FlushReport) {
	if q.onFlush != nil {
		q.onFlush(r)
	}
}

// takeRipe removes and returns ripe entries in notification order.
func (q *Queue) takeRipe(now time.Time) []*entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}

	var ripe []*entry
	var wait time.Duration = -1
	for path, e := range q.pending {
		age := now.Sub(e.enqueuedAt)
		if age >= q.debounce {
			ripe = append(ripe, e)
			delete(q.pending, path)
			continue
		}
		if left := q.debounce - age; wait < 0 || left < wait {
			wait = left
		}
	}
	if wait >= 0 {
		q.arm(wait + q.margin)
	}
	sort.Slice(ripe, func(i, j int) bool { return ripe[i].seq < ripe[j].seq })
	return ripe
}

// DisableIndex drops the index from every pending entry and ignores it in future notifications.
func (q *Queue) DisableIndex(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.disabled[name] = true
	for path, e := range q.pending {
		kept := e.indexes[:0]
		for _, n := range e.indexes {
			if n != name {
				kept = append(kept, n)
			}
		}
		e.indexes = kept
		if len(kept) == 0 {
			delete(q.pending, path)
		}
	}
}

// EnableIndex undoes DisableIndex.
func (q *Queue) EnableIndex(name string) {
	q.mu.Lock()
	delete(q.disabled, name)
	q.mu.Unlock()
}

// Pending returns the number of queued paths.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the timer and discards pending work. Notify is a no-op afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	q.pending = make(map[string]*entry)
	q.mu.Unlock()

	// wait out a flush in progress; targets may be closed once Close returns
	q.flushMu.Lock()
	q.flushMu.Unlock()
}
