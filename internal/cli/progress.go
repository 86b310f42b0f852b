package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/hyperjump/semindex/internal/workspace"
)

// Reporter shows bulk indexing progress.
type Reporter interface {
	// Update is a workspace.Progress.
	Update(index string, processed, total int, path string)
	Finish()
}

// NewReporter returns a line-based reporter under CI and a progress bar otherwise.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{w: w}
	}
	return &BarReporter{w: w}
}

// Func adapts r to the workspace progress callback.
func Func(r Reporter) workspace.Progress {
	return r.Update
}

// BarReporter draws one progress bar per index.
type BarReporter struct {
	w     io.Writer
	index string
	bar   *progressbar.ProgressBar
}

func (r *BarReporter) Update(index string, processed, total int, path string) {
	if r.bar == nil || index != r.index {
		r.Finish()
		r.index = index
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(index),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	r.bar.Describe(fmt.Sprintf("%s: %s", index, path))
	_ = r.bar.Set(processed)
}

func (r *BarReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}

// LineReporter prints one line per file, for logs.
type LineReporter struct {
	w io.Writer
}

func (r *LineReporter) Update(index string, processed, total int, path string) {
	fmt.Fprintf(r.w, "[%s %d/%d] %s\n", index, processed, total, path)
}

func (r *LineReporter) Finish() {}
