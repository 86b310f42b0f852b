// Package cli provides output and progress helpers for the semindex command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/semindex/internal/config"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/workspace"
	"github.com/hyperjump/semindex/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// snippetLen is how much chunk content text output shows per hit.
const snippetLen = 200

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (index: %s)\n\n", response.Total, response.QueryTime, response.Index)
	for i, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%s] %s#%d | Distance: %.4f", i+1, hit.Index, hit.File, hit.ChunkIndex, hit.Distance)
		if hit.Archived {
			fmt.Fprint(w, " (archived)")
		}
		fmt.Fprintf(w, "\n\n%s\n\n", utils.Truncate(strings.TrimSpace(hit.Content), snippetLen))
	}
	return nil
}

// WriteIndexReports writes the result of an index run.
func WriteIndexReports(w io.Writer, reports []workspace.IndexReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"reports": reports})
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%-10s indexed %d, skipped %d, failed %d of %d files\n",
			r.Name, r.Result.Indexed, r.Result.Skipped, r.Result.Failed, r.Result.Total)
	}
	return nil
}

// WriteStatus writes index status.
func WriteStatus(w io.Writer, statuses []workspace.IndexStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"indexes": statuses})
	}
	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		state := "enabled"
		if !st.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "%s (%s)  # %s\n", st.Name, state, st.Description)
		fmt.Fprintf(w, "  pattern:     %s\n", st.Pattern)
		if !st.Enabled {
			continue
		}
		fmt.Fprintf(w, "  files:       %d\n", st.FileCount)
		fmt.Fprintf(w, "  chunks:      %d\n", st.ChunkCount)
		if st.DiskBytes != nil {
			fmt.Fprintf(w, "  disk:        %s\n", HumanBytes(*st.DiskBytes))
		}
		if st.Health != nil {
			fmt.Fprintf(w, "  health:      %s (%d on disk, %d cached)\n", st.Health.Reason, st.Health.Expected, st.Health.Cached)
		}
	}
	return nil
}

// WriteDoctor writes a readiness report.
func WriteDoctor(w io.Writer, rep *workspace.DoctorReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rep)
	}
	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "!!"
	}
	cfgFile := rep.ConfigFile
	if cfgFile == "" {
		cfgFile = "none, using defaults"
	}
	fmt.Fprintf(w, "root:        %s\n", rep.Root)
	fmt.Fprintf(w, "config:      %s\n", cfgFile)
	fmt.Fprintf(w, "[%s] indexing enabled\n", mark(rep.Enabled))
	fmt.Fprintf(w, "[%s] auto-index\n", mark(rep.AutoIndex))
	backend := rep.Provider
	if rep.Model != "" {
		backend += " (" + rep.Model + ")"
	}
	if rep.Available {
		fmt.Fprintf(w, "[ok] embedding backend %s\n", backend)
	} else {
		fmt.Fprintf(w, "[!!] embedding backend %s: %s\n", backend, rep.BackendError)
	}
	fmt.Fprintf(w, "vector store: %s\n", rep.VectorStore)
	for _, st := range rep.Indexes {
		switch {
		case !st.Enabled:
			fmt.Fprintf(w, "[--] %s disabled\n", st.Name)
		case st.Health == nil:
			fmt.Fprintf(w, "[!!] %s not open\n", st.Name)
		default:
			fmt.Fprintf(w, "[%s] %s %d files, %s\n", mark(!st.Health.NeedsReindex), st.Name, st.FileCount, st.Health.Reason)
		}
	}
	return nil
}

// WritePresets lists index definitions in name order.
func WritePresets(w io.Writer, indexes map[string]config.IndexConfig, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, indexes)
	}
	names := make([]string, 0, len(indexes))
	for n := range indexes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		ix := indexes[n]
		desc := ix.Description
		if !ix.EnabledOrDefault() {
			desc += " (disabled)"
		}
		fmt.Fprintf(w, "%-8s %s\n         pattern: %s\n", n, desc, ix.Pattern)
		if len(ix.Ignore) > 0 {
			fmt.Fprintf(w, "         ignore:  %s\n", strings.Join(ix.Ignore, ", "))
		}
	}
	return nil
}

// HumanBytes formats n with a binary unit suffix.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
