// Package main is the semindex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/cli"
	"github.com/hyperjump/semindex/internal/config"
	"github.com/hyperjump/semindex/internal/models"
	"github.com/hyperjump/semindex/internal/registry"
	"github.com/hyperjump/semindex/internal/server"
	"github.com/hyperjump/semindex/internal/workspace"
	"github.com/hyperjump/semindex/pkg/utils"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "index":
		runIndex(args)
	case "search":
		runSearch(args)
	case "status":
		runStatus(args)
	case "clear":
		runClear(args)
	case "watch":
		runWatch(args)
	case "presets":
		runPresets(args)
	case "doctor":
		runDoctor(args)
	case "version", "--version", "-v":
		fmt.Printf("semindex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: semindex <command> [flags]

Commands:
  index [name|all]     Index files (--force re-embeds everything)
  search <query>       Semantic search (--index, --limit, --archived)
  status [name|all]    Show index sizes and health
  clear [name|all]     Drop index contents
  watch                Watch the project, reindex on change, serve the HTTP API
  presets              List the built-in index presets
  doctor               Check config, embedding backend and index health
  version              Print the version

Common flags:
  --root <dir>         Project root (default: current directory)
  --debug              Verbose logging
  --output text|json   Output format
`)
}

// commonFlags are shared by every project command.
type commonFlags struct {
	root   *string
	debug  *bool
	output *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		root:   fs.String("root", ".", "project root"),
		debug:  fs.Bool("debug", false, "enable debug logging"),
		output: fs.String("output", "text", "output format: text or json"),
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadDotEnv loads <root>/.env so API keys can live next to the project. A missing
// file is not an error; variables already set are not overridden.
func loadDotEnv(root string) error {
	err := godotenv.Load(filepath.Join(root, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// openWorkspace loads config and opens the project. Bulk commands log only warnings
// unless debug is set, so progress output stays readable.
func openWorkspace(c commonFlags, verbose bool) (*workspace.Workspace, *zap.Logger) {
	root, err := filepath.Abs(*c.root)
	if err != nil {
		fatalf("Invalid root: %v", err)
	}
	if err := loadDotEnv(root); err != nil {
		fatalf("Failed to load .env: %v", err)
	}
	bootstrap, _ := utils.NewQuietLogger()
	cfg := config.LoadOrDefault(root, bootstrap)

	debug := cfg.Debug || *c.debug
	var logger *zap.Logger
	if debug || verbose {
		logger, err = utils.NewLogger(debug)
	} else {
		logger, err = utils.NewQuietLogger()
	}
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	ws, err := workspace.Open(root, workspace.WithConfig(cfg), workspace.WithLogger(logger))
	if err != nil {
		fatalf("Failed to open project: %v", err)
	}
	return ws, logger
}

func outputFormat(c commonFlags) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(*c.output)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

// indexArg returns the optional positional index name, defaulting to "all".
func indexArg(fs *flag.FlagSet) string {
	if fs.NArg() > 0 {
		return fs.Arg(0)
	}
	return models.AllIndexes
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	c := addCommonFlags(fs)
	force := fs.Bool("force", false, "clear the index and re-embed every file")
	_ = fs.Parse(reorderArgs(args))
	format := outputFormat(c)

	ws, logger := openWorkspace(c, false)
	defer logger.Sync()
	defer ws.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var progress workspace.Progress
	var reporter cli.Reporter
	if format == cli.OutputText {
		reporter = cli.NewReporter(os.Stderr)
		progress = cli.Func(reporter)
	}
	reports, err := ws.Index(ctx, indexArg(fs), *force, progress)
	if reporter != nil {
		reporter.Finish()
	}
	if err != nil {
		if errors.Is(err, workspace.ErrBackendUnavailable) {
			fatalf("Indexing failed: %v\nCheck the embedding section of %s.", err, config.FileName)
		}
		fatalf("Indexing failed: %v", err)
	}
	if err := cli.WriteIndexReports(os.Stdout, reports, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: semindex search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
When a semindex watch server is running for the project, the query is sent to it;
otherwise the indexes are opened directly.

Examples:
  semindex search how is the config loaded
  semindex search --index docs "release checklist"
  semindex search --archived --limit 20 old migration plan
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags that appear after positional arguments to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// serverURL is the address a watch server for cfg listens on.
func serverURL(cfg config.ServerConfig) string {
	return fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
}

// errServerDown means no server answered; the caller falls back to direct access.
var errServerDown = errors.New("server not reachable")

func searchViaHTTP(client *http.Client, baseURL string, req models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := client.Post(baseURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errServerDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	c := addCommonFlags(fs)
	index := fs.String("index", models.AllIndexes, "index to search, or all")
	limit := fs.Int("limit", 10, "number of results")
	archived := fs.Bool("archived", false, "include chunks from archived files")
	serverFlag := fs.String("server", "", "server URL (default: from the project config)")
	direct := fs.Bool("direct", false, "do not try a running server")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(args))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := outputFormat(c)
	req := models.SearchRequest{Query: query, Limit: *limit, Index: *index, IncludeArchived: *archived}

	if !*direct {
		root, _ := filepath.Abs(*c.root)
		base := *serverFlag
		if base == "" {
			base = serverURL(config.LoadOrDefault(root, nil).Server)
		}
		response, err := searchViaHTTP(&http.Client{Timeout: 30 * time.Second}, base, req)
		switch {
		case err == nil:
			if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
				fatalf("Output failed: %v", err)
			}
			return
		case !errors.Is(err, errServerDown):
			fatalf("Search failed: %v", err)
		}
	}

	ws, logger := openWorkspace(c, false)
	defer logger.Sync()
	defer ws.Close()
	response, err := ws.Search(context.Background(), req)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	c := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	format := outputFormat(c)

	ws, logger := openWorkspace(c, false)
	defer logger.Sync()
	defer ws.Close()

	statuses, err := ws.Status(context.Background(), indexArg(fs))
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, statuses, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	c := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(args))

	ws, logger := openWorkspace(c, false)
	defer logger.Sync()
	defer ws.Close()

	cleared, err := ws.Clear(context.Background(), indexArg(fs))
	if err != nil {
		fatalf("Clear failed: %v", err)
	}
	for _, name := range cleared {
		fmt.Printf("Cleared %s\n", name)
	}
}

func runDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	c := addCommonFlags(fs)
	_ = fs.Parse(args)
	format := outputFormat(c)

	ws, logger := openWorkspace(c, false)
	defer logger.Sync()
	defer ws.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rep, err := ws.Doctor(ctx)
	if err != nil {
		fatalf("Doctor failed: %v", err)
	}
	if err := cli.WriteDoctor(os.Stdout, rep, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runPresets(args []string) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	c := addCommonFlags(fs)
	resolved := fs.Bool("resolved", false, "show the project's indexes instead of the built-in presets")
	_ = fs.Parse(args)
	format := outputFormat(c)

	indexes := registry.Presets()
	if *resolved {
		root, _ := filepath.Abs(*c.root)
		reg, err := registry.New(config.LoadOrDefault(root, nil))
		if err != nil {
			fatalf("Invalid index configuration: %v", err)
		}
		indexes = make(map[string]config.IndexConfig)
		for _, name := range reg.Names() {
			ix, _ := reg.Get(name)
			enabled := ix.Enabled
			indexes[name] = config.IndexConfig{Enabled: &enabled, Pattern: ix.Pattern, Ignore: ix.Ignore, Description: ix.Description}
		}
	}
	if err := cli.WritePresets(os.Stdout, indexes, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	c := addCommonFlags(fs)
	noServer := fs.Bool("no-server", false, "do not serve the HTTP API")
	noSync := fs.Bool("no-sync", false, "skip the startup health check and freshen")
	_ = fs.Parse(args)

	ws, logger := openWorkspace(c, true)
	defer logger.Sync()
	defer ws.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if !*noSync {
		go func() {
			reports, err := ws.Sync(ctx)
			if err != nil {
				logger.Warn("startup sync failed", zap.Error(err))
				return
			}
			for _, r := range reports {
				logger.Info("startup sync", zap.String("index", r.Name), zap.String("health", string(r.Health.Reason)))
			}
		}()
	}

	w, err := ws.Watch(ctx)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("watching", zap.String("root", ws.Root()), zap.Duration("debounce", ws.Config().Debounce()))

	var srv *server.Server
	if !*noServer {
		srv = server.NewServer(ws, ws.Config().Server, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Server failed", zap.Error(err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		_ = srv.Stop(shutdownCtx)
	}
}
