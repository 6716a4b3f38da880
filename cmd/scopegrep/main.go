package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/scopegrep"
	"github.com/jward/scopegrep/internal/config"
	"github.com/jward/scopegrep/internal/watcher"
	"github.com/jward/scopegrep/internal/web"
)

var (
	flagDB        string
	flagLanguages string
	flagFormat    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "scopegrep",
	Short:         "Structural grep: search source code by token, report by scope",
	Long:          "Scopegrep parses source files with tree-sitter, finds leaf tokens containing a substring, and reports each match with its enclosing scope chain and statement-level block.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "result cache path (empty disables caching)")
	rootCmd.PersistentFlags().StringVar(&flagLanguages, "languages", "", "comma-separated language filter (e.g. go,python)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: text|json")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
}

var flagWatch bool

var searchCmd = &cobra.Command{
	Use:   "search <pattern> [path]",
	Short: "Search a directory tree for a substring",
	Long:  "Parses each supported source file under path (default: current directory), finds every leaf token containing <pattern>, and prints one report line per match.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&flagWatch, "watch", false, "keep running and re-search files as they change")
}

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the search API over HTTP",
	Long:  "Starts an HTTP server exposing GET /api/search?q=<pattern>&path=<dir> over the given directory (default: current directory).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8390", "listen address")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	targetDir, err := resolveTargetDir(args[1:])
	if err != nil {
		return err
	}

	log := newLogger()
	engine, err := newEngine(targetDir, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reports := engine.SearchDirectory(ctx, query, targetDir)
	if err := printReports(reports); err != nil {
		return err
	}

	if !flagWatch {
		return nil
	}

	w, err := watcher.New(targetDir, func(paths []string) {
		rs := engine.SearchFiles(ctx, query, paths)
		if err := printReports(rs); err != nil {
			log.Error("print failed", "error", err)
		}
	}, watcher.WithOnError(func(err error) {
		log.Error("watch error", "error", err)
	}))
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Stop()
	w.Start()

	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl-C to stop)\n", targetDir)
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}

	log := newLogger()
	engine, err := newEngine(targetDir, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := web.NewServer(engine, targetDir, log)
	log.Info("listening", "addr", flagAddr, "root", targetDir)
	if err := http.ListenAndServe(flagAddr, srv); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// newEngine builds an Engine from the config file at targetDir layered
// under the command-line flags (flags win).
func newEngine(targetDir string, log *slog.Logger) (*scopegrep.Engine, error) {
	cfg, err := config.Load(targetDir)
	if err != nil {
		return nil, err
	}

	opts := []scopegrep.Option{scopegrep.WithLogger(log)}

	languages := cfg.Languages
	if flagLanguages != "" {
		languages = strings.Split(flagLanguages, ",")
		for i := range languages {
			languages[i] = strings.TrimSpace(languages[i])
		}
	}
	if len(languages) > 0 {
		opts = append(opts, scopegrep.WithLanguages(languages...))
	}

	dbPath := cfg.DB
	if flagDB != "" {
		dbPath = flagDB
	}
	if dbPath != "" {
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(targetDir, dbPath)
		}
		opts = append(opts, scopegrep.WithCache(dbPath))
	}

	if len(cfg.Ignore) > 0 {
		opts = append(opts, scopegrep.WithIgnoreDirs(cfg.Ignore...))
	}

	engine, err := scopegrep.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// printReports writes reports to stdout in the selected format.
func printReports(reports []scopegrep.Report) error {
	switch flagFormat {
	case "json":
		if reports == nil {
			reports = []scopegrep.Report{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	default:
		for _, r := range reports {
			fmt.Println(r)
		}
		return nil
	}
}

// validateFormat checks the --format flag value.
func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q (expected text or json)", format)
	}
}

// resolveTargetDir returns the absolute path of the directory to search.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
