package scopegrep

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopegrep/internal/language"
	"github.com/jward/scopegrep/internal/store"
)

// Engine orchestrates a search run: file discovery, per-file parsing and
// matching, result caching, and error isolation. Files are processed one
// at a time; a tree never outlives the file it was parsed from.
type Engine struct {
	languages map[string]bool // nil means all languages
	cachePath string
	cache     *store.Store // nil when caching is off
	log       *slog.Logger
	skipDirs  map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will search.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithCache enables the SQLite result cache at dbPath. Unchanged files
// searched again with the same query replay cached reports instead of
// re-parsing.
func WithCache(dbPath string) Option {
	return func(e *Engine) {
		e.cachePath = dbPath
	}
}

// WithLogger sets the logger used for per-file skip warnings. Defaults
// to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithIgnoreDirs adds directory names skipped during the filesystem-walk
// fallback, on top of the built-in set.
func WithIgnoreDirs(names ...string) Option {
	return func(e *Engine) {
		for _, n := range names {
			e.skipDirs[n] = true
		}
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		log: slog.Default(),
		skipDirs: map[string]bool{
			"node_modules": true,
			"vendor":       true,
			"__pycache__":  true,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cachePath != "" {
		s, err := store.Open(e.cachePath)
		if err != nil {
			return nil, fmt.Errorf("scopegrep: open cache: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("scopegrep: migrate cache: %w", err)
		}
		e.cache = s
	}
	return e, nil
}

// Close releases the Engine's cache database, if any.
func (e *Engine) Close() error {
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}

// SearchFile searches a single file for query and returns its reports in
// discovery order. Unsupported and filtered-out files return no reports
// and no error. Read, parse, and decode failures are errors for this
// file only; callers decide whether to continue with other files.
func (e *Engine) SearchFile(ctx context.Context, query, path string) ([]Report, error) {
	lang, ok := language.ForFile(path)
	if !ok {
		return nil, nil // unsupported extension
	}
	if e.languages != nil && !e.languages[lang] {
		return nil, nil // filtered out
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(src))

	if e.cache != nil {
		cached, hit, err := e.cache.Lookup(path, hash, query)
		if err != nil {
			e.log.Warn("cache lookup failed", "path", path, "error", err)
		} else if hit {
			reports := make([]Report, len(cached))
			for i, m := range cached {
				reports[i] = Report{File: path, ScopeChain: m.ScopeChain, Block: m.Block}
			}
			return reports, nil
		}
	}

	reports, err := e.searchSource(ctx, query, path, src, lang)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		ms := make([]store.CachedMatch, len(reports))
		for i, r := range reports {
			ms[i] = store.CachedMatch{Ordinal: i, ScopeChain: r.ScopeChain, Block: r.Block}
		}
		if err := e.cache.Save(path, lang, hash, query, ms); err != nil {
			e.log.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return reports, nil
}

// searchSource runs the core pipeline over one file's source: parse,
// find leaf matches, and derive a Report per match.
func (e *Engine) searchSource(ctx context.Context, query, path string, src []byte, lang string) ([]Report, error) {
	grammar, ok := language.Grammar(lang)
	if !ok {
		return nil, fmt.Errorf("no grammar for language %q", lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	root := tree.RootNode()

	matches, err := FindLeafMatches(root, src, query)
	if err != nil {
		return nil, err
	}

	var reports []Report
	for _, match := range matches {
		hierarchy := HierarchyOf(match)
		scopes := NamedScopes(hierarchy, src, lang)

		// The innermost named scope anchors block extraction; without
		// one the anchor degenerates to the root.
		anchor := root
		if len(scopes) > 0 {
			anchor = scopes[len(scopes)-1].Node
		}

		reports = append(reports, Report{
			File:       path,
			ScopeChain: ScopeChain(scopes),
			Block:      FlattenBlock(ExtractBlock(match, anchor, src)),
		})
	}
	return reports, nil
}

// SearchFiles searches each file in order. Files that fail are logged
// and skipped; the remaining files still contribute reports.
func (e *Engine) SearchFiles(ctx context.Context, query string, paths []string) []Report {
	var reports []Report
	for _, path := range paths {
		rs, err := e.SearchFile(ctx, query, path)
		if err != nil {
			e.log.Warn("skipping file", "path", path, "error", err)
			continue
		}
		reports = append(reports, rs...)
	}
	return reports
}

// SearchDirectory discovers files under root and searches them. If root
// is inside a git repository, uses git ls-files to respect .gitignore;
// falls back to a filesystem walk (skipping hidden dirs and the ignore
// set) when git is unavailable.
func (e *Engine) SearchDirectory(ctx context.Context, query, root string) []Report {
	paths, err := e.gitListFiles(root)
	if err != nil {
		paths, err = e.walkListFiles(root)
		if err != nil {
			e.log.Warn("directory walk failed", "root", root, "error", err)
			return nil
		}
	}
	return e.SearchFiles(ctx, query, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but
// not ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := language.ForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a
// fallback when git is not available. Skips hidden directories and the
// configured ignore set.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || e.skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := language.ForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
