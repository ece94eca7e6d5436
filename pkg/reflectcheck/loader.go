package reflectcheck

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// skipDirs are directory names never descended into.
var skipDirs = map[string]struct{}{
	"bin":          {},
	"obj":          {},
	"node_modules": {},
	"packages":     {},
	"TestResults":  {},
}

// LoaderOptions configures source discovery.
type LoaderOptions struct {
	// Paths are the files and directories to analyze. Defaults to ".".
	Paths []string

	// Include restricts discovered files to those matching one of these
	// doublestar patterns, relative to the walked directory.
	Include []string

	// Exclude drops discovered files matching one of these doublestar
	// patterns, relative to the walked directory.
	Exclude []string
}

// LoadSources discovers the C# files named by opts and reads them.
func LoadSources(ctx context.Context, opts LoaderOptions) ([]Source, error) {
	paths, err := Discover(opts)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no C# files found in %v", opts.Paths)
	}

	sources := make([]Source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			sources[i] = Source{Path: path, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Debug("loaded sources", "files", len(sources))
	return sources, nil
}

// Discover returns the sorted, de-duplicated C# file paths named by opts.
// Files given explicitly are always included; directories are walked,
// honouring .gitignore at the directory root.
func Discover(opts LoaderOptions) ([]string, error) {
	if err := validatePatterns(opts.Include, opts.Exclude); err != nil {
		return nil, err
	}
	roots := opts.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			paths = append(paths, filepath.Clean(root))
			continue
		}
		found, err := walkDir(root, opts)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return deduplicate(paths), nil
}

func walkDir(root string, opts LoaderOptions) ([]string, error) {
	gi := loadGitignore(root)

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		name := d.Name()
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 || !strings.EqualFold(filepath.Ext(name), ".cs") {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !selected(rel, opts.Include, opts.Exclude) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// selected reports whether rel passes the include and exclude patterns.
func selected(rel string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func validatePatterns(lists ...[]string) error {
	for _, list := range lists {
		for _, pattern := range list {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid glob pattern %q", pattern)
			}
		}
	}
	return nil
}

// deduplicate sorts paths and removes repeated files.
func deduplicate(paths []string) []string {
	for i, p := range paths {
		paths[i] = filepath.Clean(p)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}
