// Package index keeps a searchable record of the Python modules in the
// current workspace: their dotted names and top-level symbols.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/syntax"
)

// maxFileSize bounds the Python files that are indexed.
const maxFileSize = 2 << 20

// Extractor returns the top-level symbols of a Python source.
type Extractor interface {
	ExtractSymbols(source string) ([]syntax.Symbol, error)
}

// Indexer scans a workspace into a Store and keeps it current while the
// workspace is open. It implements syntax.ModuleIndex.
type Indexer struct {
	store   *Store
	extract Extractor
	watch   bool
	log     *logger.Logger

	mu      sync.Mutex
	root    string
	watcher *Watcher
}

// NewIndexer creates an indexer. When watch is set, an open workspace is
// followed with filesystem notifications.
func NewIndexer(store *Store, extract Extractor, watch bool) *Indexer {
	return &Indexer{
		store:   store,
		extract: extract,
		watch:   watch,
		log:     logger.Global().WithPrefix("index"),
	}
}

// Open indexes root, replacing the previous workspace.
func (ix *Indexer) Open(ctx context.Context, root string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.stopWatcher()
	if err := ix.store.SetRoot(ctx, root); err != nil {
		return err
	}
	ix.root = root

	stats, err := ix.scan(ctx, root)
	if err != nil {
		return err
	}
	ix.log.Info("Indexed %s: %d modules (%d updated, %d removed)", root, stats.total, stats.updated, stats.removed)

	if ix.watch {
		w, err := NewWatcher(ix, root)
		if err != nil {
			ix.log.Warn("Workspace watcher unavailable: %v", err)
			return nil
		}
		ix.watcher = w
	}
	return nil
}

// Close stops following the workspace. The stored index is kept.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.stopWatcher()
	ix.root = ""
	return nil
}

// Root returns the open workspace, "" when none is open.
func (ix *Indexer) Root() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.root
}

func (ix *Indexer) stopWatcher() {
	if ix.watcher != nil {
		ix.watcher.Close()
		ix.watcher = nil
	}
}

// Modules implements syntax.ModuleIndex.
func (ix *Indexer) Modules(ctx context.Context, prefix string) ([]string, error) {
	return ix.store.Modules(ctx, prefix)
}

// Symbols implements syntax.ModuleIndex.
func (ix *Indexer) Symbols(ctx context.Context, module string) ([]syntax.Symbol, error) {
	return ix.store.Symbols(ctx, module)
}

type scanStats struct {
	total, updated, removed int
}

// scan walks root and updates every changed Python file. Modules whose
// file disappeared are removed.
func (ix *Indexer) scan(ctx context.Context, root string) (scanStats, error) {
	files, err := ix.pythonFiles(ctx, root)
	if err != nil {
		return scanStats{}, err
	}
	stats := scanStats{total: len(files)}
	if stats.updated, err = ix.updateAll(ctx, root, files); err != nil {
		return stats, err
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f] = true
	}
	known, err := ix.store.Paths(ctx)
	if err != nil {
		return stats, err
	}
	for _, p := range known {
		if !seen[p] {
			if err := ix.store.Remove(ctx, p); err != nil {
				return stats, err
			}
			stats.removed++
		}
	}
	return stats, nil
}

// pythonFiles lists the Python files below dir, skipping directories
// without workspace modules.
func (ix *Indexer) pythonFiles(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == dir {
				return err
			}
			ix.log.Debug("Skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != dir && skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isPythonFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return files, nil
}

// updateAll indexes files concurrently and returns how many changed. A
// file that cannot be indexed is skipped.
func (ix *Indexer) updateAll(ctx context.Context, root string, files []string) (int, error) {
	var mu sync.Mutex
	updated := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range files {
		g.Go(func() error {
			changed, err := ix.update(gctx, root, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ix.log.Debug("Failed to index %s: %v", path, err)
				return nil
			}
			if changed {
				mu.Lock()
				updated++
				mu.Unlock()
			}
			return nil
		})
	}
	return updated, g.Wait()
}

// update re-indexes the file at path when its content changed. It reports
// whether the stored module was replaced.
func (ix *Indexer) update(ctx context.Context, root, path string) (bool, error) {
	name := ModuleName(root, path)
	if name == "" {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.Size() > maxFileSize {
		return false, fmt.Errorf("file too large (%d bytes)", info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	hash := fmt.Sprintf("%016x", xxhash.Sum64(data))
	if old, ok, err := ix.store.Hash(ctx, path); err != nil {
		return false, err
	} else if ok && old == hash {
		return false, nil
	}

	symbols, err := ix.extract.ExtractSymbols(string(data))
	if err != nil {
		if !errors.Is(err, syntax.ErrUnavailable) {
			return false, err
		}
		symbols = nil
	}
	return true, ix.store.Put(ctx, Module{Name: name, Path: path, Hash: hash}, symbols)
}

// refresh handles a change notification for path.
func (ix *Indexer) refresh(ctx context.Context, root, path string) {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		if err := ix.store.Remove(ctx, path); err != nil {
			ix.log.Debug("Failed to remove %s: %v", path, err)
		}
		if err := ix.store.RemoveUnder(ctx, path); err != nil {
			ix.log.Debug("Failed to remove modules under %s: %v", path, err)
		}
	case info.IsDir():
		if skipDir(path, info.Name()) {
			return
		}
		files, err := ix.pythonFiles(ctx, path)
		if err != nil {
			ix.log.Debug("Failed to list %s: %v", path, err)
			return
		}
		if _, err := ix.updateAll(ctx, root, files); err != nil {
			ix.log.Debug("Failed to index %s: %v", path, err)
		}
	case isPythonFile(info.Name()):
		if _, err := ix.update(ctx, root, path); err != nil {
			ix.log.Debug("Failed to index %s: %v", path, err)
		}
	}
}

// ModuleName returns the dotted module name of a Python file below root.
// Package initialisers name their package; the root initialiser has no
// name.
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	rel = strings.TrimSuffix(rel, "__init__")
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" {
		return ""
	}
	return strings.ReplaceAll(rel, "/", ".")
}

func isPythonFile(name string) bool {
	return strings.HasSuffix(name, ".py") && !strings.HasPrefix(name, ".")
}

// skipDir reports whether a directory holds no workspace modules: hidden
// directories, bytecode caches, virtualenvs and dependency trees.
func skipDir(path, name string) bool {
	switch name {
	case "__pycache__", "node_modules", "site-packages", "venv", "env":
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, err := os.Stat(filepath.Join(path, "pyvenv.cfg"))
	return err == nil
}
