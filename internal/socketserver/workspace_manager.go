package socketserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

// Project is the workspace the server was initialized with.
type Project struct {
	ID       string    // hash of Path
	Path     string    // absolute directory
	Name     string    // base name of Path
	OpenedAt time.Time // when the workspace became current
}

// Indexer follows the current workspace. It is told about every workspace
// switch and closed on reset. Open runs in the background and must return
// once ctx is canceled.
type Indexer interface {
	Open(ctx context.Context, root string) error
	Close() error
}

// WorkspaceManager holds the project state of the server: whether the
// server has been initialized and which directory is the workspace.
type WorkspaceManager struct {
	mu          sync.RWMutex
	initialized bool
	current     *Project
	features    map[string]bool
	indexer     Indexer
	log         *logger.Logger

	indexMu     sync.Mutex
	cancelIndex context.CancelFunc
	indexDone   chan struct{}
}

// NewWorkspaceManager creates an uninitialized manager. indexer may be nil.
func NewWorkspaceManager(indexer Indexer) *WorkspaceManager {
	return &WorkspaceManager{
		indexer: indexer,
		log:     logger.Global().WithPrefix("workspace"),
	}
}

// Initialize marks the project initialized. A path that does not resolve to
// a directory leaves the project without a workspace instead of failing.
func (wm *WorkspaceManager) Initialize(ctx context.Context, path string, features map[string]bool) *Project {
	project, err := resolveProject(path)
	if err != nil {
		wm.log.Warn("Initializing without workspace: %v", err)
	}

	wm.mu.Lock()
	wm.initialized = true
	wm.current = project
	wm.features = features
	wm.mu.Unlock()

	if project != nil {
		wm.log.Info("Initialized workspace %s at %s", project.Name, project.Path)
		wm.startIndex(ctx, project)
	}
	return project
}

// Change switches the workspace. Switching to the current workspace is a
// no-op; a path that is not a directory is an input error.
func (wm *WorkspaceManager) Change(ctx context.Context, path string) error {
	project, err := resolveProject(path)
	if err != nil {
		return rpc.NewError(rpc.CodeInputError, "cannot change workspace: %v", err)
	}

	wm.mu.Lock()
	if wm.current != nil && wm.current.Path == project.Path {
		wm.mu.Unlock()
		return nil
	}
	wm.current = project
	wm.mu.Unlock()

	wm.log.Info("Changed workspace to %s", project.Path)
	wm.startIndex(ctx, project)
	return nil
}

// Reset forgets the project, stops a running scan and closes the index.
func (wm *WorkspaceManager) Reset() {
	wm.mu.Lock()
	wm.initialized = false
	wm.current = nil
	wm.features = nil
	wm.mu.Unlock()

	wm.stopIndex()
	if wm.indexer != nil {
		if err := wm.indexer.Close(); err != nil {
			wm.log.Warn("Failed to close index: %v", err)
		}
	}
}

// Initialized reports whether initialize has been called since the last reset.
func (wm *WorkspaceManager) Initialized() bool {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.initialized
}

// Current returns the current workspace, nil when there is none.
func (wm *WorkspaceManager) Current() *Project {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.current == nil {
		return nil
	}
	p := *wm.current
	return &p
}

// FeatureEnabled reports whether the client left the feature named by
// method switched on at initialize.
func (wm *WorkspaceManager) FeatureEnabled(method rpc.Method) bool {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	enabled, ok := wm.features[string(method)]
	return !ok || enabled
}

// ResolvePath makes a relative path absolute against the workspace, or the
// working directory of the server when there is no workspace.
func (wm *WorkspaceManager) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if p := wm.Current(); p != nil {
		return filepath.Join(p.Path, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// startIndex opens project in the indexer in the background, canceling
// the scan of the previous workspace. Scans run one after another, so the
// indexer always ends up on the latest workspace. Requests are answered
// from whatever has been indexed so far.
func (wm *WorkspaceManager) startIndex(ctx context.Context, project *Project) {
	if wm.indexer == nil {
		return
	}

	wm.indexMu.Lock()
	defer wm.indexMu.Unlock()

	if wm.cancelIndex != nil {
		wm.cancelIndex()
	}
	prev := wm.indexDone
	indexCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	wm.cancelIndex, wm.indexDone = cancel, done

	go func() {
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		if indexCtx.Err() != nil {
			return
		}
		start := time.Now()
		err := wm.indexer.Open(indexCtx, project.Path)
		switch {
		case err == nil:
			wm.log.Debug("Indexed %s in %s", project.Path, time.Since(start))
		case errors.Is(err, context.Canceled):
			wm.log.Debug("Indexing of %s canceled", project.Path)
		default:
			wm.log.Warn("Failed to index %s: %v", project.Path, err)
		}
	}()
}

// stopIndex cancels the running scan and waits for it to return.
func (wm *WorkspaceManager) stopIndex() {
	wm.indexMu.Lock()
	cancel, done := wm.cancelIndex, wm.indexDone
	wm.cancelIndex, wm.indexDone = nil, nil
	wm.indexMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// waitIndex blocks until the scan started last has returned.
func (wm *WorkspaceManager) waitIndex() {
	wm.indexMu.Lock()
	done := wm.indexDone
	wm.indexMu.Unlock()
	if done != nil {
		<-done
	}
}

func resolveProject(path string) (*Project, error) {
	if path == "" {
		return nil, fmt.Errorf("empty workspace path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("workspace does not exist: %s", absPath)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace is not a directory: %s", absPath)
	}
	return &Project{
		ID:       generateWorkspaceID(absPath),
		Path:     absPath,
		Name:     filepath.Base(absPath),
		OpenedAt: time.Now(),
	}, nil
}

func generateWorkspaceID(absPath string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(absPath))
}
