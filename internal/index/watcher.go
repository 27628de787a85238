package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/pytools/internal/logger"
)

// Watcher follows a workspace with filesystem notifications and refreshes
// the index of every changed Python file.
type Watcher struct {
	indexer *Indexer
	root    string
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	log     *logger.Logger
}

// NewWatcher starts watching every indexed directory below root.
func NewWatcher(indexer *Indexer, root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		indexer: indexer,
		root:    root,
		watcher: fw,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logger.Global().WithPrefix("index:watch"),
	}
	if err := w.addTree(root); err != nil {
		cancel()
		fw.Close()
		return nil, err
	}

	go w.run(ctx)
	return w, nil
}

// Close stops the watcher and waits for it to finish.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

// addTree watches dir and every directory below it that the scan would
// visit.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && skipDir(path, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Debug("Cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Workspace watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	w.log.Debug("%s", event)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skipDir(event.Name, info.Name()) {
			if err := w.addTree(event.Name); err != nil {
				w.log.Debug("Cannot watch %s: %v", event.Name, err)
			}
		}
	}
	w.indexer.refresh(ctx, w.root, event.Name)
}
