package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pytools/internal/syntax"
)

// lineExtractor reports a function for every "def name" line.
type lineExtractor struct {
	calls atomic.Int32
	err   error
}

func (e *lineExtractor) ExtractSymbols(source string) ([]syntax.Symbol, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	var out []syntax.Symbol
	for i, line := range strings.Split(source, "\n") {
		if name, ok := strings.CutPrefix(line, "def "); ok {
			name, _, _ = strings.Cut(name, "(")
			out = append(out, syntax.Symbol{Name: name, Kind: "function", Signature: name + "()", Line: i})
		}
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.py"), "def main():\n    pass\n")
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "mod.py"), "def helper(x):\n    return x\ndef other():\n    pass\n")
	writeFile(t, filepath.Join(root, "pkg", "notes.txt"), "def nope")
	writeFile(t, filepath.Join(root, ".git", "hook.py"), "def hidden():\n")
	writeFile(t, filepath.Join(root, "pkg", "__pycache__", "mod.py"), "def cached():\n")
	writeFile(t, filepath.Join(root, "env2", "pyvenv.cfg"), "home = /usr/bin\n")
	writeFile(t, filepath.Join(root, "env2", "lib", "dep.py"), "def dep():\n")
	return root
}

func newTestIndexer(t *testing.T, extract Extractor, watch bool) *Indexer {
	t.Helper()
	ix := NewIndexer(openTestStore(t), extract, watch)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestModuleName(t *testing.T) {
	root := filepath.FromSlash("/w")
	tests := map[string]string{
		"/w/main.py":             "main",
		"/w/pkg/__init__.py":     "pkg",
		"/w/pkg/sub/mod.py":      "pkg.sub.mod",
		"/w/__init__.py":         "",
		"/elsewhere/x.py":        "",
		"/w/pkg/sub/__init__.py": "pkg.sub",
	}
	for path, want := range tests {
		assert.Equal(t, want, ModuleName(root, filepath.FromSlash(path)), path)
	}
}

func TestIndexerOpen(t *testing.T) {
	ctx := context.Background()
	root := newWorkspace(t)
	extract := &lineExtractor{}
	ix := newTestIndexer(t, extract, false)

	require.NoError(t, ix.Open(ctx, root))
	assert.Equal(t, root, ix.Root())

	names, err := ix.Modules(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "pkg", "pkg.mod"}, names)

	symbols, err := ix.Symbols(ctx, "pkg.mod")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "helper", symbols[0].Name)
	assert.Equal(t, 2, symbols[1].Line)
	assert.EqualValues(t, 3, extract.calls.Load())
}

func TestIndexerReopenSkipsUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	root := newWorkspace(t)
	extract := &lineExtractor{}
	ix := newTestIndexer(t, extract, false)

	require.NoError(t, ix.Open(ctx, root))
	require.EqualValues(t, 3, extract.calls.Load())

	writeFile(t, filepath.Join(root, "main.py"), "def start():\n    pass\n")
	require.NoError(t, os.Remove(filepath.Join(root, "pkg", "mod.py")))

	require.NoError(t, ix.Open(ctx, root))
	assert.EqualValues(t, 4, extract.calls.Load(), "only the changed file is extracted again")

	names, err := ix.Modules(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "pkg"}, names)

	symbols, err := ix.Symbols(ctx, "main")
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "start", symbols[0].Name)
}

func TestIndexerSwitchesWorkspace(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndexer(t, &lineExtractor{}, false)

	require.NoError(t, ix.Open(ctx, newWorkspace(t)))

	other := t.TempDir()
	writeFile(t, filepath.Join(other, "app.py"), "def run():\n")
	require.NoError(t, ix.Open(ctx, other))

	names, err := ix.Modules(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, names)
}

func TestIndexerWithoutExtraction(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndexer(t, &lineExtractor{err: syntax.ErrUnavailable}, false)

	require.NoError(t, ix.Open(ctx, newWorkspace(t)))

	names, err := ix.Modules(ctx, "pkg")
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg", "pkg.mod"}, names)

	symbols, err := ix.Symbols(ctx, "pkg.mod")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestIndexerOpenMissingRoot(t *testing.T) {
	ix := newTestIndexer(t, &lineExtractor{}, false)
	err := ix.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIndexerOpenCanceled(t *testing.T) {
	extract := &lineExtractor{}
	ix := newTestIndexer(t, extract, false)
	root := newWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ix.Open(ctx, root), context.Canceled)
	assert.Zero(t, extract.calls.Load())

	_, err := ix.pythonFiles(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexerCloseKeepsIndex(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndexer(t, &lineExtractor{}, true)

	require.NoError(t, ix.Open(ctx, newWorkspace(t)))
	require.NoError(t, ix.Close())
	assert.Empty(t, ix.Root())

	names, err := ix.Modules(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)
}

func TestWatcherFollowsChanges(t *testing.T) {
	ctx := context.Background()
	root := newWorkspace(t)
	ix := newTestIndexer(t, &lineExtractor{}, true)
	require.NoError(t, ix.Open(ctx, root))

	modules := func() []string {
		names, _ := ix.Modules(ctx, "")
		return names
	}

	writeFile(t, filepath.Join(root, "added.py"), "def fresh():\n")
	assert.Eventually(t, func() bool {
		symbols, err := ix.Symbols(ctx, "added")
		return err == nil && len(symbols) == 1 && symbols[0].Name == "fresh"
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, filepath.Join(root, "newpkg", "inner.py"), "def deep():\n")
	assert.Eventually(t, func() bool {
		for _, name := range modules() {
			if name == "newpkg.inner" {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "main.py")))
	assert.Eventually(t, func() bool {
		for _, name := range modules() {
			if name == "main" {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)
}
