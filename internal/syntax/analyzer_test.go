//go:build cgo

package syntax

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pytools/internal/rpc"
)

// cursor removes the "|" marker from src and returns the 1-based row and
// code point column it marked.
func cursor(t *testing.T, src string) (string, int, int) {
	t.Helper()
	idx := strings.Index(src, "|")
	require.GreaterOrEqual(t, idx, 0, "source has no cursor marker")
	before := src[:idx]
	row := strings.Count(before, "\n") + 1
	column := utf8.RuneCountInString(before[strings.LastIndexByte(before, '\n')+1:])
	return src[:idx] + src[idx+1:], row, column
}

type fakeIndex struct {
	modules []string
	symbols map[string][]Symbol
}

func (f *fakeIndex) Modules(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, m := range f.modules {
		if strings.HasPrefix(m, prefix) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeIndex) Symbols(_ context.Context, module string) ([]Symbol, error) {
	return f.symbols[module], nil
}

func newTestIndex() *fakeIndex {
	return &fakeIndex{
		modules: []string{"pkg", "pkg.mod", "pkg.util"},
		symbols: map[string][]Symbol{
			"pkg.mod": {
				{Name: "helper", Kind: rpc.KindFunction, Signature: "helper(x)", Doc: "Help with x.", Line: 2},
				{Name: "Thing", Kind: rpc.KindClass, Signature: "Thing()", Line: 10},
			},
		},
	}
}

func complete(t *testing.T, a *Analyzer, src string) []rpc.CompletionItem {
	t.Helper()
	source, row, column := cursor(t, src)
	items, err := a.Complete(context.Background(), source, row, column)
	require.NoError(t, err)
	return items
}

func findItem(items []rpc.CompletionItem, label string) (rpc.CompletionItem, bool) {
	for _, item := range items {
		if item.Label == label {
			return item, true
		}
	}
	return rpc.CompletionItem{}, false
}

const greeterSource = `class Greeter:
    """Greets people."""

    def __init__(self, name: str):
        self.name = name

    def greet(self, loud=False) -> str:
        """Return a greeting.

        Loud greetings are upper case.
        """
        return "hi " + self.name
`

func TestCompleteLocalNames(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	items := complete(t, a, "def main(argv):\n    value = 1\n    va|")

	labels := labels(items)
	assert.Contains(t, labels, "value")
	assert.Contains(t, labels, "vars")
	assert.NotContains(t, labels, "argv")

	item, _ := findItem(items, "value")
	assert.Equal(t, rpc.KindStatement, item.Type)
}

func TestCompleteParameters(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	items := complete(t, a, "def f(alpha, beta=2):\n    al|")

	item, ok := findItem(items, "alpha")
	require.True(t, ok)
	assert.Equal(t, rpc.KindParam, item.Type)
}

func TestCompleteKeywordsAndBuiltins(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	items := complete(t, a, "wh|")
	item, ok := findItem(items, "while")
	require.True(t, ok)
	assert.Equal(t, rpc.KindKeyword, item.Type)

	items = complete(t, a, "pri|")
	item, ok = findItem(items, "print")
	require.True(t, ok)
	assert.Equal(t, rpc.KindFunction, item.Type)
}

func TestCompleteDefinitionsCarryAnnotation(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	items := complete(t, a, greeterSource+"\ng = Gre|")

	item, ok := findItem(items, "Greeter")
	require.True(t, ok)
	assert.Equal(t, rpc.KindClass, item.Type)
	assert.Equal(t, "Greeter(name: str)", item.Annotation)
}

func TestCompleteClassMembers(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	items := complete(t, a, greeterSource+"\nGreeter.gr|")

	item, ok := findItem(items, "greet")
	require.True(t, ok)
	assert.Equal(t, rpc.KindFunction, item.Type)
	assert.Equal(t, "greet(self, loud=False) -> str", item.Annotation)
}

func TestCompleteSelfAttributes(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	src := strings.Replace(greeterSource, `return "hi " + self.name`, `return self.na|`, 1)
	items := complete(t, a, src)

	item, ok := findItem(items, "name")
	require.True(t, ok)
	assert.Equal(t, rpc.KindInstance, item.Type)
}

func TestCompleteImports(t *testing.T) {
	a := NewAnalyzer(newTestIndex())
	defer a.Close()

	items := complete(t, a, "import pkg.m|")
	assert.Equal(t, []string{"mod"}, labels(items))

	items = complete(t, a, "from pkg.mod import h|")
	assert.Equal(t, []string{"helper"}, labels(items))

	items = complete(t, a, "import pkg.mod\npkg.mod.T|")
	item, ok := findItem(items, "Thing")
	require.True(t, ok)
	assert.Equal(t, rpc.KindClass, item.Type)
}

func TestCompleteImportedNameResolvesKind(t *testing.T) {
	a := NewAnalyzer(newTestIndex())
	defer a.Close()

	items := complete(t, a, "from pkg.mod import helper\nhel|")

	item, ok := findItem(items, "helper")
	require.True(t, ok)
	assert.Equal(t, rpc.KindFunction, item.Type)
	assert.Equal(t, "helper(x)", item.Annotation)
}

func TestCompleteOutOfRange(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	_, err := a.Complete(context.Background(), "x = 1", 5, 0)
	require.Error(t, err)
	assert.True(t, rpc.IsCode(err, rpc.CodeInputError))
}

func hover(t *testing.T, a *Analyzer, src string) rpc.MarkupContent {
	t.Helper()
	source, row, column := cursor(t, src)
	content, err := a.Hover(context.Background(), source, row, column)
	require.NoError(t, err)
	assert.Equal(t, "markdown", content.Language)
	return content
}

func TestHoverFunction(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	content := hover(t, a, "def add(a, b):\n    \"\"\"Add two numbers.\"\"\"\n    return a + b\n\nad|d(1, 2)\n")

	assert.Equal(t, "```python\ndef add(a, b)\n```\n\nAdd two numbers.\n\n*line 1*", content.Value)
}

func TestHoverClassAndMethod(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	content := hover(t, a, greeterSource+"\n|Greeter('x').greet()\n")
	assert.Contains(t, content.Value, "class Greeter(name: str)")
	assert.Contains(t, content.Value, "Greets people.")

	content = hover(t, a, greeterSource+"\nGreeter.gre|et\n")
	assert.Contains(t, content.Value, "def greet(self, loud=False) -> str")
	assert.Contains(t, content.Value, "Return a greeting.\n\nLoud greetings are upper case.")
	assert.Contains(t, content.Value, "*line 7*")
}

func TestHoverModuleMember(t *testing.T) {
	a := NewAnalyzer(newTestIndex())
	defer a.Close()

	content := hover(t, a, "import pkg.mod\npkg.mod.hel|per(1)\n")
	assert.Contains(t, content.Value, "def helper(x)")
	assert.Contains(t, content.Value, "Help with x.")
	assert.Contains(t, content.Value, "*pkg.mod, line 3*")

	content = hover(t, a, "from pkg.mod import helper\nhel|per(1)\n")
	assert.Contains(t, content.Value, "*pkg.mod, line 3*")
}

func TestHoverBuiltin(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	content := hover(t, a, "le|n([])\n")
	assert.Contains(t, content.Value, "def len(...)")
	assert.Contains(t, content.Value, "*builtin*")
}

func TestHoverNothing(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	assert.Empty(t, hover(t, a, "x = 1\n|\n").Value)
	assert.Empty(t, hover(t, a, "unknown_na|me\n").Value)
	assert.Empty(t, hover(t, a, "for| x in y: pass\n").Value)
}

func TestDiagnoseUnusedImports(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	source := "import os\nimport sys\nfrom os import path as p\nimport numpy as np\nprint(sys.argv, np)\n"
	diags, err := a.Diagnose(context.Background(), source, "main.py")
	require.NoError(t, err)
	require.Len(t, diags, 2)

	assert.Equal(t, rpc.Diagnostic{
		Severity: rpc.SeverityWarning,
		Path:     "main.py",
		Line:     0,
		Column:   7,
		Message:  "'os' imported but unused",
	}, diags[0])
	assert.Equal(t, "'os.path as p' imported but unused", diags[1].Message)
	assert.Equal(t, 2, diags[1].Line)
}

func TestDiagnoseExportedImports(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	source := "from __future__ import annotations\nfrom .core import Engine\n\n__all__ = [\"Engine\"]\n"
	diags, err := a.Diagnose(context.Background(), source, "pkg/__init__.py")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestDiagnoseSyntaxErrors(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	diags, err := a.Diagnose(context.Background(), "import os\ndef f(:\n    pass\n", "bad.py")
	require.NoError(t, err)
	require.NotEmpty(t, diags)
	for _, d := range diags {
		assert.Equal(t, rpc.SeverityError, d.Severity, fmt.Sprint(d))
		assert.Equal(t, "bad.py", d.Path)
	}
}

func TestDiagnoseOtherLanguages(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	diags, err := a.Diagnose(context.Background(), "package main\n\nfunc main() {\n", "main.go")
	require.NoError(t, err)
	assert.NotEmpty(t, diags)

	diags, err = a.Diagnose(context.Background(), "package main\n\nimport \"os\"\n", "main.go")
	require.NoError(t, err)
	assert.Empty(t, diags, "unused imports are only reported for python")

	diags, err = a.Diagnose(context.Background(), "# Title\n", "README.md")
	require.NoError(t, err)
	assert.NotNil(t, diags)
	assert.Empty(t, diags)
}

func TestExtractSymbols(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	symbols, err := a.ExtractSymbols("import os\nX = 1\n\ndef f(a):\n    inner = 2\n\nclass C:\n    pass\n\nX = 2\n")
	require.NoError(t, err)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"X", "f", "C"}, names)
	assert.Equal(t, "f(a)", symbols[1].Signature)
	assert.Equal(t, 3, symbols[1].Line)
}

func TestParseCacheIsBounded(t *testing.T) {
	a := NewAnalyzer(nil)
	defer a.Close()

	for i := 0; i < parseCacheSize+5; i++ {
		_, err := a.Complete(context.Background(), fmt.Sprintf("x%d = 1\n", i), 1, 0)
		require.NoError(t, err)
	}
	assert.Len(t, a.cache, parseCacheSize)
	assert.Len(t, a.order, parseCacheSize)

	_, err := a.Complete(context.Background(), "x0 = 1\n", 1, 0)
	require.NoError(t, err)
	_, err = a.Complete(context.Background(), "x0 = 1\n", 1, 0)
	require.NoError(t, err)
	assert.Len(t, a.cache, parseCacheSize)
}
