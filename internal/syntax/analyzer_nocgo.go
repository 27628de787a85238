//go:build !cgo

package syntax

import (
	"context"

	"github.com/codefionn/pytools/internal/rpc"
)

// Analyzer is the Python analysis backend. Builds without cgo have no
// tree-sitter grammars, so every operation fails with ErrUnavailable.
type Analyzer struct{}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(index ModuleIndex) *Analyzer {
	return &Analyzer{}
}

// Available reports whether the tree-sitter backends are compiled in.
func (a *Analyzer) Available() bool { return false }

// Close is a no-op.
func (a *Analyzer) Close() error { return nil }

// ExtractSymbols fails with ErrUnavailable.
func (a *Analyzer) ExtractSymbols(source string) ([]Symbol, error) {
	return nil, ErrUnavailable
}

// Complete fails with ErrUnavailable.
func (a *Analyzer) Complete(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error) {
	return nil, ErrUnavailable
}

// Hover fails with ErrUnavailable.
func (a *Analyzer) Hover(ctx context.Context, source string, row, column int) (rpc.MarkupContent, error) {
	return rpc.MarkupContent{Language: "markdown"}, ErrUnavailable
}

// Diagnose fails with ErrUnavailable.
func (a *Analyzer) Diagnose(ctx context.Context, source, path string) ([]rpc.Diagnostic, error) {
	return nil, ErrUnavailable
}
