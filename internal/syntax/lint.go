//go:build cgo

package syntax

import (
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codefionn/pytools/internal/rpc"
)

// Diagnose reports the problems of source, which was read from path. The
// language is taken from the extension of path; unknown languages have no
// diagnostics. Unused imports are only reported for Python sources that
// parse cleanly.
func (a *Analyzer) Diagnose(ctx context.Context, source, path string) ([]rpc.Diagnostic, error) {
	language := DetectLanguage(path)
	if !a.validator.SupportsLanguage(language) {
		return []rpc.Diagnostic{}, nil
	}

	result, err := a.validator.Validate(source, language)
	if err != nil {
		return nil, err
	}
	diags := make([]rpc.Diagnostic, 0, len(result.Errors))
	for _, e := range result.Errors {
		diags = append(diags, rpc.Diagnostic{
			Severity: rpc.SeverityError,
			Path:     path,
			Line:     e.Line,
			Column:   e.Column,
			Message:  e.Message,
		})
	}
	if language != "python" || len(diags) > 0 {
		return diags, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	doc, err := a.document(source)
	if err != nil {
		return nil, err
	}
	for _, def := range unusedImports(doc) {
		diags = append(diags, rpc.Diagnostic{
			Severity: rpc.SeverityWarning,
			Path:     path,
			Line:     def.Line,
			Column:   def.Column,
			Message:  fmt.Sprintf("'%s' imported but unused", def.imported),
		})
	}
	return diags, nil
}

// unusedImports returns the module level imports whose bound name is never
// referenced. Names listed in __all__ count as used.
func unusedImports(doc *document) []definition {
	used := make(map[string]bool)
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "import_statement", "import_from_statement", "future_import_statement":
			return
		case "identifier":
			used[n.Utf8Text(doc.src)] = true
		case "assignment":
			if left := n.ChildByFieldName("left"); left != nil && left.Utf8Text(doc.src) == "__all__" {
				markExported(n.ChildByFieldName("right"), doc.src, used)
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if child := n.NamedChild(i); child != nil {
				walk(child)
			}
		}
	}
	walk(doc.root())

	var unused []definition
	for _, def := range doc.top {
		if def.Kind != "module" || def.imported == "" || def.from == "__future__" {
			continue
		}
		if !used[def.Name] {
			unused = append(unused, def)
		}
	}
	return unused
}

func markExported(n *tree_sitter.Node, src []byte, used map[string]bool) {
	if n == nil {
		return
	}
	if n.Kind() == "string_content" {
		used[n.Utf8Text(src)] = true
		return
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child != nil {
			markExported(child, src, used)
		}
	}
}
