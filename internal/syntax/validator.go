//go:build cgo

package syntax

import (
	"fmt"
	"strings"
	"unicode/utf8"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Validator reports syntax errors using tree-sitter parsers.
type Validator struct {
	languages map[string]unsafe.Pointer
}

// NewValidator creates a validator for all supported languages.
func NewValidator() *Validator {
	return &Validator{
		languages: map[string]unsafe.Pointer{
			"python":     tree_sitter_python.Language(),
			"go":         tree_sitter_go.Language(),
			"typescript": tree_sitter_typescript.LanguageTypescript(),
			"javascript": tree_sitter_typescript.LanguageTypescript(),
			"tsx":        tree_sitter_typescript.LanguageTSX(),
			"jsx":        tree_sitter_typescript.LanguageTSX(),
			"bash":       tree_sitter_bash.Language(),
		},
	}
}

// Available reports whether syntax validation is compiled in.
func (v *Validator) Available() bool { return true }

// SupportsLanguage checks if the validator supports a given language.
func (v *Validator) SupportsLanguage(language string) bool {
	_, ok := v.languages[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

// Validate returns the syntax errors of code. Whitespace-only code is valid.
func (v *Validator) Validate(code, language string) (*ValidationResult, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	result := &ValidationResult{Valid: true, Language: language}
	if strings.TrimSpace(code) == "" {
		return result, nil
	}

	lang, ok := v.languages[language]
	if !ok {
		return nil, fmt.Errorf("language not supported for validation: %s (supported: %s)",
			language, strings.Join(SupportedValidationLanguages(), ", "))
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(lang)); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	src := []byte(code)
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code: parser returned nil tree")
	}
	defer tree.Close()

	result.ParsedBytes = len(src)
	result.Errors = syntaxErrors(tree.RootNode(), src)
	result.Valid = len(result.Errors) == 0
	return result, nil
}

// syntaxErrors collects ERROR and MISSING nodes below root. Children of an
// ERROR node are not reported separately.
func syntaxErrors(root *tree_sitter.Node, src []byte) []SyntaxError {
	if root == nil || !root.HasError() {
		return nil
	}

	var errs []SyntaxError
	var traverse func(*tree_sitter.Node)
	traverse = func(n *tree_sitter.Node) {
		switch {
		case n.IsMissing():
			errs = append(errs, newSyntaxError(n, src, "MISSING", "missing "+n.Kind()))
			return
		case n.IsError():
			errs = append(errs, newSyntaxError(n, src, "ERROR", errorMessage(n, src)))
			return
		case !n.HasError():
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if child := n.Child(i); child != nil {
				traverse(child)
			}
		}
	}
	traverse(root)

	if len(errs) == 0 {
		errs = append(errs, SyntaxError{
			Message:   "syntax error: parsing failed with error recovery",
			ErrorNode: "ERROR",
		})
	}
	return errs
}

func newSyntaxError(n *tree_sitter.Node, src []byte, kind, message string) SyntaxError {
	return SyntaxError{
		Line:      int(n.StartPosition().Row),
		Column:    columnAt(src, int(n.StartByte())),
		Message:   message,
		ErrorNode: kind,
	}
}

func errorMessage(n *tree_sitter.Node, src []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if start >= end || end > uint(len(src)) {
		return "invalid syntax"
	}
	text := string(src[start:end])
	if utf8.RuneCountInString(text) > 50 {
		text = string([]rune(text)[:50]) + "..."
	}
	return fmt.Sprintf("invalid syntax near '%s'", strings.ReplaceAll(text, "\n", "\\n"))
}
