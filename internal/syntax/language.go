package syntax

import (
	"path/filepath"
	"strings"
)

// DetectLanguage determines the language of a file from its extension.
// Files without a recognised extension are treated as Python, the language
// the server analyses.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw", ".pyi", "":
		return "python"
	case ".go":
		return "go"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".tsx":
		return "tsx"
	case ".jsx":
		return "jsx"
	case ".sh", ".bash":
		return "bash"
	default:
		return ""
	}
}

// SupportedValidationLanguages returns the languages with a syntax validator.
func SupportedValidationLanguages() []string {
	return []string{
		"python",
		"go",
		"typescript",
		"javascript",
		"tsx",
		"jsx",
		"bash",
	}
}

// IsValidationSupported checks if a language has tree-sitter validation support.
func IsValidationSupported(language string) bool {
	for _, lang := range SupportedValidationLanguages() {
		if lang == language {
			return true
		}
	}
	return false
}
