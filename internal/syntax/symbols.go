package syntax

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by the analysis backends in builds without cgo.
var ErrUnavailable = errors.New("python analysis requires a cgo build")

// Symbol is a named definition in a Python module. Line and Column are
// 0-based; Column counts code points.
type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
	Doc       string `json:"doc,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
}

// ModuleIndex resolves imported modules of the workspace.
type ModuleIndex interface {
	// Modules returns the dotted names of all modules starting with prefix.
	Modules(ctx context.Context, prefix string) ([]string, error)
	// Symbols returns the top-level definitions of module.
	Symbols(ctx context.Context, module string) ([]Symbol, error)
}

var pythonKeywords = []string{
	"False", "None", "True", "and", "as", "assert", "async", "await",
	"break", "class", "continue", "def", "del", "elif", "else", "except",
	"finally", "for", "from", "global", "if", "import", "in", "is",
	"lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try",
	"while", "with", "yield",
}

var pythonBuiltinFunctions = []string{
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "breakpoint",
	"callable", "chr", "compile", "delattr", "dir", "divmod", "eval",
	"exec", "format", "getattr", "globals", "hasattr", "hash", "help",
	"hex", "id", "input", "isinstance", "issubclass", "iter", "len",
	"locals", "max", "min", "next", "oct", "open", "ord", "pow", "print",
	"repr", "round", "setattr", "sorted", "sum", "vars", "__import__",
}

var pythonBuiltinClasses = []string{
	"bool", "bytearray", "bytes", "classmethod", "complex", "dict",
	"enumerate", "filter", "float", "frozenset", "int", "list", "map",
	"memoryview", "object", "property", "range", "reversed", "set", "slice",
	"staticmethod", "str", "super", "tuple", "type", "zip",
	"BaseException", "Exception", "ArithmeticError", "AssertionError",
	"AttributeError", "EOFError", "FileNotFoundError", "ImportError",
	"IndexError", "KeyError", "KeyboardInterrupt", "LookupError",
	"NameError", "NotImplementedError", "OSError", "RuntimeError",
	"StopIteration", "TypeError", "ValueError", "ZeroDivisionError",
}

// builtinSymbols returns the builtin names as completion candidates.
func builtinSymbols() []Symbol {
	out := make([]Symbol, 0, len(pythonBuiltinFunctions)+len(pythonBuiltinClasses))
	for _, name := range pythonBuiltinFunctions {
		out = append(out, Symbol{Name: name, Kind: "function", Signature: name + "(...)"})
	}
	for _, name := range pythonBuiltinClasses {
		out = append(out, Symbol{Name: name, Kind: "class", Signature: name + "(...)"})
	}
	return out
}

func isKeyword(name string) bool {
	for _, k := range pythonKeywords {
		if k == name {
			return true
		}
	}
	return false
}
