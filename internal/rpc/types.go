package rpc

// WorkspaceParams identifies a project directory.
type WorkspaceParams struct {
	Path string `json:"path"`
}

// InitializeParams are the params of initialize. Features optionally turns
// individual capabilities off, keyed by method name.
type InitializeParams struct {
	Workspace WorkspaceParams `json:"workspace"`
	Features  map[string]bool `json:"features,omitempty"`
}

// ChangeWorkspaceParams are the params of change_workspace.
type ChangeWorkspaceParams struct {
	Path string `json:"path"`
}

// PositionParams locate the cursor in a document. Row is 1-based, Column is
// a 0-based offset in code points.
type PositionParams struct {
	Source string `json:"source"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

// FormattingParams are the params of document_formatting.
type FormattingParams struct {
	Source string `json:"source"`
}

// DiagnosticParams are the params of document_publish_diagnostic. An empty
// Source means the file at Path is read by the server.
type DiagnosticParams struct {
	Source string `json:"source"`
	Path   string `json:"path"`
}

// Capabilities is the result of initialize.
type Capabilities struct {
	DocumentCompletion        bool `json:"document_completion"`
	DocumentHover             bool `json:"document_hover"`
	DocumentFormatting        bool `json:"document_formatting"`
	DocumentPublishDiagnostic bool `json:"document_publish_diagnostic"`
}

// Completion item types.
const (
	KindModule    = "module"
	KindClass     = "class"
	KindFunction  = "function"
	KindInstance  = "instance"
	KindParam     = "param"
	KindKeyword   = "keyword"
	KindStatement = "statement"
)

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Label      string `json:"label"`
	Type       string `json:"type"`
	Annotation string `json:"annotation"`
}

// MarkupContent is documentation in a given language.
type MarkupContent struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// HoverResult is the result of document_hover.
type HoverResult struct {
	Content MarkupContent `json:"content"`
}

// FormattingResult is the result of document_formatting. Diff is a unified
// diff from the submitted source to the formatted one, empty when unchanged.
type FormattingResult struct {
	Diff string `json:"diff"`
}

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic is one problem found in a document. Line and Column are 0-based.
type Diagnostic struct {
	Severity string `json:"severity"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Message  string `json:"message"`
}
