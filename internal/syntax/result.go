package syntax

// SyntaxError is a single syntax error. Line and Column are 0-based;
// Column counts code points.
type SyntaxError struct {
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Message   string `json:"message"`
	ErrorNode string `json:"error_node"` // "ERROR" or "MISSING"
}

// ValidationResult contains the results of syntax validation.
type ValidationResult struct {
	Valid       bool          `json:"valid"`
	Errors      []SyntaxError `json:"errors,omitempty"`
	Language    string        `json:"language"`
	ParsedBytes int           `json:"parsed_bytes"`
}
