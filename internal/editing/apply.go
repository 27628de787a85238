// Package editing applies the unified diffs returned by document_formatting
// to a buffer.
package editing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// ErrHunkMismatch means a hunk's context or removed lines differ from the
// buffer it is applied to.
var ErrHunkMismatch = errors.New("hunk does not apply")

// ApplyUnifiedDiff applies a single-file unified diff to original. An empty
// diff returns original unchanged.
func ApplyUnifiedDiff(original, diffText string) (string, error) {
	if strings.TrimSpace(diffText) == "" {
		return original, nil
	}
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- a\n+++ b\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("failed to parse unified diff: %w", err)
	}

	lines := splitLines(original)
	var out strings.Builder
	pos := 0

	for i, hunk := range fileDiff.Hunks {
		start := int(hunk.OrigStartLine) - 1
		if hunk.OrigLines == 0 {
			// pure insertion after line OrigStartLine
			start = int(hunk.OrigStartLine)
		}
		if start < pos || start > len(lines) {
			return "", fmt.Errorf("%w: hunk %d starts at line %d", ErrHunkMismatch, i+1, hunk.OrigStartLine)
		}
		for ; pos < start; pos++ {
			out.WriteString(lines[pos])
		}

		body := hunkBody(hunk)
		for n, line := range body {
			if line == "" {
				continue
			}
			op, text := line[0], line[1:]
			last := n == len(body)-1

			switch op {
			case ' ', '-':
				if pos >= len(lines) || strings.TrimSuffix(lines[pos], "\n") != strings.TrimSuffix(text, "\n") {
					return "", fmt.Errorf("%w: hunk %d, line %d", ErrHunkMismatch, i+1, pos+1)
				}
				if op == ' ' {
					out.WriteString(lines[pos])
				}
				pos++
			case '+':
				if last && !strings.HasSuffix(text, "\n") {
					out.WriteString(text)
				} else {
					out.WriteString(strings.TrimSuffix(text, "\n") + "\n")
				}
			case '\\':
				// no-newline marker
			default:
				return "", fmt.Errorf("invalid hunk line %q", line)
			}
		}
	}

	for ; pos < len(lines); pos++ {
		out.WriteString(lines[pos])
	}
	return out.String(), nil
}

// hunkBody splits the hunk body into lines that keep their newline. The
// parser strips the newline before a "No newline at end of file" marker on
// the original side; it is restored here so the line boundary survives.
func hunkBody(hunk *diff.Hunk) []string {
	body := string(hunk.Body)
	if at := int(hunk.OrigNoNewlineAt); at > 0 && at < len(body) && body[at-1] != '\n' {
		body = body[:at] + "\n" + body[at:]
	}
	return splitLines(body)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
