package formatter

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	originalLabel  = "Original"
	formattedLabel = "Formatted"
	diffContext    = 3
	noNewline      = "\\ No newline at end of file"
)

// Diff returns a unified diff turning original into formatted, or "" when
// they are equal. Lines without a terminating newline are marked the way
// diff(1) does.
func Diff(original, formatted string) (string, error) {
	if original == formatted {
		return "", nil
	}

	a, b := splitLines(original), splitLines(formatted)
	matcher := difflib.NewMatcher(a, b)

	var buf strings.Builder
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", originalLabel, formattedLabel)
	for _, group := range matcher.GetGroupedOpCodes(diffContext) {
		first, last := group[0], group[len(group)-1]
		fmt.Fprintf(&buf, "@@ -%s +%s @@\n", formatRange(first.I1, last.I2), formatRange(first.J1, last.J2))

		for _, op := range group {
			if op.Tag == 'e' {
				writeLines(&buf, ' ', a[op.I1:op.I2])
				continue
			}
			if op.Tag == 'r' || op.Tag == 'd' {
				writeLines(&buf, '-', a[op.I1:op.I2])
			}
			if op.Tag == 'r' || op.Tag == 'i' {
				writeLines(&buf, '+', b[op.J1:op.J2])
			}
		}
	}
	return buf.String(), nil
}

// splitLines splits s after every newline; the last line keeps no newline
// if s does not end with one.
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

func writeLines(buf *strings.Builder, prefix byte, lines []string) {
	for _, line := range lines {
		buf.WriteByte(prefix)
		buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			buf.WriteString("\n" + noNewline + "\n")
		}
	}
}

// formatRange renders a hunk range in unified diff notation.
func formatRange(start, stop int) string {
	beginning := start + 1
	length := stop - start
	if length == 1 {
		return fmt.Sprintf("%d", beginning)
	}
	if length == 0 {
		beginning--
	}
	return fmt.Sprintf("%d,%d", beginning, length)
}
