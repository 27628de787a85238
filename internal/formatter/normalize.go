package formatter

import "strings"

const indentWidth = 4

// Normalize is the built-in formatter used when no external formatter is
// installed. It only touches whitespace:
//
//   - tabs in indentation become four spaces
//   - trailing whitespace is removed
//   - leading blank lines are dropped and runs of blank lines are capped at two
//   - the file ends with exactly one newline
func Normalize(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	source = strings.ReplaceAll(source, "\r\n", "\n")
	lines := strings.Split(source, "\n")

	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(expandIndent(line), " \t\f\v\r")
		if line == "" {
			blank++
			continue
		}
		if len(out) > 0 {
			for i := 0; i < min(blank, 2); i++ {
				out = append(out, "")
			}
		}
		blank = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n") + "\n"
}

func expandIndent(line string) string {
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	if !strings.Contains(indent, "\t") {
		return line
	}

	width := 0
	for _, r := range indent {
		if r == '\t' {
			width += indentWidth - width%indentWidth
		} else {
			width++
		}
	}
	return strings.Repeat(" ", width) + body
}
