package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/codefionn/pytools/internal/rpc"
)

const defaultWidth = 80

// renderer prints command results. On a terminal it styles them and wraps
// to the terminal width; otherwise it prints plain text.
type renderer struct {
	out      io.Writer
	terminal bool
	width    int

	errorStyle   lipgloss.Style
	warningStyle lipgloss.Style
	locStyle     lipgloss.Style
	addStyle     lipgloss.Style
	delStyle     lipgloss.Style
	hunkStyle    lipgloss.Style
	dimStyle     lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	r := &renderer{out: out, width: defaultWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.terminal = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			r.width = w
		}
	}

	// The lipgloss renderer downgrades to plain text when out is not a
	// color terminal.
	lg := lipgloss.NewRenderer(out)
	r.errorStyle = lg.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	r.warningStyle = lg.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	r.locStyle = lg.NewStyle().Bold(true)
	r.addStyle = lg.NewStyle().Foreground(lipgloss.Color("34"))
	r.delStyle = lg.NewStyle().Foreground(lipgloss.Color("160"))
	r.hunkStyle = lg.NewStyle().Foreground(lipgloss.Color("39"))
	r.dimStyle = lg.NewStyle().Foreground(lipgloss.Color("245"))
	return r
}

func (r *renderer) Capabilities(workspace string, caps *rpc.Capabilities) {
	fmt.Fprintf(r.out, "Workspace: %s\n", workspace)
	if caps == nil {
		return
	}
	features := []struct {
		name    string
		enabled bool
	}{
		{string(rpc.MethodCompletion), caps.DocumentCompletion},
		{string(rpc.MethodHover), caps.DocumentHover},
		{string(rpc.MethodFormatting), caps.DocumentFormatting},
		{string(rpc.MethodDiagnostics), caps.DocumentPublishDiagnostic},
	}
	for _, f := range features {
		state := "enabled"
		if !f.enabled {
			state = r.dimStyle.Render("disabled")
		}
		fmt.Fprintf(r.out, "  %-28s %s\n", f.name, state)
	}
}

func (r *renderer) Completions(items []rpc.CompletionItem) error {
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Label, item.Type, item.Annotation)
	}
	return w.Flush()
}

func (r *renderer) Hover(content rpc.MarkupContent) error {
	if !r.terminal || content.Language != "markdown" {
		_, err := fmt.Fprintln(r.out, strings.TrimRight(content.Value, "\n"))
		return err
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	rendered, err := md.Render(content.Value)
	if err != nil {
		return fmt.Errorf("failed to render hover: %w", err)
	}
	_, err = io.WriteString(r.out, rendered)
	return err
}

func (r *renderer) Diff(diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		text := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
			text = r.locStyle.Render(text)
		case strings.HasPrefix(text, "@@"):
			text = r.hunkStyle.Render(text)
		case strings.HasPrefix(text, "+"):
			text = r.addStyle.Render(text)
		case strings.HasPrefix(text, "-"):
			text = r.delStyle.Render(text)
		}
		fmt.Fprintln(r.out, text)
	}
}

// Diagnostics prints one entry per problem as name:line:column with
// 1-based line and column, wrapping long messages under the entry.
func (r *renderer) Diagnostics(name string, diags []rpc.Diagnostic) {
	var errs, warnings int
	for _, d := range diags {
		severity := d.Severity
		switch d.Severity {
		case rpc.SeverityError:
			errs++
			severity = r.errorStyle.Render(severity)
		case rpc.SeverityWarning:
			warnings++
			severity = r.warningStyle.Render(severity)
		}

		loc := r.locStyle.Render(fmt.Sprintf("%s:%d:%d:", name, d.Line+1, d.Column+1))
		fmt.Fprintf(r.out, "%s %s\n", loc, severity)
		fmt.Fprintln(r.out, indent(wordwrap.String(d.Message, r.width-4), "    "))
	}

	if len(diags) == 0 {
		fmt.Fprintln(r.out, r.dimStyle.Render("No problems found"))
		return
	}
	fmt.Fprintln(r.out, r.dimStyle.Render(fmt.Sprintf("%d error(s), %d warning(s)", errs, warnings)))
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
