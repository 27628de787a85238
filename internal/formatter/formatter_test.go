package formatter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only whitespace", "  \n\t\n", ""},
		{"already formatted", "x = 1\n", "x = 1\n"},
		{"missing newline", "x = 1", "x = 1\n"},
		{"trailing whitespace", "x = 1   \ny = 2\t\n", "x = 1\ny = 2\n"},
		{"tab indent", "def f():\n\treturn 1\n", "def f():\n    return 1\n"},
		{"mixed indent", "if x:\n  \tpass\n", "if x:\n    pass\n"},
		{"blank runs", "a = 1\n\n\n\n\nb = 2\n", "a = 1\n\n\nb = 2\n"},
		{"leading and trailing blanks", "\n\nimport os\n\n\n", "import os\n"},
		{"crlf", "a = 1\r\nb = 2\r\n", "a = 1\nb = 2\n"},
		{"tabs inside code kept", "s = 'a\tb'\n", "s = 'a\tb'\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestDiff(t *testing.T) {
	diff, err := Diff("x = 1\n", "x = 1\n")
	require.NoError(t, err)
	assert.Equal(t, "", diff)

	diff, err = Diff("x = 1   \n", "x = 1\n")
	require.NoError(t, err)
	assert.Equal(t, "--- Original\n+++ Formatted\n@@ -1 +1 @@\n-x = 1   \n+x = 1\n", diff)
}

func TestDiffMissingNewline(t *testing.T) {
	diff, err := Diff("x = 1", "x = 1\n")
	require.NoError(t, err)
	assert.Equal(t, "--- Original\n+++ Formatted\n@@ -1 +1 @@\n-x = 1\n\\ No newline at end of file\n+x = 1\n", diff)
}

func TestDiffContext(t *testing.T) {
	original := "a\nb\nc\nd\ne\nf\ng\nh\ni\n"
	formatted := "a\nb\nc\nd\nE\nf\ng\nh\ni\n"

	diff, err := Diff(original, formatted)
	require.NoError(t, err)
	assert.Equal(t, "--- Original\n+++ Formatted\n@@ -2,7 +2,7 @@\n b\n c\n d\n-e\n+E\n f\n g\n h\n", diff)
}

func TestFormatFallsBackToNormalize(t *testing.T) {
	f := New([]string{"definitely-not-a-formatter"}, 0)
	f.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	assert.True(t, f.Available())
	assert.Equal(t, "", f.External())

	out, err := f.Format(context.Background(), "x = 1  ")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", out)

	out, err = New(nil, 0).Format(context.Background(), "\tpass")
	require.NoError(t, err)
	assert.Equal(t, "    pass\n", out)
}
