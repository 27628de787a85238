package editing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pytools/internal/formatter"
)

func TestApplyEmptyDiff(t *testing.T) {
	out, err := ApplyUnifiedDiff("x = 1\n", "")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", out)
}

func TestApplyHandWrittenDiff(t *testing.T) {
	original := "import os\nimport sys\n\ndef main():\n\treturn 0\n"
	diff := "--- Original\n+++ Formatted\n@@ -3,3 +3,3 @@\n \n def main():\n-\treturn 0\n+    return 0\n"

	out, err := ApplyUnifiedDiff(original, diff)
	require.NoError(t, err)
	assert.Equal(t, "import os\nimport sys\n\ndef main():\n    return 0\n", out)
}

func TestApplyWithoutHeaders(t *testing.T) {
	out, err := ApplyUnifiedDiff("a\nb\n", "@@ -2 +2 @@\n-b\n+c\n")
	require.NoError(t, err)
	assert.Equal(t, "a\nc\n", out)
}

func TestApplyMismatch(t *testing.T) {
	diff := "--- Original\n+++ Formatted\n@@ -1 +1 @@\n-x = 1\n+x = 2\n"
	_, err := ApplyUnifiedDiff("y = 1\n", diff)
	assert.ErrorIs(t, err, ErrHunkMismatch)
}

func TestApplyFormatterDiffs(t *testing.T) {
	sources := []string{
		"x = 1",
		"x = 1   \n",
		"\n\nimport os\n\n\n\n\ndef f():\n\treturn os.sep   \n",
		"a = 1\nb = 2\nc = 3\nd = 4\ne = 5\nf = 6\ng = 7\nh = 8\ni = 9\nj = 10\nk = 11\n\n\n\n\nl = 12\n\tm = 13",
		"class A:\n\tdef f(self):\n\t\tpass\n\n\n\n\nclass B:\n  pass",
	}

	for _, src := range sources {
		formatted := formatter.Normalize(src)
		diff, err := formatter.Diff(src, formatted)
		require.NoError(t, err)

		out, err := ApplyUnifiedDiff(src, diff)
		require.NoError(t, err, "diff:\n%s", diff)
		assert.Equal(t, formatted, out, "diff:\n%s", diff)
	}
}
