package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pytools/internal/rpc"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		name   string
		source string
		row    int
		column int
		want   int
	}{
		{"start", "abc\ndef", 1, 0, 0},
		{"second line", "abc\ndef", 2, 1, 5},
		{"end of line", "abc\ndef", 1, 3, 3},
		{"end of document", "abc\ndef", 2, 3, 7},
		{"multibyte", "héllo", 1, 2, 3},
		{"crlf", "ab\r\ncd", 2, 1, 5},
		{"empty document", "", 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Offset(tt.source, tt.row, tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		row    int
		column int
	}{
		{"row zero", 0, 0},
		{"row past end", 3, 0},
		{"negative column", 1, -1},
		{"column past end", 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Offset("abc\ndef", tt.row, tt.column)
			require.Error(t, err)
			assert.True(t, rpc.IsCode(err, rpc.CodeInputError))
		})
	}
}

func TestColumnAt(t *testing.T) {
	src := []byte("ab\nhé x")
	assert.Equal(t, 0, columnAt(src, 0))
	assert.Equal(t, 2, columnAt(src, 2))
	assert.Equal(t, 0, columnAt(src, 3))
	assert.Equal(t, 3, columnAt(src, 7))
	assert.Equal(t, 4, columnAt(src, 100))
}

func TestWordAt(t *testing.T) {
	word, start := wordAt("foo bar", 5)
	assert.Equal(t, "bar", word)
	assert.Equal(t, 4, start)

	word, _ = wordAt("foo bar", 3)
	assert.Equal(t, "foo", word)

	word, _ = wordAt("a + b", 2)
	assert.Empty(t, word)
}

func TestIdentifierBefore(t *testing.T) {
	prefix, start := identifierBefore("x = os.pa", 9)
	assert.Equal(t, "pa", prefix)
	assert.Equal(t, 7, start)

	prefix, start = identifierBefore("print(", 6)
	assert.Empty(t, prefix)
	assert.Equal(t, 6, start)
}

func TestDottedBefore(t *testing.T) {
	assert.Equal(t, "os.path", dottedBefore("x = os.path.", 12))
	assert.Equal(t, "self", dottedBefore("    self.", 9))
	assert.Empty(t, dottedBefore("x = 1.", 6))
	assert.Empty(t, dottedBefore("x = os", 6))
	assert.Empty(t, dottedBefore(".", 1))
}

func TestLineBefore(t *testing.T) {
	assert.Equal(t, "import o", lineBefore("x = 1\nimport os", 14))
	assert.Equal(t, "", lineBefore("x\n", 2))
}
