package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codefionn/pytools/internal/rpc"
)

func labels(items []rpc.CompletionItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestRankWithoutPrefix(t *testing.T) {
	items := []rpc.CompletionItem{
		{Label: "beta", Type: rpc.KindStatement},
		{Label: "_private", Type: rpc.KindFunction},
		{Label: "alpha", Type: rpc.KindClass},
		{Label: "beta", Type: rpc.KindKeyword},
		{Label: ""},
	}

	got := rank("", items)

	assert.Equal(t, []string{"alpha", "beta", "_private"}, labels(got))
	// first occurrence wins
	assert.Equal(t, rpc.KindStatement, got[1].Type)
}

func TestRankWithPrefix(t *testing.T) {
	items := []rpc.CompletionItem{
		{Label: "print"},
		{Label: "property"},
		{Label: "repr"},
		{Label: "Process"},
		{Label: "len"},
	}

	got := rank("pr", items)

	assert.ElementsMatch(t, []string{"print", "property", "Process"}, labels(got))
}

func TestRankNoMatch(t *testing.T) {
	got := rank("zz", []rpc.CompletionItem{{Label: "alpha"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
