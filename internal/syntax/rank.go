package syntax

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"

	"github.com/codefionn/pytools/internal/rpc"
)

// candidates implements fuzzy.Source over completion items.
type candidates []rpc.CompletionItem

func (c candidates) String(i int) string { return c[i].Label }
func (c candidates) Len() int            { return len(c) }

// rank deduplicates items by label, keeping the first occurrence, and
// orders them for prefix. Without a prefix, public names come before
// private ones and each group is sorted alphabetically. With a prefix, only
// items whose first character matches are kept, best fuzzy match first.
func rank(prefix string, items []rpc.CompletionItem) []rpc.CompletionItem {
	seen := make(map[string]bool, len(items))
	unique := make(candidates, 0, len(items))
	for _, item := range items {
		if item.Label == "" || seen[item.Label] {
			continue
		}
		seen[item.Label] = true
		unique = append(unique, item)
	}

	if prefix == "" {
		sort.SliceStable(unique, func(i, j int) bool {
			pi, pj := strings.HasPrefix(unique[i].Label, "_"), strings.HasPrefix(unique[j].Label, "_")
			if pi != pj {
				return !pi
			}
			return unique[i].Label < unique[j].Label
		})
		return unique
	}

	first, _ := utf8.DecodeRuneInString(prefix)
	first = unicode.ToLower(first)

	out := make([]rpc.CompletionItem, 0)
	for _, m := range fuzzy.FindFrom(prefix, unique) {
		r, _ := utf8.DecodeRuneInString(m.Str)
		if unicode.ToLower(r) != first {
			continue
		}
		out = append(out, unique[m.Index])
	}
	return out
}
