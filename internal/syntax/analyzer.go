//go:build cgo

package syntax

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codefionn/pytools/internal/logger"
	"github.com/codefionn/pytools/internal/rpc"
)

const parseCacheSize = 16

// document is a parsed Python source.
type document struct {
	src  []byte
	tree *tree_sitter.Tree
	top  []definition
}

func (d *document) root() *tree_sitter.Node { return d.tree.RootNode() }

// Analyzer answers completion, hover and diagnostics requests for Python
// sources. Parsed trees are cached by content hash.
type Analyzer struct {
	index     ModuleIndex
	validator *Validator
	log       *logger.Logger

	mu    sync.Mutex
	cache map[uint64]*document
	order []uint64
}

// NewAnalyzer creates an analyzer. index may be nil, in which case
// imported modules are not resolved.
func NewAnalyzer(index ModuleIndex) *Analyzer {
	return &Analyzer{
		index:     index,
		validator: NewValidator(),
		log:       logger.Global().WithPrefix("syntax"),
		cache:     make(map[uint64]*document),
	}
}

// Available reports whether the tree-sitter backends are compiled in.
func (a *Analyzer) Available() bool { return true }

// Close releases all cached trees.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key, doc := range a.cache {
		doc.tree.Close()
		delete(a.cache, key)
	}
	a.order = nil
	return nil
}

// document returns the parsed form of source. Callers hold a.mu.
func (a *Analyzer) document(source string) (*document, error) {
	key := xxhash.Sum64String(source)
	if doc, ok := a.cache[key]; ok {
		a.touch(key)
		return doc, nil
	}

	src := []byte(source)
	tree, err := parsePython(src)
	if err != nil {
		return nil, err
	}
	doc := &document{src: src, tree: tree}
	doc.top = collect(doc.root(), src)

	if len(a.order) >= parseCacheSize {
		oldest := a.order[0]
		a.order = a.order[1:]
		if old, ok := a.cache[oldest]; ok {
			old.tree.Close()
			delete(a.cache, oldest)
		}
	}
	a.cache[key] = doc
	a.order = append(a.order, key)
	return doc, nil
}

func (a *Analyzer) touch(key uint64) {
	for i, k := range a.order {
		if k == key {
			a.order = append(append(a.order[:i:i], a.order[i+1:]...), key)
			return
		}
	}
}

// ExtractSymbols returns the top-level definitions of a Python module,
// without its imports. It bypasses the parse cache and is safe for
// concurrent use.
func (a *Analyzer) ExtractSymbols(source string) ([]Symbol, error) {
	src := []byte(source)
	tree, err := parsePython(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	seen := make(map[string]bool)
	var out []Symbol
	for _, def := range collect(tree.RootNode(), src) {
		if def.Name == "" || def.Kind == "module" || seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		out = append(out, def.Symbol)
	}
	return out, nil
}

var (
	importLine = regexp.MustCompile(`^\s*(?:import|from)\s+([\w.]*)$`)
	fromLine   = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+(?:\(?\s*)(?:[\w\s]+,\s*)*\w*$`)
)

// Complete returns completion candidates at the cursor.
func (a *Analyzer) Complete(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error) {
	offset, err := Offset(source, row, column)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.document(source)
	if err != nil {
		return nil, err
	}

	prefix, start := identifierBefore(source, offset)
	line := lineBefore(source, offset)

	if m := importLine.FindStringSubmatch(line); m != nil {
		return rank(prefix, a.submodules(ctx, m[1])), nil
	}
	if m := fromLine.FindStringSubmatch(line); m != nil {
		items := a.moduleMembers(ctx, m[1])
		items = append(items, a.submodules(ctx, m[1]+".")...)
		return rank(prefix, items), nil
	}
	if expr := dottedBefore(source, start); expr != "" {
		return rank(prefix, a.members(ctx, doc, expr, uint(start))), nil
	}

	var items []rpc.CompletionItem
	for _, scope := range scopesAt(doc, uint(offset)) {
		for _, def := range scope {
			items = append(items, a.item(ctx, def))
		}
	}
	for _, sym := range builtinSymbols() {
		items = append(items, itemFor(sym))
	}
	for _, kw := range pythonKeywords {
		items = append(items, rpc.CompletionItem{Label: kw, Type: rpc.KindKeyword})
	}
	return rank(prefix, items), nil
}

// submodules lists the next dotted segment of every indexed module below
// the partial name typed so far, e.g. "os.pa" offers "path".
func (a *Analyzer) submodules(ctx context.Context, typed string) []rpc.CompletionItem {
	if a.index == nil {
		return nil
	}
	base := ""
	if idx := strings.LastIndexByte(typed, '.'); idx >= 0 {
		base = typed[:idx+1]
	}
	names, err := a.index.Modules(ctx, base)
	if err != nil {
		a.log.Debug("Module lookup for %q failed: %v", base, err)
		return nil
	}
	var items []rpc.CompletionItem
	for _, name := range names {
		rest := strings.TrimPrefix(name, base)
		segment := strings.SplitN(rest, ".", 2)[0]
		if segment != "" {
			items = append(items, rpc.CompletionItem{Label: segment, Type: rpc.KindModule})
		}
	}
	return items
}

func (a *Analyzer) moduleSymbols(ctx context.Context, module string) []Symbol {
	if a.index == nil || module == "" {
		return nil
	}
	symbols, err := a.index.Symbols(ctx, module)
	if err != nil {
		a.log.Debug("Symbol lookup for %q failed: %v", module, err)
		return nil
	}
	return symbols
}

func (a *Analyzer) moduleMembers(ctx context.Context, module string) []rpc.CompletionItem {
	var items []rpc.CompletionItem
	for _, sym := range a.moduleSymbols(ctx, module) {
		items = append(items, itemFor(sym))
	}
	return items
}

// members completes the attributes of expr, evaluated at offset.
func (a *Analyzer) members(ctx context.Context, doc *document, expr string, offset uint) []rpc.CompletionItem {
	target := a.resolve(ctx, doc, expr, offset)
	switch {
	case target.class != nil:
		items := make([]rpc.CompletionItem, 0, len(target.class.members))
		for _, m := range target.class.members {
			items = append(items, itemFor(m.Symbol))
		}
		return items
	case target.module != "":
		items := a.moduleMembers(ctx, target.module)
		return append(items, a.submodules(ctx, target.module+".")...)
	}
	return nil
}

// target is what a dotted expression refers to.
type target struct {
	class  *definition
	module string
	symbol *Symbol
	where  string
}

// resolve follows a dotted expression through classes defined in the
// document and modules of the index.
func (a *Analyzer) resolve(ctx context.Context, doc *document, expr string, offset uint) target {
	parts := strings.Split(expr, ".")

	var cur target
	if parts[0] == "self" {
		if cls := enclosingClass(doc, offset); cls != nil {
			cur.class = cls
		}
	}
	if cur.class == nil {
		def, ok := lookup(doc, parts[0], offset)
		switch {
		case !ok:
			cur.module = parts[0]
		case def.Kind == "class":
			cur.class = &def
		case def.module != "":
			cur.module = def.module
		default:
			return target{}
		}
	}

	for _, part := range parts[1:] {
		switch {
		case cur.class != nil:
			var next *definition
			for i := range cur.class.members {
				if m := cur.class.members[i]; m.Name == part && m.Kind == "class" {
					next = &cur.class.members[i]
				}
			}
			if next == nil {
				return target{}
			}
			cur.class = next
		case cur.module != "":
			cur.module += "." + part
		}
	}
	return cur
}

// item converts a definition to a completion candidate, resolving
// imported names through the index.
func (a *Analyzer) item(ctx context.Context, def definition) rpc.CompletionItem {
	if def.from != "" {
		if sym, ok := findSymbol(a.moduleSymbols(ctx, def.from), strings.TrimPrefix(def.module, def.from+".")); ok {
			sym.Name = def.Name
			return itemFor(sym)
		}
	}
	return itemFor(def.Symbol)
}

func itemFor(sym Symbol) rpc.CompletionItem {
	item := rpc.CompletionItem{Label: sym.Name, Type: sym.Kind}
	if sym.Kind == rpc.KindClass || sym.Kind == rpc.KindFunction {
		item.Annotation = sym.Signature
	}
	return item
}

func findSymbol(symbols []Symbol, name string) (Symbol, bool) {
	for _, sym := range symbols {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Hover documents the identifier under the cursor. The value is empty
// when nothing is known about it.
func (a *Analyzer) Hover(ctx context.Context, source string, row, column int) (rpc.MarkupContent, error) {
	content := rpc.MarkupContent{Language: "markdown"}
	offset, err := Offset(source, row, column)
	if err != nil {
		return content, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.document(source)
	if err != nil {
		return content, err
	}

	word, start := wordAt(source, offset)
	if word == "" || isKeyword(word) {
		return content, nil
	}

	var sym Symbol
	var where string
	var found bool
	if expr := dottedBefore(source, start); expr != "" {
		sym, where, found = a.hoverMember(ctx, doc, expr, word, uint(start))
	} else {
		sym, where, found = a.hoverName(ctx, doc, word, uint(start))
	}
	if !found {
		return content, nil
	}
	content.Value = hoverMarkdown(sym, where)
	return content, nil
}

func (a *Analyzer) hoverName(ctx context.Context, doc *document, name string, offset uint) (Symbol, string, bool) {
	def, ok := lookup(doc, name, offset)
	if !ok {
		if sym, ok := findSymbol(builtinSymbols(), name); ok {
			return sym, "builtins", true
		}
		return Symbol{}, "", false
	}
	if def.from != "" {
		if sym, ok := findSymbol(a.moduleSymbols(ctx, def.from), strings.TrimPrefix(def.module, def.from+".")); ok {
			return sym, def.from, true
		}
	}
	return def.Symbol, "", true
}

func (a *Analyzer) hoverMember(ctx context.Context, doc *document, expr, name string, offset uint) (Symbol, string, bool) {
	target := a.resolve(ctx, doc, expr, offset)
	switch {
	case target.class != nil:
		for _, m := range target.class.members {
			if m.Name == name {
				return m.Symbol, "", true
			}
		}
	case target.module != "":
		if sym, ok := findSymbol(a.moduleSymbols(ctx, target.module), name); ok {
			return sym, target.module, true
		}
	}
	return Symbol{}, "", false
}

func hoverMarkdown(sym Symbol, where string) string {
	signature := sym.Signature
	if signature == "" {
		signature = sym.Name
	}
	switch sym.Kind {
	case rpc.KindFunction:
		signature = "def " + signature
	case rpc.KindClass:
		signature = "class " + signature
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```python\n%s\n```", signature)
	if sym.Doc != "" {
		fmt.Fprintf(&b, "\n\n%s", sym.Doc)
	}
	switch where {
	case "builtins":
		b.WriteString("\n\n*builtin*")
	case "":
		fmt.Fprintf(&b, "\n\n*line %d*", sym.Line+1)
	default:
		fmt.Fprintf(&b, "\n\n*%s, line %d*", where, sym.Line+1)
	}
	return b.String()
}

// chainAt returns the named nodes containing offset, outermost first.
func chainAt(root *tree_sitter.Node, offset uint) []*tree_sitter.Node {
	chain := []*tree_sitter.Node{root}
	n := root
	for {
		var next *tree_sitter.Node
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c != nil && c.StartByte() <= offset && offset <= c.EndByte() {
				next = c
			}
		}
		if next == nil {
			return chain
		}
		chain = append(chain, next)
		n = next
	}
}

// scopesAt returns the definitions visible at offset, innermost scope
// first. A class body is only visible directly inside it, not from its
// methods.
func scopesAt(doc *document, offset uint) [][]definition {
	chain := chainAt(doc.root(), offset)
	var scopes [][]definition
	innermost := true
	for i := len(chain) - 1; i > 0; i-- {
		n := chain[i]
		switch n.Kind() {
		case "function_definition":
			scope := parameterDefs(n, doc.src)
			if body := n.ChildByFieldName("body"); body != nil {
				scope = append(scope, collect(body, doc.src)...)
			}
			scopes = append(scopes, scope)
			innermost = false
		case "class_definition":
			if innermost {
				if body := n.ChildByFieldName("body"); body != nil {
					scopes = append(scopes, collect(body, doc.src))
				}
			}
			innermost = false
		}
	}
	return append(scopes, doc.top)
}

// lookup finds the binding of name visible at offset. Within a scope the
// last binding before offset wins, or the first one when all follow it.
func lookup(doc *document, name string, offset uint) (definition, bool) {
	for _, scope := range scopesAt(doc, offset) {
		var best definition
		found := false
		for _, def := range scope {
			if def.Name != name {
				continue
			}
			if !found || def.start <= offset {
				best, found = def, true
			}
		}
		if found {
			return best, true
		}
	}
	return definition{}, false
}

// enclosingClass returns the class whose method contains offset.
func enclosingClass(doc *document, offset uint) *definition {
	chain := chainAt(doc.root(), offset)
	for i := len(chain) - 1; i > 0; i-- {
		if chain[i].Kind() == "class_definition" {
			def := classDef(chain[i], doc.src)
			return &def
		}
	}
	return nil
}
