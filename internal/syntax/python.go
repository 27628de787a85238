//go:build cgo

package syntax

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// definition is a name bound somewhere in a Python document.
type definition struct {
	Symbol
	start    uint         // byte offset of the binding
	module   string       // imported module for import bindings
	from     string       // source module of "from x import y" bindings
	imported string       // what an import statement names, as written
	members  []definition // class bodies
}

func parsePython(src []byte) (*tree_sitter.Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_python.Language())); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code: parser returned nil tree")
	}
	return tree, nil
}

// scopeKinds open a new scope; their bodies are not part of the enclosing one.
var scopeKinds = map[string]bool{
	"function_definition":      true,
	"class_definition":         true,
	"lambda":                   true,
	"list_comprehension":       true,
	"set_comprehension":        true,
	"dictionary_comprehension": true,
	"generator_expression":     true,
}

// collect returns the names bound directly in the scope whose body is node.
func collect(node *tree_sitter.Node, src []byte) []definition {
	var defs []definition
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "function_definition":
			defs = append(defs, functionDef(n, src))
			return
		case "class_definition":
			defs = append(defs, classDef(n, src))
			return
		case "import_statement":
			defs = append(defs, importDefs(n, src)...)
			return
		case "import_from_statement":
			defs = append(defs, importFromDefs(n, src)...)
			return
		case "assignment", "augmented_assignment":
			if left := n.ChildByFieldName("left"); left != nil {
				defs = append(defs, targetDefs(left, src, kindForTarget(n, src))...)
			}
			if right := n.ChildByFieldName("right"); right != nil {
				walk(right)
			}
			return
		case "for_statement":
			if left := n.ChildByFieldName("left"); left != nil {
				defs = append(defs, targetDefs(left, src, "statement")...)
			}
		case "as_pattern":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				defs = append(defs, targetDefs(alias, src, "statement")...)
			}
		case "named_expression":
			if name := n.ChildByFieldName("name"); name != nil {
				defs = append(defs, targetDefs(name, src, "statement")...)
			}
		case "except_clause":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				defs = append(defs, targetDefs(alias, src, "instance")...)
			}
		}
		if scopeKinds[n.Kind()] {
			return
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if child := n.NamedChild(i); child != nil {
				walk(child)
			}
		}
	}

	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil {
			walk(child)
		}
	}
	return defs
}

func kindForTarget(assignment *tree_sitter.Node, src []byte) string {
	right := assignment.ChildByFieldName("right")
	if right != nil && right.Kind() == "call" {
		if fn := right.ChildByFieldName("function"); fn != nil {
			name := fn.Utf8Text(src)
			if r := []rune(name); len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
				return "instance"
			}
		}
	}
	return "statement"
}

// targetDefs binds every identifier of an assignment target. Attribute and
// subscript targets bind nothing.
func targetDefs(target *tree_sitter.Node, src []byte, kind string) []definition {
	switch target.Kind() {
	case "identifier":
		return []definition{newDef(target, target, src, kind)}
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list", "tuple", "list",
		"list_splat_pattern", "as_pattern_target", "parenthesized_expression":
		var defs []definition
		for i := uint(0); i < target.NamedChildCount(); i++ {
			if child := target.NamedChild(i); child != nil {
				defs = append(defs, targetDefs(child, src, kind)...)
			}
		}
		return defs
	}
	return nil
}

func newDef(nameNode, at *tree_sitter.Node, src []byte, kind string) definition {
	pos := at.StartPosition()
	return definition{
		Symbol: Symbol{
			Name:   nameNode.Utf8Text(src),
			Kind:   kind,
			Line:   int(pos.Row),
			Column: columnAt(src, int(at.StartByte())),
		},
		start: at.StartByte(),
	}
}

func functionDef(n *tree_sitter.Node, src []byte) definition {
	name := n.ChildByFieldName("name")
	if name == nil {
		return definition{}
	}
	def := newDef(name, name, src, "function")
	def.Signature = def.Name + compact(textOf(n.ChildByFieldName("parameters"), src, "()"))
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		def.Signature += " -> " + compact(ret.Utf8Text(src))
	}
	def.Doc = docstring(n.ChildByFieldName("body"), src)
	return def
}

func classDef(n *tree_sitter.Node, src []byte) definition {
	name := n.ChildByFieldName("name")
	if name == nil {
		return definition{}
	}
	def := newDef(name, name, src, "class")
	body := n.ChildByFieldName("body")
	def.Doc = docstring(body, src)
	if body != nil {
		def.members = collect(body, src)
		def.members = append(def.members, selfAttributes(body, src)...)
	}

	params := "()"
	for _, m := range def.members {
		if m.Name == "__init__" && m.Kind == "function" {
			params = strings.TrimPrefix(m.Signature, "__init__")
			if idx := strings.Index(params, " -> "); idx >= 0 {
				params = params[:idx]
			}
			params = dropSelf(params)
			break
		}
	}
	def.Signature = def.Name + params
	return def
}

// selfAttributes finds "self.x = ..." assignments in the methods of a class body.
func selfAttributes(body *tree_sitter.Node, src []byte) []definition {
	var defs []definition
	var walk func(n *tree_sitter.Node, inMethod bool)
	walk = func(n *tree_sitter.Node, inMethod bool) {
		switch n.Kind() {
		case "class_definition":
			return
		case "function_definition":
			if inMethod {
				return
			}
			inMethod = true
		case "assignment", "augmented_assignment":
			if left := n.ChildByFieldName("left"); inMethod && left != nil && left.Kind() == "attribute" {
				obj, attr := left.ChildByFieldName("object"), left.ChildByFieldName("attribute")
				if obj != nil && attr != nil && obj.Utf8Text(src) == "self" {
					defs = append(defs, newDef(attr, attr, src, "instance"))
				}
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if child := n.NamedChild(i); child != nil {
				walk(child, inMethod)
			}
		}
	}
	walk(body, false)
	return defs
}

func importDefs(n *tree_sitter.Node, src []byte) []definition {
	var defs []definition
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			// "import a.b" binds "a"
			full := child.Utf8Text(src)
			first := child.NamedChild(0)
			if first == nil {
				continue
			}
			def := newDef(first, child, src, "module")
			def.module = strings.SplitN(full, ".", 2)[0]
			def.Signature = "import " + full
			def.imported = full
			defs = append(defs, def)
		case "aliased_import":
			name, alias := child.ChildByFieldName("name"), child.ChildByFieldName("alias")
			if name == nil || alias == nil {
				continue
			}
			def := newDef(alias, child, src, "module")
			def.module = name.Utf8Text(src)
			def.Signature = "import " + def.module + " as " + def.Name
			def.imported = def.module + " as " + def.Name
			defs = append(defs, def)
		}
	}
	return defs
}

func importFromDefs(n *tree_sitter.Node, src []byte) []definition {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil
	}
	module := moduleNode.Utf8Text(src)

	var defs []definition
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil || child.StartByte() == moduleNode.StartByte() {
			continue
		}
		var nameNode, bound *tree_sitter.Node
		switch child.Kind() {
		case "dotted_name":
			nameNode, bound = child, child
		case "aliased_import":
			nameNode, bound = child.ChildByFieldName("name"), child.ChildByFieldName("alias")
		default:
			continue
		}
		if nameNode == nil || bound == nil {
			continue
		}
		def := newDef(bound, child, src, "module")
		def.from = module
		def.module = joinModule(module, nameNode.Utf8Text(src))
		def.Signature = "from " + module + " import " + nameNode.Utf8Text(src)
		def.imported = def.module
		if bound != nameNode {
			def.imported += " as " + def.Name
		}
		defs = append(defs, def)
	}
	return defs
}

func joinModule(base, name string) string {
	if strings.HasSuffix(base, ".") {
		return base + name
	}
	return base + "." + name
}

// parameterDefs binds the parameters of a function.
func parameterDefs(fn *tree_sitter.Node, src []byte) []definition {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var defs []definition
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil {
			continue
		}
		var name *tree_sitter.Node
		switch p.Kind() {
		case "identifier":
			name = p
		case "default_parameter", "typed_default_parameter":
			name = p.ChildByFieldName("name")
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			name = firstIdentifier(p)
		}
		if name == nil || name.Kind() != "identifier" {
			continue
		}
		def := newDef(name, name, src, "param")
		def.Signature = compact(p.Utf8Text(src))
		defs = append(defs, def)
	}
	return defs
}

func firstIdentifier(n *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Kind() == "identifier" {
			return child
		}
		if found := firstIdentifier(child); found != nil {
			return found
		}
	}
	return nil
}

// docstring returns the cleaned docstring of a block, if it starts with one.
func docstring(body *tree_sitter.Node, src []byte) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	stmt := body.NamedChild(0)
	if stmt == nil || stmt.Kind() != "expression_statement" || stmt.NamedChildCount() == 0 {
		return ""
	}
	str := stmt.NamedChild(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}

	var content strings.Builder
	for i := uint(0); i < str.NamedChildCount(); i++ {
		if part := str.NamedChild(i); part != nil && part.Kind() == "string_content" {
			content.WriteString(part.Utf8Text(src))
		}
	}
	return cleanDoc(content.String())
}

// cleanDoc strips the common indentation of all lines but the first and
// removes leading and trailing blank lines.
func cleanDoc(doc string) string {
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")
	indent := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		if n := len(line) - len(trimmed); indent < 0 || n < indent {
			indent = n
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	if indent > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= indent {
				lines[i] = lines[i][indent:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func textOf(n *tree_sitter.Node, src []byte, fallback string) string {
	if n == nil {
		return fallback
	}
	return n.Utf8Text(src)
}

// compact collapses whitespace runs (including newlines) to single spaces
// and removes the space after an opening and before a closing bracket.
func compact(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	for _, pair := range [][2]string{{"( ", "("}, {" )", ")"}, {"[ ", "["}, {" ]", "]"}, {",)", ")"}} {
		s = strings.ReplaceAll(s, pair[0], pair[1])
	}
	return s
}

// dropSelf removes the first parameter from a "(self, ...)" list.
func dropSelf(params string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(params, "("), ")")
	if idx := strings.Index(inner, ","); idx >= 0 {
		return "(" + strings.TrimSpace(inner[idx+1:]) + ")"
	}
	return "()"
}
