package chunker

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// frame is one pending node on the walk stack. The walk keeps no parent
// pointers; top records whether the node hangs directly off the root.
type frame struct {
	node *sitter.Node
	top  bool
}

// walkAST parses f with the language grammar and emits one chunk per node
// in the taxonomy. Descendants of an emitted node are not visited, so a
// class absorbs its methods.
func walkAST(ctx context.Context, lang *Language, f *source) ([]Chunk, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar())

	tree, err := parser.ParseCtx(ctx, nil, f.raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, f.relPath, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, f.relPath, errNoTree)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, fmt.Errorf("%w: %s: syntax errors in tree", ErrParse, f.relPath)
	}

	var chunks []Chunk
	stack := pushChildren(nil, root, true)
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := fr.node

		kind, ok := lang.classify(n.Type())
		if ok && lang.topLevelOnly[n.Type()] && !fr.top {
			ok = false
		}
		if ok {
			kind, ok = refineKind(n, kind, f.raw)
		}
		if !ok {
			// export_statement children keep the top-level flag.
			stack = pushChildren(stack, n, n.Type() == "export_statement" && fr.top)
			continue
		}

		start, end := nodeLines(n)
		chunks = append(chunks, f.span(kind, nodeName(n, kind, f), start, end, n.Type()))
	}
	return chunks, nil
}

// pushChildren appends n's named children in reverse so they pop in
// document order.
func pushChildren(stack []frame, n *sitter.Node, top bool) []frame {
	count := int(n.NamedChildCount())
	for i := count - 1; i >= 0; i-- {
		if child := n.NamedChild(i); child != nil {
			stack = append(stack, frame{node: child, top: top})
		}
	}
	return stack
}

// refineKind adjusts the kind of wrapper nodes and drops nodes that only
// match the taxonomy in some shapes.
func refineKind(n *sitter.Node, kind Kind, src []byte) (Kind, bool) {
	switch n.Type() {
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			return declarationKind(decl, src), true
		}
		// export default function () {}
		if v := n.ChildByFieldName("value"); v != nil && isFunctionValue(v) {
			return KindFunction, true
		}
		return KindExport, true
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil && def.Type() == "class_definition" {
			return KindClass, true
		}
		return KindFunction, true
	case "lexical_declaration", "variable_declaration":
		return declarationKind(n, src), true
	case "expression_statement":
		// Python: only module-level assignments.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); c != nil && c.Type() == "assignment" {
				return KindVariable, true
			}
		}
		return "", false
	case "struct_specifier", "class_specifier":
		// Forward declarations and type references have no body.
		return kind, n.ChildByFieldName("body") != nil
	}
	return kind, true
}

// declarationKind reports function for variables bound to a function value.
func declarationKind(n *sitter.Node, src []byte) Kind {
	switch n.Type() {
	case "class_declaration", "abstract_class_declaration":
		return KindClass
	case "interface_declaration":
		return KindInterface
	case "enum_declaration":
		return KindEnum
	case "function_declaration", "generator_function_declaration":
		return KindFunction
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			d := n.NamedChild(i)
			if d == nil || d.Type() != "variable_declarator" {
				continue
			}
			if v := d.ChildByFieldName("value"); v != nil && isFunctionValue(v) {
				return KindFunction
			}
		}
		return KindVariable
	}
	return KindExport
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

// nodeLines converts a node's byte span into 1-based inclusive lines.
func nodeLines(n *sitter.Node) (int, int) {
	start := int(n.StartPoint().Row) + 1
	endPt := n.EndPoint()
	end := int(endPt.Row) + 1
	if endPt.Column == 0 && end > start {
		end--
	}
	return start, end
}

// nodeName prefers the grammar's name field, then nested declarators,
// then the first identifier of the signature line. Imports are named by
// the module they pull in.
func nodeName(n *sitter.Node, kind Kind, f *source) string {
	if kind == KindImport {
		if name := importName(n, f.raw); name != "" {
			return name
		}
	}
	if name := fieldName(n, f.raw, 0); name != "" {
		return name
	}
	start, _ := nodeLines(n)
	if start-1 < len(f.lines) {
		if name := signatureName(f.lines[start-1]); name != "" {
			return name
		}
	}
	return AnonymousName
}

func importName(n *sitter.Node, src []byte) string {
	for _, field := range []string{"source", "module_name"} {
		if c := n.ChildByFieldName(field); c != nil {
			return strings.Trim(c.Content(src), `'"`+"`")
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "scoped_identifier", "qualified_name", "dotted_name", "identifier":
			return c.Content(src)
		}
	}
	return ""
}

func fieldName(n *sitter.Node, src []byte, depth int) string {
	if n == nil || depth > 6 {
		return ""
	}
	switch n.Type() {
	case "identifier", "type_identifier", "field_identifier", "property_identifier",
		"qualified_identifier", "destructor_name", "operator_name", "scoped_identifier":
		return n.Content(src)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	for _, field := range []string{"declaration", "definition", "declarator"} {
		if child := n.ChildByFieldName(field); child != nil {
			if name := fieldName(child, src, depth+1); name != "" {
				return name
			}
		}
	}
	switch n.Type() {
	case "lexical_declaration", "variable_declaration", "field_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c != nil && (c.Type() == "variable_declarator" || c.Type() == "variable_declaration") {
				return fieldName(c, src, depth+1)
			}
		}
	}
	return ""
}
