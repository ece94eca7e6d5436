package csharp

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/715d/reflectcheck/internal/symbols"
)

// nodeText returns the source text covered by node.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

// childByType finds the first child node of the given kind.
func childByType(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		for _, k := range kinds {
			if child.Kind() == k {
				return child
			}
		}
	}
	return nil
}

// childrenByType returns all children of the given kind.
func childrenByType(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			out = append(out, child)
		}
	}
	return out
}

// field returns the child stored under the first of names that is present.
// Field names moved between grammar releases, so callers list the variants.
func field(node *sitter.Node, names ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for _, name := range names {
		if child := node.ChildByFieldName(name); child != nil {
			return child
		}
	}
	return nil
}

// namedChildren returns the named children of node, skipping comments.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Kind() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// hasToken reports whether node has an anonymous child token with text tok.
func hasToken(node *sitter.Node, tok string) bool {
	if node == nil {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && !child.IsNamed() && child.Kind() == tok {
			return true
		}
	}
	return false
}

// hasModifier reports whether a declaration carries modifier mod.
func hasModifier(node *sitter.Node, content []byte, mod string) bool {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "modifier":
			if strings.TrimSpace(nodeText(child, content)) == mod {
				return true
			}
		case mod:
			return true
		}
	}
	return false
}

// sameNode reports whether a and b denote the same syntax node.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}

// span converts the node range to a 1-based source span.
func span(path string, node *sitter.Node) symbols.Span {
	start, end := node.StartPosition(), node.EndPosition()
	return symbols.Span{
		File:      path,
		Line:      int(start.Row) + 1,
		Column:    int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndColumn: int(end.Column) + 1,
		Offset:    int(node.StartByte()),
		EndOffset: int(node.EndByte()),
	}
}

// typeDeclKinds are the node kinds declaring a named type.
var typeDeclKinds = map[string]symbols.TypeKind{
	"class_declaration":         symbols.KindClass,
	"struct_declaration":        symbols.KindStruct,
	"interface_declaration":     symbols.KindInterface,
	"enum_declaration":          symbols.KindEnum,
	"record_declaration":        symbols.KindClass,
	"record_struct_declaration": symbols.KindStruct,
	"delegate_declaration":      symbols.KindDelegate,
}

func isTypeDecl(node *sitter.Node) bool {
	_, ok := typeDeclKinds[node.Kind()]
	return ok
}

func isNamespaceDecl(node *sitter.Node) bool {
	k := node.Kind()
	return k == "namespace_declaration" || k == "file_scoped_namespace_declaration"
}

// declName returns the declared identifier of a type or member declaration.
func declName(node *sitter.Node, content []byte) string {
	if n := field(node, "name"); n != nil {
		return nodeText(n, content)
	}
	return nodeText(childByType(node, "identifier"), content)
}

// typeParamNames returns the names declared by the type_parameter_list of
// node.
func typeParamNames(node *sitter.Node, content []byte) []string {
	list := field(node, "type_parameters")
	if list == nil {
		list = childByType(node, "type_parameter_list")
	}
	var names []string
	for _, p := range childrenByType(list, "type_parameter") {
		name := field(p, "name")
		if name == nil {
			name = childByType(p, "identifier")
		}
		names = append(names, nodeText(name, content))
	}
	return names
}
