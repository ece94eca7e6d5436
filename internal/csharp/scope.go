package csharp

import (
	"slices"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/715d/reflectcheck/internal/symbols"
)

// implicitUsings are the namespaces SDK-style projects import implicitly.
var implicitUsings = []string{
	"System",
	"System.Collections.Generic",
	"System.IO",
	"System.Linq",
	"System.Threading",
	"System.Threading.Tasks",
}

// scope is the name resolution context of a syntax node.
type scope struct {
	idx  *Index
	file *File

	// namespaces are the enclosing namespaces, innermost first.
	namespaces []string

	// types are the enclosing type declarations, innermost first.
	types []*typeDecl

	// methodParams are the generic parameters of enclosing methods.
	methodParams []*symbols.TypeParam

	// noAliases is set while resolving an alias target.
	noAliases bool
}

// scopeAt returns the resolution context for node in f.
func (idx *Index) scopeAt(f *File, node *sitter.Node) *scope {
	sc := &scope{idx: idx, file: f}
	var nsParts []string
	fileScoped := false
	for n := node; n != nil; n = n.Parent() {
		switch {
		case isTypeDecl(n):
			if d := f.types[n.StartByte()]; d != nil {
				sc.types = append(sc.types, d)
			}
		case n.Kind() == "method_declaration" || n.Kind() == "local_function_statement":
			if m := f.members[n.StartByte()]; m != nil && m.sig != nil {
				sc.methodParams = append(sc.methodParams, m.sig.TypeParams...)
			}
		case isNamespaceDecl(n):
			nsParts = append(nsParts, f.text(field(n, "name")))
			if n.Kind() == "file_scoped_namespace_declaration" {
				fileScoped = true
			}
		}
	}
	if !fileScoped && f.namespace != "" {
		nsParts = append(nsParts, f.namespace)
	}
	slices.Reverse(nsParts)
	full := strings.Join(nsParts, ".")
	for full != "" {
		sc.namespaces = append(sc.namespaces, full)
		i := strings.LastIndexByte(full, '.')
		if i < 0 {
			break
		}
		full = full[:i]
	}
	return sc
}

// fileScope resolves names at the top of the file, e.g. using alias
// targets.
func (sc *scope) fileScope() *scope {
	return &scope{idx: sc.idx, file: sc.file, noAliases: true}
}

// resolve returns the type denoted by a type syntax node, or Unknown.
func (sc *scope) resolve(node *sitter.Node) *symbols.Type {
	if t, ok := sc.resolveType(node); ok && t != nil {
		return t
	}
	return symbols.Unknown
}

// resolveType returns the type denoted by node. ok is false when the node
// does not name a type; implicit "var" yields a nil type with ok set.
func (sc *scope) resolveType(node *sitter.Node) (*symbols.Type, bool) {
	if node == nil {
		return nil, false
	}
	f := sc.file
	switch node.Kind() {
	case "predefined_type":
		t, ok := sc.idx.keywords[strings.TrimSpace(f.text(node))]
		return t, ok
	case "implicit_type":
		return nil, true
	case "identifier":
		name := f.text(node)
		if t := sc.lookupName(name, nil); t != nil {
			return t, true
		}
		switch name {
		case "var":
			return nil, true
		case "dynamic":
			return sc.idx.dynamic, true
		}
		return nil, false
	case "generic_name":
		name := f.text(childByType(node, "identifier"))
		args := sc.typeArgs(childByType(node, "type_argument_list"))
		t := sc.lookupName(name, args)
		return t, t != nil
	case "qualified_name", "member_access_expression":
		return sc.resolveQualified(node)
	case "alias_qualified_name":
		// global::Some.Type
		name := field(node, "name")
		if name == nil {
			named := namedChildren(node)
			if len(named) == 0 {
				return nil, false
			}
			name = named[len(named)-1]
		}
		top := &scope{idx: sc.idx, file: sc.file}
		return top.resolveType(name)
	case "nullable_type":
		elem := sc.resolve(elemNode(node))
		if elem.IsReferenceType() || elem.IsTypeParameter() {
			return elem, true
		}
		return symbols.NullableOf(elem), true
	case "array_type":
		return symbols.ArrayOf(sc.resolve(elemNode(node))), true
	case "ref_type", "scoped_type":
		return sc.resolveType(elemNode(node))
	case "pointer_type", "function_pointer_type", "tuple_type":
		return symbols.Unknown, true
	}
	return nil, false
}

func elemNode(node *sitter.Node) *sitter.Node {
	if t := field(node, "type"); t != nil {
		return t
	}
	return node.NamedChild(0)
}

func (sc *scope) typeArgs(list *sitter.Node) []*symbols.Type {
	var args []*symbols.Type
	for _, a := range namedChildren(list) {
		args = append(args, sc.resolve(a))
	}
	return args
}

// lookupName resolves a simple type name with the given arguments.
func (sc *scope) lookupName(name string, args []*symbols.Type) *symbols.Type {
	arity := len(args)
	if arity == 0 {
		for i := len(sc.methodParams) - 1; i >= 0; i-- {
			if p := sc.methodParams[i]; p.Name == name {
				return symbols.NewTypeParamType(p)
			}
		}
		for _, d := range sc.types {
			for _, p := range d.typ.TypeParams {
				if p.Name == name {
					return symbols.NewTypeParamType(p)
				}
			}
		}
	}

	var containers []string
	for _, d := range sc.types {
		containers = append(containers, path(d.typ))
	}
	containers = append(containers, sc.namespaces...)
	containers = append(containers, "")
	for _, c := range containers {
		if d, ok := sc.idx.lookup(typeKey(c, name, arity)); ok {
			return symbols.Construct(d.typ, args)
		}
	}

	if arity == 0 && !sc.noAliases {
		if target, ok := sc.file.aliases[name]; ok {
			if t, ok := sc.fileScope().resolveType(target); ok {
				return t
			}
		}
	}

	for _, u := range sc.usingNamespaces() {
		if d, ok := sc.idx.lookup(typeKey(u, name, arity)); ok {
			return symbols.Construct(d.typ, args)
		}
	}
	for _, s := range sc.file.statics {
		if d, ok := sc.idx.lookup(typeKey(s, name, arity)); ok {
			return symbols.Construct(d.typ, args)
		}
	}
	return nil
}

// usingNamespaces returns the namespaces imported into the file, global
// usings and implicit usings last.
func (sc *scope) usingNamespaces() []string {
	out := make([]string, 0, len(sc.file.usings)+len(sc.idx.globals)+len(implicitUsings))
	out = append(out, sc.file.usings...)
	out = append(out, sc.idx.globals...)
	out = append(out, implicitUsings...)
	return out
}

// resolveQualified resolves Qualifier.Name, where the qualifier is either a
// namespace path or a type containing a nested type.
func (sc *scope) resolveQualified(node *sitter.Node) (*symbols.Type, bool) {
	qualifier := field(node, "qualifier", "expression")
	name := field(node, "name")
	if qualifier == nil || name == nil {
		named := namedChildren(node)
		if len(named) < 2 {
			return nil, false
		}
		qualifier, name = named[0], named[len(named)-1]
	}

	simple, args := sc.simpleName(name)
	arity := len(args)

	if ns, ok := sc.dottedPath(qualifier); ok {
		candidates := []string{ns}
		if !rooted(qualifier) {
			// A namespace alias: using M = Moq;
			first, rest, _ := strings.Cut(ns, ".")
			if target, ok := sc.file.aliases[first]; ok {
				candidates = append(candidates, joinName(sc.file.text(target), rest))
			}
			for _, n := range sc.namespaces {
				candidates = append(candidates, n+"."+ns)
			}
		}
		for _, c := range candidates {
			if d, ok := sc.idx.lookup(typeKey(c, simple, arity)); ok {
				return symbols.Construct(d.typ, args), true
			}
		}
	}

	outer, ok := sc.resolveType(qualifier)
	if !ok || outer == nil || outer.Kind == symbols.KindUnknown {
		return nil, false
	}
	if d, ok := sc.idx.lookup(typeKey(path(outer), simple, arity)); ok {
		return symbols.Construct(d.typ, args), true
	}
	return nil, false
}

// simpleName splits an identifier or generic_name into its name and
// resolved type arguments.
func (sc *scope) simpleName(node *sitter.Node) (string, []*symbols.Type) {
	if node.Kind() == "generic_name" {
		return sc.file.text(childByType(node, "identifier")), sc.typeArgs(childByType(node, "type_argument_list"))
	}
	return sc.file.text(node), nil
}

// dottedPath returns the text of a qualifier made only of identifiers.
func (sc *scope) dottedPath(node *sitter.Node) (string, bool) {
	switch node.Kind() {
	case "identifier":
		return sc.file.text(node), true
	case "qualified_name", "member_access_expression":
		q := field(node, "qualifier", "expression")
		n := field(node, "name")
		if q == nil || n == nil || n.Kind() != "identifier" {
			return "", false
		}
		left, ok := sc.dottedPath(q)
		if !ok {
			return "", false
		}
		return left + "." + sc.file.text(n), true
	case "alias_qualified_name":
		// global::App
		n := field(node, "name")
		if n == nil {
			named := namedChildren(node)
			if len(named) == 0 {
				return "", false
			}
			n = named[len(named)-1]
		}
		if n.Kind() != "identifier" {
			return "", false
		}
		return sc.file.text(n), true
	}
	return "", false
}

// rooted reports whether a qualifier starts with an alias such as global::,
// which makes it resolve from the top-level namespace only.
func rooted(node *sitter.Node) bool {
	for node != nil {
		switch node.Kind() {
		case "alias_qualified_name":
			return true
		case "qualified_name", "member_access_expression":
			node = field(node, "qualifier", "expression")
		default:
			return false
		}
	}
	return false
}

// paramTypes resolves the formal parameter types of a parameter_list.
func (sc *scope) paramTypes(list *sitter.Node) []*symbols.Type {
	var out []*symbols.Type
	for i := uint(0); list != nil && i < list.NamedChildCount(); i++ {
		p := list.NamedChild(i)
		switch p.Kind() {
		case "parameter", "parameter_array":
			out = append(out, sc.resolve(paramTypeNode(p)))
		}
	}
	return out
}

func paramTypeNode(p *sitter.Node) *sitter.Node {
	if t := field(p, "type"); t != nil {
		return t
	}
	// parameter_array: params T[] name
	for _, c := range namedChildren(p) {
		if c.Kind() == "array_type" {
			return c
		}
	}
	return nil
}
