package csharp

import (
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/715d/reflectcheck/internal/symbols"
)

// target is the resolved callee of an invocation.
type target struct {
	// owner is the type declaring the called methods, nil when unresolved.
	owner *symbols.Type

	name     string
	methods  []*member
	generic  bool
	typeArgs []*symbols.Type
	argNodes []*sitter.Node

	// receiver is the instance expression of an instance call.
	receiver *sitter.Node

	// prefix names the callee container when no owner was resolved.
	prefix string
}

// callTarget resolves the function part of an invocation.
func (m *Model) callTarget(fn *sitter.Node, depth int) target {
	var t target
	if fn == nil {
		return t
	}
	sc := m.scope(fn)

	switch fn.Kind() {
	case "member_access_expression":
		recvNode, nameNode := field(fn, "expression"), field(fn, "name")
		if nameNode == nil {
			t.name = m.text(fn)
			return t
		}
		t.setName(sc, nameNode)
		recv := m.eval(recvNode, depth)
		switch {
		case recv.ns != "":
			t.prefix = recv.ns
		case recv.typ != nil && recv.typ.Kind != symbols.KindUnknown:
			t.owner, t.methods = m.idx.lookupMember(recv.typ, t.name, isMethod)
			if t.owner == nil {
				t.owner = recv.typ
			}
			if !recv.static {
				t.receiver = recvNode
			}
		default:
			t.prefix = compact(m.text(recvNode))
			if !recv.static && !recv.null {
				t.receiver = recvNode
			}
		}

	case "identifier", "generic_name":
		t.setName(sc, fn)
		for _, d := range sc.types {
			if owner, ms := m.idx.lookupMember(selfType(d.typ), t.name, isMethod); len(ms) > 0 {
				t.owner, t.methods = owner, ms
				return t
			}
		}
		for _, s := range m.file.statics {
			d, ok := m.idx.lookup(s)
			if !ok {
				continue
			}
			if owner, ms := m.idx.lookupMember(d.typ, t.name, isMethod); len(ms) > 0 {
				t.owner, t.methods = owner, ms
				return t
			}
		}

	default:
		t.name = compact(m.text(fn))
	}
	return t
}

func (t *target) setName(sc *scope, node *sitter.Node) {
	if node.Kind() == "generic_name" {
		t.generic = true
		t.argNodes = namedChildren(childByType(node, "type_argument_list"))
	}
	t.name, t.typeArgs = sc.simpleName(node)
}

// callee returns the fully-qualified name of the called method.
func (t target) callee() string {
	switch {
	case t.owner != nil:
		return path(t.owner) + "." + t.name
	case t.prefix != "":
		return t.prefix + "." + t.name
	}
	return t.name
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// CallSites returns the method invocations and object creations of the
// file in source order.
func (m *Model) CallSites() []*symbols.CallSite {
	var sites []*symbols.CallSite
	walk(m.file.root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "invocation_expression":
			sites = append(sites, m.invocationSite(n))
		case "object_creation_expression":
			sites = append(sites, m.creationSite(n))
		}
		return true
	})
	return sites
}

func (m *Model) invocationSite(node *sitter.Node) *symbols.CallSite {
	t := m.callTarget(field(node, "function"), 0)
	site := &symbols.CallSite{
		Callee:  t.callee(),
		Generic: t.generic,
		Args:    m.exprs(m.arguments(field(node, "arguments"))),
		Span:    span(m.file.Path, node),
	}
	for _, a := range t.argNodes {
		site.TypeArgs = append(site.TypeArgs, symbols.TypeRef{Text: m.text(a), Node: a})
	}
	if t.receiver != nil {
		site.Receiver = m.expr(t.receiver)
	}
	return site
}

// creationSite describes new T(args) as a call of the constructor T.T.
func (m *Model) creationSite(node *sitter.Node) *symbols.CallSite {
	typeNode := field(node, "type")
	site := &symbols.CallSite{
		Args: m.exprs(m.arguments(field(node, "arguments"))),
		Span: span(m.file.Path, node),
	}

	// The rightmost simple name carries the type arguments.
	last := typeNode
	for last != nil && last.Kind() == "qualified_name" {
		last = field(last, "name")
	}
	var simple string
	if last != nil && last.Kind() == "generic_name" {
		site.Generic = true
		simple = m.text(childByType(last, "identifier"))
		for _, a := range namedChildren(childByType(last, "type_argument_list")) {
			site.TypeArgs = append(site.TypeArgs, symbols.TypeRef{Text: m.text(a), Node: a})
		}
	} else {
		simple = m.text(last)
	}

	t, ok := m.scope(node).resolveType(typeNode)
	switch {
	case ok && t != nil && t.Kind != symbols.KindUnknown && t.Kind != symbols.KindTypeParameter:
		site.Callee = path(t) + "." + t.Unbound().Name
	default:
		qualified := compact(m.text(typeNode))
		if i := strings.IndexByte(qualified, '<'); i >= 0 {
			qualified = qualified[:i]
		}
		site.Callee = qualified + "." + simple
	}
	return site
}

func (m *Model) exprs(nodes []*sitter.Node) []*symbols.Expr {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]*symbols.Expr, len(nodes))
	for i, n := range nodes {
		out[i] = m.expr(n)
	}
	return out
}

// expr converts an expression node into the verifier's syntax view.
func (m *Model) expr(node *sitter.Node) *symbols.Expr {
	for node.Kind() == "parenthesized_expression" {
		inner := firstNamed(node)
		if inner == nil {
			break
		}
		node = inner
	}

	e := &symbols.Expr{Text: m.text(node), Node: node}
	switch node.Kind() {
	case "string_literal", "verbatim_string_literal":
		e.Kind = symbols.ExprStringLiteral
		if s, ok := stringValue(e.Text); ok {
			e.Text = strconv.Quote(s)
		}
	case "raw_string_literal":
		e.Kind = symbols.ExprStringLiteral
		e.Text = strconv.Quote(strings.TrimSpace(strings.Trim(e.Text, `"`)))
	case "null_literal":
		e.Kind = symbols.ExprNullLiteral
	case "integer_literal", "real_literal", "character_literal", "boolean_literal":
		e.Kind = symbols.ExprLiteral
	case "typeof_expression":
		e.Kind = symbols.ExprTypeOf
		operand := field(node, "type")
		if operand == nil {
			operand = firstNamed(node)
		}
		e.Operand = symbols.TypeRef{Text: m.text(operand), Node: operand}
	case "invocation_expression":
		e.Kind = symbols.ExprInvocation
		e.Member = memberName(m, field(node, "function"))
		e.Args = m.exprs(m.arguments(field(node, "arguments")))
	case "member_access_expression":
		e.Kind = symbols.ExprMemberAccess
		e.Member = memberName(m, node)
	case "identifier":
		e.Kind = symbols.ExprIdentifier
	}
	return e
}

// memberName returns the last accessed simple name of fn.
func memberName(m *Model, fn *sitter.Node) string {
	if fn == nil {
		return ""
	}
	name := fn
	if fn.Kind() == "member_access_expression" {
		name = field(fn, "name")
	}
	if name != nil && name.Kind() == "generic_name" {
		name = childByType(name, "identifier")
	}
	return m.text(name)
}

// stringValue decodes a regular or verbatim string literal.
func stringValue(lit string) (string, bool) {
	if rest, ok := strings.CutPrefix(lit, "@"); ok {
		if len(rest) < 2 {
			return "", false
		}
		return strings.ReplaceAll(rest[1:len(rest)-1], `""`, `"`), true
	}
	s, err := strconv.Unquote(lit)
	if err != nil {
		return "", false
	}
	return s, true
}
