package csharp

import (
	"math"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/715d/reflectcheck/internal/symbols"
)

// maxDepth bounds recursive expression typing, e.g. chains of var locals.
const maxDepth = 48

// value is the result of typing an expression.
type value struct {
	typ *symbols.Type

	// static means typ names a type rather than a value of it.
	static bool

	// ns is set when the expression is a namespace prefix.
	ns string

	null bool
}

func valueOf(t *symbols.Type) value { return value{typ: t} }

var unknown = value{typ: symbols.Unknown}

func (m *Model) text(n *sitter.Node) string {
	return m.file.text(n)
}

func (m *Model) scope(n *sitter.Node) *scope {
	return m.idx.scopeAt(m.file, n)
}

// eval types the expression node.
func (m *Model) eval(node *sitter.Node, depth int) value {
	if node == nil || depth > maxDepth {
		return unknown
	}
	depth++

	switch node.Kind() {
	case "null_literal":
		return value{null: true}
	case "string_literal", "verbatim_string_literal", "raw_string_literal", "interpolated_string_expression":
		return valueOf(m.idx.str)
	case "character_literal":
		return valueOf(m.idx.char)
	case "boolean_literal":
		return valueOf(m.idx.boolean)
	case "integer_literal":
		return valueOf(m.integerType(m.text(node)))
	case "real_literal":
		return valueOf(m.realType(m.text(node)))
	case "literal", "parenthesized_expression", "checked_expression":
		return m.eval(firstNamed(node), depth)

	case "typeof_expression":
		return valueOf(m.idx.typeT)
	case "sizeof_expression":
		return valueOf(m.idx.intT)
	case "is_expression", "is_pattern_expression":
		return valueOf(m.idx.boolean)
	case "cast_expression":
		return valueOf(m.scope(node).resolve(field(node, "type")))
	case "as_expression":
		return valueOf(m.scope(node).resolve(field(node, "right", "type")))
	case "default_expression":
		if t := field(node, "type"); t != nil {
			return valueOf(m.scope(node).resolve(t))
		}
		return unknown
	case "object_creation_expression":
		return valueOf(m.scope(node).resolve(field(node, "type")))
	case "array_creation_expression":
		return valueOf(m.scope(node).resolve(field(node, "type")))
	case "implicit_array_creation_expression":
		init := childByType(node, "initializer_expression")
		if first := firstNamed(init); first != nil {
			if v := m.eval(first, depth); v.typ != nil && !v.static {
				return valueOf(symbols.ArrayOf(v.typ))
			}
		}
		return unknown
	case "declaration_expression":
		return valueOf(m.scope(node).resolve(field(node, "type")))

	case "this", "this_expression":
		return valueOf(m.enclosingType(node))
	case "base", "base_expression":
		if bases := m.idx.basesOf(m.enclosingType(node)); len(bases) > 0 {
			return valueOf(bases[0])
		}
		return valueOf(m.idx.object)

	case "identifier":
		return m.evalIdentifier(node, depth)
	case "predefined_type":
		if t, ok := m.idx.keywords[m.text(node)]; ok {
			return value{typ: t, static: true}
		}
		return unknown
	case "generic_name":
		if t, ok := m.scope(node).resolveType(node); ok && t != nil {
			return value{typ: t, static: true}
		}
		return unknown
	case "member_access_expression":
		return m.evalMemberAccess(node, depth)
	case "invocation_expression":
		return m.evalInvocation(node, depth)
	case "element_access_expression":
		v := m.eval(field(node, "expression"), depth)
		if v.typ != nil && v.typ.Kind == symbols.KindArray {
			return valueOf(v.typ.Elem)
		}
		return unknown

	case "conditional_expression":
		v := m.eval(field(node, "consequence"), depth)
		if v.null || v.typ == nil || v.typ.Kind == symbols.KindUnknown {
			return m.eval(field(node, "alternative"), depth)
		}
		return v
	case "assignment_expression":
		return m.eval(field(node, "left"), depth)
	case "prefix_unary_expression":
		if hasToken(node, "!") {
			return valueOf(m.idx.boolean)
		}
		return m.eval(firstNamed(node), depth)
	case "postfix_unary_expression":
		return m.eval(firstNamed(node), depth)
	case "binary_expression":
		return m.evalBinary(node, depth)
	}
	return unknown
}

func firstNamed(node *sitter.Node) *sitter.Node {
	if named := namedChildren(node); len(named) > 0 {
		return named[0]
	}
	return nil
}

// integerType applies the C# rules for the type of an integer literal.
func (m *Model) integerType(text string) *symbols.Type {
	lit := strings.ToLower(text)
	switch {
	case strings.HasSuffix(lit, "ul"), strings.HasSuffix(lit, "lu"):
		return m.idx.ulong
	case strings.HasSuffix(lit, "u"):
		return m.idx.uint
	case strings.HasSuffix(lit, "l"):
		return m.idx.long
	}
	v, err := strconv.ParseUint(lit, 0, 64)
	switch {
	case err != nil, v <= math.MaxInt32:
		return m.idx.intT
	case v <= math.MaxUint32:
		return m.idx.uint
	case v <= math.MaxInt64:
		return m.idx.long
	default:
		return m.idx.ulong
	}
}

func (m *Model) realType(text string) *symbols.Type {
	if text == "" {
		return m.idx.double
	}
	switch strings.ToLower(text)[len(text)-1] {
	case 'f':
		return m.idx.float
	case 'm':
		return m.idx.decimal
	default:
		return m.idx.double
	}
}

// enclosingType returns the innermost type declaration around node,
// instantiated with its own type parameters.
func (m *Model) enclosingType(node *sitter.Node) *symbols.Type {
	for n := node; n != nil; n = n.Parent() {
		if !isTypeDecl(n) {
			continue
		}
		if d := m.file.types[n.StartByte()]; d != nil {
			return selfType(d.typ)
		}
	}
	return symbols.Unknown
}

// selfType is def as seen from inside its declaration.
func selfType(def *symbols.Type) *symbols.Type {
	if len(def.TypeParams) == 0 {
		return def
	}
	args := make([]*symbols.Type, len(def.TypeParams))
	for i, p := range def.TypeParams {
		args[i] = symbols.NewTypeParamType(p)
	}
	return symbols.Construct(def, args)
}

func (m *Model) evalIdentifier(node *sitter.Node, depth int) value {
	name := m.text(node)
	if v, ok := m.lookupValue(node, name, depth); ok {
		return v
	}
	sc := m.scope(node)
	if t := sc.lookupName(name, nil); t != nil {
		return value{typ: t, static: true}
	}
	for _, s := range m.file.statics {
		if d, ok := m.idx.lookup(s); ok {
			if owner, ms := m.idx.lookupMember(d.typ, name, isValue); len(ms) > 0 {
				return valueOf(m.idx.instantiate(ms[0], owner, nil))
			}
		}
	}
	return value{ns: name}
}

// lookupValue finds the local, parameter, field or property name visible at
// node and returns its type.
func (m *Model) lookupValue(at *sitter.Node, name string, depth int) (value, bool) {
	prev := at
	for n := at.Parent(); n != nil; prev, n = n, n.Parent() {
		switch kind := n.Kind(); {
		case kind == "block" || kind == "switch_section" || kind == "compilation_unit":
			for i := uint(0); i < n.ChildCount(); i++ {
				c := n.Child(i)
				if c == nil || c.StartByte() >= prev.StartByte() {
					break
				}
				if t, ok := m.localIn(c, name, depth); ok {
					return valueOf(t), true
				}
			}

		case kind == "for_statement" || kind == "using_statement" || kind == "fixed_statement":
			if t, ok := m.declared(childByType(n, "variable_declaration"), name, depth); ok {
				return valueOf(t), true
			}

		case kind == "foreach_statement":
			if left := field(n, "left"); left != nil && m.text(left) == name {
				return valueOf(m.foreachElem(n, depth)), true
			}

		case kind == "catch_clause":
			decl := childByType(n, "catch_declaration")
			if decl != nil && m.text(field(decl, "name")) == name {
				return valueOf(m.scope(decl).resolve(field(decl, "type"))), true
			}

		case kind == "lambda_expression" || kind == "anonymous_method_expression":
			params := field(n, "parameters")
			if params == nil {
				params = childByType(n, "parameter_list")
			}
			if params != nil && params.Kind() == "identifier" {
				if m.text(params) == name {
					return unknown, true
				}
				continue
			}
			if t, ok := m.param(params, name); ok {
				return valueOf(t), true
			}

		case kind == "accessor_declaration":
			if name == "value" {
				if prop := n.Parent(); prop != nil {
					if owner := prop.Parent(); owner != nil {
						return valueOf(m.scope(owner).resolve(field(owner, "type"))), true
					}
				}
			}

		case kind == "method_declaration" || kind == "constructor_declaration" || kind == "local_function_statement" ||
			kind == "operator_declaration" || kind == "conversion_operator_declaration" || kind == "indexer_declaration":
			params := field(n, "parameters")
			if params == nil {
				params = childByType(n, "parameter_list", "bracketed_parameter_list")
			}
			if t, ok := m.param(params, name); ok {
				return valueOf(t), true
			}

		case isTypeDecl(n):
			if t, ok := m.param(childByType(n, "parameter_list"), name); ok {
				return valueOf(t), true
			}
			d := m.file.types[n.StartByte()]
			if d == nil {
				continue
			}
			if owner, ms := m.idx.lookupMember(selfType(d.typ), name, isValue); len(ms) > 0 {
				return valueOf(m.idx.instantiate(ms[0], owner, nil)), true
			}
		}
	}
	return value{}, false
}

// localIn returns the type of local name if statement declares it.
func (m *Model) localIn(stmt *sitter.Node, name string, depth int) (*symbols.Type, bool) {
	switch stmt.Kind() {
	case "global_statement":
		return m.localIn(firstNamed(stmt), name, depth)
	case "local_declaration_statement":
		return m.declared(childByType(stmt, "variable_declaration"), name, depth)
	}
	return nil, false
}

// declared returns the type of variable name declared by a
// variable_declaration, typing the initializer for var.
func (m *Model) declared(decl *sitter.Node, name string, depth int) (*symbols.Type, bool) {
	if decl == nil {
		return nil, false
	}
	for _, v := range childrenByType(decl, "variable_declarator") {
		if declName(v, m.file.Src) != name {
			continue
		}
		t, ok := m.scope(decl).resolveType(field(decl, "type"))
		if ok && t != nil {
			return t, true
		}
		init := m.eval(declaratorValue(v), depth)
		if init.typ == nil || init.static {
			return symbols.Unknown, true
		}
		return init.typ, true
	}
	return nil, false
}

// declaratorValue returns the initializer expression of a declarator.
func declaratorValue(v *sitter.Node) *sitter.Node {
	if eq := childByType(v, "equals_value_clause"); eq != nil {
		return firstNamed(eq)
	}
	seen := false
	for i := uint(0); i < v.ChildCount(); i++ {
		c := v.Child(i)
		if c == nil {
			continue
		}
		if !c.IsNamed() && c.Kind() == "=" {
			seen = true
			continue
		}
		if seen && c.IsNamed() {
			return c
		}
	}
	return nil
}

func (m *Model) foreachElem(stmt *sitter.Node, depth int) *symbols.Type {
	if t, ok := m.scope(stmt).resolveType(field(stmt, "type")); ok && t != nil {
		return t
	}
	coll := m.eval(field(stmt, "right"), depth)
	if coll.typ != nil && coll.typ.Kind == symbols.KindArray {
		return coll.typ.Elem
	}
	if coll.typ != nil && len(coll.typ.TypeArgs) == 1 {
		return coll.typ.TypeArgs[0]
	}
	return symbols.Unknown
}

// param returns the type of parameter name in a parameter list.
func (m *Model) param(list *sitter.Node, name string) (*symbols.Type, bool) {
	if list == nil {
		return nil, false
	}
	for _, p := range namedChildren(list) {
		if p.Kind() != "parameter" && p.Kind() != "parameter_array" {
			continue
		}
		if declName(p, m.file.Src) != name {
			continue
		}
		tn := paramTypeNode(p)
		if tn == nil {
			return symbols.Unknown, true
		}
		return m.scope(p).resolve(tn), true
	}
	return nil, false
}

func (m *Model) evalMemberAccess(node *sitter.Node, depth int) value {
	nameNode := field(node, "name")
	recv := m.eval(field(node, "expression"), depth)
	if nameNode == nil {
		return unknown
	}
	sc := m.scope(node)
	name, args := sc.simpleName(nameNode)

	switch {
	case recv.ns != "":
		if d, ok := m.idx.lookup(typeKey(recv.ns, name, len(args))); ok {
			return value{typ: symbols.Construct(d.typ, args), static: true}
		}
		return value{ns: recv.ns + "." + name}
	case recv.null || recv.typ == nil:
		return unknown
	case recv.static:
		if d, ok := m.idx.lookup(typeKey(path(recv.typ), name, len(args))); ok {
			return value{typ: symbols.Construct(d.typ, args), static: true}
		}
	case recv.typ.Kind == symbols.KindArray:
		switch name {
		case "Length":
			return valueOf(m.idx.intT)
		case "LongLength":
			return valueOf(m.idx.long)
		}
	}

	if owner, ms := m.idx.lookupMember(recv.typ, name, isValue); len(ms) > 0 {
		return valueOf(m.idx.instantiate(ms[0], owner, nil))
	}
	return unknown
}

func (m *Model) evalInvocation(node *sitter.Node, depth int) value {
	fn := field(node, "function")
	if fn != nil && fn.Kind() == "identifier" && m.text(fn) == "nameof" {
		return valueOf(m.idx.str)
	}
	target := m.callTarget(fn, depth)
	if len(target.methods) == 0 {
		return unknown
	}
	argc := len(m.arguments(field(node, "arguments")))
	chosen := pickOverload(target.methods, argc)
	return valueOf(m.idx.instantiate(chosen, target.owner, target.typeArgs))
}

// arguments returns the expressions of an argument_list.
func (m *Model) arguments(list *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, a := range childrenByType(list, "argument") {
		if expr := argumentExpr(a); expr != nil {
			out = append(out, expr)
		}
	}
	return out
}

// argumentExpr returns the expression of an argument, skipping a leading
// name: colon and ref/out/in modifiers. Keywords such as this are anonymous
// tokens in the grammar, so unnamed children count too.
func argumentExpr(a *sitter.Node) *sitter.Node {
	var expr *sitter.Node
	for i := uint(0); i < a.ChildCount(); i++ {
		c := a.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "name_colon", "comment", "ref", "out", "in", ":":
			continue
		}
		expr = c
	}
	return expr
}

func (m *Model) evalBinary(node *sitter.Node, depth int) value {
	op := strings.TrimSpace(m.text(field(node, "operator")))
	if op == "" {
		for i := uint(0); i < node.ChildCount(); i++ {
			if c := node.Child(i); c != nil && !c.IsNamed() {
				op = c.Kind()
				break
			}
		}
	}
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return valueOf(m.idx.boolean)
	}

	left := m.eval(field(node, "left"), depth)
	right := m.eval(field(node, "right"), depth)
	if op == "??" {
		if left.typ == nil || left.null {
			return right
		}
		if left.typ.Kind == symbols.KindNullable {
			return valueOf(left.typ.Elem)
		}
		return left
	}
	if left.typ == nil || right.typ == nil || left.static || right.static {
		return unknown
	}
	if op == "+" && (left.typ == m.idx.str || right.typ == m.idx.str) {
		return valueOf(m.idx.str)
	}
	if r := m.promote(left.typ, right.typ); r != nil {
		return valueOf(r)
	}
	return valueOf(left.typ)
}

var numericRank = map[string]int{
	"sbyte": 1, "byte": 1, "short": 1, "ushort": 1, "char": 1,
	"int": 2, "uint": 3, "long": 4, "ulong": 5, "float": 6, "double": 7, "decimal": 8,
}

// promote applies binary numeric promotion, approximately.
func (m *Model) promote(a, b *symbols.Type) *symbols.Type {
	ra, okA := numericRank[a.Keyword]
	rb, okB := numericRank[b.Keyword]
	if !okA || !okB {
		return nil
	}
	r := max(ra, rb)
	if r <= 2 {
		return m.idx.intT
	}
	if ra > rb {
		return a
	}
	return b
}
