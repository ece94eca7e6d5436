package csharp

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/715d/reflectcheck/internal/symbols"
)

// typeDecl is a named type known to the index: a source declaration, possibly
// split over partial parts, or an entry of the external catalog.
type typeDecl struct {
	typ *symbols.Type
	key string

	// external types come from the catalog and have no source.
	external bool

	mu     sync.Mutex
	parts  []*declPart
	static bool

	// Set by finalize; read-only afterwards.
	bases   []*symbols.Type
	members []*member
	byName  map[string][]*member
}

// declPart is one declaration of a possibly partial type.
type declPart struct {
	file    *File
	node    *sitter.Node
	bases   []*symbols.Type
	members []*member
}

// member is a member declaration of a type.
type member struct {
	kind   symbols.MemberKind
	name   string
	static bool

	// sig is set for methods and constructors.
	sig *symbols.Signature

	// typ is the type of a field, property or enum value, or the return type
	// of a method.
	typ *symbols.Type

	// result computes the return type of an external method from the
	// receiver and the explicit type arguments.
	result func(recv *symbols.Type, typeArgs []*symbols.Type) *symbols.Type

	node *sitter.Node
}

func (m *member) invocable() bool {
	return m.kind == symbols.MemberMethod
}

// typeKey is the index key of a type: its container path, name and arity,
// e.g. "System.Collections.Generic.Dictionary`2".
func typeKey(container, name string, arity int) string {
	key := name
	if container != "" {
		key = container + "." + name
	}
	if arity > 0 {
		key += "`" + strconv.Itoa(arity)
	}
	return key
}

// path returns the container path of members and nested types of t.
func path(t *symbols.Type) string {
	def := t.Unbound()
	if def.Namespace == "" {
		return def.Name
	}
	return def.Namespace + "." + def.Name
}

func joinName(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return prefix + "." + name
}

// Index is the declaration index of a set of files. It is built once and is
// read-only and safe for concurrent use afterwards.
type Index struct {
	files []*File
	types *xsync.Map[string, *typeDecl]

	globalsMu sync.Mutex
	globals   []string

	builtins
}

// Build indexes the declarations of files. Files are processed concurrently.
func Build(ctx context.Context, files []*File) (*Index, error) {
	idx := &Index{
		files: files,
		types: xsync.NewMap[string, *typeDecl](),
	}

	// Declare every type before resolving any reference.
	if err := idx.eachFile(ctx, idx.declare); err != nil {
		return nil, err
	}
	idx.registerCatalog()
	idx.sortParts()

	if err := idx.eachFile(ctx, idx.resolveFile); err != nil {
		return nil, err
	}
	idx.finalize()

	slog.Debug("declaration index built", "files", len(files), "types", idx.types.Size())
	return idx, nil
}

func (idx *Index) eachFile(ctx context.Context, fn func(*File)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, f := range idx.files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(f)
			return nil
		})
	}
	return g.Wait()
}

// Files returns the indexed files.
func (idx *Index) Files() []*File {
	return idx.files
}

// lookup returns the type declared under key.
func (idx *Index) lookup(key string) (*typeDecl, bool) {
	return idx.types.Load(key)
}

// declOf returns the declaration of the definition of t, if indexed.
func (idx *Index) declOf(t *symbols.Type) *typeDecl {
	if t == nil {
		return nil
	}
	def := t.Unbound()
	if d, ok := def.Decl.(*typeDecl); ok {
		return d
	}
	if def.Kind == symbols.KindUnknown || def.Kind == symbols.KindTypeParameter {
		return nil
	}
	d, ok := idx.lookup(typeKey(def.Namespace, def.Name, len(def.TypeParams)))
	if !ok || d.typ != def {
		return nil
	}
	return d
}

// declare records the usings and type declarations of f.
func (idx *Index) declare(f *File) {
	idx.declareIn(f, f.root, "")
}

func (idx *Index) declareIn(f *File, node *sitter.Node, ns string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch kind := child.Kind(); {
		case kind == "using_directive":
			idx.addUsing(f, child)
		case kind == "namespace_declaration":
			idx.declareIn(f, child, joinName(ns, f.text(field(child, "name"))))
		case kind == "file_scoped_namespace_declaration":
			// Older grammars place the members after the declaration as
			// siblings, newer ones nest them.
			ns = joinName(ns, f.text(field(child, "name")))
			f.namespace = ns
			idx.declareIn(f, child, ns)
		case kind == "declaration_list" || kind == "global_statement":
			idx.declareIn(f, child, ns)
		case isTypeDecl(child):
			d := idx.declareType(f, child, ns)
			if body := typeBody(child); body != nil {
				idx.declareIn(f, body, path(d.typ))
			}
		}
	}
}

func typeBody(node *sitter.Node) *sitter.Node {
	if body := field(node, "body"); body != nil {
		return body
	}
	return childByType(node, "declaration_list", "enum_member_declaration_list")
}

func (idx *Index) declareType(f *File, node *sitter.Node, container string) *typeDecl {
	name := declName(node, f.Src)
	params := typeParamNames(node, f.Src)
	kind := typeDeclKinds[node.Kind()]
	if node.Kind() == "record_declaration" && hasToken(node, "struct") {
		kind = symbols.KindStruct
	}

	fresh := &typeDecl{key: typeKey(container, name, len(params))}
	fresh.typ = &symbols.Type{Kind: kind, Namespace: container, Name: name, Decl: fresh}
	for i, p := range params {
		fresh.typ.TypeParams = append(fresh.typ.TypeParams, &symbols.TypeParam{Name: p, Index: i, Owner: fresh.typ})
	}

	d, loaded := idx.types.LoadOrStore(fresh.key, fresh)
	if loaded {
		slog.Debug("partial type part", "type", d.key, "file", f.Path)
	}
	part := &declPart{file: f, node: node}
	d.mu.Lock()
	d.parts = append(d.parts, part)
	if hasModifier(node, f.Src, "static") {
		d.static = true
	}
	d.mu.Unlock()
	f.types[node.StartByte()] = d
	return d
}

func (idx *Index) addUsing(f *File, node *sitter.Node) {
	global := hasToken(node, "global")
	static := hasToken(node, "static")

	// using Alias = Some.Type;
	if hasToken(node, "=") {
		var alias, target *sitter.Node
		for _, c := range namedChildren(node) {
			if c.Kind() == "name_equals" {
				alias = childByType(c, "identifier")
				continue
			}
			if alias == nil {
				alias = c
				continue
			}
			target = c
		}
		if alias != nil && target != nil {
			f.aliases[f.text(alias)] = target
		}
		return
	}

	named := namedChildren(node)
	if len(named) == 0 {
		return
	}
	name := strings.Join(strings.Fields(f.text(named[len(named)-1])), "")
	switch {
	case static:
		f.statics = append(f.statics, name)
	case global:
		idx.globalsMu.Lock()
		idx.globals = append(idx.globals, name)
		idx.globalsMu.Unlock()
		f.usings = append(f.usings, name)
	default:
		f.usings = append(f.usings, name)
	}
}

// sortParts orders the parts of partial types by file path and position, so
// member order does not depend on scheduling.
func (idx *Index) sortParts() {
	idx.types.Range(func(_ string, d *typeDecl) bool {
		slices.SortFunc(d.parts, func(a, b *declPart) int {
			if c := cmp.Compare(a.file.Path, b.file.Path); c != 0 {
				return c
			}
			return cmp.Compare(a.node.StartByte(), b.node.StartByte())
		})
		return true
	})
	idx.globalsMu.Lock()
	slices.Sort(idx.globals)
	idx.globals = slices.Compact(idx.globals)
	idx.globalsMu.Unlock()
}

// resolveFile resolves the bases, constraints and members of the type parts
// declared in f.
func (idx *Index) resolveFile(f *File) {
	walk(f.root, func(n *sitter.Node) bool {
		if !isTypeDecl(n) {
			return true
		}
		d := f.types[n.StartByte()]
		if d == nil {
			return true
		}
		for _, part := range d.parts {
			if part.file == f && part.node.StartByte() == n.StartByte() {
				idx.resolvePart(d, part)
			}
		}
		return true
	})
}

func (idx *Index) resolvePart(d *typeDecl, part *declPart) {
	f, node := part.file, part.node
	sc := idx.scopeAt(f, node)

	for _, b := range namedChildren(childByType(node, "base_list")) {
		if b.Kind() == "argument_list" {
			continue
		}
		if b.Kind() == "primary_constructor_base_type" {
			b = field(b, "type")
			if b == nil {
				continue
			}
		}
		t := sc.resolve(b)
		if t.Kind != symbols.KindUnknown {
			part.bases = append(part.bases, t)
		}
	}

	idx.applyConstraints(sc, node, d.typ.TypeParams, &d.mu)

	if node.Kind() == "delegate_declaration" {
		return
	}

	// Primary constructor: class C(int a), record R(string Name).
	if params := childByType(node, "parameter_list"); params != nil {
		part.members = append(part.members, &member{
			kind: symbols.MemberConstructor,
			name: d.typ.Name,
			sig: &symbols.Signature{
				Name:        d.typ.Name,
				Constructor: true,
				Container:   d.typ,
				Params:      sc.paramTypes(params),
			},
			node: params,
		})
	}

	body := typeBody(node)
	if body == nil {
		return
	}
	for _, c := range namedChildren(body) {
		part.members = append(part.members, idx.members(d, f, c)...)
	}
}

// members converts a member declaration into index members.
func (idx *Index) members(d *typeDecl, f *File, node *sitter.Node) []*member {
	static := hasModifier(node, f.Src, "static")
	switch kind := node.Kind(); {
	case kind == "constructor_declaration":
		m := &member{kind: symbols.MemberConstructor, name: d.typ.Name, static: static, node: node}
		if static {
			m.kind = symbols.MemberOther
			return []*member{m}
		}
		m.sig = &symbols.Signature{Name: d.typ.Name, Constructor: true, Container: d.typ}
		f.members[node.StartByte()] = m
		sc := idx.scopeAt(f, node)
		m.sig.Params = sc.paramTypes(field(node, "parameters"))
		return []*member{m}

	case kind == "method_declaration":
		name := declName(node, f.Src)
		m := &member{kind: symbols.MemberMethod, name: name, static: static, node: node}
		m.sig = &symbols.Signature{Name: name, Container: d.typ}
		for i, p := range typeParamNames(node, f.Src) {
			m.sig.TypeParams = append(m.sig.TypeParams, &symbols.TypeParam{Name: p, Index: i, Method: true, Owner: d.typ})
		}
		// Registered before resolving so the scope sees the method's own
		// type parameters.
		f.members[node.StartByte()] = m
		sc := idx.scopeAt(f, node)
		m.sig.Params = sc.paramTypes(field(node, "parameters"))
		m.typ = sc.resolve(field(node, "returns", "type"))
		idx.applyConstraints(sc, node, m.sig.TypeParams, nil)
		return []*member{m}

	case kind == "field_declaration" || kind == "event_field_declaration":
		decl := childByType(node, "variable_declaration")
		sc := idx.scopeAt(f, node)
		t := sc.resolve(field(decl, "type"))
		var out []*member
		for _, v := range childrenByType(decl, "variable_declarator") {
			out = append(out, &member{kind: symbols.MemberOther, name: declName(v, f.Src), static: static || hasModifier(node, f.Src, "const"), typ: t, node: v})
		}
		return out

	case kind == "property_declaration" || kind == "event_declaration":
		sc := idx.scopeAt(f, node)
		return []*member{{kind: symbols.MemberOther, name: declName(node, f.Src), static: static, typ: sc.resolve(field(node, "type")), node: node}}

	case kind == "enum_member_declaration":
		return []*member{{kind: symbols.MemberOther, name: declName(node, f.Src), static: true, typ: d.typ, node: node}}

	case isTypeDecl(node):
		return []*member{{kind: symbols.MemberOther, name: declName(node, f.Src), static: true, node: node}}

	case kind == "indexer_declaration", kind == "operator_declaration",
		kind == "conversion_operator_declaration", kind == "destructor_declaration":
		return []*member{{kind: symbols.MemberOther, name: kind, node: node}}
	}
	return nil
}

// applyConstraints records the first type named by each where clause of
// node on the matching parameter.
func (idx *Index) applyConstraints(sc *scope, node *sitter.Node, params []*symbols.TypeParam, mu *sync.Mutex) {
	for _, clause := range childrenByType(node, "type_parameter_constraints_clause") {
		target := field(clause, "target")
		if target == nil {
			target = childByType(clause, "identifier")
		}
		name := sc.file.text(target)

		var constraint *symbols.Type
		for _, c := range childrenByType(clause, "type_parameter_constraint") {
			tn := field(c, "type")
			if tn == nil {
				if wrapper := childByType(c, "type_constraint"); wrapper != nil {
					tn = field(wrapper, "type")
					if tn == nil {
						tn = wrapper.NamedChild(0)
					}
				}
			}
			if tn == nil {
				if named := namedChildren(c); len(named) == 1 && named[0].Kind() != "constructor_constraint" {
					tn = named[0]
				}
			}
			if tn == nil {
				// where T : struct
				if sc.file.text(c) == "struct" {
					constraint = idx.valueType
					break
				}
				continue
			}
			if t := sc.resolve(tn); t.Kind != symbols.KindUnknown {
				constraint = t
				break
			}
		}
		if constraint == nil {
			continue
		}

		for _, p := range params {
			if p.Name != name {
				continue
			}
			if mu != nil {
				mu.Lock()
			}
			if p.Constraint == nil {
				p.Constraint = constraint
			}
			if mu != nil {
				mu.Unlock()
			}
		}
	}
}

// finalize merges partial parts and synthesizes implicit constructors.
func (idx *Index) finalize() {
	idx.types.Range(func(_ string, d *typeDecl) bool {
		if d.external {
			return true
		}
		hasCtor := false
		for _, part := range d.parts {
			d.bases = append(d.bases, part.bases...)
			for _, m := range part.members {
				if m.kind == symbols.MemberConstructor {
					hasCtor = true
				}
				d.members = append(d.members, m)
			}
		}
		switch d.typ.Kind {
		case symbols.KindClass:
			if !hasCtor && !d.static {
				d.members = append(d.members, implicitCtor(d.typ))
			}
		case symbols.KindStruct:
			if !slices.ContainsFunc(d.members, func(m *member) bool {
				return m.kind == symbols.MemberConstructor && len(m.sig.Params) == 0
			}) {
				d.members = append(d.members, implicitCtor(d.typ))
			}
		}
		d.index()
		return true
	})
}

func implicitCtor(t *symbols.Type) *member {
	return &member{
		kind: symbols.MemberConstructor,
		name: t.Name,
		sig:  &symbols.Signature{Name: t.Name, Constructor: true, Container: t},
	}
}

func (d *typeDecl) index() {
	d.byName = make(map[string][]*member, len(d.members))
	for _, m := range d.members {
		d.byName[m.name] = append(d.byName[m.name], m)
	}
}
