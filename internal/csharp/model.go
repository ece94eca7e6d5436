package csharp

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/715d/reflectcheck/internal/symbols"
)

// Model answers symbol questions about one file. It implements
// symbols.Oracle. A Model must only be used by one goroutine at a time
// because it reads the file's syntax tree.
type Model struct {
	idx  *Index
	file *File
}

var _ symbols.Oracle = (*Model)(nil)

// Model returns the oracle for f, which must be one of the indexed files.
func (idx *Index) Model(f *File) *Model {
	return &Model{idx: idx, file: f}
}

// File returns the file the model answers for.
func (m *Model) File() *File {
	return m.file
}

func exprNode(e *symbols.Expr) *sitter.Node {
	if e == nil {
		return nil
	}
	n, _ := e.Node.(*sitter.Node)
	return n
}

// ExprType implements symbols.Oracle.
func (m *Model) ExprType(e *symbols.Expr) (*symbols.Type, bool) {
	node := exprNode(e)
	if node == nil {
		return nil, false
	}
	v := m.eval(node, 0)
	switch {
	case v.null:
		return nil, true
	case v.typ == nil || v.static:
		return symbols.Unknown, true
	}
	return v.typ, true
}

// ResolveType implements symbols.Oracle.
func (m *Model) ResolveType(ref symbols.TypeRef) (*symbols.Type, bool) {
	node, _ := ref.Node.(*sitter.Node)
	if node == nil {
		return nil, false
	}
	t, ok := m.idx.scopeAt(m.file, node).resolveType(node)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// Members implements symbols.Oracle. Types without a source declaration
// report false.
func (m *Model) Members(t *symbols.Type) ([]symbols.MemberDecl, bool) {
	d := m.idx.declOf(t)
	if d == nil || d.external {
		return nil, false
	}
	return d.memberDecls(), true
}

// DeclaredSignature implements symbols.Oracle.
func (m *Model) DeclaredSignature(d symbols.MemberDecl) (*symbols.Signature, bool) {
	mem, ok := d.Node.(*member)
	if !ok || mem.sig == nil {
		return nil, false
	}
	return mem.sig, true
}

// Convertible implements symbols.Oracle.
func (m *Model) Convertible(from, to *symbols.Type) bool {
	return m.idx.convertible(from, to)
}

// ConstraintType implements symbols.Oracle.
func (m *Model) ConstraintType(p *symbols.TypeParam) (*symbols.Type, bool) {
	if p == nil {
		return nil, false
	}
	c, ok := p.Constraint.(*symbols.Type)
	return c, ok && c != nil
}
