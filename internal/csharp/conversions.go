package csharp

import (
	"github.com/715d/reflectcheck/internal/symbols"
)

// wideningTargets lists the implicit numeric conversions by source keyword.
var wideningTargets = map[string][]string{
	"sbyte":  {"short", "int", "long", "float", "double", "decimal", "nint"},
	"byte":   {"short", "ushort", "int", "uint", "long", "ulong", "float", "double", "decimal", "nint", "nuint"},
	"short":  {"int", "long", "float", "double", "decimal", "nint"},
	"ushort": {"int", "uint", "long", "ulong", "float", "double", "decimal", "nint", "nuint"},
	"int":    {"long", "float", "double", "decimal", "nint"},
	"uint":   {"long", "ulong", "float", "double", "decimal", "nuint"},
	"long":   {"float", "double", "decimal"},
	"ulong":  {"float", "double", "decimal"},
	"char":   {"ushort", "int", "uint", "long", "ulong", "float", "double", "decimal", "nint", "nuint"},
	"float":  {"double"},
	"nint":   {"long", "float", "double", "decimal"},
	"nuint":  {"ulong", "float", "double", "decimal"},
}

// convertible reports whether an implicit conversion from one type to
// another exists. Types the host could not determine convert to anything.
func (idx *Index) convertible(from, to *symbols.Type) bool {
	if from == nil || to == nil {
		return from == nil && to.IsReferenceType()
	}
	if symbols.Identical(from, to) {
		return true
	}
	switch {
	case from.Kind == symbols.KindUnknown || to.Kind == symbols.KindUnknown:
		return true
	case from.Kind == symbols.KindDynamic || to.Kind == symbols.KindDynamic:
		return true
	case to.Unbound() == idx.object:
		return true
	}

	switch to.Kind {
	case symbols.KindNullable:
		if from.Kind == symbols.KindNullable {
			return symbols.Identical(from.Elem, to.Elem) || idx.numericWidening(from.Elem, to.Elem)
		}
		return idx.convertible(from, to.Elem)
	case symbols.KindTypeParameter:
		// An argument satisfies an open parameter when it satisfies the
		// parameter's constraint.
		if c, ok := to.Param.Constraint.(*symbols.Type); ok && c != nil {
			return idx.convertible(from, c)
		}
		return true
	}

	if idx.numericWidening(from, to) {
		return true
	}

	switch from.Kind {
	case symbols.KindStruct, symbols.KindEnum, symbols.KindNullable:
		if to.Unbound() == idx.valueType {
			return true
		}
		if from.Kind == symbols.KindEnum && to.Unbound() == idx.enum {
			return true
		}
	case symbols.KindArray:
		if to.Unbound() == idx.array {
			return true
		}
		if to.Kind == symbols.KindArray {
			return from.Elem.IsReferenceType() && to.Elem.IsReferenceType() && idx.convertible(from.Elem, to.Elem)
		}
		return false
	case symbols.KindTypeParameter:
		if c, ok := from.Param.Constraint.(*symbols.Type); ok && c != nil {
			return idx.convertible(c, to)
		}
		return false
	}

	return idx.derivesFrom(from, to)
}

func (idx *Index) numericWidening(from, to *symbols.Type) bool {
	if from.Keyword == "" || to.Keyword == "" {
		return false
	}
	for _, kw := range wideningTargets[from.Keyword] {
		if kw == to.Keyword {
			return true
		}
	}
	return false
}

// derivesFrom walks the base classes and interfaces of from looking for to.
func (idx *Index) derivesFrom(from, to *symbols.Type) bool {
	seen := make(map[*symbols.Type]bool)
	queue := idx.basesOf(from)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if symbols.Identical(cur, to) || (cur.Unbound() == to.Unbound() && !to.IsGeneric()) {
			return true
		}
		if seen[cur.Unbound()] {
			continue
		}
		seen[cur.Unbound()] = true
		queue = append(queue, idx.basesOf(cur)...)
	}
	return false
}
