package csharp

import (
	"github.com/715d/reflectcheck/internal/symbols"
)

// builtins are the framework types the host types expressions with.
type builtins struct {
	keywords map[string]*symbols.Type

	object, str, boolean, char, void *symbols.Type
	sbyte, byteT, short, ushort      *symbols.Type
	intT, uint, long, ulong          *symbols.Type
	float, double, decimal           *symbols.Type
	valueType, enum, array, typeT    *symbols.Type
	dynamic                          *symbols.Type
}

// catalogBuilder declares metadata-only types with the members expression
// typing needs.
type catalogBuilder struct {
	idx *Index
}

func (c catalogBuilder) declare(kind symbols.TypeKind, ns, name string, params ...string) *symbols.Type {
	t := &symbols.Type{Kind: kind, Namespace: ns, Name: name}
	for i, p := range params {
		t.TypeParams = append(t.TypeParams, &symbols.TypeParam{Name: p, Index: i, Owner: t})
	}
	d := &typeDecl{typ: t, key: typeKey(ns, name, len(params)), external: true, byName: map[string][]*member{}}
	if actual, loaded := c.idx.types.LoadOrStore(d.key, d); loaded {
		// A source declaration of the same type takes precedence.
		return actual.typ
	}
	return t
}

func (c catalogBuilder) keyword(kind symbols.TypeKind, name, kw string) *symbols.Type {
	t := c.declare(kind, "System", name)
	if t.Decl == nil {
		t.Keyword = kw
	}
	c.idx.keywords[kw] = t
	return t
}

// method adds an external method whose result is computed from the receiver
// and explicit type arguments.
func (c catalogBuilder) method(t *symbols.Type, name string, static bool, result func(recv *symbols.Type, typeArgs []*symbols.Type) *symbols.Type) {
	c.add(t, &member{kind: symbols.MemberMethod, name: name, static: static, result: result})
}

// value adds an external field or property of type typ.
func (c catalogBuilder) value(t *symbols.Type, name string, static bool, typ *symbols.Type) {
	c.add(t, &member{kind: symbols.MemberOther, name: name, static: static, typ: typ})
}

func (c catalogBuilder) add(t *symbols.Type, m *member) {
	d, ok := c.idx.lookup(typeKey(t.Namespace, t.Name, len(t.TypeParams)))
	if !ok || !d.external || d.typ != t {
		return
	}
	d.members = append(d.members, m)
	d.byName[m.name] = append(d.byName[m.name], m)
}

func returns(t *symbols.Type) func(*symbols.Type, []*symbols.Type) *symbols.Type {
	return func(*symbols.Type, []*symbols.Type) *symbols.Type { return t }
}

// firstTypeArg returns the single explicit type argument, e.g. T of
// ObjectFactory.Create<T>().
func firstTypeArg(_ *symbols.Type, typeArgs []*symbols.Type) *symbols.Type {
	if len(typeArgs) == 1 {
		return typeArgs[0]
	}
	return symbols.Unknown
}

// registerCatalog adds the framework and library types the verifier knows
// about. It runs after source types are declared, so sources can shadow
// catalog entries.
func (idx *Index) registerCatalog() {
	idx.keywords = make(map[string]*symbols.Type)
	c := catalogBuilder{idx: idx}

	idx.object = c.keyword(symbols.KindClass, "Object", "object")
	idx.str = c.keyword(symbols.KindClass, "String", "string")
	idx.boolean = c.keyword(symbols.KindStruct, "Boolean", "bool")
	idx.char = c.keyword(symbols.KindStruct, "Char", "char")
	idx.void = c.keyword(symbols.KindStruct, "Void", "void")
	idx.sbyte = c.keyword(symbols.KindStruct, "SByte", "sbyte")
	idx.byteT = c.keyword(symbols.KindStruct, "Byte", "byte")
	idx.short = c.keyword(symbols.KindStruct, "Int16", "short")
	idx.ushort = c.keyword(symbols.KindStruct, "UInt16", "ushort")
	idx.intT = c.keyword(symbols.KindStruct, "Int32", "int")
	idx.uint = c.keyword(symbols.KindStruct, "UInt32", "uint")
	idx.long = c.keyword(symbols.KindStruct, "Int64", "long")
	idx.ulong = c.keyword(symbols.KindStruct, "UInt64", "ulong")
	idx.float = c.keyword(symbols.KindStruct, "Single", "float")
	idx.double = c.keyword(symbols.KindStruct, "Double", "double")
	idx.decimal = c.keyword(symbols.KindStruct, "Decimal", "decimal")
	c.keyword(symbols.KindStruct, "IntPtr", "nint")
	c.keyword(symbols.KindStruct, "UIntPtr", "nuint")
	idx.dynamic = &symbols.Type{Kind: symbols.KindDynamic, Name: "dynamic", Keyword: "dynamic"}
	idx.keywords["dynamic"] = idx.dynamic

	idx.valueType = c.declare(symbols.KindClass, "System", "ValueType")
	idx.enum = c.declare(symbols.KindClass, "System", "Enum")
	idx.array = c.declare(symbols.KindClass, "System", "Array")
	idx.typeT = c.declare(symbols.KindClass, "System", "Type")
	c.declare(symbols.KindClass, "System", "Delegate")
	c.declare(symbols.KindClass, "System", "Exception")
	c.declare(symbols.KindStruct, "System", "DateTime")
	c.declare(symbols.KindStruct, "System", "Guid")
	c.declare(symbols.KindStruct, "System", "TimeSpan")
	c.declare(symbols.KindInterface, "System", "IDisposable")
	c.value(idx.str, "Empty", true, idx.str)
	c.value(idx.str, "Length", false, idx.intT)
	c.value(idx.typeT, "Name", false, idx.str)
	c.value(idx.typeT, "FullName", false, idx.str)

	activator := c.declare(symbols.KindClass, "System", "Activator")
	c.method(activator, "CreateInstance", true, func(_ *symbols.Type, typeArgs []*symbols.Type) *symbols.Type {
		if len(typeArgs) == 1 {
			return typeArgs[0]
		}
		return idx.object
	})

	for _, name := range []string{"Stack", "Queue", "ArrayList", "Hashtable", "SortedList"} {
		c.declare(symbols.KindClass, "System.Collections", name)
	}
	c.declare(symbols.KindInterface, "System.Collections", "IEnumerable")
	for _, name := range []string{"List", "Stack", "Queue", "HashSet"} {
		c.declare(symbols.KindClass, "System.Collections.Generic", name, "T")
	}
	for _, name := range []string{"IEnumerable", "ICollection", "IList"} {
		c.declare(symbols.KindInterface, "System.Collections.Generic", name, "T")
	}
	c.declare(symbols.KindClass, "System.Collections.Generic", "Dictionary", "TKey", "TValue")
	c.declare(symbols.KindClass, "System.Collections.Generic", "SortedList", "TKey", "TValue")

	idx.registerRemotion(c)
	idx.registerMoq(c)
}

func (idx *Index) registerRemotion(c catalogBuilder) {
	invoke := c.declare(symbols.KindClass, "Remotion.Development.UnitTesting", "PrivateInvoke")
	for _, name := range []string{"InvokePublicMethod", "InvokeNonPublicMethod", "InvokePublicStaticMethod", "InvokeNonPublicStaticMethod"} {
		c.method(invoke, name, true, returns(idx.object))
	}

	paramList := c.declare(symbols.KindClass, "Remotion.TypePipe", "ParamList")
	c.value(paramList, "Empty", true, paramList)
	c.method(paramList, "Create", true, returns(paramList))

	factory := c.declare(symbols.KindClass, "Remotion.Mixins", "ObjectFactory")
	c.method(factory, "Create", true, func(_ *symbols.Type, typeArgs []*symbols.Type) *symbols.Type {
		if len(typeArgs) == 1 {
			return typeArgs[0]
		}
		return idx.object
	})

	domainObject := c.declare(symbols.KindClass, "Remotion.Data.DomainObjects", "DomainObject")
	c.method(domainObject, "NewObject", true, firstTypeArg)
	c.method(domainObject, "GetObject", true, firstTypeArg)

	tx := c.declare(symbols.KindClass, "Remotion.Data.DomainObjects", "ClientTransaction")
	c.method(tx, "CreateRootTransaction", true, returns(tx))
	c.value(tx, "Current", true, tx)

	lifetime := c.declare(symbols.KindClass, "Remotion.Data.DomainObjects.DomainImplementation", "LifetimeService")
	c.method(lifetime, "NewObject", true, returns(domainObject))
}

func (idx *Index) registerMoq(c catalogBuilder) {
	behavior := c.declare(symbols.KindEnum, "Moq", "MockBehavior")
	for _, name := range []string{"Strict", "Loose", "Default"} {
		c.value(behavior, name, true, behavior)
	}

	c.declare(symbols.KindClass, "Moq", "Mock")
	mock := c.declare(symbols.KindClass, "Moq", "Mock", "T")
	protected := c.declare(symbols.KindInterface, "Moq.Protected", "IProtectedMock", "TMock")

	// Object and Protected() carry the mocked type of the receiver.
	c.value(mock, "Object", false, symbols.NewTypeParamType(mock.TypeParams[0]))
	c.method(mock, "Protected", false, func(recv *symbols.Type, _ []*symbols.Type) *symbols.Type {
		if len(recv.TypeArgs) == 1 {
			return symbols.Construct(protected, recv.TypeArgs)
		}
		return symbols.Unknown
	})
	c.method(mock, "Setup", false, returns(symbols.Unknown))
	c.method(mock, "Verify", false, returns(idx.void))
	c.method(protected, "Setup", false, returns(symbols.Unknown))
	c.method(protected, "Verify", false, returns(idx.void))

	for _, t := range []*symbols.Type{
		c.declare(symbols.KindClass, "Moq", "It"),
		c.declare(symbols.KindClass, "Moq.Protected", "ItExpr"),
	} {
		c.method(t, "IsAny", true, firstTypeArg)
		c.method(t, "Is", true, firstTypeArg)
		c.method(t, "IsNotNull", true, firstTypeArg)
		c.method(t, "IsNull", true, firstTypeArg)
	}
}
