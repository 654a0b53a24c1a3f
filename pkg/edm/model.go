package edm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// EnumMember one named value of an enum type
type EnumMember struct {
	Name  string
	Value int64
}

// EnumType an enumeration; flags enums accept combinations of members
type EnumType struct {
	Namespace string
	Name      string
	IsFlags   bool
	Members   []EnumMember
}

// QualifiedName returns Namespace.Name
func (e *EnumType) QualifiedName() string { return e.Namespace + "." + e.Name }

// Ref returns a reference to the enum type
func (e *EnumType) Ref() TypeRef { return TypeRef{Kind: KindEnum, Name: e.QualifiedName()} }

// Parse converts "Red", "Red,Blue", "Red, Blue" or a number into a value
func (e *EnumType) Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value for enum %s", e.QualifiedName())
	}
	parts := strings.Split(s, ",")
	if len(parts) > 1 && !e.IsFlags {
		return 0, fmt.Errorf("enum %s is not a flags enum: %q", e.QualifiedName(), s)
	}

	var value int64
	for _, part := range parts {
		part = strings.TrimSpace(part)
		v, ok := e.memberValue(part)
		if !ok {
			n, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%q is not a member of enum %s", part, e.QualifiedName())
			}
			v = n
		}
		value |= v
	}
	return value, nil
}

func (e *EnumType) memberValue(name string) (int64, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Format renders a value as member names; flag combinations are joined with ", "
func (e *EnumType) Format(value int64) string {
	for _, m := range e.Members {
		if m.Value == value {
			return m.Name
		}
	}
	if !e.IsFlags {
		return strconv.FormatInt(value, 10)
	}

	var names []string
	rest := value
	for _, m := range e.Members {
		if m.Value != 0 && value&m.Value == m.Value {
			names = append(names, m.Name)
			rest &^= m.Value
		}
	}
	if rest != 0 || len(names) == 0 {
		return strconv.FormatInt(value, 10)
	}
	return strings.Join(names, ", ")
}

// Property a structural property
type Property struct {
	Name     string
	Type     TypeRef
	Nullable bool
	// Countable is false when $count is disallowed on a collection-valued property
	Countable bool
}

// Prop creates a nullable, countable property
func Prop(name string, t TypeRef) *Property {
	return &Property{Name: name, Type: t, Nullable: true, Countable: true}
}

// NotNull marks the property non-nullable
func (p *Property) NotNull() *Property {
	p.Nullable = false
	return p
}

// NotCountable disallows $count on the property
func (p *Property) NotCountable() *Property {
	p.Countable = false
	return p
}

// ComplexType a structured type without a key
type ComplexType struct {
	Namespace  string
	Name       string
	Properties []*Property
}

// QualifiedName returns Namespace.Name
func (c *ComplexType) QualifiedName() string { return c.Namespace + "." + c.Name }

// Ref returns a reference to the complex type
func (c *ComplexType) Ref() TypeRef { return TypeRef{Kind: KindComplex, Name: c.QualifiedName()} }

// Property looks up a property by name
func (c *ComplexType) Property(name string) (*Property, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// NavigationProperty relates an entity type to another.
// A collection navigation is stored either as a key list on the source row
// (KeysField) or as a foreign key column on the target rows (ForeignKey).
type NavigationProperty struct {
	Name       string
	Target     *EntityType
	TargetSet  string
	Collection bool
	Countable  bool
	KeysField  string
	ForeignKey string
}

// Nav creates a countable navigation property
func Nav(name string, target *EntityType, targetSet string, collection bool) *NavigationProperty {
	return &NavigationProperty{Name: name, Target: target, TargetSet: targetSet, Collection: collection, Countable: true}
}

// StoredAsKeys stores the related keys in field of the source row
func (n *NavigationProperty) StoredAsKeys(field string) *NavigationProperty {
	n.KeysField = field
	return n
}

// StoredAsForeignKey stores the source key in column of the target rows
func (n *NavigationProperty) StoredAsForeignKey(column string) *NavigationProperty {
	n.ForeignKey = column
	return n
}

// NotCountable disallows $count on the navigation
func (n *NavigationProperty) NotCountable() *NavigationProperty {
	n.Countable = false
	return n
}

// Type returns the navigation's type reference
func (n *NavigationProperty) Type() TypeRef {
	t := n.Target.Ref()
	t.Collection = n.Collection
	return t
}

// EntityType a keyed structured type, optionally derived from a base type
type EntityType struct {
	Namespace            string
	Name                 string
	BaseType             *EntityType
	Abstract             bool
	Key                  []string
	Properties           []*Property
	NavigationProperties []*NavigationProperty
}

// QualifiedName returns Namespace.Name
func (e *EntityType) QualifiedName() string { return e.Namespace + "." + e.Name }

// Ref returns a reference to the entity type
func (e *EntityType) Ref() TypeRef { return TypeRef{Kind: KindEntity, Name: e.QualifiedName()} }

// Root returns the top of the inheritance chain
func (e *EntityType) Root() *EntityType {
	t := e
	for t.BaseType != nil {
		t = t.BaseType
	}
	return t
}

// KeyProperties returns the key properties declared on the root type
func (e *EntityType) KeyProperties() []*Property {
	root := e.Root()
	out := make([]*Property, 0, len(root.Key))
	for _, k := range root.Key {
		if p, ok := root.Property(k); ok {
			out = append(out, p)
		}
	}
	return out
}

// Property looks up a structural property, walking base types
func (e *EntityType) Property(name string) (*Property, bool) {
	for t := e; t != nil; t = t.BaseType {
		for _, p := range t.Properties {
			if p.Name == name {
				return p, true
			}
		}
	}
	return nil, false
}

// NavigationProperty looks up a navigation property, walking base types
func (e *EntityType) NavigationProperty(name string) (*NavigationProperty, bool) {
	for t := e; t != nil; t = t.BaseType {
		for _, n := range t.NavigationProperties {
			if n.Name == name {
				return n, true
			}
		}
	}
	return nil, false
}

// AllProperties returns structural properties, inherited ones first
func (e *EntityType) AllProperties() []*Property {
	if e.BaseType == nil {
		return e.Properties
	}
	return append(append([]*Property{}, e.BaseType.AllProperties()...), e.Properties...)
}

// AllNavigationProperties returns navigation properties, inherited ones first
func (e *EntityType) AllNavigationProperties() []*NavigationProperty {
	if e.BaseType == nil {
		return e.NavigationProperties
	}
	return append(append([]*NavigationProperty{}, e.BaseType.AllNavigationProperties()...), e.NavigationProperties...)
}

// IsDerivedFrom reports whether e equals base or inherits from it
func (e *EntityType) IsDerivedFrom(base *EntityType) bool {
	for t := e; t != nil; t = t.BaseType {
		if t == base {
			return true
		}
	}
	return false
}

// AddNavigation attaches navigation properties and returns e
func (e *EntityType) AddNavigation(navs ...*NavigationProperty) *EntityType {
	e.NavigationProperties = append(e.NavigationProperties, navs...)
	return e
}

// EntitySet a top-level addressable collection of entities
type EntitySet struct {
	Name       string
	EntityType *EntityType
	Countable  bool
}

// Parameter a function parameter
type Parameter struct {
	Name     string
	Type     TypeRef
	Nullable bool
}

// Invocation carries the inputs of a function call.
// Bound holds the binding value in storage representation: []map[string]interface{}
// for a bound entity collection, map[string]interface{} for a bound single entity,
// nil for unbound functions. Args hold runtime values.
type Invocation struct {
	Function *Function
	Bound    interface{}
	Args     map[string]interface{}
	// EntitySet reads every row of an entity set in storage representation
	EntitySet func(ctx context.Context, name string) ([]map[string]interface{}, error)
}

// FunctionHandler computes a function result.
// Collections are returned in storage representation: []map[string]interface{}
// for entities and complex values, []interface{} for primitive and enum values.
type FunctionHandler func(ctx context.Context, inv *Invocation) (interface{}, error)

// Function a side-effect free operation; bound functions take the current resource
// as binding parameter, unbound ones are exposed as function imports.
type Function struct {
	Namespace   string
	Name        string
	Bound       bool
	BindingType TypeRef
	Parameters  []Parameter
	ReturnType  TypeRef
	Composable  bool
	// EntitySet names the set returned entities belong to
	EntitySet string
	Handler   FunctionHandler
}

// QualifiedName returns Namespace.Name
func (f *Function) QualifiedName() string { return f.Namespace + "." + f.Name }

// Parameter looks up a non-binding parameter
func (f *Function) Parameter(name string) (Parameter, bool) {
	for _, p := range f.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Model is an immutable, validated schema
type Model struct {
	Namespace string

	enums     map[string]*EnumType
	complexes map[string]*ComplexType
	entities  map[string]*EntityType
	sets      map[string]*EntitySet
	functions []*Function

	// declaration order, for stable $metadata and service documents
	enumOrder    []*EnumType
	complexOrder []*ComplexType
	entityOrder  []*EntityType
	setOrder     []*EntitySet
}

// EntitySet looks up an entity set
func (m *Model) EntitySet(name string) (*EntitySet, bool) {
	s, ok := m.sets[name]
	return s, ok
}

// EntitySets returns entity sets in declaration order
func (m *Model) EntitySets() []*EntitySet { return m.setOrder }

// EntityTypes returns entity types in declaration order
func (m *Model) EntityTypes() []*EntityType { return m.entityOrder }

// ComplexTypes returns complex types in declaration order
func (m *Model) ComplexTypes() []*ComplexType { return m.complexOrder }

// EnumTypes returns enum types in declaration order
func (m *Model) EnumTypes() []*EnumType { return m.enumOrder }

// Functions returns all functions in declaration order
func (m *Model) Functions() []*Function { return m.functions }

// EnumType looks up an enum type by qualified name
func (m *Model) EnumType(qualified string) (*EnumType, bool) {
	e, ok := m.enums[qualified]
	return e, ok
}

// ComplexType looks up a complex type by qualified name
func (m *Model) ComplexType(qualified string) (*ComplexType, bool) {
	c, ok := m.complexes[qualified]
	return c, ok
}

// EntityType looks up an entity type by qualified name
func (m *Model) EntityType(qualified string) (*EntityType, bool) {
	e, ok := m.entities[qualified]
	return e, ok
}

// FindType resolves a qualified type name (primitive, enum, complex or entity)
func (m *Model) FindType(qualified string) (TypeRef, bool) {
	name, collection := ParseTypeName(qualified)
	var ref TypeRef
	switch {
	case primitiveKinds[name] != "":
		ref = Primitive(primitiveKinds[name])
	case m.enums[name] != nil:
		ref = m.enums[name].Ref()
	case m.complexes[name] != nil:
		ref = m.complexes[name].Ref()
	case m.entities[name] != nil:
		ref = m.entities[name].Ref()
	default:
		return TypeRef{}, false
	}
	ref.Collection = collection
	return ref, true
}

// DerivedTypes returns et and every type inheriting from it
func (m *Model) DerivedTypes(et *EntityType) []*EntityType {
	var out []*EntityType
	for _, t := range m.entityOrder {
		if t.IsDerivedFrom(et) {
			out = append(out, t)
		}
	}
	return out
}

// UnboundFunction looks up a function import by name, qualified or not
func (m *Model) UnboundFunction(name string) (*Function, bool) {
	for _, f := range m.functions {
		if !f.Bound && (f.Name == name || f.QualifiedName() == name) {
			return f, true
		}
	}
	return nil, false
}

// BoundFunctions returns the overloads of a namespace-qualified bound function
func (m *Model) BoundFunctions(qualified string) []*Function {
	var out []*Function
	for _, f := range m.functions {
		if f.Bound && f.QualifiedName() == qualified {
			out = append(out, f)
		}
	}
	return out
}

// IsAssignable reports whether a value of type from can be used where to is expected.
// Entity types are covariant; all other types must match exactly.
func (m *Model) IsAssignable(from, to TypeRef) bool {
	if from.Collection != to.Collection || from.Kind != to.Kind {
		return false
	}
	if from.Kind != KindEntity {
		return from.Name == to.Name
	}
	f, ok1 := m.entities[from.Name]
	t, ok2 := m.entities[to.Name]
	return ok1 && ok2 && f.IsDerivedFrom(t)
}
