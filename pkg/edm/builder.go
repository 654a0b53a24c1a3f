package edm

import (
	"errors"
	"fmt"
)

// Builder assembles a Model. Methods return the created element so callers
// can keep references for later type refs; Build validates the result.
type Builder struct {
	namespace string
	model     *Model
	errs      []error
}

// NewBuilder creates a builder whose types live in namespace
func NewBuilder(namespace string) *Builder {
	return &Builder{
		namespace: namespace,
		model: &Model{
			Namespace: namespace,
			enums:     make(map[string]*EnumType),
			complexes: make(map[string]*ComplexType),
			entities:  make(map[string]*EntityType),
			sets:      make(map[string]*EntitySet),
		},
	}
}

func (b *Builder) errorf(format string, args ...interface{}) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *Builder) claim(qualified string) {
	m := b.model
	if m.enums[qualified] != nil || m.complexes[qualified] != nil || m.entities[qualified] != nil {
		b.errorf("duplicate type name %s", qualified)
	}
}

// EnumType declares an enum type
func (b *Builder) EnumType(name string, flags bool, members ...EnumMember) *EnumType {
	e := &EnumType{Namespace: b.namespace, Name: name, IsFlags: flags, Members: members}
	b.claim(e.QualifiedName())
	seen := make(map[string]bool)
	for _, m := range members {
		if seen[m.Name] {
			b.errorf("enum %s: duplicate member %s", e.QualifiedName(), m.Name)
		}
		seen[m.Name] = true
	}
	b.model.enums[e.QualifiedName()] = e
	b.model.enumOrder = append(b.model.enumOrder, e)
	return e
}

// ComplexType declares a complex type
func (b *Builder) ComplexType(name string, props ...*Property) *ComplexType {
	c := &ComplexType{Namespace: b.namespace, Name: name, Properties: props}
	b.claim(c.QualifiedName())
	b.model.complexes[c.QualifiedName()] = c
	b.model.complexOrder = append(b.model.complexOrder, c)
	return c
}

// EntityType declares a root entity type with the given key
func (b *Builder) EntityType(name string, key []string, props ...*Property) *EntityType {
	e := &EntityType{Namespace: b.namespace, Name: name, Key: key, Properties: props}
	b.claim(e.QualifiedName())
	b.model.entities[e.QualifiedName()] = e
	b.model.entityOrder = append(b.model.entityOrder, e)
	return e
}

// DerivedEntityType declares an entity type inheriting from base
func (b *Builder) DerivedEntityType(name string, base *EntityType, props ...*Property) *EntityType {
	e := b.EntityType(name, nil, props...)
	if base == nil {
		b.errorf("entity type %s: nil base type", e.QualifiedName())
	}
	e.BaseType = base
	return e
}

// EntitySet declares a countable entity set
func (b *Builder) EntitySet(name string, et *EntityType) *EntitySet {
	if _, dup := b.model.sets[name]; dup {
		b.errorf("duplicate entity set %s", name)
	}
	s := &EntitySet{Name: name, EntityType: et, Countable: true}
	b.model.sets[name] = s
	b.model.setOrder = append(b.model.setOrder, s)
	return s
}

// Function declares a function; an empty namespace defaults to the builder's
func (b *Builder) Function(f *Function) *Function {
	if f.Namespace == "" {
		f.Namespace = b.namespace
	}
	b.model.functions = append(b.model.functions, f)
	return f
}

// Build validates and returns the model
func (b *Builder) Build() (*Model, error) {
	m := b.model

	for _, e := range m.entityOrder {
		b.validateEntityType(e)
	}
	for _, c := range m.complexOrder {
		for _, p := range c.Properties {
			b.validateTypeRef(c.QualifiedName()+"."+p.Name, p.Type)
		}
	}
	for _, s := range m.setOrder {
		if s.EntityType == nil || m.entities[s.EntityType.QualifiedName()] != s.EntityType {
			b.errorf("entity set %s: entity type is not part of the model", s.Name)
		}
	}
	b.validateFunctions()

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return m, nil
}

func (b *Builder) validateEntityType(e *EntityType) {
	m := b.model
	name := e.QualifiedName()

	// a cycle would make Root loop; inheritance depth is bounded by the type count
	depth := 0
	for t := e.BaseType; t != nil; t = t.BaseType {
		if depth++; depth > len(m.entityOrder) || t == e {
			b.errorf("entity type %s: inheritance cycle", name)
			return
		}
		if m.entities[t.QualifiedName()] != t {
			b.errorf("entity type %s: base type %s is not part of the model", name, t.QualifiedName())
			return
		}
	}

	if e.BaseType == nil {
		if len(e.Key) == 0 {
			b.errorf("entity type %s: no key", name)
		}
		for _, k := range e.Key {
			p, ok := e.Property(k)
			if !ok {
				b.errorf("entity type %s: key property %s not found", name, k)
				continue
			}
			if p.Type.Collection || p.Type.Kind != KindPrimitive {
				b.errorf("entity type %s: key property %s must be a single primitive", name, k)
			}
		}
	} else if len(e.Key) > 0 {
		b.errorf("entity type %s: derived types inherit the key of %s", name, e.Root().QualifiedName())
	}

	seen := make(map[string]bool)
	for t := e; t != nil; t = t.BaseType {
		for _, p := range t.Properties {
			if t == e {
				if seen[p.Name] {
					b.errorf("entity type %s: duplicate property %s", name, p.Name)
				}
				b.validateTypeRef(name+"."+p.Name, p.Type)
			}
			seen[p.Name] = true
		}
	}
	for _, n := range e.NavigationProperties {
		if seen[n.Name] {
			b.errorf("entity type %s: duplicate property %s", name, n.Name)
		}
		seen[n.Name] = true
		if n.Target == nil || m.entities[n.Target.QualifiedName()] != n.Target {
			b.errorf("navigation %s.%s: target type is not part of the model", name, n.Name)
			continue
		}
		if n.TargetSet != "" {
			if s, ok := b.model.sets[n.TargetSet]; !ok || !n.Target.IsDerivedFrom(s.EntityType) {
				b.errorf("navigation %s.%s: target set %s does not hold %s", name, n.Name, n.TargetSet, n.Target.QualifiedName())
			}
		}
		if n.Collection && n.KeysField == "" && n.ForeignKey == "" {
			b.errorf("navigation %s.%s: collection navigation needs a key field or a foreign key", name, n.Name)
		}
	}
}

func (b *Builder) validateTypeRef(owner string, t TypeRef) {
	if _, ok := b.model.FindType(t.Name); !ok {
		b.errorf("%s: unknown type %s", owner, t.Name)
		return
	}
	if t.Kind == KindEntity {
		b.errorf("%s: structural properties cannot be entity typed", owner)
	}
}

func (b *Builder) validateFunctions() {
	type sig struct{ name, binding string }
	seen := make(map[sig]bool)
	for _, f := range b.model.functions {
		name := f.QualifiedName()
		if f.Handler == nil {
			b.errorf("function %s: no handler", name)
		}
		if f.ReturnType.IsZero() {
			b.errorf("function %s: no return type", name)
		} else if _, ok := b.model.FindType(f.ReturnType.Name); !ok {
			b.errorf("function %s: unknown return type %s", name, f.ReturnType.Name)
		}
		if f.Bound {
			if f.BindingType.IsZero() {
				b.errorf("function %s: bound function without binding type", name)
			} else if _, ok := b.model.FindType(f.BindingType.Name); !ok {
				b.errorf("function %s: unknown binding type %s", name, f.BindingType.Name)
			}
		}
		for _, p := range f.Parameters {
			if _, ok := b.model.FindType(p.Type.Name); !ok {
				b.errorf("function %s: parameter %s has unknown type %s", name, p.Name, p.Type.Name)
			}
		}
		if f.EntitySet != "" {
			if _, ok := b.model.sets[f.EntitySet]; !ok {
				b.errorf("function %s: unknown entity set %s", name, f.EntitySet)
			}
		}
		key := sig{name, f.BindingType.String()}
		if seen[key] {
			b.errorf("function %s: duplicate overload for binding %s", name, f.BindingType)
		}
		seen[key] = true
	}
}
