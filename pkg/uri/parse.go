package uri

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

// Parse resolves an escaped resource path (relative to the service root).
// query supplies parameter alias values (@p).
func Parse(m *edm.Model, path string, query url.Values) (*Path, error) {
	raws, err := Split(path)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, badRequest("empty resource path")
	}

	r := &resolver{model: m, query: query, path: &Path{}}
	for i, raw := range raws {
		if err := r.resolve(raw, i == len(raws)-1); err != nil {
			return nil, err
		}
		if raw.HasKey {
			if err := r.resolveResultKey(raw); err != nil {
				return nil, err
			}
		}
	}
	return r.path, nil
}

type resolver struct {
	model *edm.Model
	query url.Values
	path  *Path

	cur    edm.TypeRef
	set    *edm.EntitySet
	entity *edm.EntityType
	// keyed is true after a key predicate addressed a single entity of a collection
	keyed bool
}

func (r *resolver) push(seg Segment) {
	seg.EntitySet = r.set
	if seg.Type.Kind == edm.KindEntity {
		seg.EntityType = r.entity
	}
	r.cur = seg.Type
	r.path.Segments = append(r.path.Segments, seg)
	r.path.Target = seg.Type
	r.path.EntitySet = r.set
}

func (r *resolver) resolve(raw RawSegment, last bool) error {
	if len(r.path.Segments) == 0 {
		return r.resolveRoot(raw)
	}

	if raw.Name == "$count" {
		return r.resolveCount(raw, last)
	}
	if strings.HasPrefix(raw.Name, "$") {
		return badRequest("segment %s is not supported", raw.Name)
	}
	if prev := r.path.Last(); prev.Kind == SegmentFunction && !prev.Function.Composable {
		return badRequest("function %s is not composable", prev.Function.Name)
	}

	switch {
	case r.cur.Kind == edm.KindEntity && r.cur.Collection:
		return r.resolveOnEntityCollection(raw)
	case r.cur.Kind == edm.KindEntity:
		return r.resolveOnEntity(raw)
	case r.cur.Kind == edm.KindComplex && !r.cur.Collection:
		return r.resolveOnComplex(raw)
	}
	return badRequest("segment %s cannot follow a resource of type %s", raw.Name, r.cur)
}

func (r *resolver) resolveRoot(raw RawSegment) error {
	if set, ok := r.model.EntitySet(raw.Name); ok {
		r.set = set
		r.entity = set.EntityType
		r.push(Segment{Kind: SegmentEntitySet, Name: raw.Name, Type: edm.CollectionOf(set.EntityType.Ref())})
		if raw.HasArgs {
			return r.resolveKey(raw.Args, false)
		}
		return nil
	}

	if f, ok := r.model.UnboundFunction(raw.Name); ok {
		if !raw.HasArgs {
			return badRequest("function %s must be called with parentheses", raw.Name)
		}
		return r.pushFunction(raw, f)
	}

	if strings.HasPrefix(raw.Name, "$") {
		return badRequest("segment %s cannot start a resource path", raw.Name)
	}
	return notFound("no entity set or function import named '%s'", raw.Name)
}

func (r *resolver) resolveCount(raw RawSegment, last bool) error {
	if raw.HasArgs {
		return badRequest("$count takes no arguments")
	}
	if !last {
		return badRequest("$count must be the last segment")
	}
	if !r.cur.Collection {
		return badRequest("$count can only follow a collection, not %s", r.cur)
	}

	if err := r.path.CheckCountable(); err != nil {
		return err
	}

	r.path.IsCount = true
	r.path.Segments = append(r.path.Segments, Segment{Kind: SegmentCount, Name: "$count", Type: edm.Primitive(edm.Int64), EntitySet: r.set})
	return nil
}

func (r *resolver) resolveOnEntityCollection(raw RawSegment) error {
	if strings.Contains(raw.Name, ".") {
		if et, ok := r.model.EntityType(raw.Name); ok {
			if err := r.pushCast(raw.Name, et); err != nil {
				return err
			}
			if raw.HasArgs {
				return r.resolveKey(raw.Args, false)
			}
			return nil
		}
		if overloads := r.model.BoundFunctions(raw.Name); len(overloads) > 0 {
			return r.resolveBoundFunction(raw, overloads)
		}
	}
	if raw.HasArgs {
		return notFound("no type or bound function named '%s'", raw.Name)
	}
	// key as segment
	return r.resolveKey(raw.Name, true)
}

func (r *resolver) resolveOnEntity(raw RawSegment) error {
	if strings.Contains(raw.Name, ".") {
		if et, ok := r.model.EntityType(raw.Name); ok {
			if raw.HasArgs {
				return badRequest("a key cannot follow a single entity")
			}
			return r.pushCast(raw.Name, et)
		}
		if overloads := r.model.BoundFunctions(raw.Name); len(overloads) > 0 {
			return r.resolveBoundFunction(raw, overloads)
		}
		return notFound("no type or bound function named '%s'", raw.Name)
	}

	if p, ok := r.entity.Property(raw.Name); ok {
		if raw.HasArgs {
			return badRequest("property %s does not take a key", raw.Name)
		}
		r.set = nil
		r.entity = nil
		r.push(Segment{Kind: SegmentProperty, Name: raw.Name, Type: p.Type, Property: p})
		return nil
	}

	if n, ok := r.entity.NavigationProperty(raw.Name); ok {
		r.set = nil
		if n.TargetSet != "" {
			r.set, _ = r.model.EntitySet(n.TargetSet)
		}
		r.entity = n.Target
		r.keyed = false
		r.push(Segment{Kind: SegmentNavigation, Name: raw.Name, Type: n.Type(), Navigation: n})
		if raw.HasArgs {
			if !n.Collection {
				return badRequest("navigation property %s is single-valued and takes no key", raw.Name)
			}
			return r.resolveKey(raw.Args, false)
		}
		return nil
	}

	return notFound("type %s has no property named '%s'", r.entity.QualifiedName(), raw.Name)
}

func (r *resolver) resolveOnComplex(raw RawSegment) error {
	c, ok := r.model.ComplexType(r.cur.Name)
	if !ok {
		return notFound("unknown complex type %s", r.cur.Name)
	}
	p, ok := c.Property(raw.Name)
	if !ok {
		return notFound("type %s has no property named '%s'", c.QualifiedName(), raw.Name)
	}
	if raw.HasArgs {
		return badRequest("property %s does not take a key", raw.Name)
	}
	r.push(Segment{Kind: SegmentProperty, Name: raw.Name, Type: p.Type, Property: p})
	return nil
}

func (r *resolver) pushCast(name string, et *edm.EntityType) error {
	if !et.IsDerivedFrom(r.entity) {
		return badRequest("type %s is not derived from %s", name, r.entity.QualifiedName())
	}
	r.entity = et
	t := et.Ref()
	t.Collection = r.cur.Collection
	r.push(Segment{Kind: SegmentTypeCast, Name: name, Type: t})
	return nil
}

func (r *resolver) resolveBoundFunction(raw RawSegment, overloads []*edm.Function) error {
	if !raw.HasArgs {
		return badRequest("function %s must be called with parentheses", raw.Name)
	}
	// the most specific binding type wins
	var best *edm.Function
	for _, f := range overloads {
		if !r.model.IsAssignable(r.cur, f.BindingType) {
			continue
		}
		if best == nil || r.model.IsAssignable(f.BindingType, best.BindingType) {
			best = f
		}
	}
	if best == nil {
		return badRequest("function %s cannot be bound to %s", raw.Name, r.cur)
	}
	return r.pushFunction(raw, best)
}

func (r *resolver) pushFunction(raw RawSegment, f *edm.Function) error {
	args, err := r.bindParameters(f, raw.Args)
	if err != nil {
		return err
	}

	r.set = nil
	r.entity = nil
	if f.ReturnType.Kind == edm.KindEntity {
		r.entity, _ = r.model.EntityType(f.ReturnType.Name)
		if f.EntitySet != "" {
			r.set, _ = r.model.EntitySet(f.EntitySet)
		}
	}
	r.keyed = false
	r.push(Segment{Kind: SegmentFunction, Name: raw.String(), Type: f.ReturnType, Function: f, Args: args})
	return nil
}

// resolveResultKey applies the key predicate of Function(...)(key)
func (r *resolver) resolveResultKey(raw RawSegment) error {
	last := r.path.Segments[len(r.path.Segments)-1]
	if last.Kind != SegmentFunction {
		return badRequest("segment %s: only a function call can be followed by a second parenthesised group", raw.Name)
	}
	if !last.Function.Composable {
		return badRequest("function %s is not composable and cannot be followed by a key predicate", last.Function.Name)
	}
	return r.resolveKey(raw.Key, false)
}

func (r *resolver) bindParameters(f *edm.Function, args string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(f.Parameters))
	for _, item := range splitList(args) {
		name, text, ok := splitAssignment(item)
		if !ok {
			return nil, badRequest("function %s: parameters must be passed as name=value, got %q", f.Name, item)
		}
		p, ok := f.Parameter(name)
		if !ok {
			return nil, badRequest("function %s has no parameter named '%s'", f.Name, name)
		}
		if _, dup := out[name]; dup {
			return nil, badRequest("function %s: parameter %s passed twice", f.Name, name)
		}

		if strings.HasPrefix(text, "@") {
			// an alias without a value is null
			text = r.query.Get(text)
			if text == "" {
				text = "null"
			}
		}
		lit, err := edm.ParseLiteral(r.model, text)
		if err != nil {
			return nil, badRequest("function %s: parameter %s: %v", f.Name, name, err)
		}
		v, err := r.model.Convert(lit, p.Type)
		if err != nil {
			return nil, badRequest("function %s: parameter %s: %v", f.Name, name, err)
		}
		if v == nil && !p.Nullable {
			return nil, badRequest("function %s: parameter %s cannot be null", f.Name, name)
		}
		out[name] = v
	}

	for _, p := range f.Parameters {
		if _, ok := out[p.Name]; !ok {
			if !p.Nullable {
				return nil, badRequest("function %s: missing parameter %s", f.Name, p.Name)
			}
			out[p.Name] = nil
		}
	}
	return out, nil
}

// resolveKey parses a key predicate (or a key-as-segment value) and addresses a single entity
func (r *resolver) resolveKey(args string, asSegment bool) error {
	if r.keyed || !r.cur.Collection || r.cur.Kind != edm.KindEntity {
		return badRequest("a key predicate cannot follow %s", r.cur)
	}
	keyProps := r.entity.KeyProperties()
	key := make(map[string]interface{}, len(keyProps))

	if asSegment {
		if len(keyProps) != 1 {
			return badRequest("key-as-segment requires a single key property")
		}
		v, err := r.keyValue(keyProps[0], args, true)
		if err != nil {
			return err
		}
		key[keyProps[0].Name] = v
	} else {
		items := splitList(args)
		if len(items) == 0 {
			return badRequest("empty key predicate")
		}
		if len(items) == 1 {
			if _, _, named := splitAssignment(items[0]); !named {
				if len(keyProps) != 1 {
					return badRequest("type %s has a composite key; name every key property", r.entity.QualifiedName())
				}
				v, err := r.keyValue(keyProps[0], items[0], false)
				if err != nil {
					return err
				}
				key[keyProps[0].Name] = v
			}
		}
		if len(key) == 0 {
			for _, item := range items {
				name, text, ok := splitAssignment(item)
				if !ok {
					return badRequest("invalid key predicate %q", args)
				}
				var prop *edm.Property
				for _, kp := range keyProps {
					if kp.Name == name {
						prop = kp
					}
				}
				if prop == nil {
					return badRequest("'%s' is not a key property of %s", name, r.entity.QualifiedName())
				}
				v, err := r.keyValue(prop, text, false)
				if err != nil {
					return err
				}
				key[name] = v
			}
			if len(key) != len(keyProps) {
				return badRequest("key predicate must name all key properties of %s", r.entity.QualifiedName())
			}
		}
	}

	r.keyed = true
	t := r.cur.Elem()
	r.push(Segment{Kind: SegmentKey, Name: fmt.Sprintf("(%s)", args), Type: t, Key: key})
	return nil
}

func (r *resolver) keyValue(p *edm.Property, text string, asSegment bool) (interface{}, error) {
	if asSegment && p.Type.PrimitiveKind() == edm.String {
		return text, nil
	}
	lit, err := edm.ParseLiteral(r.model, text)
	if err != nil {
		if asSegment {
			return nil, notFound("no property, type or function named '%s'", text)
		}
		return nil, badRequest("invalid key value %q: %v", text, err)
	}
	v, err := r.model.Convert(lit, p.Type)
	if err != nil || v == nil {
		return nil, badRequest("invalid value %s for key property %s", text, p.Name)
	}
	return v, nil
}
