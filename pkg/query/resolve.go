package query

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

// node the resource addressed by a path prefix.
//
// An entity collection read straight from a table stays lazy: ds, set and base
// describe the rows and nothing is loaded until a segment needs them.
type node struct {
	typ edm.TypeRef

	lazy bool
	ds   domain.CountableDataSource
	base domain.Filter

	// set stores the entities, if known; declared is the type of rows without a type discriminator
	set      *edm.EntitySet
	declared *edm.EntityType

	rows  []domain.Row
	row   domain.Row
	value interface{}
}

func (n *node) isEntityCollection() bool {
	return n.typ.Kind == edm.KindEntity && n.typ.Collection
}

// resolve walks the resource segments of p, stopping before $count
func (e *Engine) resolve(ctx context.Context, p *uri.Path) (*node, error) {
	var n *node
	var err error
	for _, seg := range p.Segments {
		switch seg.Kind {
		case uri.SegmentEntitySet:
			n, err = e.entitySet(seg.EntitySet, domain.Filter{})
		case uri.SegmentKey:
			n, err = e.key(ctx, n, seg)
		case uri.SegmentTypeCast:
			n, err = e.cast(n, seg)
		case uri.SegmentProperty:
			n, err = e.property(n, seg)
		case uri.SegmentNavigation:
			n, err = e.navigate(ctx, n, seg)
		case uri.SegmentFunction:
			n, err = e.invoke(ctx, n, seg)
		case uri.SegmentCount:
			return n, nil
		}
		if err != nil {
			return nil, err
		}
	}
	if n == nil {
		return nil, fmt.Errorf("empty path")
	}
	return n, nil
}

func (e *Engine) entitySet(set *edm.EntitySet, base domain.Filter) (*node, error) {
	if set == nil {
		return nil, notSupported("entities without an entity set")
	}
	ds, err := e.router.Route(set.Name)
	if err != nil {
		return nil, err
	}
	return &node{
		typ:      edm.CollectionOf(set.EntityType.Ref()),
		lazy:     true,
		ds:       ds,
		base:     base,
		set:      set,
		declared: set.EntityType,
	}, nil
}

// load materialises a lazy entity collection
func (e *Engine) load(ctx context.Context, n *node) error {
	if !n.lazy {
		return nil
	}
	rows, _, err := n.ds.Filter(ctx, n.set.Name, n.base, 0, 0)
	if err != nil {
		return fmt.Errorf("read %s: %w", n.set.Name, err)
	}
	n.rows = rows
	n.lazy = false
	return nil
}

func (e *Engine) key(ctx context.Context, n *node, seg uri.Segment) (*node, error) {
	out := &node{typ: seg.Type, set: n.set, declared: n.declared}
	if n.lazy {
		parts := make([]domain.Filter, 0, len(seg.Key)+1)
		parts = append(parts, n.base)
		for name, v := range seg.Key {
			parts = append(parts, domain.Filter{Field: name, Operator: "=", Value: v})
		}
		rows, _, err := n.ds.Filter(ctx, n.set.Name, domain.And(parts...), 0, 1)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", n.set.Name, err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("%w: %s%s", ErrEntityNotFound, n.set.Name, seg.Name)
		}
		out.row = rows[0]
		return out, nil
	}

	for _, row := range n.rows {
		if matchesKey(row, seg.Key) {
			out.row = row
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, seg.Name)
}

func matchesKey(row domain.Row, key map[string]interface{}) bool {
	for name, v := range key {
		rv, ok := row[name]
		if !ok || rv == nil || domain.KeyString(rv) != domain.KeyString(v) {
			return false
		}
	}
	return true
}

// rowType returns the entity type of a stored row
func (e *Engine) rowType(n *node, row domain.Row) *edm.EntityType {
	if name, ok := row[domain.RowTypeKey].(string); ok && name != "" {
		if et, ok := e.model.EntityType(name); ok {
			return et
		}
	}
	return n.declared
}

// typeFilter selects the rows of set that are instances of et
func (e *Engine) typeFilter(set *edm.EntitySet, et *edm.EntityType) domain.Filter {
	if set.EntityType.IsDerivedFrom(et) {
		return domain.Filter{}
	}
	var names []interface{}
	for _, t := range e.model.DerivedTypes(et) {
		names = append(names, t.QualifiedName())
	}
	return domain.Filter{Field: domain.RowTypeKey, Operator: "IN", Value: names}
}

func (e *Engine) cast(n *node, seg uri.Segment) (*node, error) {
	et := seg.EntityType
	out := *n
	out.typ = seg.Type

	switch {
	case n.lazy:
		out.base = domain.And(n.base, e.typeFilter(n.set, et))
	case n.typ.Collection:
		out.rows = make([]domain.Row, 0, len(n.rows))
		for _, row := range n.rows {
			if e.rowType(n, row).IsDerivedFrom(et) {
				out.rows = append(out.rows, row)
			}
		}
	default:
		if !e.rowType(n, n.row).IsDerivedFrom(et) {
			return nil, fmt.Errorf("%w: entity is not of type %s", ErrEntityNotFound, et.QualifiedName())
		}
	}
	return &out, nil
}

func (e *Engine) property(n *node, seg uri.Segment) (*node, error) {
	var src map[string]interface{}
	switch {
	case n.row != nil:
		src = n.row
	default:
		obj, ok := n.value.(map[string]interface{})
		if !ok && n.value != nil {
			return nil, fmt.Errorf("property %s: expected a structured value, got %T", seg.Name, n.value)
		}
		src = obj
	}
	return &node{typ: seg.Type, value: src[seg.Property.Name]}, nil
}

func (e *Engine) navigate(ctx context.Context, n *node, seg uri.Segment) (*node, error) {
	nav := seg.Navigation
	if seg.EntitySet == nil {
		return nil, notSupported("navigation %s has no target entity set", nav.Name)
	}
	keys := nav.Target.KeyProperties()
	if len(keys) != 1 {
		return nil, notSupported("navigation %s: composite keys", nav.Name)
	}
	keyName := keys[0].Name

	var base domain.Filter
	switch {
	case nav.KeysField != "":
		related := n.row[nav.KeysField]
		if !nav.Collection {
			if related == nil {
				return nil, fmt.Errorf("%w: %s is null", ErrEntityNotFound, nav.Name)
			}
			base = domain.Filter{Field: keyName, Operator: "=", Value: related}
			break
		}
		values, ok := toSlice(related)
		if !ok && related != nil {
			return nil, fmt.Errorf("navigation %s: invalid key list %T", nav.Name, related)
		}
		if len(values) == 0 {
			return &node{typ: seg.Type, set: seg.EntitySet, declared: seg.EntitySet.EntityType, rows: []domain.Row{}}, nil
		}
		base = domain.Filter{Field: keyName, Operator: "IN", Value: values}
	case nav.ForeignKey != "":
		srcKeys := e.rowType(n, n.row).KeyProperties()
		if len(srcKeys) != 1 {
			return nil, notSupported("navigation %s: composite source keys", nav.Name)
		}
		base = domain.Filter{Field: nav.ForeignKey, Operator: "=", Value: n.row[srcKeys[0].Name]}
	default:
		return nil, notSupported("navigation %s has no storage mapping", nav.Name)
	}

	// navigations to a derived type only reach instances of it
	base = domain.And(base, e.typeFilter(seg.EntitySet, nav.Target))

	out, err := e.entitySet(seg.EntitySet, base)
	if err != nil {
		return nil, err
	}
	out.typ = seg.Type
	if nav.Collection {
		return out, nil
	}

	rows, _, err := out.ds.Filter(ctx, out.set.Name, out.base, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", out.set.Name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, nav.Name)
	}
	return &node{typ: seg.Type, set: out.set, declared: out.declared, row: rows[0]}, nil
}

func (e *Engine) invoke(ctx context.Context, n *node, seg uri.Segment) (*node, error) {
	f := seg.Function
	inv := &edm.Invocation{
		Function:  f,
		Args:      seg.Args,
		EntitySet: e.loadEntitySet,
	}
	if f.Bound {
		switch {
		case n.isEntityCollection():
			if err := e.load(ctx, n); err != nil {
				return nil, err
			}
			bound := make([]map[string]interface{}, len(n.rows))
			for i, row := range n.rows {
				bound[i] = row
			}
			inv.Bound = bound
		case n.row != nil:
			inv.Bound = map[string]interface{}(n.row)
		default:
			inv.Bound = n.value
		}
	}

	res, err := f.Handler(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", f.QualifiedName(), err)
	}

	out := &node{typ: f.ReturnType}
	if f.ReturnType.Kind != edm.KindEntity {
		out.value = res
		return out, nil
	}

	out.declared, _ = e.model.EntityType(f.ReturnType.Name)
	out.set = seg.EntitySet
	if !f.ReturnType.Collection {
		row, ok := toRow(res)
		if !ok {
			return nil, fmt.Errorf("%w: function %s returned no entity", ErrEntityNotFound, f.QualifiedName())
		}
		out.row = row
		return out, nil
	}
	items, ok := toSlice(res)
	if !ok && res != nil {
		return nil, fmt.Errorf("function %s: expected an entity collection, got %T", f.QualifiedName(), res)
	}
	out.rows = make([]domain.Row, 0, len(items))
	for _, item := range items {
		row, ok := toRow(item)
		if !ok {
			return nil, fmt.Errorf("function %s: expected an entity, got %T", f.QualifiedName(), item)
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func (e *Engine) loadEntitySet(ctx context.Context, name string) ([]map[string]interface{}, error) {
	ds, err := e.router.Route(name)
	if err != nil {
		return nil, err
	}
	rows, _, err := ds.Filter(ctx, name, domain.Filter{}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

func toRow(v interface{}) (domain.Row, bool) {
	switch r := v.(type) {
	case domain.Row:
		return r, r != nil
	case map[string]interface{}:
		return domain.Row(r), r != nil
	}
	return nil, false
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return s, true
	case []map[string]interface{}:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []domain.Row:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
