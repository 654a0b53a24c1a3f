package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/filter"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

// TypeAnnotation marks entities whose type differs from the collection's element type
const TypeAnnotation = "@odata.type"

// Result a materialised collection in JSON representation
type Result struct {
	Type      edm.TypeRef
	EntitySet *edm.EntitySet
	Value     []interface{}
	// Count is set for $count=true: matching elements before $skip and $top
	Count *int64
}

// SingleResult a materialised single resource; Value is nil for null
type SingleResult struct {
	Type      edm.TypeRef
	EntitySet *edm.EntitySet
	Value     interface{}
}

// Collection materialises the collection addressed by p with $filter,
// $orderby, $skip, $top, $count and $select applied
func (e *Engine) Collection(ctx context.Context, p *uri.Path, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{Top: -1}
	}
	if !p.IsCollection() {
		return nil, fmt.Errorf("%w: %s is not a collection", uri.ErrBadRequest, p.Target)
	}
	if opts.Count {
		if err := p.CheckCountable(); err != nil {
			return nil, err
		}
	}

	var bound *filter.Bound
	if opts.Filter != "" {
		b, err := filter.Compile(e.model, opts.Filter, p.Target)
		if err != nil {
			return nil, err
		}
		bound = b
	}
	var order *filter.OrderBy
	if opts.OrderBy != "" {
		o, err := filter.CompileOrderBy(e.model, opts.OrderBy, p.Target)
		if err != nil {
			return nil, err
		}
		order = o
	}
	selected, err := e.selection(p.Target.Elem(), opts.Select)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	defer e.begin()()

	n, err := e.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if n.lazy {
		if pf, ok := filter.ToDomainFilter(bound); ok {
			n.base = domain.And(n.base, pf)
			bound = nil
		}
	}

	elems, err := e.elements(ctx, n)
	if err != nil {
		return nil, err
	}
	if bound != nil {
		kept := elems[:0]
		for _, el := range elems {
			ok, err := bound.Match(el.norm)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, el)
			}
		}
		elems = kept
	}
	if order != nil {
		var sortErr error
		sort.SliceStable(elems, func(i, j int) bool {
			c, err := order.Compare(elems[i].norm, elems[j].norm)
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return c < 0
		})
		if sortErr != nil {
			return nil, sortErr
		}
	}

	res := &Result{Type: p.Target, EntitySet: p.EntitySet}
	if opts.Count {
		total := int64(len(elems))
		res.Count = &total
	}
	elems = page(elems, opts.Skip, opts.Top)

	res.Value = make([]interface{}, len(elems))
	for i, el := range elems {
		res.Value[i] = e.format(p.Target.Elem(), el, selected)
	}
	return res, nil
}

// Single materialises a single entity, property or function result
func (e *Engine) Single(ctx context.Context, p *uri.Path, opts *Options) (*SingleResult, error) {
	if p.IsCollection() {
		return nil, fmt.Errorf("%w: %s is a collection", uri.ErrBadRequest, p.Target)
	}
	var sel []string
	if opts != nil {
		sel = opts.Select
	}
	selected, err := e.selection(p.Target, sel)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	defer e.begin()()

	n, err := e.resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	res := &SingleResult{Type: p.Target, EntitySet: p.EntitySet}
	if n.row != nil {
		t := e.rowType(n, n.row).Ref()
		norm, err := e.model.Normalize(t, map[string]interface{}(n.row))
		if err != nil {
			return nil, err
		}
		res.Value = e.format(p.Target, element{raw: n.row, norm: norm, typ: t}, selected)
		return res, nil
	}
	if n.value == nil {
		return res, nil
	}
	norm, err := e.model.Normalize(n.typ, n.value)
	if err != nil {
		return nil, err
	}
	res.Value = e.format(p.Target, element{raw: n.value, norm: norm, typ: n.typ}, selected)
	return res, nil
}

func page(elems []element, skip, top int) []element {
	if skip >= len(elems) {
		return elems[:0]
	}
	elems = elems[skip:]
	if top >= 0 && top < len(elems) {
		elems = elems[:top]
	}
	return elems
}

// selection validates $select against a structured type; nil means every property
func (e *Engine) selection(t edm.TypeRef, items []string) (map[string]bool, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var has func(name string) bool
	switch t.Kind {
	case edm.KindEntity:
		et, _ := e.model.EntityType(t.Name)
		has = func(name string) bool {
			for _, d := range e.model.DerivedTypes(et) {
				if _, ok := d.Property(name); ok {
					return true
				}
			}
			return false
		}
	case edm.KindComplex:
		ct, _ := e.model.ComplexType(t.Name)
		has = func(name string) bool {
			_, ok := ct.Property(name)
			return ok
		}
	default:
		return nil, invalidOption("$select is not allowed on %s", t)
	}

	out := make(map[string]bool, len(items))
	for _, item := range items {
		if item == "*" {
			return nil, nil
		}
		if !has(item) {
			return nil, invalidOption("$select: type %s has no property '%s'", t.Name, item)
		}
		out[item] = true
	}
	return out, nil
}

// format renders an element as JSON, annotating entities of a derived type
func (e *Engine) format(declared edm.TypeRef, el element, selected map[string]bool) interface{} {
	v := e.model.Format(el.typ, el.norm)
	obj, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	if selected != nil {
		for k := range obj {
			if !selected[k] {
				delete(obj, k)
			}
		}
	}
	if el.typ.Kind == edm.KindEntity && el.typ.Name != declared.Name {
		obj[TypeAnnotation] = "#" + el.typ.Name
	}
	return obj
}
