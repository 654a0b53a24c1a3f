package filter

import (
	"github.com/kasuganosora/odatacount/pkg/edm"
)

// OrderItem one key of an $orderby clause
type OrderItem struct {
	Expr Expr
	Desc bool
}

// OrderBy a bound $orderby clause
type OrderBy struct {
	Items   []OrderItem
	Element edm.TypeRef
}

// CompileOrderBy parses and binds "expr [asc|desc], ..." against element
func CompileOrderBy(m *edm.Model, text string, element edm.TypeRef) (*OrderBy, error) {
	toks, err := lex(m, text)
	if err != nil {
		return nil, err
	}
	if element.Collection {
		element = element.Elem()
	}
	p := &parser{toks: toks}
	b := &binder{model: m, element: element}
	out := &OrderBy{Element: element}

	if p.peek().kind == tokEOF {
		return nil, invalid("empty $orderby")
	}
	for {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := b.bind(e); err != nil {
			return nil, err
		}
		if t := e.Type(); t.Kind == edm.KindComplex || t.Kind == edm.KindEntity {
			return nil, invalid("cannot order by %s of type %s", e, t)
		}

		item := OrderItem{Expr: e}
		if t := p.peek(); t.kind == tokIdent && (t.text == "asc" || t.text == "desc") {
			p.next()
			item.Desc = t.text == "desc"
		}
		out.Items = append(out.Items, item)

		if p.peek().kind == tokEOF {
			return out, nil
		}
		if err := p.expect(tokComma, "','"); err != nil {
			return nil, err
		}
	}
}

// Compare orders two elements in runtime representation. Nulls sort first.
func (o *OrderBy) Compare(a, b interface{}) (int, error) {
	for _, item := range o.Items {
		x, err := eval(item.Expr, a)
		if err != nil {
			return 0, err
		}
		y, err := eval(item.Expr, b)
		if err != nil {
			return 0, err
		}

		var c int
		switch {
		case x == nil && y == nil:
		case x == nil:
			c = -1
		case y == nil:
			c = 1
		default:
			c, _ = compare(x, y)
		}
		if item.Desc {
			c = -c
		}
		if c != 0 {
			return c, nil
		}
	}
	return 0, nil
}
