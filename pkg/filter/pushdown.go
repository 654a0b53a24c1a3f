package filter

import (
	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/resource/util"
)

// storage keeps these kinds in a form whose native ordering matches runtime ordering
var pushdownKinds = map[edm.PrimitiveKind]bool{
	edm.String:  true,
	edm.Int32:   true,
	edm.Int64:   true,
	edm.Double:  true,
	edm.Decimal: true,
	edm.Boolean: true,
}

var flipped = map[Op]Op{OpEq: OpEq, OpNe: OpNe, OpGt: OpLt, OpGe: OpLe, OpLt: OpGt, OpLe: OpGe}

var sqlOps = map[Op]string{OpEq: "=", OpNe: "!=", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<="}

// ToDomainFilter translates b into a storage filter over entity rows.
// ok is false when any part of the expression has no storage equivalent;
// the caller then evaluates b in memory.
func ToDomainFilter(b *Bound) (domain.Filter, bool) {
	if b == nil {
		return domain.Filter{}, true
	}
	if b.Element.Kind != edm.KindEntity {
		return domain.Filter{}, false
	}
	return pushdown(b.Expr)
}

func pushdown(e Expr) (domain.Filter, bool) {
	switch x := e.(type) {
	case *MemberExpr:
		// a bare boolean property
		if field, ok := column(x); ok && isKind(x.T, edm.Boolean) {
			return domain.Filter{Field: field, Operator: "=", Value: true}, true
		}
	case *BinaryExpr:
		switch {
		case x.Op == OpAnd || x.Op == OpOr:
			l, ok := pushdown(x.L)
			if !ok {
				return domain.Filter{}, false
			}
			r, ok := pushdown(x.R)
			if !ok {
				return domain.Filter{}, false
			}
			if x.Op == OpAnd {
				return domain.Filter{LogicOp: "AND", SubFilters: []domain.Filter{l, r}}, true
			}
			return domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{l, r}}, true
		case x.Op.isComparison():
			return pushdownComparison(x)
		case x.Op == OpIn:
			return pushdownIn(x)
		}
	case *CallExpr:
		return pushdownLike(x)
	}
	return domain.Filter{}, false
}

func column(e Expr) (string, bool) {
	m, ok := e.(*MemberExpr)
	if !ok || len(m.Path) != 1 || m.T.Collection || m.T.Kind != edm.KindPrimitive {
		return "", false
	}
	if !pushdownKinds[m.T.PrimitiveKind()] {
		return "", false
	}
	return m.Path[0], true
}

func pushdownComparison(x *BinaryExpr) (domain.Filter, bool) {
	op := x.Op
	field, ok := column(x.L)
	other := x.R
	if !ok {
		if field, ok = column(x.R); !ok {
			return domain.Filter{}, false
		}
		op = flipped[op]
		other = x.L
	}
	lit, ok := other.(*LiteralExpr)
	if !ok {
		return domain.Filter{}, false
	}

	if lit.IsNull() {
		switch op {
		case OpEq:
			return domain.Filter{Field: field, Operator: "IS NULL"}, true
		case OpNe:
			return domain.Filter{Field: field, Operator: "IS NOT NULL"}, true
		}
		return domain.Filter{}, false
	}
	if !pushdownKinds[lit.T.PrimitiveKind()] {
		return domain.Filter{}, false
	}
	f := domain.Filter{Field: field, Operator: sqlOps[op], Value: lit.Value}
	if op == OpNe {
		// null ne 'x' holds, SQL drops NULL rows from !=
		return domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{f, {Field: field, Operator: "IS NULL"}}}, true
	}
	return f, true
}

func pushdownIn(x *BinaryExpr) (domain.Filter, bool) {
	field, ok := column(x.L)
	if !ok {
		return domain.Filter{}, false
	}
	items := x.R.(*ListExpr).Items
	values := make([]interface{}, 0, len(items))
	for _, item := range items {
		lit, ok := item.(*LiteralExpr)
		if !ok || lit.IsNull() || !pushdownKinds[lit.T.PrimitiveKind()] {
			return domain.Filter{}, false
		}
		values = append(values, lit.Value)
	}
	return domain.Filter{Field: field, Operator: "IN", Value: values}, true
}

func pushdownLike(x *CallExpr) (domain.Filter, bool) {
	if len(x.Args) != 2 {
		return domain.Filter{}, false
	}
	field, ok := column(x.Args[0])
	if !ok || !isKind(x.Args[0].Type(), edm.String) {
		return domain.Filter{}, false
	}
	lit, ok := x.Args[1].(*LiteralExpr)
	if !ok || lit.IsNull() {
		return domain.Filter{}, false
	}
	s := util.EscapeLike(lit.Value.(string))
	var pattern string
	switch x.Name {
	case "contains":
		pattern = "%" + s + "%"
	case "startswith":
		pattern = s + "%"
	case "endswith":
		pattern = "%" + s
	default:
		return domain.Filter{}, false
	}
	return domain.Filter{Field: field, Operator: "LIKE", Value: pattern}, true
}
