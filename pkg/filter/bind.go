package filter

import (
	"strings"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

// Bound a type-checked expression over the elements of a collection
type Bound struct {
	Expr    Expr
	Element edm.TypeRef
	model   *edm.Model
}

// Compile parses and binds text in one step
func Compile(m *edm.Model, text string, element edm.TypeRef) (*Bound, error) {
	e, err := Parse(m, text)
	if err != nil {
		return nil, err
	}
	return Bind(m, e, element)
}

// Bind resolves member paths of e against element and type-checks every
// operator and function call. The expression must be boolean.
func Bind(m *edm.Model, e Expr, element edm.TypeRef) (*Bound, error) {
	if element.Collection {
		element = element.Elem()
	}
	b := &binder{model: m, element: element}
	if err := b.bind(e); err != nil {
		return nil, err
	}
	if t := e.Type(); !t.IsZero() && !isKind(t, edm.Boolean) {
		return nil, invalid("expression %s is of type %s, not Edm.Boolean", e, t)
	}
	return &Bound{Expr: e, Element: element, model: m}, nil
}

type binder struct {
	model   *edm.Model
	element edm.TypeRef
}

func isKind(t edm.TypeRef, k edm.PrimitiveKind) bool {
	return t.Kind == edm.KindPrimitive && !t.Collection && t.PrimitiveKind() == k
}

func isNumeric(t edm.TypeRef) bool {
	return t.Kind == edm.KindPrimitive && !t.Collection && t.PrimitiveKind().IsNumeric()
}

func (b *binder) bind(e Expr) error {
	switch x := e.(type) {
	case *LiteralExpr:
		return nil
	case *MemberExpr:
		return b.bindMember(x)
	case *UnaryExpr:
		return b.bindUnary(x)
	case *BinaryExpr:
		return b.bindBinary(x)
	case *CallExpr:
		return b.bindCall(x)
	case *ListExpr:
		return invalid("a list is only allowed after 'in'")
	}
	return invalid("unsupported expression %s", e)
}

func (b *binder) bindMember(x *MemberExpr) error {
	cur := b.element
	for i, name := range x.Path {
		if strings.Contains(name, ".") {
			return invalid("type casts in $filter are not supported: %s", name)
		}
		if cur.Collection {
			return invalid("collection-valued property %s cannot be used in $filter", strings.Join(x.Path[:i], "/"))
		}
		switch cur.Kind {
		case edm.KindEntity:
			et, _ := b.model.EntityType(cur.Name)
			if p, ok := et.Property(name); ok {
				cur = p.Type
				continue
			}
			if _, ok := et.NavigationProperty(name); ok {
				return invalid("navigation property %s cannot be used in $filter", name)
			}
			// properties of derived types are allowed; they are null on base instances
			if p, ok := b.derivedProperty(et, name); ok {
				cur = p.Type
				continue
			}
		case edm.KindComplex:
			ct, _ := b.model.ComplexType(cur.Name)
			if p, ok := ct.Property(name); ok {
				cur = p.Type
				continue
			}
		}
		return invalid("type %s has no property '%s'", cur, name)
	}
	if cur.Collection {
		return invalid("collection-valued property %s cannot be used in $filter", x)
	}
	x.T = cur
	return nil
}

func (b *binder) derivedProperty(et *edm.EntityType, name string) (*edm.Property, bool) {
	for _, d := range b.model.DerivedTypes(et) {
		if p, ok := d.Property(name); ok {
			return p, true
		}
	}
	return nil, false
}

func (b *binder) bindUnary(x *UnaryExpr) error {
	if err := b.bind(x.X); err != nil {
		return err
	}
	t := x.X.Type()
	switch x.Op {
	case OpNot:
		if !t.IsZero() && !isKind(t, edm.Boolean) {
			return invalid("'not' needs a boolean operand, got %s", t)
		}
		x.T = edm.Primitive(edm.Boolean)
	case OpNeg:
		if !t.IsZero() && !isNumeric(t) && !isKind(t, edm.Duration) {
			return invalid("'-' needs a numeric or duration operand, got %s", t)
		}
		x.T = t
	}
	return nil
}

func (b *binder) bindBinary(x *BinaryExpr) error {
	if err := b.bind(x.L); err != nil {
		return err
	}
	if x.Op == OpIn {
		return b.bindIn(x)
	}
	if err := b.bind(x.R); err != nil {
		return err
	}

	switch {
	case x.Op == OpAnd || x.Op == OpOr:
		for _, side := range []Expr{x.L, x.R} {
			if t := side.Type(); !t.IsZero() && !isKind(t, edm.Boolean) {
				return invalid("'%s' needs boolean operands, got %s", x.Op, t)
			}
		}
		x.T = edm.Primitive(edm.Boolean)

	case x.Op.isComparison():
		if err := b.coerce(x.L, x.R); err != nil {
			return err
		}
		if err := b.coerce(x.R, x.L); err != nil {
			return err
		}
		if !comparable(x.L.Type(), x.R.Type(), x.Op) {
			return invalid("cannot compare %s and %s with '%s'", typeName(x.L.Type()), typeName(x.R.Type()), x.Op)
		}
		x.T = edm.Primitive(edm.Boolean)

	case x.Op == OpHas:
		lt := x.L.Type()
		if lt.Kind != edm.KindEnum {
			return invalid("'has' needs an enum operand, got %s", lt)
		}
		lit, ok := x.R.(*LiteralExpr)
		if !ok {
			return invalid("the right operand of 'has' must be an enum literal")
		}
		if err := b.coerce(x.R, x.L); err != nil {
			return err
		}
		if lit.IsNull() || lit.T.Kind != edm.KindEnum || lit.T.Name != lt.Name {
			return invalid("enum literal %s does not match %s", lit.Text, lt.Name)
		}
		x.T = edm.Primitive(edm.Boolean)

	case x.Op.isArithmetic():
		t, err := arithmeticType(x.Op, x.L.Type(), x.R.Type())
		if err != nil {
			return err
		}
		x.T = t
	}
	return nil
}

func (b *binder) bindIn(x *BinaryExpr) error {
	list, ok := x.R.(*ListExpr)
	if !ok {
		return invalid("'in' needs a parenthesised list")
	}
	for _, item := range list.Items {
		if err := b.bind(item); err != nil {
			return err
		}
		if err := b.coerce(item, x.L); err != nil {
			return err
		}
		if !comparable(x.L.Type(), item.Type(), OpEq) {
			return invalid("cannot compare %s and %s in 'in'", typeName(x.L.Type()), typeName(item.Type()))
		}
	}
	list.T = edm.CollectionOf(x.L.Type())
	x.T = edm.Primitive(edm.Boolean)
	return nil
}

// coerce converts a literal operand to the enum or guid type of the other side
func (b *binder) coerce(e, other Expr) error {
	lit, ok := e.(*LiteralExpr)
	if !ok || lit.IsNull() {
		return nil
	}
	target := other.Type()
	if target.IsZero() || target.Collection {
		return nil
	}
	if target.Kind != edm.KindEnum && !isKind(target, edm.Guid) {
		return nil
	}
	if lit.T == target {
		return nil
	}
	v, err := b.model.Convert(edm.Literal{Type: lit.T, Value: lit.Value}, target)
	if err != nil {
		return invalid("%s: %v", lit.Text, err)
	}
	lit.T, lit.Value = target, v
	return nil
}

func typeName(t edm.TypeRef) string {
	if t.IsZero() {
		return "null"
	}
	return t.String()
}

func comparable(a, b edm.TypeRef, op Op) bool {
	if a.IsZero() || b.IsZero() {
		// null 与任意可比较类型比较; 序比较在求值时为 false
		if op == OpEq || op == OpNe {
			return true
		}
		t := a
		if t.IsZero() {
			t = b
		}
		return t.IsZero() || (!t.Collection && (t.Kind == edm.KindPrimitive || t.Kind == edm.KindEnum))
	}
	if a.Collection || b.Collection {
		return false
	}
	switch {
	case a.Kind == edm.KindEnum || b.Kind == edm.KindEnum:
		return a == b
	case a.Kind != edm.KindPrimitive || b.Kind != edm.KindPrimitive:
		return false
	case isNumeric(a) && isNumeric(b):
		return true
	}
	return a.PrimitiveKind() == b.PrimitiveKind()
}

func arithmeticType(op Op, a, b edm.TypeRef) (edm.TypeRef, error) {
	if a.IsZero() && b.IsZero() {
		return edm.TypeRef{}, nil
	}
	if a.IsZero() {
		a = b
	}
	if b.IsZero() {
		b = a
	}
	if isNumeric(a) && isNumeric(b) {
		ak, bk := a.PrimitiveKind(), b.PrimitiveKind()
		switch {
		case op == OpDivBy:
			if ak == edm.Decimal || bk == edm.Decimal {
				return edm.Primitive(edm.Decimal), nil
			}
			return edm.Primitive(edm.Double), nil
		case ak == edm.Double || bk == edm.Double:
			return edm.Primitive(edm.Double), nil
		case ak == edm.Decimal || bk == edm.Decimal:
			return edm.Primitive(edm.Decimal), nil
		case ak == edm.Int64 || bk == edm.Int64:
			return edm.Primitive(edm.Int64), nil
		}
		return edm.Primitive(edm.Int32), nil
	}

	if op == OpAdd || op == OpSub {
		switch {
		case isKind(a, edm.Duration) && isKind(b, edm.Duration):
			return a, nil
		case isKind(a, edm.DateTimeOffset) && isKind(b, edm.Duration):
			return a, nil
		case op == OpSub && isKind(a, edm.DateTimeOffset) && isKind(b, edm.DateTimeOffset):
			return edm.Primitive(edm.Duration), nil
		}
	}
	return edm.TypeRef{}, invalid("operator '%s' is not defined for %s and %s", op, a, b)
}

func (b *binder) bindCall(x *CallExpr) error {
	fn := functions[x.Name]
	if len(x.Args) < len(fn.args)-fn.optional || len(x.Args) > len(fn.args) {
		return invalid("%s takes %d argument(s), got %d", x.Name, len(fn.args), len(x.Args))
	}
	types := make([]edm.TypeRef, len(x.Args))
	for i, arg := range x.Args {
		if err := b.bind(arg); err != nil {
			return err
		}
		types[i] = arg.Type()
		if !fn.args[i].accepts(types[i]) {
			return invalid("argument %d of %s cannot be %s", i+1, x.Name, types[i])
		}
	}
	x.T = fn.result(types)
	return nil
}
