package filter

import (
	"github.com/kasuganosora/odatacount/pkg/edm"
)

// Parse parses a $filter expression. m resolves enum literals and may be nil.
func Parse(m *edm.Model, s string) (Expr, error) {
	toks, err := lex(m, s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, invalid("empty expression")
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, invalid("unexpected %s", t)
	}
	return e, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// keyword consumes the identifier kw if it is next
func (p *parser) keyword(kws ...Op) (Op, bool) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", false
	}
	for _, kw := range kws {
		if t.text == string(kw) {
			p.pos++
			return kw, true
		}
	}
	return "", false
}

func (p *parser) expect(kind tokenKind, what string) error {
	if t := p.next(); t.kind != kind {
		return invalid("expected %s, got %s", what, t)
	}
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.keyword(OpOr); !ok {
			return l, nil
		}
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: OpOr, L: l, R: r}
	}
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.keyword(OpAnd); !ok {
			return l, nil
		}
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: OpAnd, L: l, R: r}
	}
}

func (p *parser) parseNot() (Expr, error) {
	if _, ok := p.keyword(OpNot); ok {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.keyword(OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpHas, OpIn)
	if !ok {
		return l, nil
	}
	r, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op == OpIn {
		if _, isList := r.(*ListExpr); !isList {
			r = &ListExpr{Items: []Expr{r}}
		}
	}
	return &BinaryExpr{Op: op, L: l, R: r}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.keyword(OpAdd, OpSub)
		if !ok {
			return l, nil
		}
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: op, L: l, R: r}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.keyword(OpMul, OpDiv, OpDivBy, OpMod)
		if !ok {
			return l, nil
		}
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: op, L: l, R: r}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokMinus {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNeg, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokLiteral:
		return &LiteralExpr{typed: typed{T: t.lit.Type}, Text: t.text, Value: t.lit.Value}, nil

	case tokOpen:
		first, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokComma {
			if err := p.expect(tokClose, "')'"); err != nil {
				return nil, err
			}
			return first, nil
		}
		list := &ListExpr{Items: []Expr{first}}
		for p.peek().kind == tokComma {
			p.next()
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		if err := p.expect(tokClose, "')'"); err != nil {
			return nil, err
		}
		return list, nil

	case tokIdent:
		if p.peek().kind == tokOpen {
			return p.parseCall(t)
		}
		return p.parseMember(t)
	}
	return nil, invalid("unexpected %s", t)
}

func (p *parser) parseCall(name token) (Expr, error) {
	if _, ok := functions[name.text]; !ok {
		return nil, invalid("unknown function %s", name.text)
	}
	p.next()
	call := &CallExpr{Name: name.text}
	if p.peek().kind == tokClose {
		p.next()
		return call, nil
	}
	for {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokClose, "')'"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parseMember(first token) (Expr, error) {
	m := &MemberExpr{}
	if first.text != "$it" {
		m.Path = append(m.Path, first.text)
	}
	for p.peek().kind == tokSlash {
		p.next()
		t := p.next()
		if t.kind != tokIdent {
			return nil, invalid("expected a property name after '/', got %s", t)
		}
		m.Path = append(m.Path, t.text)
	}
	return m, nil
}
