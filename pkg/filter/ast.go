// Package filter implements the $filter expression language: parsing,
// binding against an element type, in-memory evaluation and translation
// to storage filters.
package filter

import (
	"strings"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

// Op an operator keyword
type Op string

const (
	OpOr    Op = "or"
	OpAnd   Op = "and"
	OpNot   Op = "not"
	OpEq    Op = "eq"
	OpNe    Op = "ne"
	OpGt    Op = "gt"
	OpGe    Op = "ge"
	OpLt    Op = "lt"
	OpLe    Op = "le"
	OpHas   Op = "has"
	OpIn    Op = "in"
	OpAdd   Op = "add"
	OpSub   Op = "sub"
	OpMul   Op = "mul"
	OpDiv   Op = "div"
	OpDivBy Op = "divby"
	OpMod   Op = "mod"
	OpNeg   Op = "-"
)

func (o Op) isComparison() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

func (o Op) isArithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpDivBy, OpMod:
		return true
	}
	return false
}

// Expr a $filter expression node. Type is set by Bind.
type Expr interface {
	Type() edm.TypeRef
	String() string
}

type typed struct {
	T edm.TypeRef
}

func (t *typed) Type() edm.TypeRef { return t.T }

// LiteralExpr a constant; Value is in runtime representation
type LiteralExpr struct {
	typed
	Text  string
	Value interface{}
}

func (e *LiteralExpr) String() string { return e.Text }

// IsNull reports the null literal
func (e *LiteralExpr) IsNull() bool { return e.Value == nil }

// MemberExpr a property path relative to the current element. An empty
// Path is $it, the element itself.
type MemberExpr struct {
	typed
	Path []string
}

func (e *MemberExpr) String() string {
	if len(e.Path) == 0 {
		return "$it"
	}
	return strings.Join(e.Path, "/")
}

// UnaryExpr not / negation
type UnaryExpr struct {
	typed
	Op Op
	X  Expr
}

func (e *UnaryExpr) String() string {
	if e.Op == OpNeg {
		return "-" + e.X.String()
	}
	return "not " + e.X.String()
}

// BinaryExpr logical, comparison and arithmetic operators
type BinaryExpr struct {
	typed
	Op   Op
	L, R Expr
}

func (e *BinaryExpr) String() string {
	return "(" + e.L.String() + " " + string(e.Op) + " " + e.R.String() + ")"
}

// CallExpr a canonical function call
type CallExpr struct {
	typed
	Name string
	Args []Expr
}

func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ",") + ")"
}

// ListExpr the right operand of in
type ListExpr struct {
	typed
	Items []Expr
}

func (e *ListExpr) String() string {
	items := make([]string, len(e.Items))
	for i, a := range e.Items {
		items[i] = a.String()
	}
	return "(" + strings.Join(items, ",") + ")"
}
