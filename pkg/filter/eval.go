package filter

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Match evaluates b against one element in runtime representation
// (see edm.Model.Normalize). Null results count as false.
func (b *Bound) Match(v interface{}) (bool, error) {
	r, err := eval(b.Expr, v)
	if err != nil {
		return false, err
	}
	ok, _ := r.(bool)
	return ok, nil
}

func eval(e Expr, v interface{}) (interface{}, error) {
	switch x := e.(type) {
	case *LiteralExpr:
		return x.Value, nil
	case *MemberExpr:
		return member(v, x.Path), nil
	case *UnaryExpr:
		return evalUnary(x, v)
	case *BinaryExpr:
		return evalBinary(x, v)
	case *CallExpr:
		return evalCall(x, v)
	}
	return nil, fmt.Errorf("cannot evaluate %s", e)
}

func member(v interface{}, path []string) interface{} {
	for _, name := range path {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = obj[name]
	}
	return v
}

func evalUnary(x *UnaryExpr, v interface{}) (interface{}, error) {
	r, err := eval(x.X, v)
	if err != nil || r == nil {
		return nil, err
	}
	if x.Op == OpNot {
		b, _ := r.(bool)
		return !b, nil
	}
	switch n := r.(type) {
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	case time.Duration:
		return -n, nil
	}
	return nil, fmt.Errorf("cannot negate %T", r)
}

func evalBinary(x *BinaryExpr, v interface{}) (interface{}, error) {
	l, err := eval(x.L, v)
	if err != nil {
		return nil, err
	}

	// three-valued logic
	switch x.Op {
	case OpAnd:
		if l == false {
			return false, nil
		}
		r, err := eval(x.R, v)
		if err != nil {
			return nil, err
		}
		if r == false {
			return false, nil
		}
		if l == nil || r == nil {
			return nil, nil
		}
		return true, nil
	case OpOr:
		if l == true {
			return true, nil
		}
		r, err := eval(x.R, v)
		if err != nil {
			return nil, err
		}
		if r == true {
			return true, nil
		}
		if l == nil || r == nil {
			return nil, nil
		}
		return false, nil
	case OpIn:
		for _, item := range x.R.(*ListExpr).Items {
			r, err := eval(item, v)
			if err != nil {
				return nil, err
			}
			if equal(l, r) {
				return true, nil
			}
		}
		return false, nil
	}

	r, err := eval(x.R, v)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case OpEq:
		return equal(l, r), nil
	case OpNe:
		return !equal(l, r), nil
	case OpGt, OpGe, OpLt, OpLe:
		if l == nil || r == nil {
			return false, nil
		}
		c, ok := compare(l, r)
		if !ok {
			return false, nil
		}
		switch x.Op {
		case OpGt:
			return c > 0, nil
		case OpGe:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		}
		return c <= 0, nil
	case OpHas:
		if l == nil || r == nil {
			return false, nil
		}
		lm, _ := l.(int64)
		rm, _ := r.(int64)
		return lm&rm == rm, nil
	}

	if l == nil || r == nil {
		return nil, nil
	}
	return arithmetic(x.Op, x.T.PrimitiveKind().IsIntegral(), l, r)
}

func equal(l, r interface{}) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	c, ok := compare(l, r)
	return ok && c == 0
}

// compare orders two runtime values of compatible types
func compare(l, r interface{}) (int, bool) {
	switch a := l.(type) {
	case int64:
		switch b := r.(type) {
		case int64:
			return cmp(a < b, a > b), true
		case float64:
			return compareFloat(float64(a), b)
		}
	case float64:
		switch b := r.(type) {
		case float64:
			return compareFloat(a, b)
		case int64:
			return compareFloat(a, float64(b))
		}
	case string:
		if b, ok := r.(string); ok {
			return strings.Compare(a, b), true
		}
	case bool:
		if b, ok := r.(bool); ok {
			return cmp(!a && b, a && !b), true
		}
	case time.Duration:
		if b, ok := r.(time.Duration); ok {
			return cmp(a < b, a > b), true
		}
	case time.Time:
		if b, ok := r.(time.Time); ok {
			return a.Compare(b), true
		}
	}
	return 0, false
}

func compareFloat(a, b float64) (int, bool) {
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, false
	}
	return cmp(a < b, a > b), true
}

func cmp(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func arithmetic(op Op, integral bool, l, r interface{}) (interface{}, error) {
	switch a := l.(type) {
	case time.Duration:
		if b, ok := r.(time.Duration); ok {
			if op == OpAdd {
				return a + b, nil
			}
			return a - b, nil
		}
	case time.Time:
		switch b := r.(type) {
		case time.Duration:
			if op == OpAdd {
				return a.Add(b), nil
			}
			return a.Add(-b), nil
		case time.Time:
			return a.Sub(b), nil
		}
	}

	if integral {
		a, aok := l.(int64)
		b, bok := r.(int64)
		if aok && bok {
			switch op {
			case OpAdd:
				return a + b, nil
			case OpSub:
				return a - b, nil
			case OpMul:
				return a * b, nil
			case OpDiv, OpMod:
				// division by zero yields null
				if b == 0 {
					return nil, nil
				}
				if op == OpDiv {
					return a / b, nil
				}
				return a % b, nil
			}
		}
	}

	a, b := toFloat(l), toFloat(r)
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv, OpDivBy:
		if b == 0 {
			return nil, nil
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, nil
		}
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("unsupported operator %s", op)
}

func evalCall(x *CallExpr, v interface{}) (interface{}, error) {
	args := make([]interface{}, len(x.Args))
	for i, a := range x.Args {
		r, err := eval(a, v)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, nil
		}
		args[i] = r
	}
	fn := functions[x.Name]
	for i, a := range args {
		if fn.args[i] == argInt {
			if f, ok := a.(float64); ok {
				args[i] = int64(f)
			}
		}
	}
	return fn.eval(args), nil
}
