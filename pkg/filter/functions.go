package filter

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

type argKind int

const (
	argString argKind = iota
	argInt
	argNumber
	argTemporal // Date or DateTimeOffset
	argInstant  // DateTimeOffset
)

type function struct {
	args     []argKind
	optional int
	// result returns the result type from the bound argument types
	result func(args []edm.TypeRef) edm.TypeRef
	eval   func(args []interface{}) interface{}
}

func returns(k edm.PrimitiveKind) func([]edm.TypeRef) edm.TypeRef {
	return func([]edm.TypeRef) edm.TypeRef { return edm.Primitive(k) }
}

func sameNumber(args []edm.TypeRef) edm.TypeRef {
	if args[0].PrimitiveKind() == edm.Decimal {
		return edm.Primitive(edm.Decimal)
	}
	return edm.Primitive(edm.Double)
}

var functions = map[string]function{
	"contains": {args: []argKind{argString, argString}, result: returns(edm.Boolean), eval: func(a []interface{}) interface{} {
		return strings.Contains(a[0].(string), a[1].(string))
	}},
	"startswith": {args: []argKind{argString, argString}, result: returns(edm.Boolean), eval: func(a []interface{}) interface{} {
		return strings.HasPrefix(a[0].(string), a[1].(string))
	}},
	"endswith": {args: []argKind{argString, argString}, result: returns(edm.Boolean), eval: func(a []interface{}) interface{} {
		return strings.HasSuffix(a[0].(string), a[1].(string))
	}},
	"length": {args: []argKind{argString}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(utf8.RuneCountInString(a[0].(string)))
	}},
	"indexof": {args: []argKind{argString, argString}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		s, sub := a[0].(string), a[1].(string)
		i := strings.Index(s, sub)
		if i < 0 {
			return int64(-1)
		}
		return int64(utf8.RuneCountInString(s[:i]))
	}},
	"substring": {args: []argKind{argString, argInt, argInt}, optional: 1, result: returns(edm.String), eval: substring},
	"tolower": {args: []argKind{argString}, result: returns(edm.String), eval: func(a []interface{}) interface{} {
		return cases.Lower(language.Und).String(a[0].(string))
	}},
	"toupper": {args: []argKind{argString}, result: returns(edm.String), eval: func(a []interface{}) interface{} {
		return cases.Upper(language.Und).String(a[0].(string))
	}},
	"trim": {args: []argKind{argString}, result: returns(edm.String), eval: func(a []interface{}) interface{} {
		return strings.TrimSpace(a[0].(string))
	}},
	"concat": {args: []argKind{argString, argString}, result: returns(edm.String), eval: func(a []interface{}) interface{} {
		return a[0].(string) + a[1].(string)
	}},
	"year": {args: []argKind{argTemporal}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Year())
	}},
	"month": {args: []argKind{argTemporal}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Month())
	}},
	"day": {args: []argKind{argTemporal}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Day())
	}},
	"hour": {args: []argKind{argInstant}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Hour())
	}},
	"minute": {args: []argKind{argInstant}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Minute())
	}},
	"second": {args: []argKind{argInstant}, result: returns(edm.Int32), eval: func(a []interface{}) interface{} {
		return int64(a[0].(time.Time).Second())
	}},
	"round": {args: []argKind{argNumber}, result: sameNumber, eval: func(a []interface{}) interface{} {
		return math.Round(toFloat(a[0]))
	}},
	"floor": {args: []argKind{argNumber}, result: sameNumber, eval: func(a []interface{}) interface{} {
		return math.Floor(toFloat(a[0]))
	}},
	"ceiling": {args: []argKind{argNumber}, result: sameNumber, eval: func(a []interface{}) interface{} {
		return math.Ceil(toFloat(a[0]))
	}},
}

func substring(a []interface{}) interface{} {
	r := []rune(a[0].(string))
	start := int(a[1].(int64))
	if start < 0 {
		start = 0
	}
	if start > len(r) {
		return ""
	}
	end := len(r)
	if len(a) > 2 {
		n := int(a[2].(int64))
		if n < 0 {
			n = 0
		}
		if start+n < end {
			end = start + n
		}
	}
	return string(r[start:end])
}

func (k argKind) accepts(t edm.TypeRef) bool {
	if t.IsZero() {
		return true
	}
	if t.Collection || t.Kind != edm.KindPrimitive {
		return false
	}
	switch pk := t.PrimitiveKind(); k {
	case argString:
		return pk == edm.String
	case argInt:
		return pk.IsIntegral()
	case argNumber:
		return pk.IsNumeric()
	case argTemporal:
		return pk == edm.Date || pk == edm.DateTimeOffset
	case argInstant:
		return pk == edm.DateTimeOffset
	}
	return false
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return math.NaN()
}
