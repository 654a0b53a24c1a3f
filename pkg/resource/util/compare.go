// Package util evaluates domain filters and query options in memory.
// Datasources that cannot push a filter down use it, so its results have to
// agree with the SQL builder: NULLs sort first, strings compare by code point
// and integers compare exactly.
package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// kind 比较时的值类别, 不同类别按此顺序排序
type kind int

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindOther
)

func kindOf(v interface{}) kind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInt
	case float32, float64:
		return kindFloat
	case json.Number:
		if _, err := v.(json.Number).Int64(); err == nil {
			return kindInt
		}
		return kindFloat
	case string:
		return kindString
	}
	return kindOther
}

func isNumber(k kind) bool { return k == kindInt || k == kindFloat }

// CompareValues orders two values: nil first, then numbers numerically,
// then strings ordinally. Values of unrelated kinds order by kind.
func CompareValues(a, b interface{}) int {
	ka, kb := kindOf(a), kindOf(b)
	switch {
	case ka == kindNull && kb == kindNull:
		return 0
	case isNumber(ka) && isNumber(kb):
		c, _ := CompareNumeric(a, b)
		return c
	case ka != kb:
		return compareOrdered(ka, kb)
	case ka == kindBool:
		return compareBool(a.(bool), b.(bool))
	case ka == kindString:
		return strings.Compare(a.(string), b.(string))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// CompareEqual reports whether two values are equal; numbers compare by
// value across Go types, other kinds never equal each other.
func CompareEqual(a, b interface{}) bool {
	ka, kb := kindOf(a), kindOf(b)
	switch {
	case isNumber(ka) && isNumber(kb):
		c, _ := CompareNumeric(a, b)
		return c == 0
	case ka != kb:
		return false
	case ka == kindOther:
		return reflect.DeepEqual(a, b)
	}
	return CompareValues(a, b) == 0
}

// CompareNumeric returns -1, 0, 1 and whether both values are numbers.
// Two integers compare as int64 so large keys keep their precision.
func CompareNumeric(a, b interface{}) (int, bool) {
	ka, kb := kindOf(a), kindOf(b)
	if !isNumber(ka) || !isNumber(kb) {
		return 0, false
	}
	if ka == kindInt && kb == kindInt {
		ai, errA := toInt64(a)
		bi, errB := toInt64(b)
		if errA == nil && errB == nil {
			return compareOrdered(ai, bi), true
		}
	}
	af, okA := ConvertToFloat64(a)
	bf, okB := ConvertToFloat64(b)
	if !okA || !okB {
		return 0, false
	}
	return compareOrdered(af, bf), true
}

func toInt64(v interface{}) (int64, error) {
	if n, ok := v.(json.Number); ok {
		return n.Int64()
	}
	return cast.ToInt64E(v)
}

// ConvertToFloat64 converts a number of any Go numeric type; strings are not numbers
func ConvertToFloat64(v interface{}) (float64, bool) {
	if !isNumber(kindOf(v)) {
		return 0, false
	}
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func compareOrdered[T int64 | float64 | kind](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// CompareIn checks whether a equals one of the values of the slice b
func CompareIn(a, b interface{}) bool {
	if list, ok := b.([]interface{}); ok {
		for _, v := range list {
			if CompareEqual(a, v) {
				return true
			}
		}
		return false
	}
	rv := reflect.ValueOf(b)
	if rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if CompareEqual(a, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// EscapeLike escapes LIKE wildcards in a literal
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CompareLike matches a string against a LIKE pattern: % any run, _ any
// single character, \ escapes the next character. Case sensitive.
func CompareLike(value, pattern interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	p, ok := pattern.(string)
	if !ok {
		return false
	}
	return likeMatch([]rune(s), compileLike(p))
}

type likeToken struct {
	any  bool // %
	one  bool // _
	char rune
}

func compileLike(p string) []likeToken {
	rs := []rune(p)
	tokens := make([]likeToken, 0, len(rs))
	for i := 0; i < len(rs); i++ {
		switch rs[i] {
		case '%':
			if n := len(tokens); n > 0 && tokens[n-1].any {
				continue
			}
			tokens = append(tokens, likeToken{any: true})
		case '_':
			tokens = append(tokens, likeToken{one: true})
		case '\\':
			if i+1 < len(rs) {
				i++
			}
			tokens = append(tokens, likeToken{char: rs[i]})
		default:
			tokens = append(tokens, likeToken{char: rs[i]})
		}
	}
	return tokens
}

// likeMatch 贪心匹配, 失败时回溯到最近的 % 处; O(len(s)*len(p))
func likeMatch(s []rune, p []likeToken) bool {
	si, pi := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && !p[pi].any && (p[pi].one || p[pi].char == s[si]):
			si++
			pi++
		case pi < len(p) && p[pi].any:
			star, mark = pi, si
			pi++
		case star >= 0:
			mark++
			si, pi = mark, star+1
		default:
			return false
		}
	}
	for pi < len(p) && p[pi].any {
		pi++
	}
	return pi == len(p)
}
