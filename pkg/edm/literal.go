package edm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Literal a parsed OData literal in runtime representation.
// A null literal has a zero Type and nil Value.
type Literal struct {
	Type  TypeRef
	Value interface{}
}

// IsNull reports the null literal
func (l Literal) IsNull() bool { return l.Type.IsZero() && l.Value == nil }

var (
	guidPattern     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	datePattern     = regexp.MustCompile(`^-?\d{4}-\d{2}-\d{2}$`)
	dateTimePattern = regexp.MustCompile(`^-?\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)
	typedPattern    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)'(.*)'$`)
)

// DateLayout is the wire format of Edm.Date
const DateLayout = "2006-01-02"

// ParseLiteral parses URL literal syntax: null, true, false, 'text', numbers,
// guids, dates, date-times, duration'P1D' and enum literals Ns.Enum'Member'.
// Enum literals need m; it may be nil when none are expected.
func ParseLiteral(m *Model, s string) (Literal, error) {
	switch s {
	case "":
		return Literal{}, fmt.Errorf("empty literal")
	case "null":
		return Literal{}, nil
	case "true":
		return Literal{Type: Primitive(Boolean), Value: true}, nil
	case "false":
		return Literal{Type: Primitive(Boolean), Value: false}, nil
	case "INF", "-INF", "NaN":
		f, _ := strconv.ParseFloat(strings.Replace(s, "INF", "Inf", 1), 64)
		return Literal{Type: Primitive(Double), Value: f}, nil
	}

	if s[0] == '\'' {
		str, err := UnquoteString(s)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: Primitive(String), Value: str}, nil
	}

	if sub := typedPattern.FindStringSubmatch(s); sub != nil {
		return parseTypedLiteral(m, sub[1], sub[2])
	}

	switch {
	case guidPattern.MatchString(s):
		u, err := uuid.Parse(s)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid guid %q: %w", s, err)
		}
		return Literal{Type: Primitive(Guid), Value: u.String()}, nil
	case dateTimePattern.MatchString(s):
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid DateTimeOffset %q: %w", s, err)
		}
		return Literal{Type: Primitive(DateTimeOffset), Value: t}, nil
	case datePattern.MatchString(s):
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid Date %q: %w", s, err)
		}
		return Literal{Type: Primitive(Date), Value: t}, nil
	}

	return parseNumber(s)
}

func parseNumber(s string) (Literal, error) {
	body := strings.TrimRight(s, "LlMmDdFf")
	suffix := strings.ToUpper(s[len(body):])
	if len(suffix) > 1 {
		return Literal{}, fmt.Errorf("invalid literal %q", s)
	}

	if !strings.ContainsAny(body, ".eE") && suffix != "M" && suffix != "D" && suffix != "F" {
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid literal %q", s)
		}
		if suffix == "L" || n > math.MaxInt32 || n < math.MinInt32 {
			return Literal{Type: Primitive(Int64), Value: n}, nil
		}
		return Literal{Type: Primitive(Int32), Value: n}, nil
	}

	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return Literal{}, fmt.Errorf("invalid literal %q", s)
	}
	if suffix == "M" {
		return Literal{Type: Primitive(Decimal), Value: f}, nil
	}
	if suffix == "" && !strings.ContainsAny(body, "eE") {
		return Literal{Type: Primitive(Decimal), Value: f}, nil
	}
	return Literal{Type: Primitive(Double), Value: f}, nil
}

func parseTypedLiteral(m *Model, prefix, body string) (Literal, error) {
	text := strings.ReplaceAll(body, "''", "'")
	switch strings.ToLower(prefix) {
	case "duration", "edm.duration":
		d, err := ParseDuration(text)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: Primitive(Duration), Value: d}, nil
	case "guid", "edm.guid":
		u, err := uuid.Parse(text)
		if err != nil {
			return Literal{}, fmt.Errorf("invalid guid %q: %w", text, err)
		}
		return Literal{Type: Primitive(Guid), Value: u.String()}, nil
	case "binary":
		return Literal{}, fmt.Errorf("binary literals are not supported")
	}

	if m == nil {
		return Literal{}, fmt.Errorf("unknown literal type %s", prefix)
	}
	e, ok := m.EnumType(prefix)
	if !ok {
		return Literal{}, fmt.Errorf("unknown enum type %s", prefix)
	}
	v, err := e.Parse(text)
	if err != nil {
		return Literal{}, err
	}
	return Literal{Type: e.Ref(), Value: v}, nil
}

// FormatLiteral renders lit in URL literal syntax, so that ParseLiteral(m, FormatLiteral(m, lit))
// yields lit again. Enum values are written by member name when m knows the type.
func FormatLiteral(m *Model, lit Literal) string {
	if lit.Value == nil {
		return "null"
	}
	if lit.Type.Kind == KindEnum {
		n, _ := lit.Value.(int64)
		text := strconv.FormatInt(n, 10)
		if m != nil {
			if e, ok := m.EnumType(lit.Type.Name); ok {
				text = strings.ReplaceAll(e.Format(n), ", ", ",")
			}
		}
		return lit.Type.Name + QuoteString(text)
	}

	kind := lit.Type.PrimitiveKind()
	switch v := lit.Value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case string:
		if kind == Guid {
			return v
		}
		return QuoteString(v)
	case time.Duration:
		return "duration'" + FormatDuration(v) + "'"
	case time.Time:
		if kind == Date {
			return v.Format(DateLayout)
		}
		return v.Format(time.RFC3339Nano)
	case int64:
		// Int64 值落在 Int32 范围内时需要 L 后缀才能解析回 Int64
		if kind == Int64 && v <= math.MaxInt32 && v >= math.MinInt32 {
			return strconv.FormatInt(v, 10) + "L"
		}
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(kind, v)
	}
	return fmt.Sprint(lit.Value)
}

func formatFloat(kind PrimitiveKind, f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case kind == Decimal:
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(f, 'E', -1, 64)
}

// UnquoteString decodes a single-quoted OData string literal
func UnquoteString(s string) (string, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return "", fmt.Errorf("invalid string literal %s", s)
	}
	inner := s[1 : len(s)-1]
	var sb strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\'' {
			if i+1 >= len(inner) || inner[i+1] != '\'' {
				return "", fmt.Errorf("unescaped quote in string literal %s", s)
			}
			i++
		}
		sb.WriteByte(c)
	}
	return sb.String(), nil
}

// QuoteString encodes s as an OData string literal
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Convert coerces a literal to the target type, applying numeric promotion,
// Int32 range checks and string-to-enum conversion.
func (m *Model) Convert(lit Literal, target TypeRef) (interface{}, error) {
	if lit.IsNull() {
		return nil, nil
	}
	if target.Collection {
		return nil, fmt.Errorf("cannot convert a literal to %s", target)
	}

	switch target.Kind {
	case KindEnum:
		e, ok := m.EnumType(target.Name)
		if !ok {
			return nil, fmt.Errorf("unknown enum type %s", target.Name)
		}
		switch {
		case lit.Type.Kind == KindEnum && lit.Type.Name == target.Name:
			return lit.Value, nil
		case lit.Type.PrimitiveKind() == String:
			return e.Parse(lit.Value.(string))
		case lit.Type.PrimitiveKind().IsIntegral():
			return lit.Value, nil
		}
	case KindPrimitive:
		from := lit.Type.PrimitiveKind()
		switch to := target.PrimitiveKind(); to {
		case Int32:
			if from.IsIntegral() {
				n := lit.Value.(int64)
				if n > math.MaxInt32 || n < math.MinInt32 {
					return nil, fmt.Errorf("%d out of range for Edm.Int32", n)
				}
				return n, nil
			}
		case Int64:
			if from.IsIntegral() {
				return lit.Value, nil
			}
		case Double, Decimal:
			switch from {
			case Int32, Int64:
				return float64(lit.Value.(int64)), nil
			case Double, Decimal:
				return lit.Value, nil
			}
		case Guid:
			if from == String {
				u, err := uuid.Parse(lit.Value.(string))
				if err != nil {
					return nil, fmt.Errorf("invalid guid %q", lit.Value)
				}
				return u.String(), nil
			}
			if from == Guid {
				return lit.Value, nil
			}
		default:
			if from == to {
				return lit.Value, nil
			}
		}
	}
	return nil, fmt.Errorf("cannot convert %s literal to %s", lit.Type, target)
}
