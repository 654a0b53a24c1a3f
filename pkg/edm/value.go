package edm

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Values have two representations.
//
// Storage (rows, seed files, JSON columns): numbers, strings and booleans;
// durations as ISO 8601 text, enums as member names, instants as RFC 3339,
// dates as yyyy-mm-dd, complex values as maps and collections as slices.
//
// Runtime (filter evaluation, ordering): integers as int64, floating point as
// float64, durations as time.Duration, instants and dates as time.Time, enums
// as int64 masks, guids as canonical lowercase text.

// Normalize converts a storage value of type t to its runtime representation
func (m *Model) Normalize(t TypeRef, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	if t.Collection {
		items, ok := toSlice(raw)
		if !ok {
			return nil, fmt.Errorf("expected a collection for %s, got %T", t, raw)
		}
		elem := t.Elem()
		out := make([]interface{}, len(items))
		for i, item := range items {
			v, err := m.Normalize(elem, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	switch t.Kind {
	case KindEnum:
		e, ok := m.EnumType(t.Name)
		if !ok {
			return nil, fmt.Errorf("unknown enum type %s", t.Name)
		}
		switch v := raw.(type) {
		case string:
			return e.Parse(v)
		default:
			if n, ok := toInt64(raw); ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("invalid value %v for enum %s", raw, t.Name)
	case KindComplex, KindEntity:
		obj, ok := raw.(map[string]interface{})
		if !ok {
			rv := reflect.ValueOf(raw)
			if rv.Kind() != reflect.Map {
				return nil, fmt.Errorf("expected an object for %s, got %T", t, raw)
			}
			obj = make(map[string]interface{}, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				obj[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
			}
		}
		return m.normalizeStructured(t, obj)
	}

	return normalizePrimitive(t.PrimitiveKind(), raw)
}

func (m *Model) normalizeStructured(t TypeRef, obj map[string]interface{}) (map[string]interface{}, error) {
	var props []*Property
	if c, ok := m.ComplexType(t.Name); ok {
		props = c.Properties
	} else if e, ok := m.EntityType(t.Name); ok {
		props = e.AllProperties()
	}
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, p := range props {
		v, ok := obj[p.Name]
		if !ok {
			continue
		}
		nv, err := m.Normalize(p.Type, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		out[p.Name] = nv
	}
	return out, nil
}

func normalizePrimitive(k PrimitiveKind, raw interface{}) (interface{}, error) {
	switch k {
	case Int32, Int64:
		if n, ok := toInt64(raw); ok {
			return n, nil
		}
		if s, ok := raw.(string); ok {
			return strconv.ParseInt(s, 10, 64)
		}
	case Double, Decimal:
		if f, ok := toFloat64(raw); ok {
			return f, nil
		}
		if s, ok := raw.(string); ok {
			return strconv.ParseFloat(s, 64)
		}
	case Boolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		}
		if n, ok := toInt64(raw); ok {
			return n != 0, nil
		}
	case String:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprint(raw), nil
	case Guid:
		if s, ok := raw.(string); ok {
			u, err := uuid.Parse(s)
			if err != nil {
				return nil, err
			}
			return u.String(), nil
		}
	case Duration:
		switch v := raw.(type) {
		case time.Duration:
			return v, nil
		case string:
			return ParseDuration(v)
		}
	case DateTimeOffset:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(time.RFC3339Nano, v)
		}
	case Date:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			return time.Parse(DateLayout, v)
		}
	}
	return nil, fmt.Errorf("invalid value %v (%T) for %s", raw, raw, k)
}

// Format converts a runtime value of type t to its JSON representation
func (m *Model) Format(t TypeRef, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if t.Collection {
		items, ok := toSlice(v)
		if !ok {
			return v
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = m.Format(t.Elem(), item)
		}
		return out
	}

	switch t.Kind {
	case KindEnum:
		if e, ok := m.EnumType(t.Name); ok {
			if n, ok := toInt64(v); ok {
				return e.Format(n)
			}
		}
		return v
	case KindComplex, KindEntity:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return v
		}
		var props []*Property
		if c, ok := m.ComplexType(t.Name); ok {
			props = c.Properties
		} else if e, ok := m.EntityType(t.Name); ok {
			props = e.AllProperties()
		}
		out := make(map[string]interface{}, len(props))
		for _, p := range props {
			if pv, ok := obj[p.Name]; ok {
				out[p.Name] = m.Format(p.Type, pv)
			}
		}
		return out
	}

	switch val := v.(type) {
	case time.Duration:
		return FormatDuration(val)
	case time.Time:
		if t.PrimitiveKind() == Date {
			return val.Format(DateLayout)
		}
		return val.Format(time.RFC3339Nano)
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return strconv.FormatFloat(val, 'g', -1, 64)
		}
	}
	return v
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case string:
		// collections persisted as JSON text
		var out []interface{}
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, false
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
