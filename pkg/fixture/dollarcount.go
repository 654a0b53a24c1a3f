// Package fixture provides the DollarCount sample service: a model exercising
// $count over entity sets, collection-valued properties, navigations, derived
// types and bound and unbound functions, together with its seed data.
package fixture

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/resource/seed"
)

const (
	Namespace         = "DollarCount"
	FunctionNamespace = "Default"

	EntitySet         = "DollarCountEntities"
	EntityType        = Namespace + ".DollarCountEntity"
	DerivedEntityType = Namespace + ".DerivedDollarCountEntity"

	// EntityCount is the number of seeded entities; those with Id > BaseCount are derived
	EntityCount = 10
	BaseCount   = 5

	navKeysField = "EntityCollectionPropKeys"
)

var colorNames = []string{"Red", "Green", "Blue", "Red, Blue"}

// Model builds the DollarCount model
func Model() (*edm.Model, error) {
	b := edm.NewBuilder(Namespace)

	color := b.EnumType("DollarColor", true,
		edm.EnumMember{Name: "Red", Value: 1},
		edm.EnumMember{Name: "Green", Value: 2},
		edm.EnumMember{Name: "Blue", Value: 4},
	)
	complexType := b.ComplexType("DollarCountComplex",
		edm.Prop("StringProp", edm.Primitive(edm.String)),
		edm.Prop("IntProp", edm.Primitive(edm.Int32)).NotNull(),
	)

	entity := b.EntityType("DollarCountEntity", []string{"Id"},
		edm.Prop("Id", edm.Primitive(edm.Int32)).NotNull(),
		edm.Prop("StringCollectionProp", edm.CollectionOf(edm.Primitive(edm.String))),
		edm.Prop("EnumCollectionProp", edm.CollectionOf(color.Ref())),
		edm.Prop("TimeSpanCollectionProp", edm.CollectionOf(edm.Primitive(edm.Duration))),
		edm.Prop("ComplexCollectionProp", edm.CollectionOf(complexType.Ref())),
		edm.Prop("DollarCountNotAllowedCollectionProp", edm.CollectionOf(edm.Primitive(edm.Int32))).NotCountable(),
	)
	entity.AddNavigation(edm.Nav("EntityCollectionProp", entity, EntitySet, true).StoredAsKeys(navKeysField))

	b.DerivedEntityType("DerivedDollarCountEntity", entity,
		edm.Prop("DerivedProp", edm.Primitive(edm.String)),
	)
	b.EntitySet(EntitySet, entity)

	entities := edm.CollectionOf(entity.Ref())
	p1 := []edm.Parameter{{Name: "p1", Type: edm.Primitive(edm.Int32)}}

	returns := []struct {
		suffix     string
		ret        edm.TypeRef
		params     []edm.Parameter
		composable bool
		unbound    edm.FunctionHandler
		bound      edm.FunctionHandler
	}{
		{"PrimitveCollection", edm.CollectionOf(edm.Primitive(edm.Int32)), nil, false, constant(primitives()), constant(primitives())},
		{"EnumCollection", edm.CollectionOf(color.Ref()), nil, false, constant(enums()), constant(enums())},
		{"DateTimeOffsetCollection", edm.CollectionOf(edm.Primitive(edm.DateTimeOffset)), nil, false, constant(instants()), constant(instants())},
		{"ComplexCollection", edm.CollectionOf(complexType.Ref()), nil, false, constant(complexes()), constant(complexes())},
		{"EntityCollection", entities, nil, true, allEntities, boundEntities},
		{"EntityCollectionWithParameter", entities, p1, true, entitiesUpTo(allEntities), entitiesUpTo(boundEntities)},
	}
	for _, r := range returns {
		set := ""
		if r.ret.Kind == edm.KindEntity {
			set = EntitySet
		}
		b.Function(&edm.Function{
			Namespace:  FunctionNamespace,
			Name:       "UnboundFunctionReturns" + r.suffix,
			Parameters: r.params,
			ReturnType: r.ret,
			Composable: r.composable,
			EntitySet:  set,
			Handler:    r.unbound,
		})
		b.Function(&edm.Function{
			Namespace:   FunctionNamespace,
			Name:        "BoundFunctionReturns" + r.suffix,
			Bound:       true,
			BindingType: entities,
			Parameters:  r.params,
			ReturnType:  r.ret,
			Composable:  r.composable,
			EntitySet:   set,
			Handler:     r.bound,
		})
	}

	b.Function(&edm.Function{
		Namespace:   FunctionNamespace,
		Name:        "BoundFunctionReturnsStringCollection",
		Bound:       true,
		BindingType: entity.Ref(),
		ReturnType:  edm.CollectionOf(edm.Primitive(edm.String)),
		Handler: func(ctx context.Context, inv *edm.Invocation) (interface{}, error) {
			row, ok := inv.Bound.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s: expected a bound entity", inv.Function.Name)
			}
			return row["StringCollectionProp"], nil
		},
	})

	return b.Build()
}

// MustModel builds the model and panics on error
func MustModel() *edm.Model {
	m, err := Model()
	if err != nil {
		panic(err)
	}
	return m
}

// Data returns the seed rows: entity i carries i elements in each collection
// property and navigates to entities 1..i-1
func Data() seed.Data {
	rows := make([]domain.Row, 0, EntityCount)
	for i := 1; i <= EntityCount; i++ {
		var (
			strs      = make([]interface{}, i)
			colors    = make([]interface{}, i)
			durations = make([]interface{}, i)
			complexes = make([]interface{}, i)
			numbers   = make([]interface{}, i)
			related   = make([]interface{}, 0, i-1)
		)
		for j := 1; j <= i; j++ {
			strs[j-1] = strconv.Itoa(j)
			colors[j-1] = colorNames[(j-1)%len(colorNames)]
			durations[j-1] = "PT" + strconv.Itoa(j) + "S"
			complexes[j-1] = map[string]interface{}{"StringProp": strconv.Itoa(j), "IntProp": int64(j)}
			numbers[j-1] = int64(j)
			if j < i {
				related = append(related, int64(j))
			}
		}

		row := domain.Row{
			"Id":                                  int64(i),
			"StringCollectionProp":                strs,
			"EnumCollectionProp":                  colors,
			"TimeSpanCollectionProp":              durations,
			"ComplexCollectionProp":               complexes,
			"DollarCountNotAllowedCollectionProp": numbers,
			navKeysField:                          related,
		}
		if i > BaseCount {
			row[seed.TypeAnnotation] = "#" + DerivedEntityType
			row["DerivedProp"] = "Derived" + strconv.Itoa(i)
		}
		rows = append(rows, row)
	}
	return seed.Data{EntitySet: rows}
}

func constant(v []interface{}) edm.FunctionHandler {
	return func(ctx context.Context, inv *edm.Invocation) (interface{}, error) {
		out := make([]interface{}, len(v))
		copy(out, v)
		return out, nil
	}
}

func primitives() []interface{} {
	return []interface{}{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6)}
}

func enums() []interface{} {
	return []interface{}{"Red", "Green", "Blue", "Red, Green"}
}

func instants() []interface{} {
	return []interface{}{
		"2020-01-01T00:00:00Z",
		"2021-06-15T12:30:00+08:00",
		"2022-12-31T23:59:59Z",
	}
}

func complexes() []interface{} {
	out := make([]interface{}, 4)
	for i := range out {
		out[i] = map[string]interface{}{"StringProp": strconv.Itoa(i + 1), "IntProp": int64(i + 1)}
	}
	return out
}

func allEntities(ctx context.Context, inv *edm.Invocation) (interface{}, error) {
	if inv.EntitySet == nil {
		return nil, fmt.Errorf("%s: no entity set loader", inv.Function.Name)
	}
	return inv.EntitySet(ctx, EntitySet)
}

func boundEntities(ctx context.Context, inv *edm.Invocation) (interface{}, error) {
	rows, ok := inv.Bound.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected a bound entity collection", inv.Function.Name)
	}
	return rows, nil
}

// entitiesUpTo keeps the entities of source whose Id does not exceed p1; a null p1 keeps none
func entitiesUpTo(source edm.FunctionHandler) edm.FunctionHandler {
	return func(ctx context.Context, inv *edm.Invocation) (interface{}, error) {
		res, err := source(ctx, inv)
		if err != nil {
			return nil, err
		}
		rows := res.([]map[string]interface{})
		limit, ok := inv.Args["p1"].(int64)
		out := make([]map[string]interface{}, 0, len(rows))
		if !ok {
			return out, nil
		}
		for _, row := range rows {
			if id, err := strconv.ParseInt(domain.KeyString(row["Id"]), 10, 64); err == nil && id <= limit {
				out = append(out, row)
			}
		}
		return out, nil
	}
}
