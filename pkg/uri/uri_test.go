package uri

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/odatacount/pkg/edm"
)

func noop(ctx context.Context, inv *edm.Invocation) (interface{}, error) { return nil, nil }

func testModel(t *testing.T) *edm.Model {
	t.Helper()
	b := edm.NewBuilder("NS")
	color := b.EnumType("Color", true,
		edm.EnumMember{Name: "Red", Value: 1},
		edm.EnumMember{Name: "Blue", Value: 4},
	)
	cplx := b.ComplexType("Cplx",
		edm.Prop("Name", edm.Primitive(edm.String)),
		edm.Prop("Tags", edm.CollectionOf(edm.Primitive(edm.String))),
	)
	entity := b.EntityType("Entity", []string{"Id"},
		edm.Prop("Id", edm.Primitive(edm.Int32)).NotNull(),
		edm.Prop("Strings", edm.CollectionOf(edm.Primitive(edm.String))),
		edm.Prop("Colors", edm.CollectionOf(color.Ref())),
		edm.Prop("Complex", cplx.Ref()),
		edm.Prop("Hidden", edm.CollectionOf(edm.Primitive(edm.Int32))).NotCountable(),
	)
	derived := b.DerivedEntityType("Derived", entity, edm.Prop("Extra", edm.Primitive(edm.String)))
	other := b.EntityType("Other", []string{"Code", "Year"},
		edm.Prop("Code", edm.Primitive(edm.String)).NotNull(),
		edm.Prop("Year", edm.Primitive(edm.Int32)).NotNull(),
	)
	entity.AddNavigation(
		edm.Nav("Children", entity, "Entities", true).StoredAsKeys("ChildIds"),
		edm.Nav("Parent", entity, "Entities", false).StoredAsKeys("ParentId"),
		edm.Nav("Secret", entity, "Entities", true).StoredAsKeys("SecretIds").NotCountable(),
	)
	b.EntitySet("Entities", entity)
	b.EntitySet("Others", other)

	b.Function(&edm.Function{
		Namespace:   "Default",
		Name:        "Numbers",
		Bound:       true,
		BindingType: edm.CollectionOf(entity.Ref()),
		ReturnType:  edm.CollectionOf(edm.Primitive(edm.Int32)),
		Composable:  true,
		Handler:     noop,
	})
	b.Function(&edm.Function{
		Namespace:   "Default",
		Name:        "Numbers",
		Bound:       true,
		BindingType: edm.CollectionOf(derived.Ref()),
		ReturnType:  edm.CollectionOf(edm.Primitive(edm.Int64)),
		Composable:  true,
		Handler:     noop,
	})
	b.Function(&edm.Function{
		Namespace:   "Default",
		Name:        "Strings",
		Bound:       true,
		BindingType: entity.Ref(),
		ReturnType:  edm.CollectionOf(edm.Primitive(edm.String)),
		Handler:     noop,
	})
	b.Function(&edm.Function{
		Name:       "Upto",
		Parameters: []edm.Parameter{{Name: "p1", Type: edm.Primitive(edm.Int32)}},
		ReturnType: edm.CollectionOf(entity.Ref()),
		EntitySet:  "Entities",
		Composable: true,
		Handler:    noop,
	})
	b.Function(&edm.Function{
		Name:       "Maybe",
		Parameters: []edm.Parameter{{Name: "p", Type: edm.Primitive(edm.String), Nullable: true}},
		ReturnType: edm.CollectionOf(edm.Primitive(edm.String)),
		Handler:    noop,
	})
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestSplit(t *testing.T) {
	segs, err := Split("/Entities(5)/NS.Derived/Default.F(a='x/y',b=@p)/$count")
	require.NoError(t, err)
	require.Len(t, segs, 4)
	assert.Equal(t, RawSegment{Name: "Entities", Args: "5", HasArgs: true}, segs[0])
	assert.Equal(t, RawSegment{Name: "NS.Derived"}, segs[1])
	assert.Equal(t, "a='x/y',b=@p", segs[2].Args)
	assert.Equal(t, "$count", segs[3].Name)

	segs, err = Split("Upto(p1=3)('k)')")
	require.NoError(t, err)
	assert.Equal(t, RawSegment{Name: "Upto", Args: "p1=3", HasArgs: true, Key: "'k)'", HasKey: true}, segs[0])
	assert.Equal(t, "Upto(p1=3)", segs[0].String())

	segs, err = Split("Entities('a%20b')")
	require.NoError(t, err)
	assert.Equal(t, "'a b'", segs[0].Args)

	for _, bad := range []string{"Entities(1", "Entities)", "Entities('x)", "Entities//$count", "Entities(1)x", "(1)", "F()(1)x", "F()(1"} {
		_, err := Split(bad)
		assert.ErrorIs(t, err, ErrBadRequest, bad)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a=1", "b='x,y'", "c=(1,2)"}, splitList("a=1, b='x,y',c=(1,2)"))
	assert.Nil(t, splitList("  "))

	name, value, ok := splitAssignment("Code='a=b'")
	assert.True(t, ok)
	assert.Equal(t, "Code", name)
	assert.Equal(t, "'a=b'", value)

	_, _, ok = splitAssignment("'a=b'")
	assert.False(t, ok)
}

func kinds(p *Path) []SegmentKind {
	out := make([]SegmentKind, 0, len(p.Segments))
	for _, s := range p.Segments {
		out = append(out, s.Kind)
	}
	return out
}

func TestParse_Resolves(t *testing.T) {
	m := testModel(t)

	tests := []struct {
		path   string
		kinds  []SegmentKind
		target string
		count  bool
	}{
		{"Entities", []SegmentKind{SegmentEntitySet}, "Collection(NS.Entity)", false},
		{"Entities/$count", []SegmentKind{SegmentEntitySet, SegmentCount}, "Collection(NS.Entity)", true},
		{"Entities(1)", []SegmentKind{SegmentEntitySet, SegmentKey}, "NS.Entity", false},
		{"Entities/1", []SegmentKind{SegmentEntitySet, SegmentKey}, "NS.Entity", false},
		{"Entities/NS.Derived/$count", []SegmentKind{SegmentEntitySet, SegmentTypeCast, SegmentCount}, "Collection(NS.Derived)", true},
		{"Entities/NS.Derived(7)", []SegmentKind{SegmentEntitySet, SegmentTypeCast, SegmentKey}, "NS.Derived", false},
		{"Entities(1)/NS.Derived", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentTypeCast}, "NS.Derived", false},
		{"Entities(1)/Strings/$count", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentProperty, SegmentCount}, "Collection(Edm.String)", true},
		{"Entities(1)/Colors/$count", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentProperty, SegmentCount}, "Collection(NS.Color)", true},
		{"Entities(1)/Complex/Tags/$count", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentProperty, SegmentProperty, SegmentCount}, "Collection(Edm.String)", true},
		{"Entities(1)/Children/$count", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentNavigation, SegmentCount}, "Collection(NS.Entity)", true},
		{"Entities(1)/Children(2)/Strings", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentNavigation, SegmentKey, SegmentProperty}, "Collection(Edm.String)", false},
		{"Entities(1)/Parent", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentNavigation}, "NS.Entity", false},
		{"Entities/Default.Numbers()/$count", []SegmentKind{SegmentEntitySet, SegmentFunction, SegmentCount}, "Collection(Edm.Int32)", true},
		{"Entities/NS.Derived/Default.Numbers()", []SegmentKind{SegmentEntitySet, SegmentTypeCast, SegmentFunction}, "Collection(Edm.Int64)", false},
		{"Entities(1)/Default.Strings()/$count", []SegmentKind{SegmentEntitySet, SegmentKey, SegmentFunction, SegmentCount}, "Collection(Edm.String)", true},
		{"Upto(p1=3)/$count", []SegmentKind{SegmentFunction, SegmentCount}, "Collection(NS.Entity)", true},
		{"Upto(p1=3)/NS.Derived/$count", []SegmentKind{SegmentFunction, SegmentTypeCast, SegmentCount}, "Collection(NS.Derived)", true},
		{"Others(Code='a',Year=2020)", []SegmentKind{SegmentEntitySet, SegmentKey}, "NS.Other", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, err := Parse(m, tt.path, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.kinds, kinds(p))
			assert.Equal(t, tt.target, p.Target.String())
			assert.Equal(t, tt.count, p.IsCount)
		})
	}
}

func TestParse_Keys(t *testing.T) {
	m := testModel(t)

	p, err := Parse(m, "Entities(5)", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Id": int64(5)}, p.Last().Key)
	assert.Equal(t, "Entities", p.EntitySet.Name)

	p, err = Parse(m, "Entities(Id=6)", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Id": int64(6)}, p.Last().Key)

	p, err = Parse(m, "Others(Year=2020,Code='O''Neil')", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Code": "O'Neil", "Year": int64(2020)}, p.Last().Key)

	for _, bad := range []string{
		"Entities('x')",
		"Entities(Name=1)",
		"Entities(1)(2)",
		"Entities(3000000000)",
		"Others('a')",
		"Others(Code='a')",
	} {
		_, err := Parse(m, bad, nil)
		assert.ErrorIs(t, err, ErrBadRequest, bad)
	}
}

func TestParse_FunctionParameters(t *testing.T) {
	m := testModel(t)

	p, err := Parse(m, "Upto(p1=@x)", url.Values{"@x": {"4"}})
	require.NoError(t, err)
	seg := p.Last()
	assert.Equal(t, "Upto", seg.Function.Name)
	assert.Equal(t, map[string]interface{}{"p1": int64(4)}, seg.Args)
	assert.Equal(t, "Entities", p.EntitySet.Name)

	p, err = Parse(m, "Maybe()", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"p": nil}, p.Last().Args)

	p, err = Parse(m, "Maybe(p=@missing)", nil)
	require.NoError(t, err)
	assert.Nil(t, p.Last().Args["p"])

	for _, bad := range []string{
		"Upto()",
		"Upto(p1=@x)",
		"Upto(p1='a')",
		"Upto(p2=1)",
		"Upto(p1=1,p1=2)",
		"Upto(1)",
		"Upto",
	} {
		_, err := Parse(m, bad, nil)
		assert.ErrorIs(t, err, ErrBadRequest, bad)
	}
}

func TestParse_Errors(t *testing.T) {
	m := testModel(t)

	tests := []struct {
		path string
		err  error
		msg  string
	}{
		{"Nope", ErrResourceNotFound, ""},
		{"Nope/$count", ErrResourceNotFound, ""},
		{"Entities(1)/Nope", ErrResourceNotFound, ""},
		{"Entities/NS.Nope", ErrResourceNotFound, ""},
		{"Entities/NS.Other", ErrBadRequest, "not derived"},
		{"Entities/NS.Derived/NS.Entity", ErrBadRequest, "not derived"},
		{"Entities(1)/$count", ErrBadRequest, "collection"},
		{"Entities/$count/$count", ErrBadRequest, "last segment"},
		{"Entities/$count/Id", ErrBadRequest, "last segment"},
		{"Entities(1)/Complex/$count", ErrBadRequest, "collection"},
		{"Entities(1)/Strings/1", ErrBadRequest, ""},
		{"Entities/$ref", ErrBadRequest, ""},
		{"$count", ErrBadRequest, ""},
		{"Entities(1)/Default.Numbers()", ErrBadRequest, "cannot be bound"},
		{"Entities(1)/Default.Strings()/1", ErrBadRequest, "not composable"},
		{"Entities(1)(2)", ErrBadRequest, "only a function call"},
		{"Maybe(p=null)(1)", ErrBadRequest, "not composable"},
		{"Entities/Default.Numbers()(1)", ErrBadRequest, "a key predicate cannot follow"},
		{"Entities(1)/Hidden/$count", ErrNotCountable, "the property 'Hidden' cannot be used for $count"},
		{"Entities(1)/Secret/$count", ErrNotCountable, "the property 'Secret' cannot be used for $count"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Parse(m, tt.path, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestParse_KeyAfterFunction(t *testing.T) {
	m := testModel(t)

	p, err := Parse(m, "Upto(p1=3)(2)/Strings/$count", nil)
	require.NoError(t, err)
	assert.Equal(t, []SegmentKind{SegmentFunction, SegmentKey, SegmentProperty, SegmentCount}, kinds(p))
	assert.Equal(t, map[string]interface{}{"Id": int64(2)}, p.Segments[1].Key)

	asSegment, err := Parse(m, "Upto(p1=3)/2/Strings/$count", nil)
	require.NoError(t, err)
	assert.Equal(t, kinds(p), kinds(asSegment))
}

func TestParse_NonCountableThroughCast(t *testing.T) {
	b := edm.NewBuilder("NS")
	e := b.EntityType("E", []string{"Id"}, edm.Prop("Id", edm.Primitive(edm.Int32)).NotNull())
	b.DerivedEntityType("D", e)
	set := b.EntitySet("Es", e)
	set.Countable = false
	m, err := b.Build()
	require.NoError(t, err)

	_, err = Parse(m, "Es/NS.D/$count", nil)
	assert.ErrorIs(t, err, ErrNotCountable)

	p, err := Parse(m, "Es/NS.D", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, p.CheckCountable(), ErrNotCountable)

	_, err = Parse(m, "Es", nil)
	assert.NoError(t, err)
}

func TestPath_CheckCountable(t *testing.T) {
	m := testModel(t)
	for path, countable := range map[string]bool{
		"Entities":           true,
		"Entities(1)/Hidden": false,
		"Entities(1)/Secret": false,
	} {
		p, err := Parse(m, path, nil)
		require.NoError(t, err, path)
		if countable {
			assert.NoError(t, p.CheckCountable(), path)
		} else {
			assert.ErrorIs(t, p.CheckCountable(), ErrNotCountable, path)
		}
	}
}
