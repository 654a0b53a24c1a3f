package edm

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, inv *Invocation) (interface{}, error) { return nil, nil }

func testModel(t *testing.T) (*Model, *EnumType) {
	t.Helper()
	b := NewBuilder("Shop")
	color := b.EnumType("Color", true,
		EnumMember{Name: "Red", Value: 1},
		EnumMember{Name: "Green", Value: 2},
		EnumMember{Name: "Blue", Value: 4},
	)
	addr := b.ComplexType("Address", Prop("City", Primitive(String)))
	product := b.EntityType("Product", []string{"Id"},
		Prop("Id", Primitive(Int32)).NotNull(),
		Prop("Colors", CollectionOf(color.Ref())),
		Prop("Addresses", CollectionOf(addr.Ref())),
		Prop("Secret", CollectionOf(Primitive(Int32))).NotCountable(),
	)
	special := b.DerivedEntityType("SpecialProduct", product, Prop("Extra", Primitive(String)))
	product.AddNavigation(Nav("Related", product, "Products", true).StoredAsKeys("RelatedIds"))
	b.EntitySet("Products", product)
	b.Function(&Function{
		Namespace:   "Default",
		Name:        "Top",
		Bound:       true,
		BindingType: CollectionOf(product.Ref()),
		ReturnType:  CollectionOf(special.Ref()),
		Handler:     noop,
	})
	b.Function(&Function{
		Name:       "Numbers",
		Parameters: []Parameter{{Name: "n", Type: Primitive(Int32)}},
		ReturnType: CollectionOf(Primitive(Int32)),
		Handler:    noop,
	})
	m, err := b.Build()
	require.NoError(t, err)
	return m, color
}

func TestBuilder_Lookups(t *testing.T) {
	m, _ := testModel(t)

	set, ok := m.EntitySet("Products")
	require.True(t, ok)
	assert.Equal(t, "Shop.Product", set.EntityType.QualifiedName())

	special, ok := m.EntityType("Shop.SpecialProduct")
	require.True(t, ok)
	assert.True(t, special.IsDerivedFrom(set.EntityType))
	assert.False(t, set.EntityType.IsDerivedFrom(special))
	assert.Equal(t, []string{"Id"}, special.Root().Key)

	p, ok := special.Property("Colors")
	require.True(t, ok)
	assert.Equal(t, "Collection(Shop.Color)", p.Type.String())

	_, ok = special.NavigationProperty("Related")
	assert.True(t, ok)

	assert.Len(t, m.DerivedTypes(set.EntityType), 2)
	assert.Len(t, m.BoundFunctions("Default.Top"), 1)

	f, ok := m.UnboundFunction("Numbers")
	require.True(t, ok)
	assert.Equal(t, "Shop.Numbers", f.QualifiedName())

	ref, ok := m.FindType("Collection(Shop.Address)")
	require.True(t, ok)
	assert.Equal(t, KindComplex, ref.Kind)
	assert.True(t, ref.Collection)

	assert.True(t, m.IsAssignable(CollectionOf(special.Ref()), CollectionOf(set.EntityType.Ref())))
	assert.False(t, m.IsAssignable(set.EntityType.Ref(), CollectionOf(set.EntityType.Ref())))
}

func TestBuilder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		msg   string
	}{
		{"missing key", func(b *Builder) {
			b.EntityType("E", []string{"Id"}, Prop("Name", Primitive(String)))
		}, "key property Id not found"},
		{"duplicate type", func(b *Builder) {
			b.ComplexType("T")
			b.ComplexType("T")
		}, "duplicate type name"},
		{"unknown property type", func(b *Builder) {
			b.EntityType("E", []string{"Id"}, Prop("Id", Primitive(Int32)), Prop("X", TypeRef{Kind: KindComplex, Name: "N.Nope"}))
		}, "unknown type N.Nope"},
		{"collection nav without storage", func(b *Builder) {
			e := b.EntityType("E", []string{"Id"}, Prop("Id", Primitive(Int32)))
			e.AddNavigation(Nav("Others", e, "", true))
		}, "needs a key field or a foreign key"},
		{"function without handler", func(b *Builder) {
			b.Function(&Function{Name: "F", ReturnType: Primitive(Int32)})
		}, "no handler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("N")
			tt.build(b)
			_, err := b.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEnumType_ParseFormat(t *testing.T) {
	_, color := testModel(t)

	v, err := color.Parse("Red, Blue")
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = color.Parse("Green,Blue")
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	_, err = color.Parse("Purple")
	assert.Error(t, err)

	assert.Equal(t, "Red", color.Format(1))
	assert.Equal(t, "Red, Blue", color.Format(5))
	assert.Equal(t, "8", color.Format(8))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		out  string
	}{
		{"PT1S", time.Second, "PT1S"},
		{"P1DT2H", 26 * time.Hour, "P1DT2H"},
		{"PT1M30.5S", 90*time.Second + 500*time.Millisecond, "PT1M30.5S"},
		{"-PT3S", -3 * time.Second, "-PT3S"},
		{"P2D", 48 * time.Hour, "P2D"},
		{"PT0S", 0, "PT0S"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
			assert.Equal(t, tt.out, FormatDuration(d))
		})
	}

	for _, bad := range []string{"", "P", "PT", "1S", "P1H", "PT1D", "PT1S1S", "P1.5D"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLiteral(t *testing.T) {
	m, _ := testModel(t)

	tests := []struct {
		in    string
		kind  string
		value interface{}
	}{
		{"'O''Neil'", "Edm.String", "O'Neil"},
		{"42", "Edm.Int32", int64(42)},
		{"4294967296", "Edm.Int64", int64(4294967296)},
		{"1.5", "Edm.Decimal", 1.5},
		{"1e3", "Edm.Double", 1000.0},
		{"true", "Edm.Boolean", true},
		{"duration'PT3S'", "Edm.Duration", 3 * time.Second},
		{"Shop.Color'Red,Green'", "Shop.Color", int64(3)},
		{"2020-01-02", "Edm.Date", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"01234567-89AB-CDEF-0123-456789ABCDEF", "Edm.Guid", "01234567-89ab-cdef-0123-456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lit, err := ParseLiteral(m, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, lit.Type.Name)
			assert.Equal(t, tt.value, lit.Value)
		})
	}

	lit, err := ParseLiteral(m, "null")
	require.NoError(t, err)
	assert.True(t, lit.IsNull())

	for _, bad := range []string{"'open", "'a'b'", "Shop.Nope'x'", "12abc"} {
		_, err := ParseLiteral(m, bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatLiteral(t *testing.T) {
	m, color := testModel(t)

	tests := []struct {
		lit  Literal
		want string
	}{
		{Literal{}, "null"},
		{Literal{Type: Primitive(String), Value: "O'Neil"}, "'O''Neil'"},
		{Literal{Type: Primitive(Int32), Value: int64(42)}, "42"},
		{Literal{Type: Primitive(Int64), Value: int64(42)}, "42L"},
		{Literal{Type: Primitive(Int64), Value: int64(4294967296)}, "4294967296"},
		{Literal{Type: Primitive(Decimal), Value: 3.0}, "3.0"},
		{Literal{Type: Primitive(Decimal), Value: -1.25}, "-1.25"},
		{Literal{Type: Primitive(Double), Value: 1000.0}, "1E+03"},
		{Literal{Type: Primitive(Double), Value: math.Inf(-1)}, "-INF"},
		{Literal{Type: Primitive(Boolean), Value: false}, "false"},
		{Literal{Type: Primitive(Duration), Value: 26 * time.Hour}, "duration'P1DT2H'"},
		{Literal{Type: Primitive(Date), Value: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)}, "2020-01-02"},
		{Literal{Type: Primitive(DateTimeOffset), Value: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)}, "2021-03-04T05:06:07Z"},
		{Literal{Type: Primitive(Guid), Value: "01234567-89ab-cdef-0123-456789abcdef"}, "01234567-89ab-cdef-0123-456789abcdef"},
		{Literal{Type: color.Ref(), Value: int64(3)}, "Shop.Color'Red,Green'"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			text := FormatLiteral(m, tt.lit)
			assert.Equal(t, tt.want, text)

			back, err := ParseLiteral(m, text)
			require.NoError(t, err)
			assert.Equal(t, tt.lit, back)
		})
	}

	assert.Equal(t, "Shop.Color'3'", FormatLiteral(nil, Literal{Type: color.Ref(), Value: int64(3)}))
}

func TestModel_Convert(t *testing.T) {
	m, color := testModel(t)

	v, err := m.Convert(Literal{Type: Primitive(Int32), Value: int64(3)}, Primitive(Double))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = m.Convert(Literal{Type: Primitive(String), Value: "Blue"}, color.Ref())
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	_, err = m.Convert(Literal{Type: Primitive(Int64), Value: int64(1) << 40}, Primitive(Int32))
	assert.Error(t, err)

	_, err = m.Convert(Literal{Type: Primitive(String), Value: "x"}, Primitive(Int32))
	assert.Error(t, err)
}

func TestModel_NormalizeFormat(t *testing.T) {
	m, color := testModel(t)

	v, err := m.Normalize(CollectionOf(color.Ref()), []interface{}{"Red", "Red, Blue"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(5)}, v)
	assert.Equal(t, []interface{}{"Red", "Red, Blue"}, m.Format(CollectionOf(color.Ref()), v))

	v, err = m.Normalize(CollectionOf(Primitive(Duration)), `["PT1S","PT2S"]`)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{time.Second, 2 * time.Second}, v)

	v, err = m.Normalize(Primitive(Int32), float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = m.Normalize(Primitive(Int32), 7.5)
	assert.Error(t, err)
}

func TestWriteCSDL(t *testing.T) {
	m, _ := testModel(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSDL(&buf, m))
	doc := buf.String()

	assert.Contains(t, doc, `<edmx:Edmx Version="4.0" xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx">`)
	assert.Contains(t, doc, `<Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Default">`)
	assert.Contains(t, doc, `<EnumType Name="Color" IsFlags="true">`)
	assert.Contains(t, doc, `<EntityType Name="SpecialProduct" BaseType="Shop.Product">`)
	assert.Contains(t, doc, `<NavigationProperty Name="Related" Type="Collection(Shop.Product)"></NavigationProperty>`)
	assert.Contains(t, doc, `<Parameter Name="bindingParameter" Type="Collection(Shop.Product)"></Parameter>`)
	assert.Contains(t, doc, `<FunctionImport Name="Numbers" Function="Shop.Numbers" IncludeInServiceDocument="true"></FunctionImport>`)
	assert.Contains(t, doc, `<PropertyPath>Secret</PropertyPath>`)
	assert.Contains(t, doc, `<NavigationPropertyBinding Path="Related" Target="Products"></NavigationPropertyBinding>`)
}
