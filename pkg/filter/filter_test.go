package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/odatacount/pkg/edm"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
)

func testModel(t *testing.T) (*edm.Model, edm.TypeRef) {
	t.Helper()
	b := edm.NewBuilder("NS")
	color := b.EnumType("Color", true,
		edm.EnumMember{Name: "Red", Value: 1},
		edm.EnumMember{Name: "Green", Value: 2},
		edm.EnumMember{Name: "Blue", Value: 4},
	)
	b.EnumType("Size", false, edm.EnumMember{Name: "Small", Value: 0})
	addr := b.ComplexType("Address", edm.Prop("City", edm.Primitive(edm.String)))
	product := b.EntityType("Product", []string{"Id"},
		edm.Prop("Id", edm.Primitive(edm.Int32)).NotNull(),
		edm.Prop("Name", edm.Primitive(edm.String)),
		edm.Prop("Price", edm.Primitive(edm.Double)),
		edm.Prop("Active", edm.Primitive(edm.Boolean)),
		edm.Prop("Color", color.Ref()),
		edm.Prop("Wait", edm.Primitive(edm.Duration)),
		edm.Prop("Created", edm.Primitive(edm.DateTimeOffset)),
		edm.Prop("Address", addr.Ref()),
		edm.Prop("Tags", edm.CollectionOf(edm.Primitive(edm.String))),
	)
	b.DerivedEntityType("Special", product, edm.Prop("Extra", edm.Primitive(edm.String)))
	product.AddNavigation(edm.Nav("Related", product, "", true).StoredAsKeys("RelatedIds"))
	b.EntitySet("Products", product)
	m, err := b.Build()
	require.NoError(t, err)
	return m, edm.CollectionOf(product.Ref())
}

func row() map[string]interface{} {
	return map[string]interface{}{
		"Id":      int64(3),
		"Name":    "Widget_1",
		"Price":   2.5,
		"Active":  true,
		"Color":   int64(5),
		"Wait":    90 * time.Second,
		"Created": time.Date(2021, 3, 4, 10, 30, 15, 0, time.UTC),
		"Address": map[string]interface{}{"City": "Oslo"},
		"Tags":    []interface{}{"a"},
	}
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Id eq 1 or Id eq 2 and Name eq 'x'", "((Id eq 1) or ((Id eq 2) and (Name eq 'x')))"},
		{"not Id eq 1", "not (Id eq 1)"},
		{"Id add 2 mul 3 gt -4", "((Id add (2 mul 3)) gt -4)"},
		{"-Id lt 0", "(-Id lt 0)"},
		{"(Id eq 1 or Id eq 2) and Active", "(((Id eq 1) or (Id eq 2)) and Active)"},
		{"Id in (1, 2,3)", "(Id in (1,2,3))"},
		{"Address/City eq 'Oslo'", "(Address/City eq 'Oslo')"},
		{"contains(tolower(Name),'wid')", "contains(tolower(Name),'wid')"},
		{"$it eq 'a'", "($it eq 'a')"},
		{"Color has NS.Color'Red'", "(Color has NS.Color'Red')"},
		{"Wait gt duration'PT1M'", "(Wait gt duration'PT1M')"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, _ := testModel(t)
			e, err := Parse(m, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	m, _ := testModel(t)
	for _, in := range []string{
		"",
		"Id eq",
		"Id eq 1 eq 2",
		"(Id eq 1",
		"Name eq 'x",
		"nosuch(Name)",
		"Id eq 1)",
		"Id ! 1",
		"Address/",
		"Color has NS.Nope'Red'",
	} {
		_, err := Parse(m, in)
		assert.ErrorIs(t, err, ErrInvalidFilter, in)
	}
}

func TestBind_Errors(t *testing.T) {
	m, elem := testModel(t)
	for _, in := range []string{
		"Nope eq 1",
		"Id",
		"Name eq 1",
		"Id add 'x' eq 1",
		"Active and Id",
		"Tags eq 'a'",
		"Related eq null",
		"Color has 'Purple'",
		"Color has NS.Size'Small'",
		"Id has 1",
		"length(Id) eq 1",
		"substring(Name) eq 'x'",
		"Address gt null",
		"Address/Nope eq 1",
		"NS.Special/Extra eq 'x'",
		"Id in (1,'a')",
	} {
		_, err := Compile(m, in, elem)
		assert.ErrorIs(t, err, ErrInvalidFilter, in)
	}

	_, err := Compile(m, "Address gt null", elem)
	assert.ErrorContains(t, err, "and null with 'gt'")
}

func TestMatch(t *testing.T) {
	m, elem := testModel(t)

	tests := []struct {
		in   string
		want bool
	}{
		{"Id eq 3", true},
		{"Id eq 3.0", true},
		{"Id ne 3", false},
		{"Price gt 2", true},
		{"Price le 2.5 and Id ge 3", true},
		{"Name eq 'Widget_1'", true},
		{"Name gt 'Widget'", true},
		{"Active", true},
		{"not Active", false},
		{"Color has NS.Color'Red'", true},
		{"Color has 'Blue'", true},
		{"Color has NS.Color'Green'", false},
		{"Color has NS.Color'Red,Blue'", true},
		{"Color eq 'Red, Blue'", true},
		{"Color eq NS.Color'Red'", false},
		{"Wait gt duration'PT1M'", true},
		{"Wait eq duration'PT1M30S'", true},
		{"Wait add duration'PT30S' eq duration'PT2M'", true},
		{"Created gt 2021-03-04T10:00:00Z", true},
		{"Created lt 2021-03-04T11:00:00+02:00", false},
		{"year(Created) eq 2021 and month(Created) eq 3 and day(Created) eq 4", true},
		{"hour(Created) eq 10 and minute(Created) eq 30 and second(Created) eq 15", true},
		{"Address/City eq 'Oslo'", true},
		{"Id in (1,2,3)", true},
		{"Id in (4)", false},
		{"Id mod 2 eq 1", true},
		{"Id div 2 eq 1", true},
		{"Id divby 2 eq 1.5", true},
		{"Id mul Price eq 7.5", true},
		{"-Id eq -3", true},
		{"contains(Name, 'dget')", true},
		{"startswith(Name, 'Wid') and endswith(Name, '_1')", true},
		{"length(Name) eq 8", true},
		{"indexof(Name, 'g') eq 3", true},
		{"substring(Name, 1, 3) eq 'idg'", true},
		{"substring(Name, 6) eq '_1'", true},
		{"tolower(Name) eq 'widget_1' and toupper(Name) eq 'WIDGET_1'", true},
		{"trim(concat(' ', Name)) eq 'Widget_1'", true},
		{"round(Price) eq 3 and floor(Price) eq 2 and ceiling(Price) eq 3", true},
		{"Extra eq null", true},
		{"Id gt null", false},
		{"not (Name le null)", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := Compile(m, tt.in, elem)
			require.NoError(t, err)
			got, err := b.Match(row())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_Nulls(t *testing.T) {
	m, elem := testModel(t)
	r := map[string]interface{}{"Id": int64(1), "Name": nil}

	tests := []struct {
		in   string
		want bool
	}{
		{"Name eq null", true},
		{"Name ne null", false},
		{"Name eq 'x'", false},
		{"Name ne 'x'", true},
		{"Name gt 'x'", false},
		{"Name le 'x'", false},
		{"Name gt null", false},
		{"null lt Name", false},
		{"Color ge null", false},
		{"not (Name eq 'x')", true},
		{"length(Name) eq 0", false},
		{"length(Name) ne 0", true},
		{"Price add 1 eq null", true},
		{"Name eq 'x' or Id eq 1", true},
		{"Name in ('x', null)", true},
		{"Color has NS.Color'Red'", false},
		{"Id div 0 eq null", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := Compile(m, tt.in, elem)
			require.NoError(t, err)
			got, err := b.Match(r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_PrimitiveElements(t *testing.T) {
	m, _ := testModel(t)
	color, _ := m.EnumType("NS.Color")

	b, err := Compile(m, "$it eq 'b' or startswith($it, 'c')", edm.CollectionOf(edm.Primitive(edm.String)))
	require.NoError(t, err)
	for v, want := range map[string]bool{"a": false, "b": true, "cat": true} {
		got, err := b.Match(v)
		require.NoError(t, err)
		assert.Equal(t, want, got, v)
	}

	b, err = Compile(m, "$it has NS.Color'Blue'", edm.CollectionOf(color.Ref()))
	require.NoError(t, err)
	got, err := b.Match(int64(6))
	require.NoError(t, err)
	assert.True(t, got)

	b, err = Compile(m, "$it lt duration'PT3S'", edm.CollectionOf(edm.Primitive(edm.Duration)))
	require.NoError(t, err)
	got, err = b.Match(2 * time.Second)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestToDomainFilter(t *testing.T) {
	m, elem := testModel(t)

	tests := []struct {
		in   string
		want domain.Filter
		ok   bool
	}{
		{"Id eq 3", domain.Filter{Field: "Id", Operator: "=", Value: int64(3)}, true},
		{"3 lt Id", domain.Filter{Field: "Id", Operator: ">", Value: int64(3)}, true},
		{"Name ne null", domain.Filter{Field: "Name", Operator: "IS NOT NULL"}, true},
		{"Name ne 'x'", domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{
			{Field: "Name", Operator: "!=", Value: "x"},
			{Field: "Name", Operator: "IS NULL"},
		}}, true},
		{"Active", domain.Filter{Field: "Active", Operator: "=", Value: true}, true},
		{"Id in (1,2)", domain.Filter{Field: "Id", Operator: "IN", Value: []interface{}{int64(1), int64(2)}}, true},
		{"contains(Name,'a%b')", domain.Filter{Field: "Name", Operator: "LIKE", Value: `%a\%b%`}, true},
		{"startswith(Name,'W')", domain.Filter{Field: "Name", Operator: "LIKE", Value: "W%"}, true},
		{"Id gt 1 and Price lt 2.5", domain.Filter{LogicOp: "AND", SubFilters: []domain.Filter{
			{Field: "Id", Operator: ">", Value: int64(1)},
			{Field: "Price", Operator: "<", Value: 2.5},
		}}, true},
		{"Id eq 1 or Name eq 'x'", domain.Filter{LogicOp: "OR", SubFilters: []domain.Filter{
			{Field: "Id", Operator: "=", Value: int64(1)},
			{Field: "Name", Operator: "=", Value: "x"},
		}}, true},
		{"not Active", domain.Filter{}, false},
		{"Color has NS.Color'Red'", domain.Filter{}, false},
		{"Wait gt duration'PT1M'", domain.Filter{}, false},
		{"Address/City eq 'Oslo'", domain.Filter{}, false},
		{"Id add 1 eq 2", domain.Filter{}, false},
		{"Id eq Price", domain.Filter{}, false},
		{"Id gt 1 and tolower(Name) eq 'x'", domain.Filter{}, false},
		{"Name gt null", domain.Filter{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := Compile(m, tt.in, elem)
			require.NoError(t, err)
			got, ok := ToDomainFilter(b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	f, ok := ToDomainFilter(nil)
	assert.True(t, ok)
	assert.True(t, f.IsEmpty())

	b, err := Compile(m, "$it eq 'a'", edm.CollectionOf(edm.Primitive(edm.String)))
	require.NoError(t, err)
	_, ok = ToDomainFilter(b)
	assert.False(t, ok)
}

func TestCompileOrderBy(t *testing.T) {
	m, elem := testModel(t)

	o, err := CompileOrderBy(m, "Name desc, Id", elem)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[0].Desc)
	assert.False(t, o.Items[1].Desc)

	a := map[string]interface{}{"Id": int64(1), "Name": "b"}
	b := map[string]interface{}{"Id": int64(2), "Name": "b"}
	c := map[string]interface{}{"Id": int64(3), "Name": "a"}
	n := map[string]interface{}{"Id": int64(4)}

	got, err := o.Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, -1, got)
	got, err = o.Compare(a, c)
	require.NoError(t, err)
	assert.Equal(t, -1, got)
	// nulls first, reversed by desc
	got, err = o.Compare(n, c)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	for _, bad := range []string{"", "Nope", "Id,", "Id up", "Address"} {
		_, err := CompileOrderBy(m, bad, elem)
		assert.ErrorIs(t, err, ErrInvalidFilter, bad)
	}
}
