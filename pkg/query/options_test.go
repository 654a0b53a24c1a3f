package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	q := url.Values{
		"$filter":  {"Id gt 1"},
		"$orderby": {"Id desc"},
		"$top":     {"5"},
		"$skip":    {"2"},
		"$count":   {"true"},
		"$select":  {"Id, Name"},
		"$format":  {"json"},
		"@p1":      {"3"},
		"custom":   {"x"},
	}
	opts, err := ParseOptions(q, 100)
	require.NoError(t, err)
	assert.Equal(t, &Options{
		Filter:  "Id gt 1",
		OrderBy: "Id desc",
		Top:     5,
		Skip:    2,
		Count:   true,
		Select:  []string{"Id", "Name"},
	}, opts)

	opts, err = ParseOptions(url.Values{}, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, opts.Top)
}

func TestParseOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
		want error
	}{
		{"bad count", url.Values{"$count": {"yes"}}, ErrInvalidOption},
		{"negative top", url.Values{"$top": {"-1"}}, ErrInvalidOption},
		{"top over limit", url.Values{"$top": {"11"}}, ErrInvalidOption},
		{"bad skip", url.Values{"$skip": {"x"}}, ErrInvalidOption},
		{"unknown", url.Values{"$foo": {"1"}}, ErrInvalidOption},
		{"duplicate", url.Values{"$filter": {"a", "b"}}, ErrInvalidOption},
		{"empty filter", url.Values{"$filter": {" "}}, ErrInvalidOption},
		{"xml", url.Values{"$format": {"xml"}}, ErrInvalidOption},
		{"select item", url.Values{"$select": {"Id,"}}, ErrInvalidOption},
		{"expand", url.Values{"$expand": {"Nav"}}, ErrNotSupported},
		{"search", url.Values{"$search": {"x"}}, ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.q, 10)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
