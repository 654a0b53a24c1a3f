package query

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/fixture"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

func TestClassifyError(t *testing.T) {
	m := fixture.MustModel()
	parseErr := func(path string) error {
		_, err := uri.Parse(m, path, url.Values{})
		return err
	}

	tests := []struct {
		name   string
		err    error
		code   api.ErrorCode
		target string
	}{
		{"unknown set", parseErr("Nope/$count"), api.ErrCodeNotFound, ""},
		{"not countable", parseErr("DollarCountEntities(1)/DollarCountNotAllowedCollectionProp/$count"), api.ErrCodeNotCountable, ""},
		{"entity", fmt.Errorf("key 42: %w", ErrEntityNotFound), api.ErrCodeNotFound, ""},
		{"option", invalidOption("$top must be a non-negative integer"), api.ErrCodeInvalidParam, ""},
		{"unsupported", notSupported("$expand"), api.ErrCodeNotSupported, ""},
		{"timeout", fmt.Errorf("count: %w", context.DeadlineExceeded), api.ErrCodeTimeout, ""},
		{"unavailable", fmt.Errorf("route: %w", domain.NewErrNotConnected("mysql")), api.ErrCodeUnavailable, ""},
		{"already classified", api.NewError(api.ErrCodeUnavailable, "down", nil), api.ErrCodeUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.target, got.Target)
		})
	}

	e := newEngine(t, nil)
	p := parse(t, e, "DollarCountEntities/$count", nil)
	_, err := e.Count(context.Background(), p, &Options{Filter: "Nope eq 1"})
	got := ClassifyError(err)
	assert.Equal(t, api.ErrCodeInvalidFilter, got.Code)
	assert.Equal(t, "$filter", got.Target)

	internal := ClassifyError(errors.New("disk on fire"))
	assert.Equal(t, api.ErrCodeInternal, internal.Code)
	assert.Equal(t, "internal server error", internal.Message)
	assert.EqualError(t, internal.Cause, "disk on fire")
}
