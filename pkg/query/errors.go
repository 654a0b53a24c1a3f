package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasuganosora/odatacount/pkg/api"
	"github.com/kasuganosora/odatacount/pkg/filter"
	"github.com/kasuganosora/odatacount/pkg/resource/domain"
	"github.com/kasuganosora/odatacount/pkg/uri"
)

var (
	// ErrInvalidOption a malformed or unknown system query option
	ErrInvalidOption = errors.New("invalid query option")
	// ErrNotSupported a valid request this service does not implement
	ErrNotSupported = errors.New("not supported")
	// ErrEntityNotFound a key or single-valued navigation addressed no entity
	ErrEntityNotFound = errors.New("entity not found")
)

func invalidOption(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOption, fmt.Sprintf(format, args...))
}

func notSupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotSupported, fmt.Sprintf(format, args...))
}

// ClassifyError maps an error from uri.Parse, ParseOptions or the Engine to
// an api.Error. Unrecognised errors become INTERNAL with a generic message;
// the original stays in Cause for logging.
func ClassifyError(err error) *api.Error {
	if apiErr, ok := api.AsError(err); ok {
		return apiErr
	}

	var code api.ErrorCode
	var target string
	switch {
	case errors.Is(err, uri.ErrResourceNotFound), errors.Is(err, ErrEntityNotFound):
		code = api.ErrCodeNotFound
	case errors.Is(err, uri.ErrNotCountable):
		code = api.ErrCodeNotCountable
	case errors.Is(err, uri.ErrBadRequest):
		code = api.ErrCodeBadRequest
	case errors.Is(err, filter.ErrInvalidFilter):
		code, target = api.ErrCodeInvalidFilter, "$filter"
	case errors.Is(err, ErrInvalidOption):
		code = api.ErrCodeInvalidParam
	case errors.Is(err, ErrNotSupported):
		code = api.ErrCodeNotSupported
	case errors.Is(err, context.DeadlineExceeded):
		code = api.ErrCodeTimeout
	case errors.Is(err, domain.ErrUnavailable):
		code = api.ErrCodeUnavailable
	default:
		return api.NewError(api.ErrCodeInternal, "internal server error", err)
	}
	return api.NewError(code, err.Error(), err).WithTarget(target)
}
