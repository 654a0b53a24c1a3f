package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeNotCountable, http.StatusBadRequest},
		{ErrCodeInvalidFilter, http.StatusBadRequest},
		{ErrCodeInvalidParam, http.StatusBadRequest},
		{ErrCodeNotSupported, http.StatusNotImplemented},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeTimeout, http.StatusGatewayTimeout},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrorCode("whatever"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), tt.code)
	}
}

func TestNewError(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrCodeInvalidFilter, "bad filter", cause).WithTarget("$filter")

	assert.Equal(t, "[INVALID_FILTER] bad filter: boom", err.Error())
	assert.Equal(t, "$filter", err.Target)
	assert.ErrorIs(t, err, cause)
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0], "TestNewError")
}

func panicky() {
	panic("nil map")
}

func TestNewError_StackInRecover(t *testing.T) {
	var err *Error
	func() {
		defer func() {
			if recover() != nil {
				err = NewError(ErrCodeInternal, "internal server error", nil)
			}
		}()
		panicky()
	}()

	require.NotNil(t, err)
	assert.Contains(t, strings.Join(err.Stack, "\n"), "panicky")
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewError(ErrCodeNotCountable, "the property 'X' cannot be used for $count", nil))

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotCountable, apiErr.Code)
	assert.Equal(t, ErrCodeNotCountable, GetErrorCode(err))
	assert.Equal(t, "the property 'X' cannot be used for $count", GetErrorMessage(err))

	plain := errors.New("plain")
	assert.Equal(t, ErrCodeInternal, GetErrorCode(plain))
	assert.Equal(t, "plain", GetErrorMessage(plain))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
	assert.Equal(t, "", GetErrorMessage(nil))
	assert.Equal(t, "boom", GetErrorMessage(NewError(ErrCodeInternal, "", errors.New("boom"))))
}
