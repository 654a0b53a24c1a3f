package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter a $filter expression that does not parse or type-check
var ErrInvalidFilter = errors.New("invalid $filter")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}
