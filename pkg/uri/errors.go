package uri

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceNotFound an unknown entity set, property, type or function
	ErrResourceNotFound = errors.New("resource not found")
	// ErrBadRequest a malformed or invalid path
	ErrBadRequest = errors.New("bad request")
	// ErrNotCountable $count on a resource that disallows it
	ErrNotCountable = errors.New("not countable")
)

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrResourceNotFound, fmt.Sprintf(format, args...))
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func notCountable(name string) error {
	return fmt.Errorf("%w: the property '%s' cannot be used for $count", ErrNotCountable, name)
}
