package domain

import (
	"errors"
	"fmt"
)

// ErrUnavailable matches, via errors.Is, every error meaning the backend
// cannot be reached right now (not connected, connect failed).
var ErrUnavailable = errors.New("data source unavailable")

// ErrNotConnected backend not connected
type ErrNotConnected struct {
	DataSourceType string
}

func (e *ErrNotConnected) Error() string {
	return fmt.Sprintf("data source %s is not connected", e.DataSourceType)
}

func (e *ErrNotConnected) Is(target error) bool { return target == ErrUnavailable }

// ErrConnectionFailed connecting to the backend failed
type ErrConnectionFailed struct {
	DataSourceType string
	Reason         string
	Cause          error
}

func (e *ErrConnectionFailed) Error() string {
	return fmt.Sprintf("failed to connect to %s data source: %s", e.DataSourceType, e.Reason)
}

func (e *ErrConnectionFailed) Is(target error) bool { return target == ErrUnavailable }

func (e *ErrConnectionFailed) Unwrap() error { return e.Cause }

// ErrReadOnly write on a read-only backend
type ErrReadOnly struct {
	DataSourceType string
	Operation      string
}

func (e *ErrReadOnly) Error() string {
	return fmt.Sprintf("data source %s is read-only, cannot %s", e.DataSourceType, e.Operation)
}

// ErrTableNotFound table does not exist
type ErrTableNotFound struct {
	TableName string
}

func (e *ErrTableNotFound) Error() string {
	return fmt.Sprintf("table %s not found", e.TableName)
}

// ErrTableAlreadyExists table already exists
type ErrTableAlreadyExists struct {
	TableName string
}

func (e *ErrTableAlreadyExists) Error() string {
	return fmt.Sprintf("table %s already exists", e.TableName)
}

// ErrDuplicateKey insert without replace hit an existing primary key
type ErrDuplicateKey struct {
	TableName string
	Key       string
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("table %s: duplicate primary key %s", e.TableName, e.Key)
}

// ErrInvalidConfig invalid backend configuration
type ErrInvalidConfig struct {
	ConfigKey string
	Message   string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config for %s: %s", e.ConfigKey, e.Message)
}

func NewErrNotConnected(dataSourceType string) *ErrNotConnected {
	return &ErrNotConnected{DataSourceType: dataSourceType}
}

func NewErrReadOnly(dataSourceType, operation string) *ErrReadOnly {
	return &ErrReadOnly{DataSourceType: dataSourceType, Operation: operation}
}

func NewErrTableNotFound(tableName string) *ErrTableNotFound {
	return &ErrTableNotFound{TableName: tableName}
}

func NewErrTableAlreadyExists(tableName string) *ErrTableAlreadyExists {
	return &ErrTableAlreadyExists{TableName: tableName}
}
