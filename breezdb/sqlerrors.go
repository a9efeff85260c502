package breezdb

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrSwapNotFound is returned when no swap matches a lookup or
	// update.
	ErrSwapNotFound = errors.New("swap not found")

	// ErrMissingOpeningFees is returned when a swap is inserted without
	// the channel opening fee quote it was created with.
	ErrMissingOpeningFees = errors.New("swap has no channel opening fees")

	// ErrDirtyDatabase is returned when a previous migration failed half
	// way and the schema needs manual attention.
	ErrDirtyDatabase = errors.New("database is in a dirty migration state")
)

// MapSQLError attempts to interpret a given error as a database agnostic SQL
// error.
func MapSQLError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return parseSqliteError(sqliteErr)
	}

	// Sometimes the error won't be properly wrapped, so we'll need to
	// inspect the raw error itself.
	const sqliteErrMsg = "SQLITE_BUSY"
	if strings.Contains(err.Error(), sqliteErrMsg) {
		return &ErrSerializationError{
			DBError: err,
		}
	}

	return err
}

// parseSqliteError attempts to parse a sqlite error as a database agnostic
// SQL error.
func parseSqliteError(sqliteErr *sqlite.Error) error {
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return &ErrSQLUniqueConstraintViolation{
			DBError: sqliteErr,
		}

	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return &ErrSQLUniqueConstraintViolation{
			DBError: sqliteErr,
		}

	// Database is currently busy, so we'll need to try again.
	case sqlite3.SQLITE_BUSY:
		return &ErrSerializationError{
			DBError: sqliteErr,
		}

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrSQLUniqueConstraintViolation is an error type which represents a
// database agnostic SQL unique constraint violation.
type ErrSQLUniqueConstraintViolation struct {
	DBError error
}

func (e ErrSQLUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("sql unique constraint violation: %v", e.DBError)
}

// ErrSerializationError is an error type which represents a database
// agnostic error that a transaction couldn't be serialized with other
// concurrent db transactions.
type ErrSerializationError struct {
	DBError error
}

// Unwrap returns the wrapped error.
func (e ErrSerializationError) Unwrap() error {
	return e.DBError
}

// Error returns the error message.
func (e ErrSerializationError) Error() string {
	return e.DBError.Error()
}

// IsUniqueConstraintViolation returns true if the given error is a unique
// constraint violation.
func IsUniqueConstraintViolation(err error) bool {
	var uniqueErr *ErrSQLUniqueConstraintViolation
	return errors.As(err, &uniqueErr)
}

// PersistError is returned by every store operation that failed. Op names
// the failed operation.
type PersistError struct {
	Op  string
	Err error
}

// Error returns the error message.
func (e *PersistError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

// Unwrap returns the mapped SQL error.
func (e *PersistError) Unwrap() error {
	return e.Err
}

// persistErr maps err and wraps it as a PersistError. A nil err yields nil.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var pErr *PersistError
	if errors.As(err, &pErr) {
		return err
	}

	return &PersistError{Op: op, Err: MapSQLError(err)}
}
