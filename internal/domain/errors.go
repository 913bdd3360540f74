package domain

import (
	"errors"
	"fmt"
)

// ErrConfigInvalid marks a missing or malformed setting at startup.
var ErrConfigInvalid = errors.New("invalid configuration")

// Store names the external store an error came from.
type Store string

const (
	StoreSource     Store = "source"
	StoreTarget     Store = "target"
	StoreMonitoring Store = "monitoring"
)

// StoreError is a connectivity or query failure against a store.
// A source StoreError is SourceUnavailable, a target one TargetUnavailable.
type StoreError struct {
	Store Store
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store unavailable: %s: %v", e.Store, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err is a StoreError for the given store.
func IsStoreError(err error, store Store) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Store == store
}

// RowTransformError is a single row that could not be normalised.
type RowTransformError struct {
	TamperLogID int64
	Field       string
	Err         error
}

func (e *RowTransformError) Error() string {
	return fmt.Sprintf("tamper log %d: field %s: %v", e.TamperLogID, e.Field, e.Err)
}

func (e *RowTransformError) Unwrap() error { return e.Err }

// LoadError is a failed batch commit. Nothing of the batch was applied.
type LoadError struct {
	Rows    int
	FirstID int64
	LastID  int64
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load of %d rows (tamper_log_id %d..%d) failed: %v", e.Rows, e.FirstID, e.LastID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CycleError is any unrecovered failure of one ETL cycle. Summary holds the
// progress made before the failure.
type CycleError struct {
	RunID   string
	Summary RunSummary
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("etl cycle %s failed: %v", e.RunID, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
