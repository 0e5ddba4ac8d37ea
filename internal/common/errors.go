// Package common defines shared constants and sentinel errors used across
// the export, query and analysis layers. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Source access errors.
	ErrSourceNotFound = errors.New("activity database not found")
	ErrSourceBusy     = errors.New("activity database is busy")

	// Export lifecycle.
	ErrOperationCancelled = errors.New("operation cancelled")
	ErrSnapshotMissing    = errors.New("snapshot not available, export the database first")

	// Per-record errors.
	ErrDecryption = errors.New("decryption failed")

	// Empty-result conditions.
	ErrNoDataForDate   = errors.New("no data found for date")
	ErrNoActivityTable = errors.New("no activity table found")

	// Validation.
	ErrInvalidDate = errors.New("invalid date")
)

// OpError wraps a failure with the operation, date and table it happened in.
type OpError struct {
	Op    string
	Date  string
	Table string
	Err   error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Table != "" {
		fmt.Fprintf(&b, " [table %s]", e.Table)
	}
	if e.Date != "" {
		fmt.Fprintf(&b, " [date %s]", e.Date)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// Wrap returns err wrapped into an OpError, or nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// WrapTable is Wrap with table context.
func WrapTable(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Table: table, Err: err}
}

// WrapDate is Wrap with date context.
func WrapDate(op, date string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Date: date, Err: err}
}

// Code returns a stable code for the sentinel err matches.
// Unknown errors map to "INTERNAL_ERROR".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceNotFound):
		return "SOURCE_NOT_FOUND"
	case errors.Is(err, ErrSourceBusy):
		return "SOURCE_BUSY"
	case errors.Is(err, ErrOperationCancelled):
		return "OPERATION_CANCELLED"
	case errors.Is(err, ErrSnapshotMissing):
		return "SNAPSHOT_MISSING"
	case errors.Is(err, ErrDecryption):
		return "DECRYPTION_FAILED"
	case errors.Is(err, ErrNoDataForDate):
		return "NO_DATA_FOR_DATE"
	case errors.Is(err, ErrNoActivityTable):
		return "NO_ACTIVITY_TABLE"
	case errors.Is(err, ErrInvalidDate):
		return "INVALID_DATE"
	default:
		return "INTERNAL_ERROR"
	}
}

var byCode = map[string]error{
	"SOURCE_NOT_FOUND":    ErrSourceNotFound,
	"SOURCE_BUSY":         ErrSourceBusy,
	"OPERATION_CANCELLED": ErrOperationCancelled,
	"SNAPSHOT_MISSING":    ErrSnapshotMissing,
	"DECRYPTION_FAILED":   ErrDecryption,
	"NO_DATA_FOR_DATE":    ErrNoDataForDate,
	"NO_ACTIVITY_TABLE":   ErrNoActivityTable,
	"INVALID_DATE":        ErrInvalidDate,
}

// FromCode returns the sentinel for a code produced by Code, or nil.
func FromCode(code string) error {
	return byCode[code]
}
