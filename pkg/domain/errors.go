package domain

import (
	"errors"
	"fmt"
)

// QuotaExceededError signals that the storage engine refused a write because
// it would exceed available capacity. Callers distinguish it from generic
// storage failures to offer remediation (delete older records, free space).
type QuotaExceededError struct {
	Op  string
	Err error
}

func (e *QuotaExceededError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage quota exceeded during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage quota exceeded during %s", e.Op)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err is, or wraps, a quota-exceeded failure.
func IsQuotaExceeded(err error) bool {
	var q *QuotaExceededError
	return errors.As(err, &q)
}
