package receiving

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidationFailed indicates one or more issues block the operation.
	ErrValidationFailed = errors.New("receiving: validation failed")
	// ErrVarianceUnexplained indicates an invoice mismatch without a difference reason.
	ErrVarianceUnexplained = errors.New("receiving: invoice variance requires a difference reason")
	// ErrNotEditable occurs when a non-draft receipt is mutated.
	ErrNotEditable = errors.New("receiving: receipt is not editable")
	// ErrNotPersisted occurs when posting a receipt that was never created.
	ErrNotPersisted = errors.New("receiving: receipt not persisted")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("receiving: not found")
	// ErrConflict indicates the receipt changed since it was read.
	ErrConflict = errors.New("receiving: receipt modified concurrently")
)

// ValidationError carries the complete issue set that blocked a create, update or post.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed.Error(), strings.Join(parts, "; "))
}

// Is matches ErrValidationFailed, and ErrVarianceUnexplained when that issue is present.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidationFailed:
		return true
	case ErrVarianceUnexplained:
		return e.HasCode(IssueVarianceUnexplained)
	}
	return false
}

// HasCode reports whether any issue carries the code.
func (e *ValidationError) HasCode(code IssueCode) bool {
	for _, issue := range e.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
