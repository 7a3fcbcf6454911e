// Package errs holds the sentinel error taxonomy shared by every layer of
// branchdb, from the pager up through the merge engine.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange          = errors.New("page index out of range")
	ErrCorruption          = errors.New("on-disk invariant violated")
	ErrSchemaInvalid       = errors.New("schema invalid")
	ErrTypeMismatch        = errors.New("value kind does not match column type")
	ErrNullViolation       = errors.New("null value for non-nullable column")
	ErrStringInvalid       = errors.New("string value invalid for column")
	ErrRangeError          = errors.New("integer value out of declared range")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrDiffCorruption      = errors.New("diff payload corrupt")
	ErrBranchUnknown       = errors.New("branch unknown")
	ErrNoCommonAncestor    = errors.New("no common ancestor")
	ErrSquashCrossesBranch = errors.New("squash range crosses a branch boundary")
)

// RowKey identifies a single row across a diff for conflict reporting.
type RowKey struct {
	Table string
	Page  int32
	Row   int32
}

func (k RowKey) String() string {
	return fmt.Sprintf("%s(%d,%d)", k.Table, k.Page, k.Row)
}

// MergeConflictError carries the structured payload spec'd for merge
// conflicts: the set of row keys two branches disagree on.
type MergeConflictError struct {
	Keys []RowKey
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on %d row(s)", len(e.Keys))
}
