// Package fetcherr holds the errors raised while fetching aggregation inputs from upstream.
package fetcherr

import (
	"errors"
	"fmt"
)

const (
	OpCollectionPage = "collection_page"
	OpTopByYear      = "top_by_year"
	OpUser           = "user"
	OpAvatar         = "avatar"
)

var (
	// ErrIncompleteCollection matches any *IncompleteCollection with errors.Is.
	ErrIncompleteCollection = errors.New("incomplete collection")
	// ErrIncompleteMatrix matches any *IncompleteMatrix with errors.Is.
	ErrIncompleteMatrix = errors.New("incomplete popularity matrix")
)

// FetchFailure is a single failed upstream call. Page is the zero-based page index for
// collection pages and Year is set for per-year queries.
type FetchFailure struct {
	Op     string
	UserID string
	Page   int
	Offset int
	Year   int
	Err    error
}

func (e *FetchFailure) Error() string {
	switch e.Op {
	case OpCollectionPage:
		return fmt.Sprintf("fetch %s of %q failed at page %d (offset %d): %v", e.Op, e.UserID, e.Page, e.Offset, e.Err)
	case OpTopByYear:
		return fmt.Sprintf("fetch %s failed for year %d: %v", e.Op, e.Year, e.Err)
	default:
		return fmt.Sprintf("fetch %s of %q failed: %v", e.Op, e.UserID, e.Err)
	}
}

func (e *FetchFailure) Unwrap() error {
	return e.Err
}

// IncompleteCollection is raised when the first collection page fails, leaving the total unknown.
type IncompleteCollection struct {
	Cause *FetchFailure
}

func (e *IncompleteCollection) Error() string {
	return "incomplete collection: " + e.Cause.Error()
}

func (e *IncompleteCollection) Unwrap() []error {
	return []error{ErrIncompleteCollection, e.Cause}
}

// IncompleteMatrix is raised when a year query fails under the strict year failure policy.
type IncompleteMatrix struct {
	Cause *FetchFailure
}

func (e *IncompleteMatrix) Error() string {
	return "incomplete popularity matrix: " + e.Cause.Error()
}

func (e *IncompleteMatrix) Unwrap() []error {
	return []error{ErrIncompleteMatrix, e.Cause}
}

// Retryable reports whether err is an upstream fetch problem a client may retry.
func Retryable(err error) bool {
	var ff *FetchFailure
	return errors.As(err, &ff)
}
