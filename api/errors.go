package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownField    = errors.New("unknown field")
	ErrMissingField    = errors.New("missing field")
	ErrNoMatch         = errors.New("no matching lead")
	ErrConflict        = errors.New("conflict")
	ErrDuplicateIndex  = errors.New("duplicate index")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidArgument = errors.New("invalid argument")
)

// MissingFieldError records a path descent that hit an absent key.
// It never aborts a projection; it is attached to the affected Item.
type MissingFieldError struct {
	Index int
	Path  string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s on record %d", e.Path, e.Index)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// NoMatchError lists the indices an update or link could not find a lead for.
type NoMatchError struct {
	IndexField string
	Indices    []int
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no matching lead: %s %s (run init first)", e.IndexField, joinInts(e.Indices))
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// ConflictError is returned when a registry field is claimed by a second file.
type ConflictError struct {
	Field    string
	Owner    string
	Claimant string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: field %q is owned by %s, cannot register it for %s", e.Field, e.Owner, e.Claimant)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// DuplicateIndexError is a hard integrity violation in an enrichment output file.
type DuplicateIndexError struct {
	File    string
	Indices []int
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("duplicate index: %s already holds %s", e.File, joinInts(e.Indices))
}

func (e *DuplicateIndexError) Is(target error) bool { return target == ErrDuplicateIndex }

// Kind maps err onto the stable error kind reported in error results.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrDuplicateIndex):
		return "duplicate_index"
	case errors.Is(err, ErrIndexOutOfRange):
		return "index_out_of_range"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "internal"
	}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
