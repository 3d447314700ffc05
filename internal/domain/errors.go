package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for matching with errors.Is
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrCycleDetected = errors.New("cycle detected")
	ErrForbidden     = errors.New("forbidden")
	ErrTimeout       = errors.New("timed out waiting for store")
	ErrInvalid       = errors.New("invalid")
)

// EntityKind names the kind of entity an error refers to
type EntityKind string

const (
	KindNode       EntityKind = "node"
	KindGroup      EntityKind = "node group"
	KindClass      EntityKind = "node class"
	KindMembership EntityKind = "membership"
	KindInclusion  EntityKind = "inclusion"
	KindParameter  EntityKind = "parameter"
)

// NotFoundError reports a reference that does not resolve to an entity
type NotFoundError struct {
	Kind EntityKind
	Ref  string
}

// NotFound builds a NotFoundError for an id or a name
func NotFound(kind EntityKind, ref any) *NotFoundError {
	return &NotFoundError{Kind: kind, Ref: fmt.Sprint(ref)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Ref)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a duplicate membership, inclusion or unique name
type ConflictError struct {
	Kind EntityKind
	Ref  string
}

// Conflict builds a ConflictError
func Conflict(kind EntityKind, ref any) *ConflictError {
	return &ConflictError{Kind: kind, Ref: fmt.Sprint(ref)}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.Ref)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// CycleError names the inclusion edge that was rejected. Path lists the
// existing route from the child back to the parent.
type CycleError struct {
	Parent int64
	Child  int64
	Path   []int64
}

func (e *CycleError) Error() string {
	if e.Parent == e.Child {
		return fmt.Sprintf("cycle detected: group %d cannot include itself", e.Parent)
	}
	hops := make([]string, 0, len(e.Path))
	for _, id := range e.Path {
		hops = append(hops, fmt.Sprint(id))
	}
	return fmt.Sprintf("cycle detected: group %d cannot include group %d (existing path %s)",
		e.Parent, e.Child, strings.Join(hops, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// Edge returns the rejected inclusion
func (e *CycleError) Edge() Inclusion {
	return Inclusion{ParentID: e.Parent, ChildID: e.Child}
}

// ForbiddenError reports a mutation rejected by a feature flag
type ForbiddenError struct {
	Reason string
}

// Forbidden builds a ForbiddenError
func Forbidden(reason string) *ForbiddenError {
	return &ForbiddenError{Reason: reason}
}

func (e *ForbiddenError) Error() string { return e.Reason }

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// InvalidError reports input that fails validation
type InvalidError struct {
	Msg string
}

// Invalidf builds an InvalidError from a format string
func Invalidf(format string, args ...any) *InvalidError {
	return &InvalidError{Msg: fmt.Sprintf(format, args...)}
}

func (e *InvalidError) Error() string { return e.Msg }

func (e *InvalidError) Unwrap() error { return ErrInvalid }
