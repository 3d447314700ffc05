// Package domain defines the core domain types for node classification.
//
// # Core Types
//
// Node is a managed machine identified by a unique name. It is assigned
// directly into NodeGroups and may carry its own parameter overrides.
//
// NodeGroup is a named container of classes, parameters, nodes and
// sub-groups. Groups include other groups, forming a directed graph that
// must stay acyclic.
//
// NodeClass is an opaque unit of configuration behaviour emitted verbatim
// into classification output.
//
// Parameter is a key/value pair scoped to a group or a node.
//
// # Relations
//
// Membership joins a node to a group and Inclusion joins a parent group to a
// child group. Both are plain identifier pairs; entities never hold pointers
// to each other, so graph algorithms work over edge lists.
//
// # Classification
//
// Classification is the derived, never persisted result of resolving a node:
// the union of classes from every reachable group and the merged parameter
// map.
//
// # Errors
//
// errors.go holds the error taxonomy shared by every layer: NotFound,
// Conflict, CycleDetected, Forbidden, Timeout and Invalid. Callers match
// them with errors.Is and errors.As.
package domain
