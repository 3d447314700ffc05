// Package service implements the mutation paths and classification
// queries of nodeclass.
//
// Services coordinate between the HTTP handlers, the CLI and the entity
// store. Every mutation runs inside one store transaction under the writer
// lock, so validation, cycle checks and writes commit together or not at
// all.
//
// # Services
//
// ClassificationService loads a snapshot of the graph, resolves nodes and
// hands results to an exporter. It also builds the Ansible inventory and
// audits the inclusion graph for cycles.
//
// GroupService creates, updates and deletes node groups and manages
// inclusion edges. Proposed edges are checked by the cycle detector inside
// the writing transaction.
//
// MembershipService, NodeService and ClassService manage the remaining
// entities. ImportService applies seed documents.
//
// # Feature gates
//
// A Gate built from config.Features is consulted once at the start of every
// mutating call. Read-only mode rejects all writes; with node
// classification disabled, edits to group classes and parameters are
// rejected with domain.ErrForbidden and nothing is applied.
//
// # Event System
//
// Successful mutations publish events on the EventBus, which the SSE hub
// relays to connected clients.
package service
