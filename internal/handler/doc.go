// Package handler implements the HTTP API of nodeclass.
//
// # Handlers
//
// Classification endpoints serve the ENC document of a node in YAML or
// JSON and an explanation of where each parameter came from. Graph
// endpoints create and edit nodes, classes, groups, inclusions and
// memberships. The export endpoint renders the whole graph as an Ansible
// inventory.
//
// Middleware provides request IDs, request logging, panic recovery and
// CORS support.
//
// # Errors
//
// Errors are returned as JSON {error, edge} with the status derived from
// the domain error: not found 404, conflict 409, cycle 422 (edge names the
// rejected inclusion), forbidden 403, store timeout 503 and invalid input
// 400. Successful updates and deletes answer 204.
//
// # Server-Sent Events
//
// The /events endpoint streams change events published by the services.
package handler
