package domain

import "fmt"

// OwnerType scopes a parameter row to either a node or a group
type OwnerType string

const (
	OwnerNode  OwnerType = "node"
	OwnerGroup OwnerType = "group"
)

// Membership assigns a node directly into a group
type Membership struct {
	NodeID  int64 `json:"node_id"`
	GroupID int64 `json:"node_group_id"`
}

// Key returns a stable identifier for the membership pair
func (m Membership) Key() string {
	return fmt.Sprintf("%d:%d", m.NodeID, m.GroupID)
}

// Inclusion assigns a child group as a sub-group of a parent group
type Inclusion struct {
	ParentID int64 `json:"parent_group_id"`
	ChildID  int64 `json:"child_group_id"`
}

// Key returns a stable identifier for the inclusion edge
func (i Inclusion) Key() string {
	return fmt.Sprintf("%d>%d", i.ParentID, i.ChildID)
}

// IsSelfLoop reports whether the edge points a group at itself
func (i Inclusion) IsSelfLoop() bool {
	return i.ParentID == i.ChildID
}

// ClassAssignment assigns a class directly to a group
type ClassAssignment struct {
	GroupID int64 `json:"node_group_id"`
	ClassID int64 `json:"node_class_id"`
}

// Parameter is a key/value pair owned by a node or a group
type Parameter struct {
	OwnerType OwnerType `json:"owner_type"`
	OwnerID   int64     `json:"owner_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
}
