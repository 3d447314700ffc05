package domain

import "time"

// NodeGroup is a named, composable container of classes, parameters,
// nodes and sub-groups
type NodeGroup struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ClassIDs    []int64           `json:"node_class_ids,omitempty"`
	SubgroupIDs []int64           `json:"node_group_ids,omitempty"`
	NodeIDs     []int64           `json:"node_ids,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewNodeGroup creates a new group with initialized parameters
func NewNodeGroup(name, description string) *NodeGroup {
	now := time.Now()
	return &NodeGroup{
		Name:        name,
		Description: description,
		Parameters:  make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks the fields required before a group is persisted
func (g *NodeGroup) Validate() error {
	if g.Name == "" {
		return Invalidf("name can't be blank")
	}
	return validateParameterKeys(g.Parameters)
}

// NodeClass is an opaque named unit of configuration behaviour
type NodeClass struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required before a class is persisted
func (c *NodeClass) Validate() error {
	if c.Name == "" {
		return Invalidf("name can't be blank")
	}
	return nil
}

// GroupUpdate describes a partial edit of a group. A nil field is left
// untouched; a non-nil empty slice or map clears the association.
type GroupUpdate struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ClassIDs    []int64           `json:"node_class_ids,omitempty"`
	SubgroupIDs []int64           `json:"node_group_ids,omitempty"`
	NodeIDs     []int64           `json:"node_ids,omitempty"`
}

// TouchesClassification reports whether applying the update would change
// the classes or parameters contributed by the group
func (u *GroupUpdate) TouchesClassification() bool {
	return u.Parameters != nil || u.ClassIDs != nil
}

// IsEmpty reports whether the update changes nothing
func (u *GroupUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Parameters == nil &&
		u.ClassIDs == nil && u.SubgroupIDs == nil && u.NodeIDs == nil
}

func validateParameterKeys(params map[string]string) error {
	for key := range params {
		if key == "" {
			return Invalidf("parameter key can't be blank")
		}
	}
	return nil
}
