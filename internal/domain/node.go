package domain

import "time"

// Node represents a managed machine receiving computed configuration
type Node struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewNode creates a new node with initialized parameters
func NewNode(name string) *Node {
	now := time.Now()
	return &Node{
		Name:       name,
		Parameters: make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetParameter sets a node-level parameter override
func (n *Node) SetParameter(key, value string) {
	if n.Parameters == nil {
		n.Parameters = make(map[string]string)
	}
	n.Parameters[key] = value
}

// GetParameter gets a node-level parameter override
func (n *Node) GetParameter(key string) (string, bool) {
	if n.Parameters == nil {
		return "", false
	}
	val, ok := n.Parameters[key]
	return val, ok
}

// Validate checks the fields required before a node is persisted
func (n *Node) Validate() error {
	if n.Name == "" {
		return Invalidf("name can't be blank")
	}
	return validateParameterKeys(n.Parameters)
}
