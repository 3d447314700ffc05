package repository

import (
	"context"

	"nodeclass/internal/domain"
)

// Repository defines the interface for entity store access
type Repository interface {
	// View runs fn in a read transaction
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn under the writer lock in a read-write transaction
	Update(ctx context.Context, fn func(tx Tx) error) error

	// LoadGraph reads every entity and relation in one read transaction
	LoadGraph(ctx context.Context) (*domain.GraphData, error)

	// Close releases resources
	Close() error
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// Read operations
	LoadGraph(ctx context.Context) (*domain.GraphData, error)
	GetNode(ctx context.Context, id int64) (*domain.Node, error)
	GetNodeByName(ctx context.Context, name string) (*domain.Node, error)
	GetGroup(ctx context.Context, id int64) (*domain.NodeGroup, error)
	GetGroupByName(ctx context.Context, name string) (*domain.NodeGroup, error)
	GetClass(ctx context.Context, id int64) (*domain.NodeClass, error)
	GetClassByName(ctx context.Context, name string) (*domain.NodeClass, error)
	ListNodes(ctx context.Context) ([]domain.Node, error)
	ListGroups(ctx context.Context) ([]domain.NodeGroup, error)
	ListClasses(ctx context.Context) ([]domain.NodeClass, error)
	ListInclusions(ctx context.Context) ([]domain.Inclusion, error)
	CountMemberships(ctx context.Context) (int, error)
	CountInclusions(ctx context.Context) (int, error)

	// Node writes
	InsertNode(ctx context.Context, node *domain.Node) error
	DeleteNode(ctx context.Context, id int64) error

	// Group writes
	InsertGroup(ctx context.Context, group *domain.NodeGroup) error
	UpdateGroupFields(ctx context.Context, group *domain.NodeGroup) error
	DeleteGroup(ctx context.Context, id int64) error
	ReplaceGroupClasses(ctx context.Context, groupID int64, classIDs []int64) error
	ReplaceGroupNodes(ctx context.Context, groupID int64, nodeIDs []int64) error

	// Class writes
	InsertClass(ctx context.Context, class *domain.NodeClass) error

	// Parameter writes
	ReplaceParameters(ctx context.Context, owner domain.OwnerType, ownerID int64, params map[string]string) error

	// Relation writes
	InsertMembership(ctx context.Context, m domain.Membership) error
	DeleteMembership(ctx context.Context, m domain.Membership) error
	InsertInclusion(ctx context.Context, inc domain.Inclusion) error
	DeleteInclusion(ctx context.Context, inc domain.Inclusion) error
}
