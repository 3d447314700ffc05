package service

import (
	"context"

	"nodeclass/internal/domain"
	"nodeclass/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// NodeService manages nodes and their parameter overrides
type NodeService struct {
	base
}

// GetNode retrieves a node by name
func (s *NodeService) GetNode(ctx context.Context, name string) (*domain.Node, error) {
	var node *domain.Node
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		node, err = tx.GetNodeByName(ctx, name)
		return err
	})
	return node, err
}

// ListNodes returns every node ordered by name
func (s *NodeService) ListNodes(ctx context.Context) ([]domain.Node, error) {
	var nodes []domain.Node
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		nodes, err = tx.ListNodes(ctx)
		return err
	})
	return nodes, err
}

// Create persists a node with its overrides, setting node.ID
func (s *NodeService) Create(ctx context.Context, node *domain.Node) error {
	return s.mutate(ctx, "node.create", []attribute.KeyValue{attribute.String("node.name", node.Name)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckClassificationEdit(len(node.Parameters) > 0); err != nil {
				return nil, err
			}
			if err := node.Validate(); err != nil {
				return nil, err
			}
			if err := s.repo.Update(ctx, func(tx repository.Tx) error {
				return tx.InsertNode(ctx, node)
			}); err != nil {
				return nil, err
			}
			return &Event{Type: EventNodeCreated, Payload: map[string]any{"id": node.ID, "name": node.Name}}, nil
		})
}

// SetParameters replaces the named node's parameter overrides
func (s *NodeService) SetParameters(ctx context.Context, name string, params map[string]string) error {
	return s.mutate(ctx, "node.parameters", []attribute.KeyValue{attribute.String("node.name", name)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckClassificationEdit(true); err != nil {
				return nil, err
			}

			candidate := domain.Node{Name: name, Parameters: params}
			if err := candidate.Validate(); err != nil {
				return nil, err
			}

			var id int64
			err := s.repo.Update(ctx, func(tx repository.Tx) error {
				node, err := tx.GetNodeByName(ctx, name)
				if err != nil {
					return err
				}
				id = node.ID
				return tx.ReplaceParameters(ctx, domain.OwnerNode, node.ID, params)
			})
			if err != nil {
				return nil, err
			}
			return &Event{Type: EventNodeUpdated, Payload: map[string]any{"id": id, "name": name}}, nil
		})
}

// Delete removes the named node with its memberships and overrides
func (s *NodeService) Delete(ctx context.Context, name string) error {
	return s.mutate(ctx, "node.delete", []attribute.KeyValue{attribute.String("node.name", name)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckMutation(); err != nil {
				return nil, err
			}
			var id int64
			err := s.repo.Update(ctx, func(tx repository.Tx) error {
				node, err := tx.GetNodeByName(ctx, name)
				if err != nil {
					return err
				}
				id = node.ID
				return tx.DeleteNode(ctx, node.ID)
			})
			if err != nil {
				return nil, err
			}
			return &Event{Type: EventNodeDeleted, Payload: map[string]any{"id": id, "name": name}}, nil
		})
}

// ClassService manages node classes
type ClassService struct {
	base
}

// Create persists a class, setting class.ID
func (s *ClassService) Create(ctx context.Context, class *domain.NodeClass) error {
	return s.mutate(ctx, "class.create", []attribute.KeyValue{attribute.String("class.name", class.Name)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckMutation(); err != nil {
				return nil, err
			}
			if err := class.Validate(); err != nil {
				return nil, err
			}
			if err := s.repo.Update(ctx, func(tx repository.Tx) error {
				return tx.InsertClass(ctx, class)
			}); err != nil {
				return nil, err
			}
			return &Event{Type: EventClassCreated, Payload: map[string]any{"id": class.ID, "name": class.Name}}, nil
		})
}

// ListClasses returns every class ordered by name
func (s *ClassService) ListClasses(ctx context.Context) ([]domain.NodeClass, error) {
	var classes []domain.NodeClass
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		classes, err = tx.ListClasses(ctx)
		return err
	})
	return classes, err
}
