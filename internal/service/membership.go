package service

import (
	"context"

	"nodeclass/internal/domain"
	"nodeclass/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// MembershipService assigns nodes directly into groups
type MembershipService struct {
	base
}

// Create assigns a node to a group by identifiers. A duplicate pair fails
// with domain.ErrConflict and leaves the existing row alone.
func (s *MembershipService) Create(ctx context.Context, nodeID, groupID int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("node.id", nodeID), attribute.Int64("group.id", groupID)}
	return s.mutate(ctx, "membership.create", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckMutation(); err != nil {
			return nil, err
		}

		var m domain.Membership
		err := s.repo.Update(ctx, func(tx repository.Tx) error {
			node, err := tx.GetNode(ctx, nodeID)
			if err != nil {
				return err
			}
			group, err := tx.GetGroup(ctx, groupID)
			if err != nil {
				return err
			}
			m = domain.Membership{NodeID: node.ID, GroupID: group.ID}
			return tx.InsertMembership(ctx, m)
		})
		if err != nil {
			return nil, err
		}
		return &Event{Type: EventMembershipCreated, Payload: m}, nil
	})
}

// CreateByName assigns a node to a group by names. An unknown name fails
// with a NotFoundError naming whether the node or the group was missing.
func (s *MembershipService) CreateByName(ctx context.Context, nodeName, groupName string) error {
	attrs := []attribute.KeyValue{attribute.String("node.name", nodeName), attribute.String("group.name", groupName)}
	return s.mutate(ctx, "membership.create", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckMutation(); err != nil {
			return nil, err
		}

		var m domain.Membership
		err := s.repo.Update(ctx, func(tx repository.Tx) error {
			node, err := tx.GetNodeByName(ctx, nodeName)
			if err != nil {
				return err
			}
			group, err := tx.GetGroupByName(ctx, groupName)
			if err != nil {
				return err
			}
			m = domain.Membership{NodeID: node.ID, GroupID: group.ID}
			return tx.InsertMembership(ctx, m)
		})
		if err != nil {
			return nil, err
		}
		return &Event{Type: EventMembershipCreated, Payload: m}, nil
	})
}

// Delete removes a node from a group
func (s *MembershipService) Delete(ctx context.Context, nodeID, groupID int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("node.id", nodeID), attribute.Int64("group.id", groupID)}
	return s.mutate(ctx, "membership.delete", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckMutation(); err != nil {
			return nil, err
		}
		m := domain.Membership{NodeID: nodeID, GroupID: groupID}
		if err := s.repo.Update(ctx, func(tx repository.Tx) error {
			return tx.DeleteMembership(ctx, m)
		}); err != nil {
			return nil, err
		}
		return &Event{Type: EventMembershipDeleted, Payload: m}, nil
	})
}

// Count returns the number of membership rows
func (s *MembershipService) Count(ctx context.Context) (int, error) {
	var n int
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.CountMemberships(ctx)
		return err
	})
	return n, err
}
