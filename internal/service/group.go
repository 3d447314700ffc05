package service

import (
	"context"
	"errors"
	"fmt"

	"nodeclass/internal/cycle"
	"nodeclass/internal/domain"
	"nodeclass/internal/repository"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
)

// GroupService manages node groups and their inclusion edges
type GroupService struct {
	base
}

// GetGroup retrieves a group with its direct associations
func (s *GroupService) GetGroup(ctx context.Context, id int64) (*domain.NodeGroup, error) {
	var group *domain.NodeGroup
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		group, err = tx.GetGroup(ctx, id)
		return err
	})
	return group, err
}

// ListGroups returns every group ordered by name
func (s *GroupService) ListGroups(ctx context.Context) ([]domain.NodeGroup, error) {
	var groups []domain.NodeGroup
	err := s.repo.View(ctx, func(tx repository.Tx) error {
		var err error
		groups, err = tx.ListGroups(ctx)
		return err
	})
	return groups, err
}

// CreateGroup persists a new group with its initial associations. The
// group's ID is set on success.
func (s *GroupService) CreateGroup(ctx context.Context, group *domain.NodeGroup) error {
	return s.mutate(ctx, "group.create", []attribute.KeyValue{attribute.String("group.name", group.Name)},
		func(ctx context.Context) (*Event, error) {
			touches := len(group.Parameters) > 0 || len(group.ClassIDs) > 0
			if err := s.gate.CheckClassificationEdit(touches); err != nil {
				return nil, err
			}
			if err := group.Validate(); err != nil {
				return nil, err
			}

			err := s.repo.Update(ctx, func(tx repository.Tx) error {
				if err := checkReferences(ctx, tx, 0, group.ClassIDs, group.SubgroupIDs, group.NodeIDs); err != nil {
					return err
				}
				if err := tx.InsertGroup(ctx, group); err != nil {
					return err
				}
				if err := tx.ReplaceGroupClasses(ctx, group.ID, group.ClassIDs); err != nil {
					return err
				}
				if err := tx.ReplaceGroupNodes(ctx, group.ID, group.NodeIDs); err != nil {
					return err
				}
				return replaceSubgroups(ctx, tx, group.ID, group.SubgroupIDs)
			})
			if err != nil {
				return nil, err
			}

			return &Event{Type: EventGroupCreated, Payload: map[string]any{"id": group.ID, "name": group.Name}}, nil
		})
}

// UpdateGroup applies a partial update. Nil fields are left untouched and
// empty ones clear the association; the group itself always survives.
// Every referenced class, sub-group and node must exist, and the new
// sub-group set must keep the inclusion graph acyclic. Nothing is written
// unless every check passes.
func (s *GroupService) UpdateGroup(ctx context.Context, id int64, u domain.GroupUpdate) (*domain.NodeGroup, error) {
	var updated *domain.NodeGroup

	err := s.mutate(ctx, "group.update", []attribute.KeyValue{attribute.Int64("group.id", id)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckGroupUpdate(&u); err != nil {
				return nil, err
			}

			err := s.repo.Update(ctx, func(tx repository.Tx) error {
				group, err := tx.GetGroup(ctx, id)
				if err != nil {
					return err
				}
				if u.IsEmpty() {
					updated = group
					return nil
				}

				if err := checkReferences(ctx, tx, id, u.ClassIDs, u.SubgroupIDs, u.NodeIDs); err != nil {
					return err
				}

				if u.Name != nil || u.Description != nil {
					if u.Name != nil {
						group.Name = *u.Name
					}
					if u.Description != nil {
						group.Description = *u.Description
					}
					if err := group.Validate(); err != nil {
						return err
					}
					if err := tx.UpdateGroupFields(ctx, group); err != nil {
						return err
					}
				}
				if u.Parameters != nil {
					group.Parameters = u.Parameters
					if err := group.Validate(); err != nil {
						return err
					}
					if err := tx.ReplaceParameters(ctx, domain.OwnerGroup, id, u.Parameters); err != nil {
						return err
					}
				}
				if u.ClassIDs != nil {
					if err := tx.ReplaceGroupClasses(ctx, id, u.ClassIDs); err != nil {
						return err
					}
				}
				if u.NodeIDs != nil {
					if err := tx.ReplaceGroupNodes(ctx, id, u.NodeIDs); err != nil {
						return err
					}
				}
				if u.SubgroupIDs != nil {
					if err := replaceSubgroups(ctx, tx, id, u.SubgroupIDs); err != nil {
						return err
					}
				}

				updated, err = tx.GetGroup(ctx, id)
				return err
			})
			if err != nil {
				return nil, err
			}

			return &Event{Type: EventGroupUpdated, Payload: map[string]any{"id": id, "name": updated.Name}}, nil
		})

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteGroup removes a group with its memberships, inclusions in both
// directions, class assignments and parameters
func (s *GroupService) DeleteGroup(ctx context.Context, id int64) error {
	return s.mutate(ctx, "group.delete", []attribute.KeyValue{attribute.Int64("group.id", id)},
		func(ctx context.Context) (*Event, error) {
			if err := s.gate.CheckMutation(); err != nil {
				return nil, err
			}
			err := s.repo.Update(ctx, func(tx repository.Tx) error {
				return tx.DeleteGroup(ctx, id)
			})
			if err != nil {
				return nil, err
			}
			return &Event{Type: EventGroupDeleted, Payload: map[string]any{"id": id}}, nil
		})
}

// ProposeInclusion adds the edge parent includes child. It fails with
// domain.ErrCycleDetected when child can already reach parent, with
// domain.ErrNotFound when either group is missing and with
// domain.ErrConflict when the edge exists.
func (s *GroupService) ProposeInclusion(ctx context.Context, parentID, childID int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("parent.id", parentID), attribute.Int64("child.id", childID)}
	return s.mutate(ctx, "inclusion.create", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckMutation(); err != nil {
			return nil, err
		}

		err := s.repo.Update(ctx, func(tx repository.Tx) error {
			if _, err := tx.GetGroup(ctx, parentID); err != nil {
				return err
			}
			if _, err := tx.GetGroup(ctx, childID); err != nil {
				return err
			}

			edges, err := tx.ListInclusions(ctx)
			if err != nil {
				return err
			}
			if err := cycle.Check(cycle.FromEdges(edges), parentID, childID); err != nil {
				return err
			}
			return tx.InsertInclusion(ctx, domain.Inclusion{ParentID: parentID, ChildID: childID})
		})
		if err != nil {
			var cycleErr *domain.CycleError
			if errors.As(err, &cycleErr) {
				s.log.WithField("path", cycleErr.Path).Info("rejected inclusion that would close a cycle")
			}
			return nil, err
		}

		return &Event{
			Type:    EventInclusionCreated,
			Payload: domain.Inclusion{ParentID: parentID, ChildID: childID},
		}, nil
	})
}

// RemoveInclusion deletes the edge parent includes child
func (s *GroupService) RemoveInclusion(ctx context.Context, parentID, childID int64) error {
	attrs := []attribute.KeyValue{attribute.Int64("parent.id", parentID), attribute.Int64("child.id", childID)}
	return s.mutate(ctx, "inclusion.delete", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckMutation(); err != nil {
			return nil, err
		}
		inc := domain.Inclusion{ParentID: parentID, ChildID: childID}
		if err := s.repo.Update(ctx, func(tx repository.Tx) error {
			return tx.DeleteInclusion(ctx, inc)
		}); err != nil {
			return nil, err
		}
		return &Event{Type: EventInclusionDeleted, Payload: inc}, nil
	})
}

// checkReferences verifies every referenced entity exists and reports all
// missing ones together. A group listing itself as a sub-group is a cycle.
func checkReferences(ctx context.Context, tx repository.Tx, groupID int64, classIDs, subgroupIDs, nodeIDs []int64) error {
	var result *multierror.Error

	for _, id := range classIDs {
		if _, err := tx.GetClass(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, id := range subgroupIDs {
		if groupID != 0 && id == groupID {
			return cycle.Check(cycle.Adjacency{}, groupID, id)
		}
		if _, err := tx.GetGroup(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, id := range nodeIDs {
		if _, err := tx.GetNode(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid references: %w", err)
	}
	return nil
}

// replaceSubgroups makes children the exact sub-group set of parent. Each
// new edge is checked against the graph without parent's current edges
// plus the edges accepted so far.
func replaceSubgroups(ctx context.Context, tx repository.Tx, parentID int64, children []int64) error {
	edges, err := tx.ListInclusions(ctx)
	if err != nil {
		return err
	}

	current := make(map[int64]bool)
	kept := make([]domain.Inclusion, 0, len(edges))
	for _, e := range edges {
		if e.ParentID == parentID {
			current[e.ChildID] = true
			continue
		}
		kept = append(kept, e)
	}

	adj := cycle.FromEdges(kept)
	wanted := make(map[int64]bool, len(children))
	for _, child := range children {
		if wanted[child] {
			continue
		}
		if err := cycle.Check(adj, parentID, child); err != nil {
			return err
		}
		adj = adj.With(parentID, child)
		wanted[child] = true
	}

	for child := range current {
		if !wanted[child] {
			if err := tx.DeleteInclusion(ctx, domain.Inclusion{ParentID: parentID, ChildID: child}); err != nil {
				return err
			}
		}
	}
	for _, child := range children {
		if current[child] || !wanted[child] {
			continue
		}
		if err := tx.InsertInclusion(ctx, domain.Inclusion{ParentID: parentID, ChildID: child}); err != nil {
			return err
		}
		// Mark inserted so duplicates in children are skipped
		current[child] = true
	}
	return nil
}
