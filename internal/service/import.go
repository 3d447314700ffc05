package service

import (
	"context"
	"errors"
	"fmt"

	"nodeclass/internal/cycle"
	"nodeclass/internal/domain"
	"nodeclass/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Import strategies
const (
	StrategyMerge   = "merge"
	StrategyReplace = "replace"
)

// ImportResult represents the result of an import operation
type ImportResult struct {
	ClassesCreated     int    `json:"classes_created"`
	GroupsCreated      int    `json:"groups_created"`
	GroupsUpdated      int    `json:"groups_updated"`
	NodesCreated       int    `json:"nodes_created"`
	NodesUpdated       int    `json:"nodes_updated"`
	MembershipsCreated int    `json:"memberships_created"`
	InclusionsCreated  int    `json:"inclusions_created"`
	Strategy           string `json:"strategy"`
}

// ImportService applies seed fragments
type ImportService struct {
	base
}

// Apply writes a seed fragment in one transaction. With the merge strategy
// missing entities are created, declared group classes and parameters
// replace the stored ones, and memberships and inclusions are added. The
// replace strategy first deletes every group and node. Every new inclusion
// is cycle-checked; one rejected edge aborts the whole import.
func (s *ImportService) Apply(ctx context.Context, fragment *domain.SeedFragment, strategy string) (*ImportResult, error) {
	if strategy == "" {
		strategy = StrategyMerge
	}
	if strategy != StrategyMerge && strategy != StrategyReplace {
		return nil, domain.Invalidf("invalid strategy %s, must be 'merge' or 'replace'", strategy)
	}

	result := &ImportResult{Strategy: strategy}
	attrs := []attribute.KeyValue{
		attribute.String("strategy", strategy),
		attribute.Int("groups", len(fragment.Groups)),
		attribute.Int("nodes", len(fragment.Nodes)),
	}

	err := s.mutate(ctx, "seed.apply", attrs, func(ctx context.Context) (*Event, error) {
		if err := s.gate.CheckClassificationEdit(fragmentTouchesClassification(fragment)); err != nil {
			return nil, err
		}

		err := s.repo.Update(ctx, func(tx repository.Tx) error {
			a := &applier{tx: tx, gate: s.gate, result: result}
			return a.apply(ctx, fragment, strategy)
		})
		if err != nil {
			return nil, err
		}

		return &Event{Type: EventSeedApplied, Payload: result}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fragmentTouchesClassification reports whether applying f writes classes
// or parameters. A declared but empty map or list replaces the stored one,
// so it counts as an edit.
func fragmentTouchesClassification(f *domain.SeedFragment) bool {
	for _, g := range f.Groups {
		if g.Classes != nil || g.Parameters != nil {
			return true
		}
	}
	for _, n := range f.Nodes {
		if n.Parameters != nil {
			return true
		}
	}
	return false
}

// storeHoldsClassification reports whether clearing the store would drop
// any group or node parameter
func storeHoldsClassification(graph *domain.GraphData) bool {
	if len(graph.Groups) > 0 {
		return true
	}
	for _, p := range graph.Parameters {
		if p.OwnerType == domain.OwnerNode {
			return true
		}
	}
	return false
}

// applier resolves seed names to identifiers inside one transaction
type applier struct {
	tx      repository.Tx
	gate    Gate
	result  *ImportResult
	classes map[string]int64
	groups  map[string]int64
	nodes   map[string]int64
	fresh   map[string]bool // entities created by this import, keyed by kind and name
	edges   cycle.Adjacency
}

func (a *applier) apply(ctx context.Context, f *domain.SeedFragment, strategy string) error {
	if strategy == StrategyReplace {
		if err := a.clear(ctx); err != nil {
			return err
		}
	}

	a.classes = make(map[string]int64)
	a.groups = make(map[string]int64)
	a.nodes = make(map[string]int64)
	a.fresh = make(map[string]bool)

	edges, err := a.tx.ListInclusions(ctx)
	if err != nil {
		return err
	}
	a.edges = cycle.FromEdges(edges)

	for _, name := range f.Classes {
		if _, err := a.class(ctx, name); err != nil {
			return err
		}
	}
	for _, ns := range f.Nodes {
		if err := a.applyNode(ctx, ns); err != nil {
			return fmt.Errorf("node %s: %w", ns.Name, err)
		}
	}
	for _, gs := range f.Groups {
		if err := a.applyGroup(ctx, gs); err != nil {
			return fmt.Errorf("group %s: %w", gs.Name, err)
		}
	}
	return nil
}

// clear deletes every group and node. Dropping stored groups or node
// parameters is a classification edit.
func (a *applier) clear(ctx context.Context) error {
	graph, err := a.tx.LoadGraph(ctx)
	if err != nil {
		return err
	}
	if err := a.gate.CheckClassificationEdit(storeHoldsClassification(graph)); err != nil {
		return err
	}

	for _, g := range graph.Groups {
		if err := a.tx.DeleteGroup(ctx, g.ID); err != nil {
			return err
		}
	}
	for _, n := range graph.Nodes {
		if err := a.tx.DeleteNode(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func (a *applier) class(ctx context.Context, name string) (int64, error) {
	if id, ok := a.classes[name]; ok {
		return id, nil
	}
	c, err := a.tx.GetClassByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		c = &domain.NodeClass{Name: name}
		if err := c.Validate(); err != nil {
			return 0, err
		}
		if err := a.tx.InsertClass(ctx, c); err != nil {
			return 0, err
		}
		a.result.ClassesCreated++
	} else if err != nil {
		return 0, err
	}
	a.classes[name] = c.ID
	return c.ID, nil
}

// node returns the ID of the named node, creating a bare node if needed
func (a *applier) node(ctx context.Context, name string) (int64, error) {
	if id, ok := a.nodes[name]; ok {
		return id, nil
	}
	n, err := a.tx.GetNodeByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		n = domain.NewNode(name)
		if err := n.Validate(); err != nil {
			return 0, err
		}
		if err := a.tx.InsertNode(ctx, n); err != nil {
			return 0, err
		}
		a.result.NodesCreated++
		a.fresh["node/"+name] = true
	} else if err != nil {
		return 0, err
	}
	a.nodes[name] = n.ID
	return n.ID, nil
}

// group returns the ID of the named group, creating an empty group if needed
func (a *applier) group(ctx context.Context, name string) (int64, error) {
	if id, ok := a.groups[name]; ok {
		return id, nil
	}
	g, err := a.tx.GetGroupByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		g = domain.NewNodeGroup(name, "")
		if err := g.Validate(); err != nil {
			return 0, err
		}
		if err := a.tx.InsertGroup(ctx, g); err != nil {
			return 0, err
		}
		a.result.GroupsCreated++
		a.fresh["group/"+name] = true
	} else if err != nil {
		return 0, err
	}
	a.groups[name] = g.ID
	return g.ID, nil
}

func (a *applier) applyNode(ctx context.Context, ns domain.NodeSeed) error {
	id, err := a.node(ctx, ns.Name)
	if err != nil {
		return err
	}
	if ns.Parameters == nil {
		return nil
	}
	candidate := domain.Node{Name: ns.Name, Parameters: ns.Parameters}
	if err := candidate.Validate(); err != nil {
		return err
	}
	if err := a.tx.ReplaceParameters(ctx, domain.OwnerNode, id, ns.Parameters); err != nil {
		return err
	}
	if !a.fresh["node/"+ns.Name] {
		a.result.NodesUpdated++
	}
	return nil
}

func (a *applier) applyGroup(ctx context.Context, gs domain.GroupSeed) error {
	id, err := a.group(ctx, gs.Name)
	if err != nil {
		return err
	}

	group, err := a.tx.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if gs.Description != "" && gs.Description != group.Description {
		group.Description = gs.Description
		if err := a.tx.UpdateGroupFields(ctx, group); err != nil {
			return err
		}
	}

	if gs.Parameters != nil {
		group.Parameters = gs.Parameters
		if err := group.Validate(); err != nil {
			return err
		}
		if err := a.tx.ReplaceParameters(ctx, domain.OwnerGroup, id, gs.Parameters); err != nil {
			return err
		}
	}

	if gs.Classes != nil {
		classIDs := make([]int64, 0, len(gs.Classes))
		for _, name := range gs.Classes {
			classID, err := a.class(ctx, name)
			if err != nil {
				return err
			}
			classIDs = append(classIDs, classID)
		}
		if err := a.tx.ReplaceGroupClasses(ctx, id, classIDs); err != nil {
			return err
		}
	}

	members := make(map[int64]bool, len(group.NodeIDs))
	for _, nodeID := range group.NodeIDs {
		members[nodeID] = true
	}
	for _, name := range gs.Nodes {
		nodeID, err := a.node(ctx, name)
		if err != nil {
			return err
		}
		if members[nodeID] {
			continue
		}
		if err := a.tx.InsertMembership(ctx, domain.Membership{NodeID: nodeID, GroupID: id}); err != nil {
			return err
		}
		members[nodeID] = true
		a.result.MembershipsCreated++
	}

	for _, name := range gs.Subgroups {
		childID, err := a.group(ctx, name)
		if err != nil {
			return err
		}
		if containsID(a.edges.Children(id), childID) {
			continue
		}
		if err := cycle.Check(a.edges, id, childID); err != nil {
			return err
		}
		if err := a.tx.InsertInclusion(ctx, domain.Inclusion{ParentID: id, ChildID: childID}); err != nil {
			return err
		}
		a.edges = a.edges.With(id, childID)
		a.result.InclusionsCreated++
	}

	if !a.fresh["group/"+gs.Name] {
		a.result.GroupsUpdated++
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
