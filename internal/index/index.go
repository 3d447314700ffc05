// Package index projects the raw relation rows read from the entity store
// into adjacency views: node to groups, group to sub-groups, group to
// classes and group to parameters.
//
// A Snapshot is immutable once built and reflects exactly one read pass, so
// any number of resolutions may share it concurrently.
package index

import (
	"sort"

	"nodeclass/internal/domain"
)

// Snapshot is a read-only adjacency view of the classification graph
type Snapshot struct {
	nodes        map[int64]*domain.Node
	nodesByName  map[string]int64
	groups       map[int64]*domain.NodeGroup
	groupsByName map[string]int64
	classNames   map[int64]string

	nodeGroups   map[int64][]int64
	subgroups    map[int64][]int64
	groupClasses map[int64][]string
	groupParams  map[int64]map[string]string
	nodeParams   map[int64]map[string]string
}

// Build indexes a graph read from the store
func Build(graph *domain.GraphData) *Snapshot {
	s := &Snapshot{
		nodes:        make(map[int64]*domain.Node, len(graph.Nodes)),
		nodesByName:  make(map[string]int64, len(graph.Nodes)),
		groups:       make(map[int64]*domain.NodeGroup, len(graph.Groups)),
		groupsByName: make(map[string]int64, len(graph.Groups)),
		classNames:   make(map[int64]string, len(graph.Classes)),
		nodeGroups:   make(map[int64][]int64),
		subgroups:    make(map[int64][]int64),
		groupClasses: make(map[int64][]string),
		groupParams:  make(map[int64]map[string]string),
		nodeParams:   make(map[int64]map[string]string),
	}

	for i := range graph.Nodes {
		n := graph.Nodes[i]
		s.nodes[n.ID] = &n
		s.nodesByName[n.Name] = n.ID
	}
	for i := range graph.Groups {
		g := graph.Groups[i]
		s.groups[g.ID] = &g
		s.groupsByName[g.Name] = g.ID
	}
	for _, c := range graph.Classes {
		s.classNames[c.ID] = c.Name
	}

	// Relation rows that point at missing entities are dropped so the
	// snapshot never hands out dangling references.
	for _, m := range graph.Memberships {
		if s.nodes[m.NodeID] == nil || s.groups[m.GroupID] == nil {
			continue
		}
		s.nodeGroups[m.NodeID] = append(s.nodeGroups[m.NodeID], m.GroupID)
	}
	for _, e := range graph.Inclusions {
		if s.groups[e.ParentID] == nil || s.groups[e.ChildID] == nil {
			continue
		}
		s.subgroups[e.ParentID] = append(s.subgroups[e.ParentID], e.ChildID)
	}
	for _, a := range graph.Assignments {
		name, ok := s.classNames[a.ClassID]
		if !ok || s.groups[a.GroupID] == nil {
			continue
		}
		s.groupClasses[a.GroupID] = append(s.groupClasses[a.GroupID], name)
	}
	for _, p := range graph.Parameters {
		var target map[int64]map[string]string
		switch p.OwnerType {
		case domain.OwnerGroup:
			if s.groups[p.OwnerID] == nil {
				continue
			}
			target = s.groupParams
		case domain.OwnerNode:
			if s.nodes[p.OwnerID] == nil {
				continue
			}
			target = s.nodeParams
		default:
			continue
		}
		if target[p.OwnerID] == nil {
			target[p.OwnerID] = make(map[string]string)
		}
		target[p.OwnerID][p.Key] = p.Value
	}

	for _, ids := range s.nodeGroups {
		sortIDs(ids)
	}
	for _, ids := range s.subgroups {
		sortIDs(ids)
	}
	for _, names := range s.groupClasses {
		sort.Strings(names)
	}

	return s
}

// DirectGroupsOf returns the groups a node is directly assigned to
func (s *Snapshot) DirectGroupsOf(nodeID int64) ([]int64, error) {
	if s.nodes[nodeID] == nil {
		return nil, domain.NotFound(domain.KindNode, nodeID)
	}
	return cloneIDs(s.nodeGroups[nodeID]), nil
}

// DirectSubgroupsOf returns the groups a group directly includes
func (s *Snapshot) DirectSubgroupsOf(groupID int64) ([]int64, error) {
	if s.groups[groupID] == nil {
		return nil, domain.NotFound(domain.KindGroup, groupID)
	}
	return cloneIDs(s.subgroups[groupID]), nil
}

// DirectClassesOf returns the class names directly assigned to a group
func (s *Snapshot) DirectClassesOf(groupID int64) ([]string, error) {
	if s.groups[groupID] == nil {
		return nil, domain.NotFound(domain.KindGroup, groupID)
	}
	return append([]string(nil), s.groupClasses[groupID]...), nil
}

// DirectParametersOf returns the parameters directly assigned to a group
func (s *Snapshot) DirectParametersOf(groupID int64) (map[string]string, error) {
	if s.groups[groupID] == nil {
		return nil, domain.NotFound(domain.KindGroup, groupID)
	}
	return cloneParams(s.groupParams[groupID]), nil
}

// NodeParametersOf returns a node's own parameter overrides
func (s *Snapshot) NodeParametersOf(nodeID int64) (map[string]string, error) {
	if s.nodes[nodeID] == nil {
		return nil, domain.NotFound(domain.KindNode, nodeID)
	}
	return cloneParams(s.nodeParams[nodeID]), nil
}

// Node returns the node with the given ID
func (s *Snapshot) Node(id int64) (*domain.Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// NodeByName resolves a node name to its ID
func (s *Snapshot) NodeByName(name string) (int64, error) {
	id, ok := s.nodesByName[name]
	if !ok {
		return 0, domain.NotFound(domain.KindNode, name)
	}
	return id, nil
}

// GroupName returns the name of a group
func (s *Snapshot) GroupName(id int64) (string, error) {
	g, ok := s.groups[id]
	if !ok {
		return "", domain.NotFound(domain.KindGroup, id)
	}
	return g.Name, nil
}

// GroupByName resolves a group name to its ID
func (s *Snapshot) GroupByName(name string) (int64, error) {
	id, ok := s.groupsByName[name]
	if !ok {
		return 0, domain.NotFound(domain.KindGroup, name)
	}
	return id, nil
}

// NodeIDs returns every node ID ordered by node name
func (s *Snapshot) NodeIDs() []int64 {
	return s.idsByName(len(s.nodes), func(yield func(int64, string)) {
		for id, n := range s.nodes {
			yield(id, n.Name)
		}
	})
}

// GroupIDs returns every group ID ordered by group name
func (s *Snapshot) GroupIDs() []int64 {
	return s.idsByName(len(s.groups), func(yield func(int64, string)) {
		for id, g := range s.groups {
			yield(id, g.Name)
		}
	})
}

// MembersOf returns the nodes directly assigned to a group, by node ID
func (s *Snapshot) MembersOf(groupID int64) []int64 {
	members := make([]int64, 0)
	for nodeID, groups := range s.nodeGroups {
		for _, g := range groups {
			if g == groupID {
				members = append(members, nodeID)
				break
			}
		}
	}
	sortIDs(members)
	return members
}

// Children returns the direct sub-groups of a group, or nil if unknown.
// It lets the snapshot serve as an edge source for cycle audits.
func (s *Snapshot) Children(groupID int64) []int64 {
	return s.subgroups[groupID]
}

func (s *Snapshot) idsByName(n int, each func(yield func(int64, string))) []int64 {
	type entry struct {
		id   int64
		name string
	}
	entries := make([]entry, 0, n)
	each(func(id int64, name string) {
		entries = append(entries, entry{id, name})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func cloneIDs(ids []int64) []int64 {
	return append([]int64{}, ids...)
}

func cloneParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
