package index

import (
	"testing"

	"nodeclass/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *domain.GraphData {
	g := domain.NewGraphData()
	g.Nodes = []domain.Node{{ID: 1, Name: "web01"}, {ID: 2, Name: "db01"}}
	g.Groups = []domain.NodeGroup{{ID: 10, Name: "web"}, {ID: 11, Name: "base"}, {ID: 12, Name: "db"}}
	g.Classes = []domain.NodeClass{{ID: 100, Name: "nginx"}, {ID: 101, Name: "ntp"}, {ID: 102, Name: "apache"}}
	g.Memberships = []domain.Membership{
		{NodeID: 1, GroupID: 12},
		{NodeID: 1, GroupID: 10},
		{NodeID: 2, GroupID: 12},
		{NodeID: 3, GroupID: 10}, // dangling node
	}
	g.Inclusions = []domain.Inclusion{
		{ParentID: 10, ChildID: 11},
		{ParentID: 12, ChildID: 11},
		{ParentID: 12, ChildID: 99}, // dangling group
	}
	g.Assignments = []domain.ClassAssignment{
		{GroupID: 10, ClassID: 100},
		{GroupID: 10, ClassID: 102},
		{GroupID: 11, ClassID: 101},
		{GroupID: 11, ClassID: 999}, // dangling class
	}
	g.Parameters = []domain.Parameter{
		{OwnerType: domain.OwnerGroup, OwnerID: 10, Key: "port", Value: "80"},
		{OwnerType: domain.OwnerGroup, OwnerID: 11, Key: "tz", Value: "UTC"},
		{OwnerType: domain.OwnerNode, OwnerID: 1, Key: "port", Value: "8443"},
	}
	return g
}

func TestDirectRelations(t *testing.T) {
	s := Build(sampleGraph())

	groups, err := s.DirectGroupsOf(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 12}, groups)

	subgroups, err := s.DirectSubgroupsOf(12)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, subgroups)

	classes, err := s.DirectClassesOf(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"apache", "nginx"}, classes)

	classes, err = s.DirectClassesOf(11)
	require.NoError(t, err)
	assert.Equal(t, []string{"ntp"}, classes)

	params, err := s.DirectParametersOf(10)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"port": "80"}, params)

	params, err = s.DirectParametersOf(12)
	require.NoError(t, err)
	assert.Empty(t, params)

	overrides, err := s.NodeParametersOf(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"port": "8443"}, overrides)
}

func TestUnknownIDs(t *testing.T) {
	s := Build(sampleGraph())

	tests := []struct {
		name string
		call func() error
	}{
		{"groups of node", func() error { _, err := s.DirectGroupsOf(3); return err }},
		{"subgroups", func() error { _, err := s.DirectSubgroupsOf(99); return err }},
		{"classes", func() error { _, err := s.DirectClassesOf(99); return err }},
		{"group parameters", func() error { _, err := s.DirectParametersOf(99); return err }},
		{"node parameters", func() error { _, err := s.NodeParametersOf(3); return err }},
		{"group name", func() error { _, err := s.GroupName(99); return err }},
		{"node by name", func() error { _, err := s.NodeByName("ghost"); return err }},
		{"group by name", func() error { _, err := s.GroupByName("ghost"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrNotFound)
		})
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := Build(sampleGraph())

	groups, _ := s.DirectGroupsOf(1)
	groups[0] = 999
	again, _ := s.DirectGroupsOf(1)
	assert.Equal(t, []int64{10, 12}, again)

	params, _ := s.DirectParametersOf(10)
	params["port"] = "changed"
	again2, _ := s.DirectParametersOf(10)
	assert.Equal(t, "80", again2["port"])
}

func TestOrderingHelpers(t *testing.T) {
	s := Build(sampleGraph())

	assert.Equal(t, []int64{2, 1}, s.NodeIDs())
	assert.Equal(t, []int64{11, 12, 10}, s.GroupIDs())
	assert.Equal(t, []int64{1, 2}, s.MembersOf(12))
	assert.Equal(t, []int64{1}, s.MembersOf(10))

	id, err := s.NodeByName("db01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	name, err := s.GroupName(11)
	require.NoError(t, err)
	assert.Equal(t, "base", name)

	node, ok := s.Node(1)
	require.True(t, ok)
	assert.Equal(t, "web01", node.Name)
}
