package domain

// SeedFragment is a name-keyed description of classes, groups and nodes used
// for bulk import. Names are resolved to identifiers when it is applied.
type SeedFragment struct {
	Classes []string    `json:"classes" yaml:"classes,omitempty"`
	Groups  []GroupSeed `json:"groups" yaml:"groups,omitempty"`
	Nodes   []NodeSeed  `json:"nodes" yaml:"nodes,omitempty"`
}

// GroupSeed describes one group in a seed fragment
type GroupSeed struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Classes     []string          `json:"classes,omitempty" yaml:"classes,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Subgroups   []string          `json:"subgroups,omitempty" yaml:"subgroups,omitempty"`
	Nodes       []string          `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// NodeSeed describes one node in a seed fragment
type NodeSeed struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// NewSeedFragment creates an empty seed fragment
func NewSeedFragment() *SeedFragment {
	return &SeedFragment{
		Classes: make([]string, 0),
		Groups:  make([]GroupSeed, 0),
		Nodes:   make([]NodeSeed, 0),
	}
}

// AddGroup adds a group to the fragment
func (f *SeedFragment) AddGroup(group GroupSeed) {
	f.Groups = append(f.Groups, group)
}

// AddNode adds a node to the fragment
func (f *SeedFragment) AddNode(node NodeSeed) {
	f.Nodes = append(f.Nodes, node)
}
