package domain

// GraphData holds every entity and relation row read in a single pass from
// the store. It is the raw input the membership index is built from.
type GraphData struct {
	Nodes       []Node            `json:"nodes"`
	Groups      []NodeGroup       `json:"groups"`
	Classes     []NodeClass       `json:"classes"`
	Memberships []Membership      `json:"memberships"`
	Inclusions  []Inclusion       `json:"inclusions"`
	Assignments []ClassAssignment `json:"assignments"`
	Parameters  []Parameter       `json:"parameters"`
}

// NewGraphData creates an empty graph
func NewGraphData() *GraphData {
	return &GraphData{
		Nodes:       make([]Node, 0),
		Groups:      make([]NodeGroup, 0),
		Classes:     make([]NodeClass, 0),
		Memberships: make([]Membership, 0),
		Inclusions:  make([]Inclusion, 0),
		Assignments: make([]ClassAssignment, 0),
		Parameters:  make([]Parameter, 0),
	}
}
