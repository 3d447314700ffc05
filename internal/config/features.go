package config

// Features toggles behavior at runtime. The value is threaded through the
// services explicitly; there is no package-level switch.
type Features struct {
	// NodeClassification allows edits to group classes and parameters.
	// When false, group updates touching either are rejected.
	NodeClassification bool `yaml:"node_classification"`
	// ReadOnly rejects every mutation
	ReadOnly bool `yaml:"read_only"`
}

// DefaultFeatures enables classification editing and writes
func DefaultFeatures() Features {
	return Features{NodeClassification: true}
}

// AllowsMutation reports whether any write may proceed
func (f Features) AllowsMutation() bool {
	return !f.ReadOnly
}

// AllowsClassificationEdits reports whether classes and parameters of a
// group may be changed
func (f Features) AllowsClassificationEdits() bool {
	return !f.ReadOnly && f.NodeClassification
}

// String renders the flags for startup logging
func (f Features) String() string {
	mode := "read-write"
	if f.ReadOnly {
		mode = "read-only"
	}
	if !f.NodeClassification {
		return mode + ", classification edits disabled"
	}
	return mode
}
