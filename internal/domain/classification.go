package domain

import "sort"

// Classification is the resolved set of classes and merged parameters for
// one node. It is derived on every request and never persisted.
type Classification struct {
	Node       string            `json:"-"`
	Classes    []string          `json:"classes"`
	Parameters map[string]string `json:"parameters"`
}

// NewClassification creates an empty classification for the named node
func NewClassification(node string) *Classification {
	return &Classification{
		Node:       node,
		Classes:    make([]string, 0),
		Parameters: make(map[string]string),
	}
}

// SetClasses replaces the class list with the deduplicated, sorted names
func (c *Classification) SetClasses(names []string) {
	seen := make(map[string]struct{}, len(names))
	classes := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		classes = append(classes, name)
	}
	sort.Strings(classes)
	c.Classes = classes
}

// ParameterKeys returns the parameter keys in lexicographic order
func (c *Classification) ParameterKeys() []string {
	keys := make([]string, 0, len(c.Parameters))
	for k := range c.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
