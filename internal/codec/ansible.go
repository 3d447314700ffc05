package codec

import (
	"fmt"
	"io"
	"sort"

	"nodeclass/internal/domain"

	"gopkg.in/yaml.v3"
)

// FormatAnsible identifies the Ansible YAML inventory format
const FormatAnsible = "ansible-inventory"

// Inventory is the whole classification graph flattened for Ansible.
// Hosts carry their fully resolved parameters as host vars, which Ansible
// ranks above every group var, so playbooks see the same values an ENC
// client would.
type Inventory struct {
	Groups []InventoryGroup
	Hosts  []InventoryHost
}

// InventoryGroup is one node group in the inventory
type InventoryGroup struct {
	Name     string
	Children []string
	Hosts    []string
	Vars     map[string]string
}

// InventoryHost is one node in the inventory
type InventoryHost struct {
	Name string
	Vars map[string]string
}

// AnsibleCodec handles Ansible inventory import/export
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return FormatAnsible
}

// ansibleGroup is the decode shape of an inventory group
type ansibleGroup struct {
	Hosts    map[string]map[string]any `yaml:"hosts,omitempty"`
	Vars     map[string]any            `yaml:"vars,omitempty"`
	Children map[string]*ansibleGroup  `yaml:"children,omitempty"`
}

type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

// Parse converts an Ansible YAML inventory into a seed fragment. Groups
// become node groups, children become subgroups, group vars become group
// parameters and host vars become node parameters. Non-string vars are
// rendered in YAML flow form since parameters are plain strings.
func (c *AnsibleCodec) Parse(r io.Reader) (*domain.SeedFragment, error) {
	var inv ansibleInventory
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&inv); err != nil {
		return nil, domain.Invalidf("failed to parse Ansible inventory: %v", err)
	}

	p := &inventoryParser{
		groups: make(map[string]*domain.GroupSeed),
		nodes:  make(map[string]*domain.NodeSeed),
	}
	for hostName, vars := range inv.All.Hosts {
		if err := p.addHost(hostName, vars); err != nil {
			return nil, err
		}
	}
	for name, group := range inv.All.Children {
		if err := p.addGroup(name, group); err != nil {
			return nil, err
		}
	}

	return p.fragment(), nil
}

type inventoryParser struct {
	groups map[string]*domain.GroupSeed
	nodes  map[string]*domain.NodeSeed
}

func (p *inventoryParser) addHost(name string, vars map[string]any) error {
	node, ok := p.nodes[name]
	if !ok {
		node = &domain.NodeSeed{Name: name}
		p.nodes[name] = node
	}
	if len(vars) == 0 {
		return nil
	}
	if node.Parameters == nil {
		node.Parameters = make(map[string]string, len(vars))
	}
	for key, value := range vars {
		s, err := stringifyVar(value)
		if err != nil {
			return fmt.Errorf("host %s var %s: %w", name, key, err)
		}
		node.Parameters[key] = s
	}
	return nil
}

func (p *inventoryParser) addGroup(name string, def *ansibleGroup) error {
	group, ok := p.groups[name]
	if !ok {
		group = &domain.GroupSeed{Name: name}
		p.groups[name] = group
	}
	if def == nil {
		return nil
	}

	for hostName, vars := range def.Hosts {
		if err := p.addHost(hostName, vars); err != nil {
			return err
		}
		group.Nodes = appendUnique(group.Nodes, hostName)
	}
	if len(def.Vars) > 0 && group.Parameters == nil {
		group.Parameters = make(map[string]string, len(def.Vars))
	}
	for key, value := range def.Vars {
		s, err := stringifyVar(value)
		if err != nil {
			return fmt.Errorf("group %s var %s: %w", name, key, err)
		}
		group.Parameters[key] = s
	}
	for childName, child := range def.Children {
		group.Subgroups = appendUnique(group.Subgroups, childName)
		if err := p.addGroup(childName, child); err != nil {
			return err
		}
	}
	return nil
}

func (p *inventoryParser) fragment() *domain.SeedFragment {
	fragment := domain.NewSeedFragment()

	groupNames := make([]string, 0, len(p.groups))
	for name := range p.groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		g := p.groups[name]
		sort.Strings(g.Nodes)
		sort.Strings(g.Subgroups)
		fragment.AddGroup(*g)
	}

	nodeNames := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		nodeNames = append(nodeNames, name)
	}
	sort.Strings(nodeNames)
	for _, name := range nodeNames {
		fragment.AddNode(*p.nodes[name])
	}

	return fragment
}

// Export writes the inventory. The document is assembled as a yaml.Node
// tree so key order is fixed: hosts, vars, children, each sorted by name.
func (c *AnsibleCodec) Export(inv *Inventory, w io.Writer) error {
	hosts := append([]InventoryHost(nil), inv.Hosts...)
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	groups := append([]InventoryGroup(nil), inv.Groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	all := mappingNode()
	if len(hosts) > 0 {
		hostsNode := mappingNode()
		for _, h := range hosts {
			appendPair(hostsNode, h.Name, varsNode(h.Vars))
		}
		appendPair(all, "hosts", hostsNode)
	}
	if len(groups) > 0 {
		children := mappingNode()
		for _, g := range groups {
			appendPair(children, g.Name, groupNode(g))
		}
		appendPair(all, "children", children)
	}

	root := mappingNode()
	appendPair(root, "all", all)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}

func groupNode(g InventoryGroup) *yaml.Node {
	node := mappingNode()
	if len(g.Hosts) > 0 {
		hosts := mappingNode()
		for _, name := range sortedCopy(g.Hosts) {
			appendPair(hosts, name, flowMappingNode())
		}
		appendPair(node, "hosts", hosts)
	}
	if len(g.Vars) > 0 {
		appendPair(node, "vars", varsNode(g.Vars))
	}
	if len(g.Children) > 0 {
		children := mappingNode()
		for _, name := range sortedCopy(g.Children) {
			appendPair(children, name, flowMappingNode())
		}
		appendPair(node, "children", children)
	}
	if len(node.Content) == 0 {
		return flowMappingNode()
	}
	return node
}

func varsNode(vars map[string]string) *yaml.Node {
	if len(vars) == 0 {
		return flowMappingNode()
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := mappingNode()
	for _, k := range keys {
		appendPair(node, k, stringNode(vars[k]))
	}
	return node
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func flowMappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: yaml.FlowStyle}
}

// stringNode tags the scalar as a string so values like "true" or "8080"
// are quoted and survive a round trip as strings.
func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, stringNode(key), value)
}

func stringifyVar(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	}

	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return "", err
	}
	setFlowStyle(node)
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", err
	}
	return string(trimNewline(out)), nil
}

func setFlowStyle(n *yaml.Node) {
	n.Style |= yaml.FlowStyle
	for _, child := range n.Content {
		setFlowStyle(child)
	}
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == '\n' {
		b = b[:len(b)-1]
	}
	return b
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
