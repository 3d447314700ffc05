// Package resolver computes the effective classification of a node.
//
// Resolution walks every group reachable from the node's direct groups
// through inclusion edges, unions their classes and merges their parameters
// with "most specific wins" precedence:
//
//   - the node's own parameters beat every group value
//   - a group reached at a shallower inclusion depth beats a deeper one
//   - among groups at equal depth the group whose name sorts first wins
//
// The traversal visits each group once at its minimal depth. A cycle in the
// inclusion graph, which the cycle detector should have prevented, is
// logged and counted but never fails a resolution.
package resolver

import (
	"context"
	"sort"
	"time"

	"nodeclass/internal/cycle"
	"nodeclass/internal/domain"
	"nodeclass/internal/metrics"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nodeclass.resolver")

// Graph is the read-only view the resolver needs; index.Snapshot
// implements it
type Graph interface {
	Node(id int64) (*domain.Node, bool)
	NodeByName(name string) (int64, error)
	GroupName(id int64) (string, error)
	DirectGroupsOf(nodeID int64) ([]int64, error)
	DirectSubgroupsOf(groupID int64) ([]int64, error)
	DirectClassesOf(groupID int64) ([]string, error)
	DirectParametersOf(groupID int64) (map[string]string, error)
	NodeParametersOf(nodeID int64) (map[string]string, error)
}

// ScopedGroup is a group in scope for a node, at its minimal depth.
// Depth 0 means the node is a direct member.
type ScopedGroup struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
}

// ParameterSource records where the winning value of a parameter came from.
// Group is empty when the node's own override won.
type ParameterSource struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Group string `json:"group,omitempty"`
	Depth int    `json:"depth"`
	Node  bool   `json:"node_override,omitempty"`
}

// Resolution is a classification together with how it was derived
type Resolution struct {
	Classification *domain.Classification
	Groups         []ScopedGroup
	Sources        []ParameterSource
	Cycles         int
}

// Resolver computes classifications
type Resolver struct {
	log logrus.FieldLogger
}

// New creates a resolver
func New(log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{log: log.WithField("component", "resolver")}
}

// Resolve computes the classification of the node with the given ID
func (r *Resolver) Resolve(ctx context.Context, g Graph, nodeID int64) (*domain.Classification, error) {
	res, err := r.Explain(ctx, g, nodeID)
	if err != nil {
		return nil, err
	}
	return res.Classification, nil
}

// ResolveByName computes the classification of the named node
func (r *Resolver) ResolveByName(ctx context.Context, g Graph, name string) (*domain.Classification, error) {
	id, err := g.NodeByName(name)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, g, id)
}

// Explain computes the classification and reports the in-scope groups and
// the source of every winning parameter
func (r *Resolver) Explain(ctx context.Context, g Graph, nodeID int64) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int64("node.id", nodeID))

	start := time.Now()
	res, err := r.explain(ctx, g, nodeID)
	metrics.ObserveResolution(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("groups.in_scope", len(res.Groups)),
		attribute.Int("classes", len(res.Classification.Classes)),
		attribute.Int("parameters", len(res.Classification.Parameters)),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (r *Resolver) explain(ctx context.Context, g Graph, nodeID int64) (*Resolution, error) {
	node, ok := g.Node(nodeID)
	if !ok {
		return nil, domain.NotFound(domain.KindNode, nodeID)
	}

	scope, cycles, err := r.collectScope(ctx, g, node)
	if err != nil {
		return nil, err
	}

	result := domain.NewClassification(node.Name)
	result.SetClasses(r.unionClasses(g, scope))

	sources, err := r.mergeParameters(g, node, scope, result)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Classification: result,
		Groups:         scope,
		Sources:        sources,
		Cycles:         cycles,
	}, nil
}

// collectScope returns every group reachable from the node, each at its
// minimal inclusion depth, ordered by (depth, name, id). That order is the
// parameter priority order, highest priority first.
func (r *Resolver) collectScope(ctx context.Context, g Graph, node *domain.Node) ([]ScopedGroup, int, error) {
	direct, err := g.DirectGroupsOf(node.ID)
	if err != nil {
		return nil, 0, err
	}

	depth := make(map[int64]int, len(direct))
	queue := make([]int64, 0, len(direct))
	for _, id := range direct {
		if _, seen := depth[id]; seen {
			continue
		}
		depth[id] = 0
		queue = append(queue, id)
	}

	revisited := false

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		current := queue[0]
		queue = queue[1:]

		children, err := g.DirectSubgroupsOf(current)
		if err != nil {
			// The snapshot dropped a dangling edge; nothing to follow.
			r.log.WithError(err).WithField("group_id", current).Debug("skipping unresolvable group")
			continue
		}

		for _, child := range children {
			if _, seen := depth[child]; seen {
				revisited = true
				continue
			}
			depth[child] = depth[current] + 1
			queue = append(queue, child)
		}
	}

	// A revisit is either a diamond or a cycle; one walk over the reachable
	// groups tells them apart.
	cycles := 0
	if revisited {
		for _, path := range cycle.FindCycles(graphEdges{g: g}, direct) {
			cycles++
			metrics.CycleTolerated()
			r.log.WithFields(logrus.Fields{
				"node": node.Name,
				"path": path,
			}).Debug("inclusion cycle met during resolution; visiting each group once")
		}
	}

	scope := make([]ScopedGroup, 0, len(depth))
	for id, d := range depth {
		name, err := g.GroupName(id)
		if err != nil {
			continue
		}
		scope = append(scope, ScopedGroup{ID: id, Name: name, Depth: d})
	}
	sort.Slice(scope, func(i, j int) bool {
		a, b := scope[i], scope[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	return scope, cycles, nil
}

func (r *Resolver) unionClasses(g Graph, scope []ScopedGroup) []string {
	classes := make([]string, 0)
	for _, sg := range scope {
		names, err := g.DirectClassesOf(sg.ID)
		if err != nil {
			continue
		}
		classes = append(classes, names...)
	}
	return classes
}

// mergeParameters folds group parameters from lowest to highest priority so
// later, more specific maps overwrite earlier ones, then applies the node's
// own overrides unconditionally.
func (r *Resolver) mergeParameters(g Graph, node *domain.Node, scope []ScopedGroup, result *domain.Classification) ([]ParameterSource, error) {
	winners := make(map[string]ParameterSource)

	for i := len(scope) - 1; i >= 0; i-- {
		sg := scope[i]
		params, err := g.DirectParametersOf(sg.ID)
		if err != nil {
			continue
		}
		for key, value := range params {
			result.Parameters[key] = value
			winners[key] = ParameterSource{Key: key, Value: value, Group: sg.Name, Depth: sg.Depth}
		}
	}

	overrides, err := g.NodeParametersOf(node.ID)
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		result.Parameters[key] = value
		winners[key] = ParameterSource{Key: key, Value: value, Node: true, Depth: -1}
	}

	sources := make([]ParameterSource, 0, len(winners))
	for _, key := range result.ParameterKeys() {
		sources = append(sources, winners[key])
	}
	return sources, nil
}

// graphEdges adapts Graph to cycle.EdgeSource
type graphEdges struct {
	g Graph
}

func (e graphEdges) Children(groupID int64) []int64 {
	children, err := e.g.DirectSubgroupsOf(groupID)
	if err != nil {
		return nil
	}
	return children
}
