package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"nodeclass/internal/codec"
	"nodeclass/internal/cycle"
	"nodeclass/internal/domain"
	"nodeclass/internal/index"
	"nodeclass/internal/resolver"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ClassificationService answers classification queries. Every call works
// on its own snapshot, so queries never block each other or writers.
type ClassificationService struct {
	base
	resolver    *resolver.Resolver
	concurrency int
}

// NewClassificationService creates a classification service
func NewClassificationService(b base, r *resolver.Resolver, concurrency int) *ClassificationService {
	return &ClassificationService{base: b, resolver: r, concurrency: concurrency}
}

// Snapshot reads the whole graph in one read transaction and indexes it
func (s *ClassificationService) Snapshot(ctx context.Context) (*index.Snapshot, error) {
	graph, err := s.repo.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	return index.Build(graph), nil
}

// Resolve computes the classification of the named node
func (s *ClassificationService) Resolve(ctx context.Context, nodeName string) (*domain.Classification, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveByName(ctx, snap, nodeName)
}

// Explain resolves the named node and reports the groups in scope and the
// winning source of every parameter
func (s *ClassificationService) Explain(ctx context.Context, nodeName string) (*resolver.Resolution, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	id, err := snap.NodeByName(nodeName)
	if err != nil {
		return nil, err
	}
	return s.resolver.Explain(ctx, snap, id)
}

// Export writes a classification in the requested format
func (s *ClassificationService) Export(ctx context.Context, c *domain.Classification, format string, w io.Writer) error {
	exporter, err := codec.ExporterFor(format)
	if err != nil {
		return err
	}
	return exporter.Export(c, w)
}

// ClassifyAll resolves every node against one shared snapshot
func (s *ClassificationService) ClassifyAll(ctx context.Context) (map[string]*domain.Classification, error) {
	ctx, span := tracer.Start(ctx, "service.ClassifyAll")
	defer span.End()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results, err := s.classifyAll(ctx, snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("nodes", len(results)))
	return results, nil
}

func (s *ClassificationService) classifyAll(ctx context.Context, snap *index.Snapshot) (map[string]*domain.Classification, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]*domain.Classification)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range snap.NodeIDs() {
		g.Go(func() error {
			c, err := s.resolver.Resolve(gctx, snap, id)
			if err != nil {
				return err
			}
			mu.Lock()
			results[c.Node] = c
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Inventory flattens the graph into an Ansible inventory. Host vars are
// the fully resolved parameters of each node.
func (s *ClassificationService) Inventory(ctx context.Context) (*codec.Inventory, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := s.classifyAll(ctx, snap)
	if err != nil {
		return nil, err
	}

	inv := &codec.Inventory{}
	for _, id := range snap.NodeIDs() {
		node, _ := snap.Node(id)
		host := codec.InventoryHost{Name: node.Name}
		if c, ok := resolved[node.Name]; ok {
			host.Vars = c.Parameters
		}
		inv.Hosts = append(inv.Hosts, host)
	}

	for _, id := range snap.GroupIDs() {
		name, err := snap.GroupName(id)
		if err != nil {
			return nil, err
		}
		vars, err := snap.DirectParametersOf(id)
		if err != nil {
			return nil, err
		}
		group := codec.InventoryGroup{Name: name, Vars: vars}
		for _, child := range snap.Children(id) {
			childName, err := snap.GroupName(child)
			if err != nil {
				continue
			}
			group.Children = append(group.Children, childName)
		}
		for _, member := range snap.MembersOf(id) {
			if node, ok := snap.Node(member); ok {
				group.Hosts = append(group.Hosts, node.Name)
			}
		}
		inv.Groups = append(inv.Groups, group)
	}

	return inv, nil
}

// ExportInventory writes the Ansible inventory for the whole graph
func (s *ClassificationService) ExportInventory(ctx context.Context, w io.Writer) error {
	inv, err := s.Inventory(ctx)
	if err != nil {
		return err
	}
	return codec.NewAnsibleCodec().Export(inv, w)
}

// FindCycles audits the stored inclusion graph and returns every cycle as
// a list of group names
func (s *ClassificationService) FindCycles(ctx context.Context) ([][]string, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	found := cycle.FindCycles(snap, snap.GroupIDs())
	named := make([][]string, 0, len(found))
	for _, ids := range found {
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			name, err := snap.GroupName(id)
			if err != nil {
				name = fmt.Sprint(id)
			}
			names = append(names, name)
		}
		named = append(named, names)
	}
	return named, nil
}
