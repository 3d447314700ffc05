package service

import (
	"context"
	"testing"

	"nodeclass/internal/config"
	"nodeclass/internal/domain"
	"nodeclass/internal/logging"
	"nodeclass/internal/repository"
	"nodeclass/internal/repository/sqlstore"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *sqlstore.Store
	svc   *Services
	bus   *EventBus
}

func newFixture(t *testing.T, features config.Features) *fixture {
	t.Helper()

	store, err := sqlstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := NewEventBus()
	svc := New(Deps{
		Repo:     store,
		Features: features,
		Events:   bus,
		Log:      logging.Discard(),
	})

	return &fixture{t: t, ctx: context.Background(), store: store, svc: svc, bus: bus}
}

// writable returns a fixture with every mutation allowed. Fixtures for
// gated tests seed their data through this one first.
func writable(t *testing.T) *fixture {
	return newFixture(t, config.DefaultFeatures())
}

// withFeatures rebuilds the services on the same store with other flags
func (f *fixture) withFeatures(features config.Features) *Services {
	return New(Deps{Repo: f.store, Features: features, Events: f.bus, Log: logging.Discard()})
}

func (f *fixture) class(name string) int64 {
	f.t.Helper()
	c := &domain.NodeClass{Name: name}
	require.NoError(f.t, f.svc.Classes.Create(f.ctx, c))
	return c.ID
}

func (f *fixture) group(name string, params map[string]string, classIDs ...int64) int64 {
	f.t.Helper()
	g := domain.NewNodeGroup(name, "")
	g.Parameters = params
	g.ClassIDs = classIDs
	require.NoError(f.t, f.svc.Groups.CreateGroup(f.ctx, g))
	return g.ID
}

func (f *fixture) node(name string, params map[string]string) int64 {
	f.t.Helper()
	n := domain.NewNode(name)
	n.Parameters = params
	require.NoError(f.t, f.svc.Nodes.Create(f.ctx, n))
	return n.ID
}

func (f *fixture) include(parent, child int64) {
	f.t.Helper()
	require.NoError(f.t, f.svc.Groups.ProposeInclusion(f.ctx, parent, child))
}

func (f *fixture) member(nodeID, groupID int64) {
	f.t.Helper()
	require.NoError(f.t, f.svc.Memberships.Create(f.ctx, nodeID, groupID))
}

func (f *fixture) inclusionCount() int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.store.View(f.ctx, func(tx repository.Tx) error {
		var err error
		n, err = tx.CountInclusions(f.ctx)
		return err
	}))
	return n
}

func (f *fixture) membershipCount() int {
	f.t.Helper()
	n, err := f.svc.Memberships.Count(f.ctx)
	require.NoError(f.t, err)
	return n
}
