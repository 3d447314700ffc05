package service

import (
	"errors"
	"testing"

	"nodeclass/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipCreateDuplicate(t *testing.T) {
	f := writable(t)
	g := f.group("web", nil)
	n := f.node("web1", nil)

	f.member(n, g)
	require.Equal(t, 1, f.membershipCount())

	err := f.svc.Memberships.Create(f.ctx, n, g)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.membershipCount())

	err = f.svc.Memberships.CreateByName(f.ctx, "web1", "web")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.membershipCount())
}

func TestMembershipCreateByName(t *testing.T) {
	f := writable(t)
	f.group("web", nil)
	f.node("web1", nil)

	tests := []struct {
		name      string
		node      string
		group     string
		wantKind  domain.EntityKind
		wantCount int
	}{
		{"missing node", "ghost", "web", domain.KindNode, 0},
		{"missing group", "web1", "ghost", domain.KindGroup, 0},
		{"missing both reports the node", "ghost", "ghost", domain.KindNode, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.Memberships.CreateByName(f.ctx, tt.node, tt.group)
			require.ErrorIs(t, err, domain.ErrNotFound)

			var nf *domain.NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tt.wantKind, nf.Kind)
			assert.Equal(t, "ghost", nf.Ref)
			assert.Equal(t, tt.wantCount, f.membershipCount())
		})
	}

	require.NoError(t, f.svc.Memberships.CreateByName(f.ctx, "web1", "web"))
	assert.Equal(t, 1, f.membershipCount())
}

func TestMembershipCreateMissingIDs(t *testing.T) {
	f := writable(t)
	g := f.group("web", nil)
	n := f.node("web1", nil)

	assert.ErrorIs(t, f.svc.Memberships.Create(f.ctx, 999, g), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Memberships.Create(f.ctx, n, 999), domain.ErrNotFound)
	assert.Equal(t, 0, f.membershipCount())
}

func TestMembershipDelete(t *testing.T) {
	f := writable(t)
	g := f.group("web", nil)
	n := f.node("web1", nil)
	f.member(n, g)

	require.NoError(t, f.svc.Memberships.Delete(f.ctx, n, g))
	assert.Equal(t, 0, f.membershipCount())
	assert.ErrorIs(t, f.svc.Memberships.Delete(f.ctx, n, g), domain.ErrNotFound)
}
