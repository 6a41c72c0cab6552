package auth

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

type staticResolver struct {
	sessions map[string]*domain.Session
	calls    atomic.Int32
}

func (r *staticResolver) Resolve(ctx context.Context, token string) *domain.Session {
	r.calls.Add(1)
	return r.sessions[token]
}

func newStaticGuard() (*Guard, *staticResolver) {
	resolver := &staticResolver{sessions: map[string]*domain.Session{
		"agent":  {UserID: "u-agent", Role: domain.RoleSupportAgent, Permissions: domain.DefaultPermissions(domain.RoleSupportAgent)},
		"viewer": {UserID: "u-viewer", Role: domain.RoleReadOnly, Permissions: domain.DefaultPermissions(domain.RoleReadOnly)},
	}}
	return NewGuard(resolver), resolver
}

func TestGuardRequireAuthenticated(t *testing.T) {
	guard, _ := newStaticGuard()

	_, err := guard.RequireAuthenticated(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = guard.RequireAuthenticated(WithToken(context.Background(), "unknown"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	session, err := guard.RequireAuthenticated(WithToken(context.Background(), "agent"))
	require.NoError(t, err)
	assert.Equal(t, "u-agent", session.UserID)
}

func TestGuardRequirePermission(t *testing.T) {
	guard, _ := newStaticGuard()
	ctx := WithToken(context.Background(), "viewer")

	_, err := guard.RequirePermission(ctx, domain.PermIssuesRead)
	assert.NoError(t, err)

	_, err = guard.RequirePermission(ctx, domain.PermIssuesWrite)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = guard.RequirePermission(context.Background(), domain.PermIssuesRead)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestGuardRequireRole(t *testing.T) {
	guard, _ := newStaticGuard()

	_, err := guard.RequireRole(WithToken(context.Background(), "agent"), domain.RoleAdmin, domain.RoleSupportAgent)
	assert.NoError(t, err)

	_, err = guard.RequireRole(WithToken(context.Background(), "viewer"), domain.RoleAdmin, domain.RoleSupportAgent)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestGuardResolvesOncePerRequest(t *testing.T) {
	guard, resolver := newStaticGuard()
	ctx := WithToken(context.Background(), "agent")

	for range 4 {
		_, err := guard.RequirePermission(ctx, domain.PermIssuesRead)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), resolver.calls.Load())

	_, err := guard.RequireAuthenticated(WithToken(context.Background(), "agent"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestForbidSelf(t *testing.T) {
	session := &domain.Session{UserID: "u-1"}

	assert.True(t, apperrors.HasCode(ForbidSelf(session, "u-1"), apperrors.CodeForbidden))
	assert.NoError(t, ForbidSelf(session, "u-2"))
}
