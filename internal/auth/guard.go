package auth

import (
	"context"
	"sync"

	"github.com/spec-kit/issue-tracker/internal/domain"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// Resolver resolves a session from a raw token; nil means unauthenticated.
type Resolver interface {
	Resolve(ctx context.Context, token string) *domain.Session
}

type requestStateKey struct{}

// requestState memoizes the session for the lifetime of one request.
type requestState struct {
	token   string
	once    sync.Once
	session *domain.Session
}

// WithToken attaches the caller's raw token to ctx. The session is resolved
// lazily by the first guard check and reused by later ones.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestStateKey{}, &requestState{token: token})
}

// Guard is the single enforcement point for authentication and authorization.
type Guard struct {
	resolver Resolver
}

func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Session returns the caller's session or nil.
func (g *Guard) Session(ctx context.Context) *domain.Session {
	state, ok := ctx.Value(requestStateKey{}).(*requestState)
	if !ok || state == nil {
		return nil
	}
	state.once.Do(func() {
		state.session = g.resolver.Resolve(ctx, state.token)
	})
	return state.session
}

func (g *Guard) RequireAuthenticated(ctx context.Context) (*domain.Session, error) {
	session := g.Session(ctx)
	if session == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return session, nil
}

func (g *Guard) RequireRole(ctx context.Context, roles ...domain.Role) (*domain.Session, error) {
	session, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !session.HasRole(roles...) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	return session, nil
}

func (g *Guard) RequirePermission(ctx context.Context, permission domain.Permission) (*domain.Session, error) {
	session, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !session.HasPermission(permission) {
		return nil, apperrors.NewForbidden("missing permission " + string(permission))
	}
	return session, nil
}

// ForbidSelf rejects user-management actions aimed at the caller's own account.
func ForbidSelf(session *domain.Session, targetUserID string) error {
	if session.UserID == targetUserID {
		return apperrors.NewForbidden("you cannot change your own account")
	}
	return nil
}
