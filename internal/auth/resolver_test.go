package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

type resolverFixture struct {
	repos    *repository.Repositories
	verifier *identity.LocalVerifier
	resolver *SessionResolver
}

func newResolverFixture(t *testing.T, cfg ResolverConfig) *resolverFixture {
	t.Helper()
	repos := repository.NewRepositories(repository.NewMemoryStore(), nil)
	verifier := identity.NewLocalVerifier("test-secret", time.Hour)
	return &resolverFixture{
		repos:    repos,
		verifier: verifier,
		resolver: NewSessionResolver(cfg, ResolverDependencies{
			Verifier:      verifier,
			Organizations: repos.Organizations,
			Users:         repos.Users,
		}),
	}
}

func (f *resolverFixture) token(t *testing.T, org, member, name string) string {
	t.Helper()
	token, _, err := f.verifier.Issue(identity.IssueInput{MemberID: member, OrganizationID: org, Name: name, Email: member + "@acme.test"})
	require.NoError(t, err)
	return token
}

func TestResolveFirstUserBecomesAdmin(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	ctx := context.Background()

	first := f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada"))
	require.NotNil(t, first)
	assert.Equal(t, domain.RoleAdmin, first.Role)
	assert.ElementsMatch(t, domain.DefaultPermissions(domain.RoleAdmin), first.Permissions)
	assert.Equal(t, "Ada", first.UserName)
	assert.Equal(t, OrganizationID("ext-org"), first.OrganizationID)
	assert.Equal(t, "ext-org", first.ExternalOrganizationID)
	assert.NotEmpty(t, first.ExternalSessionID)

	second := f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-2", "Grace"))
	require.NotNil(t, second)
	assert.Equal(t, domain.RoleReadOnly, second.Role)
	assert.Equal(t, first.OrganizationID, second.OrganizationID)

	org, err := f.repos.Organizations.Get(ctx, first.OrganizationID)
	require.NoError(t, err)
	assert.True(t, org.Settings.AllowSelfRegistration)
	assert.False(t, org.Settings.RequireApproval)
	assert.Equal(t, domain.RoleReadOnly, org.Settings.DefaultUserRole)
}

func TestResolveUsesConfiguredDefaultRole(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	ctx := context.Background()
	require.NotNil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada")))

	org, err := f.repos.Organizations.GetByExternalID(ctx, "ext-org")
	require.NoError(t, err)
	org.Settings.DefaultUserRole = domain.RoleSupportAgent
	require.NoError(t, f.repos.Organizations.Update(ctx, org))

	session := f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-2", "Grace"))
	require.NotNil(t, session)
	assert.Equal(t, domain.RoleSupportAgent, session.Role)
}

func TestResolveReturnsExistingUserAndStoredPermissions(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	ctx := context.Background()
	token := f.token(t, "ext-org", "m-1", "Ada")
	first := f.resolver.Resolve(ctx, token)
	require.NotNil(t, first)

	user, err := f.repos.Users.Get(ctx, first.UserID, first.OrganizationID)
	require.NoError(t, err)
	user.Permissions = []string{"issues:read"}
	require.NoError(t, f.repos.Users.Update(ctx, user))

	again := f.resolver.Resolve(ctx, token)
	require.NotNil(t, again)
	assert.Equal(t, first.UserID, again.UserID)
	assert.Equal(t, domain.RoleAdmin, again.Role)
	assert.Equal(t, []string{"issues:read"}, again.Permissions)

	stored, err := f.repos.Users.Get(ctx, first.UserID, first.OrganizationID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)

	count, err := f.repos.Users.CountInOrganization(ctx, first.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResolveRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("empty token", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{})
		assert.Nil(t, f.resolver.Resolve(ctx, ""))
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{})
		assert.Nil(t, f.resolver.Resolve(ctx, "garbage"))
	})

	t.Run("missing organization configuration", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{RequireOrganization: true})
		assert.Nil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada")))
	})

	t.Run("foreign organization", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{ExternalOrganizationID: "ext-org", RequireOrganization: true})
		assert.Nil(t, f.resolver.Resolve(ctx, f.token(t, "other-org", "m-1", "Ada")))
		assert.NotNil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada")))
	})

	t.Run("self registration closed", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{})
		require.NotNil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada")))
		org, err := f.repos.Organizations.GetByExternalID(ctx, "ext-org")
		require.NoError(t, err)
		org.Settings.AllowSelfRegistration = false
		require.NoError(t, f.repos.Organizations.Update(ctx, org))

		assert.Nil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-2", "Grace")))
		_, err = f.repos.Users.GetByMember(ctx, org.ID, "m-2")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("approval required creates inactive user", func(t *testing.T) {
		f := newResolverFixture(t, ResolverConfig{})
		require.NotNil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-1", "Ada")))
		org, err := f.repos.Organizations.GetByExternalID(ctx, "ext-org")
		require.NoError(t, err)
		org.Settings.RequireApproval = true
		require.NoError(t, f.repos.Organizations.Update(ctx, org))

		assert.Nil(t, f.resolver.Resolve(ctx, f.token(t, "ext-org", "m-2", "Grace")))
		pending, err := f.repos.Users.GetByMember(ctx, org.ID, "m-2")
		require.NoError(t, err)
		assert.False(t, pending.IsActive)
	})
}

type flakyVerifier struct {
	mock.Mock
	*identity.LocalVerifier
}

func (v *flakyVerifier) LookupMember(ctx context.Context, orgID, memberID string) (*identity.MemberDetails, error) {
	args := v.Called(ctx, orgID, memberID)
	details, _ := args.Get(0).(*identity.MemberDetails)
	return details, args.Error(1)
}

func TestResolveFallsBackToMemberIDWhenLookupFails(t *testing.T) {
	repos := repository.NewRepositories(repository.NewMemoryStore(), nil)
	local := identity.NewLocalVerifier("test-secret", time.Hour)
	verifier := &flakyVerifier{LocalVerifier: local}
	verifier.On("LookupMember", mock.Anything, "ext-org", "member-77").Return(nil, errors.New("provider timeout"))

	resolver := NewSessionResolver(ResolverConfig{}, ResolverDependencies{
		Verifier:      verifier,
		Organizations: repos.Organizations,
		Users:         repos.Users,
	})
	token, _, err := local.Issue(identity.IssueInput{MemberID: "member-77", OrganizationID: "ext-org"})
	require.NoError(t, err)

	session := resolver.Resolve(context.Background(), token)
	require.NotNil(t, session)
	assert.Equal(t, "member-77", session.UserName)
	verifier.AssertExpectations(t)
}

func TestConcurrentFirstLoginsProvisionOneAdmin(t *testing.T) {
	f := newResolverFixture(t, ResolverConfig{})
	ctx := context.Background()

	tokens := make([]string, 6)
	for i := range tokens {
		tokens[i] = f.token(t, "ext-org", "member-"+string(rune('a'+i)), "")
	}

	var wg sync.WaitGroup
	sessions := make([]*domain.Session, len(tokens))
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			sessions[i] = f.resolver.Resolve(ctx, token)
		}(i, token)
	}
	wg.Wait()

	admins := 0
	for _, s := range sessions {
		require.NotNil(t, s)
		if s.Role == domain.RoleAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}
