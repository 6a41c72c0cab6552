package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/identity"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

func TestFirstMemberBecomesAdmin(t *testing.T) {
	f := newFixture(t)
	first := f.login(t, "org-a", "alice", domain.RoleAdmin)
	second := f.guard.Session(authContext(t, f, "org-a", "bob"))
	require.NotNil(t, second)

	assert.Equal(t, domain.RoleAdmin, first.session.Role)
	assert.Equal(t, domain.RoleReadOnly, second.Role)
	assert.Equal(t, first.session.OrganizationID, second.OrganizationID)
}

func TestUserMutationsRefuseSelf(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "org-a", "alice", domain.RoleAdmin)
	self := admin.session.UserID

	_, err := f.users.UpdateUserRole(admin.ctx(), self, RoleInput{Role: domain.RoleReadOnly})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.users.ResetPermissions(admin.ctx(), self)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.users.ToggleUserActivation(admin.ctx(), self)
	requireCode(t, err, apperrors.CodeForbidden)
	requireCode(t, f.users.RemoveUser(admin.ctx(), self), apperrors.CodeForbidden)
}

func TestUpdateUserRoleAndPermissions(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "org-a", "alice", domain.RoleAdmin)
	member := f.login(t, "org-a", "bob", domain.RoleReadOnly)

	user, err := f.users.UpdateUserRole(admin.ctx(), member.session.UserID, RoleInput{Role: domain.RoleSupportAgent})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupportAgent, user.Role)
	assert.ElementsMatch(t, domain.DefaultPermissions(domain.RoleSupportAgent), user.Permissions)

	user, err = f.users.UpdateUserRole(admin.ctx(), member.session.UserID, RoleInput{
		Role:        domain.RoleSupportAgent,
		Permissions: []string{"issues:read", "issues:read", "issues:delete"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"issues:read", "issues:delete"}, user.Permissions)

	// The new permissions apply from the member's next request.
	refreshed := f.guard.Session(member.ctx())
	require.NotNil(t, refreshed)
	assert.True(t, refreshed.HasPermission(domain.PermIssuesDelete))
	assert.False(t, refreshed.HasPermission(domain.PermIssuesWrite))

	_, err = f.users.UpdateUserRole(admin.ctx(), member.session.UserID, RoleInput{Role: domain.RoleSupportAgent, Permissions: []string{"issues:purge"}})
	requireCode(t, err, apperrors.CodeValidation)

	user, err = f.users.ResetPermissions(admin.ctx(), member.session.UserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, domain.DefaultPermissions(domain.RoleSupportAgent), user.Permissions)
}

func TestToggleActivationLocksOutMember(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "org-a", "alice", domain.RoleAdmin)
	member := f.login(t, "org-a", "bob", domain.RoleSupportAgent)

	user, err := f.users.ToggleUserActivation(admin.ctx(), member.session.UserID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Nil(t, f.guard.Session(member.ctx()))

	user, err = f.users.ToggleUserActivation(admin.ctx(), member.session.UserID)
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.NotNil(t, f.guard.Session(member.ctx()))
}

func TestAddUserAndSearchMembers(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "org-a", "alice", domain.RoleAdmin)
	f.verifier.Register("org-a", identity.MemberDetails{MemberID: "carol", Name: "Carol", Email: "carol@example.test", Status: "active"})

	matches, err := f.users.SearchMembers(admin.ctx(), "carol@example.test")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.False(t, matches[0].AlreadyAdded)

	user, err := f.users.AddUser(admin.ctx(), AddUserInput{MemberID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupportAgent, user.Role)
	assert.Equal(t, "Carol", user.Name)
	assert.True(t, user.IsActive)

	_, err = f.users.AddUser(admin.ctx(), AddUserInput{MemberID: "carol"})
	requireCode(t, err, apperrors.CodeConflict)

	matches, err = f.users.SearchMembers(admin.ctx(), "carol@example.test")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.True(t, matches[0].AlreadyAdded)
	assert.Equal(t, user.ID, matches[0].UserID)

	matches, err = f.users.SearchMembers(admin.ctx(), "nobody@example.test")
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = f.users.AddUser(admin.ctx(), AddUserInput{MemberID: "ghost"})
	requireCode(t, err, apperrors.CodeNotFound)

	// Carol signs in later and lands on the pre-created account.
	carol := f.guard.Session(authContext(t, f, "org-a", "carol"))
	require.NotNil(t, carol)
	assert.Equal(t, user.ID, carol.UserID)
	assert.Equal(t, domain.RoleSupportAgent, carol.Role)
}

func TestRemoveUser(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "org-a", "alice", domain.RoleAdmin)
	member := f.login(t, "org-a", "bob", domain.RoleSupportAgent)

	require.NoError(t, f.users.RemoveUser(admin.ctx(), member.session.UserID))
	requireCode(t, f.users.RemoveUser(admin.ctx(), member.session.UserID), apperrors.CodeNotFound)

	users, err := f.users.ListUsers(admin.ctx(), true)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, admin.session.UserID, users[0].ID)
}

func TestUserManagementRequiresSettingsWrite(t *testing.T) {
	f := newFixture(t)
	f.login(t, "org-a", "alice", domain.RoleAdmin)
	agent := f.login(t, "org-a", "sam", domain.RoleSupportAgent)
	viewer := f.login(t, "org-a", "victor", domain.RoleReadOnly)

	_, err := f.users.ToggleUserActivation(agent.ctx(), viewer.session.UserID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = f.users.ListUsers(viewer.ctx(), false)
	requireCode(t, err, apperrors.CodeForbidden)

	assignable, err := f.users.ListAssignableUsers(viewer.ctx())
	require.NoError(t, err)
	assert.Len(t, assignable, 3)
}
