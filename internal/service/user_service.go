package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// UserService manages organization members. Every mutation refuses to
// target the caller's own account.
type UserService struct {
	guard    *auth.Guard
	users    repository.UserRepository
	verifier identity.Verifier
	logger   *zap.Logger
}

func NewUserService(guard *auth.Guard, repos *repository.Repositories, verifier identity.Verifier, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{guard: guard, users: repos.Users, verifier: verifier, logger: logger}
}

// MemberMatch is an identity provider member and whether it already has a user.
type MemberMatch struct {
	identity.MemberDetails
	UserID       string `json:"userId,omitempty"`
	AlreadyAdded bool   `json:"alreadyAdded"`
}

// AddUserInput picks the member to add and their role.
type AddUserInput struct {
	MemberID string      `json:"memberId" validate:"required"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=admin support_agent read_only"`
}

// RoleInput changes a user's role. Nil Permissions means the role defaults.
type RoleInput struct {
	Role        domain.Role `json:"role" validate:"required,oneof=admin support_agent read_only"`
	Permissions []string    `json:"permissions"`
}

func (s *UserService) ListUsers(ctx context.Context, includeInactive bool) ([]*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, session.OrganizationID, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListAssignableUsers returns active users issues can be assigned to.
func (s *UserService) ListAssignableUsers(ctx context.Context) ([]*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, session.OrganizationID, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// SearchMembers looks a member up by exact email in the identity provider.
func (s *UserService) SearchMembers(ctx context.Context, email string) ([]MemberMatch, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead)
	if err != nil {
		return nil, err
	}
	details, err := s.verifier.SearchMemberByEmail(ctx, session.ExternalOrganizationID, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, identity.ErrMemberNotFound) {
			return []MemberMatch{}, nil
		}
		s.logger.Error("member search failed", zap.Error(err))
		return nil, apperrors.NewExternalServiceFailure("identity provider", err)
	}
	match := MemberMatch{MemberDetails: *details}
	if user, err := s.users.GetByMember(ctx, session.OrganizationID, details.MemberID); err == nil {
		match.UserID = user.ID
		match.AlreadyAdded = true
	}
	return []MemberMatch{match}, nil
}

// AddUser creates a user for an identity provider member ahead of their first sign-in.
func (s *UserService) AddUser(ctx context.Context, input AddUserInput) (*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = domain.RoleSupportAgent
	}

	details, err := s.verifier.LookupMember(ctx, session.ExternalOrganizationID, input.MemberID)
	if err != nil {
		if errors.Is(err, identity.ErrMemberNotFound) {
			return nil, apperrors.NewNotFound("member", map[string]any{"memberId": input.MemberID})
		}
		return nil, apperrors.NewExternalServiceFailure("identity provider", err)
	}

	user := &domain.User{
		Meta:             domain.Meta{ID: auth.UserID(session.OrganizationID, input.MemberID), OrganizationID: session.OrganizationID},
		Name:             details.DisplayName(input.MemberID),
		Email:            details.Email,
		Role:             role,
		ExternalMemberID: input.MemberID,
		Permissions:      domain.DefaultPermissions(role),
		IsActive:         true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.NewConflict("user already exists", map[string]any{"userId": user.ID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUserRole sets the role and either explicit or default permissions.
func (s *UserService) UpdateUserRole(ctx context.Context, userID string, input RoleInput) (*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	if err := auth.ForbidSelf(session, userID); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	permissions := input.Permissions
	if permissions == nil {
		permissions = domain.DefaultPermissions(input.Role)
	}
	if unknown := lo.Reject(permissions, func(p string, _ int) bool { return domain.IsKnownPermission(p) }); len(unknown) > 0 {
		return nil, apperrors.NewFieldValidationError(map[string]string{"permissions": "unknown permissions: " + strings.Join(unknown, ", ")})
	}
	return s.mutate(ctx, session, userID, func(u *domain.User) {
		u.Role = input.Role
		u.Permissions = lo.Uniq(permissions)
	})
}

// ResetPermissions restores the defaults of the user's current role.
func (s *UserService) ResetPermissions(ctx context.Context, userID string) (*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	if err := auth.ForbidSelf(session, userID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, session, userID, func(u *domain.User) {
		u.Permissions = domain.DefaultPermissions(u.Role)
	})
}

func (s *UserService) ToggleUserActivation(ctx context.Context, userID string) (*domain.User, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	if err := auth.ForbidSelf(session, userID); err != nil {
		return nil, err
	}
	return s.mutate(ctx, session, userID, func(u *domain.User) {
		u.IsActive = !u.IsActive
	})
}

func (s *UserService) RemoveUser(ctx context.Context, userID string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return err
	}
	if err := auth.ForbidSelf(session, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID, session.OrganizationID); err != nil {
		return notFoundOr(err, "user", userID)
	}
	s.logger.Info("user removed",
		zap.String("organization_id", session.OrganizationID),
		zap.String("user_id", userID),
		zap.String("removed_by", session.UserID),
	)
	return nil
}

func (s *UserService) mutate(ctx context.Context, session *domain.Session, userID string, change func(*domain.User)) (*domain.User, error) {
	user, err := s.users.Get(ctx, userID, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	change(user)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFoundOr(err, "user", userID)
	}
	return user, nil
}
