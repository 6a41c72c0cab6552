package service

import (
	"context"
	"errors"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// OrganizationService exposes the caller's organization settings.
type OrganizationService struct {
	guard *auth.Guard
	orgs  repository.OrganizationRepository
}

func NewOrganizationService(guard *auth.Guard, repos *repository.Repositories) *OrganizationService {
	return &OrganizationService{guard: guard, orgs: repos.Organizations}
}

// SettingsInput replaces the organization's membership settings.
type SettingsInput struct {
	Name                  string      `json:"name" validate:"omitempty,max=100"`
	Domain                string      `json:"domain" validate:"omitempty,fqdn"`
	AllowSelfRegistration bool        `json:"allowSelfRegistration"`
	DefaultUserRole       domain.Role `json:"defaultUserRole" validate:"required,oneof=admin support_agent read_only"`
	RequireApproval       bool        `json:"requireApproval"`
}

func (s *OrganizationService) GetSettings(ctx context.Context) (*domain.Organization, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead)
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.Get(ctx, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "organization", session.OrganizationID)
	}
	return org, nil
}

func (s *OrganizationService) UpdateSettings(ctx context.Context, input SettingsInput) (*domain.Organization, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	org, err := s.orgs.Get(ctx, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "organization", session.OrganizationID)
	}
	if input.Name != "" {
		org.Name = input.Name
	}
	if input.Domain != "" {
		org.Domain = input.Domain
	}
	org.Settings = domain.OrganizationSettings{
		AllowSelfRegistration: input.AllowSelfRegistration,
		DefaultUserRole:       input.DefaultUserRole,
		RequireApproval:       input.RequireApproval,
	}
	// Conditional so the first-admin claim made at sign-in is never lost.
	if err := s.orgs.UpdateIfUnchanged(ctx, org); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("organization changed concurrently, please retry", nil)
		}
		return nil, apperrors.MapError(err)
	}
	return org, nil
}
