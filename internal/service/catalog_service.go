package service

import (
	"context"
	"strings"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

const defaultCategoryColor = "#6B7280"

// CatalogService manages applications and their issue categories.
type CatalogService struct {
	guard      *auth.Guard
	apps       repository.ApplicationRepository
	categories repository.CategoryRepository
}

func NewCatalogService(guard *auth.Guard, repos *repository.Repositories) *CatalogService {
	return &CatalogService{guard: guard, apps: repos.Applications, categories: repos.Categories}
}

type ApplicationInput struct {
	Name           string `json:"name" validate:"required,max=100"`
	Description    string `json:"description" validate:"max=500"`
	JiraProjectKey string `json:"jiraProjectKey" validate:"omitempty,max=50,projectkey"`
	IsActive       *bool  `json:"isActive"`
}

type CategoryInput struct {
	Name          string `json:"name" validate:"required,max=100"`
	Description   string `json:"description" validate:"max=500"`
	Color         string `json:"color" validate:"omitempty,rgbhex"`
	ApplicationID string `json:"applicationId" validate:"required"`
	IsActive      *bool  `json:"isActive"`
}

func (in *ApplicationInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.JiraProjectKey = strings.TrimSpace(in.JiraProjectKey)
}

func (in *CategoryInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Color = strings.TrimSpace(in.Color)
}

func activeOr(flag *bool, fallback bool) bool {
	if flag == nil {
		return fallback
	}
	return *flag
}

// ListApplications returns active applications unless includeInactive is set.
func (s *CatalogService) ListApplications(ctx context.Context, includeInactive bool) ([]*domain.Application, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.List(ctx, session.OrganizationID, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return apps, nil
}

func (s *CatalogService) CreateApplication(ctx context.Context, input ApplicationInput) (*domain.Application, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	app := &domain.Application{
		Meta:           domain.Meta{OrganizationID: session.OrganizationID},
		Name:           input.Name,
		Description:    input.Description,
		JiraProjectKey: input.JiraProjectKey,
		IsActive:       activeOr(input.IsActive, true),
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, apperrors.MapError(err)
	}
	return app, nil
}

func (s *CatalogService) UpdateApplication(ctx context.Context, id string, input ApplicationInput) (*domain.Application, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	app, err := s.apps.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	app.Name = input.Name
	app.Description = input.Description
	app.JiraProjectKey = input.JiraProjectKey
	app.IsActive = activeOr(input.IsActive, app.IsActive)
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, notFoundOr(err, "application", id)
	}
	return app, nil
}

func (s *CatalogService) DeleteApplication(ctx context.Context, id string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return err
	}
	if err := s.apps.Delete(ctx, id, session.OrganizationID); err != nil {
		return notFoundOr(err, "application", id)
	}
	return nil
}

// ListCategories returns active categories, optionally of one application.
func (s *CatalogService) ListCategories(ctx context.Context, applicationID string, includeInactive bool) ([]*domain.Category, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.List(ctx, session.OrganizationID, applicationID, includeInactive)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return categories, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if _, err := s.apps.Get(ctx, input.ApplicationID, session.OrganizationID); err != nil {
		return nil, notFoundOr(err, "application", input.ApplicationID)
	}
	category := &domain.Category{
		Meta:          domain.Meta{OrganizationID: session.OrganizationID},
		Name:          input.Name,
		Description:   input.Description,
		Color:         input.Color,
		ApplicationID: input.ApplicationID,
		IsActive:      activeOr(input.IsActive, true),
	}
	if category.Color == "" {
		category.Color = defaultCategoryColor
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, input CategoryInput) (*domain.Category, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	input.normalize()
	if err := validateInput(input); err != nil {
		return nil, err
	}
	category, err := s.categories.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "category", id)
	}
	if input.ApplicationID != category.ApplicationID {
		if _, err := s.apps.Get(ctx, input.ApplicationID, session.OrganizationID); err != nil {
			return nil, notFoundOr(err, "application", input.ApplicationID)
		}
	}
	category.Name = input.Name
	category.Description = input.Description
	category.ApplicationID = input.ApplicationID
	category.IsActive = activeOr(input.IsActive, category.IsActive)
	if input.Color != "" {
		category.Color = input.Color
	}
	if err := s.categories.Update(ctx, category); err != nil {
		return nil, notFoundOr(err, "category", id)
	}
	return category, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id, session.OrganizationID); err != nil {
		return notFoundOr(err, "category", id)
	}
	return nil
}
