package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// CustomerService manages the companies issues are filed for.
type CustomerService struct {
	guard     *auth.Guard
	customers repository.CustomerRepository
	issues    repository.IssueRepository
	logger    *zap.Logger
}

func NewCustomerService(guard *auth.Guard, repos *repository.Repositories, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{guard: guard, customers: repos.Customers, issues: repos.Issues, logger: logger}
}

// CustomerInput is the editable part of a customer.
type CustomerInput struct {
	CompanyName string `json:"companyName" validate:"required,max=100"`
}

func (s *CustomerService) CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermCustomersWrite)
	if err != nil {
		return nil, err
	}
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	customer := &domain.Customer{
		Meta:        domain.Meta{OrganizationID: session.OrganizationID},
		CompanyName: input.CompanyName,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id string, input CustomerInput) (*domain.Customer, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermCustomersWrite)
	if err != nil {
		return nil, err
	}
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	customer.CompanyName = input.CompanyName
	// Conditional so a concurrent counter adjustment is not overwritten.
	if err := s.customers.UpdateIfUnchanged(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, apperrors.NewConflict("customer changed concurrently, please retry", nil)
		}
		return nil, notFoundOr(err, "customer", id)
	}
	return customer, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermCustomersRead)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	return customer, nil
}

// ListCustomers returns customers sorted by company name.
func (s *CustomerService) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermCustomersRead)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.List(ctx, session.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return customers, nil
}

// DeleteCustomer refuses while any issue in any status still references the
// customer. The live issue count decides, not the stored counter.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermCustomersWrite)
	if err != nil {
		return err
	}
	orgID := session.OrganizationID
	customer, err := s.customers.Get(ctx, id, orgID)
	if err != nil {
		return notFoundOr(err, "customer", id)
	}
	live, err := s.issues.CountByCustomer(ctx, orgID, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if live > 0 {
		if live != customer.TotalIssues {
			s.logger.Warn("customer issue counter drift",
				zap.String("organization_id", orgID),
				zap.String("customer_id", id),
				zap.Int("stored", customer.TotalIssues),
				zap.Int("live", live),
			)
		}
		return apperrors.NewConflict(
			fmt.Sprintf("Cannot delete customer with %d existing issue(s). Please resolve or reassign the issues first.", live),
			map[string]any{"issueCount": live},
		)
	}
	if err := s.customers.Delete(ctx, id, orgID); err != nil {
		return notFoundOr(err, "customer", id)
	}
	return nil
}
