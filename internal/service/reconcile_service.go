package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// CounterDrift records one customer whose stored issue counter disagreed
// with the live issue count.
type CounterDrift struct {
	CustomerID string `json:"customerId"`
	Stored     int    `json:"stored"`
	Actual     int    `json:"actual"`
	Repaired   bool   `json:"repaired"`
}

// ReconcileReport summarizes one organization's reconciliation.
type ReconcileReport struct {
	OrganizationID   string         `json:"organizationId"`
	CustomersChecked int            `json:"customersChecked"`
	Drifts           []CounterDrift `json:"drifts"`
}

// ReconcileService repairs denormalized counters after partial failures.
type ReconcileService struct {
	guard     *auth.Guard
	orgs      repository.OrganizationRepository
	customers repository.CustomerRepository
	issues    repository.IssueRepository
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewReconcileService(guard *auth.Guard, repos *repository.Repositories, metrics *observability.Metrics, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		guard:     guard,
		orgs:      repos.Organizations,
		customers: repos.Customers,
		issues:    repos.Issues,
		metrics:   metrics,
		logger:    logger,
	}
}

// ReconcileMine reconciles the caller's organization.
func (s *ReconcileService) ReconcileMine(ctx context.Context) (*ReconcileReport, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermSettingsWrite)
	if err != nil {
		return nil, err
	}
	report, err := s.ReconcileOrganization(ctx, session.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return report, nil
}

// ReconcileOrganization recomputes every customer's totalIssues. It performs
// no session check and is meant for system jobs.
func (s *ReconcileService) ReconcileOrganization(ctx context.Context, orgID string) (*ReconcileReport, error) {
	customers, err := s.customers.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	report := &ReconcileReport{OrganizationID: orgID, Drifts: []CounterDrift{}}
	for _, customer := range customers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.CustomersChecked++
		actual, err := s.issues.CountByCustomer(ctx, orgID, customer.ID)
		if err != nil {
			return report, fmt.Errorf("count issues for customer %s: %w", customer.ID, err)
		}
		if actual == customer.TotalIssues {
			continue
		}

		drift := CounterDrift{CustomerID: customer.ID, Stored: customer.TotalIssues, Actual: actual}
		s.logger.Warn("customer issue counter drift",
			zap.String("organization_id", orgID),
			zap.String("customer_id", customer.ID),
			zap.Int("stored", customer.TotalIssues),
			zap.Int("actual", actual),
		)
		s.metrics.RecordCounterDrift("customer_total_issues")

		if err := adjustCustomerCounter(ctx, s.customers, orgID, customer.ID, actual-customer.TotalIssues); err != nil {
			s.logger.Error("counter repair failed",
				zap.Error(err),
				zap.String("organization_id", orgID),
				zap.String("customer_id", customer.ID),
			)
		} else {
			drift.Repaired = true
		}
		report.Drifts = append(report.Drifts, drift)
	}
	return report, nil
}

// ReconcileAll runs ReconcileOrganization for every active organization. A
// failing organization is logged and does not stop the others.
func (s *ReconcileService) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	orgs, err := s.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	reports := make([]*ReconcileReport, 0, len(orgs))
	for _, org := range orgs {
		report, err := s.ReconcileOrganization(ctx, org.ID)
		if err != nil {
			if ctx.Err() != nil {
				return reports, ctx.Err()
			}
			s.logger.Error("reconcile organization failed", zap.Error(err), zap.String("organization_id", org.ID))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
