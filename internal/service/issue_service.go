package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/cache"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

// BugReporter drafts a developer-facing report for an issue.
type BugReporter interface {
	GenerateBugReport(ctx context.Context, issue *domain.Issue, customer *domain.Customer) (*domain.BugReport, error)
}

// IssueService coordinates issue and comment workflows.
type IssueService struct {
	guard      *auth.Guard
	issues     repository.IssueRepository
	customers  repository.CustomerRepository
	users      repository.UserRepository
	apps       repository.ApplicationRepository
	categories repository.CategoryRepository
	comments   repository.CommentRepository
	activities repository.ActivityRepository
	dispatcher events.Dispatcher
	stats      *cache.StatsCache
	reporter   BugReporter
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	Guard        *auth.Guard
	Repositories *repository.Repositories
	Dispatcher   events.Dispatcher
	Stats        *cache.StatsCache
	Reporter     BugReporter
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

func NewIssueService(deps IssueDependencies) *IssueService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	repos := deps.Repositories
	return &IssueService{
		guard:      deps.Guard,
		issues:     repos.Issues,
		customers:  repos.Customers,
		users:      repos.Users,
		apps:       repos.Applications,
		categories: repos.Categories,
		comments:   repos.Comments,
		activities: repos.Activities,
		dispatcher: deps.Dispatcher,
		stats:      deps.Stats,
		reporter:   deps.Reporter,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
	}
}

// CreateIssueInput describes a new issue.
type CreateIssueInput struct {
	Title         string               `json:"title" validate:"required,max=200"`
	Description   string               `json:"description" validate:"required,max=5000"`
	Priority      domain.IssuePriority `json:"priority" validate:"required,oneof=critical high medium low"`
	Category      string               `json:"category" validate:"max=100"`
	ApplicationID string               `json:"applicationId"`
	CustomerID    string               `json:"customerId" validate:"required"`
	AssignedToID  string               `json:"assignedToId"`
	Attachments   []string             `json:"attachments" validate:"max=20"`
}

// IssueUpdate carries the fields to change. Nil fields are left untouched;
// an empty AssignedToID unassigns the issue.
type IssueUpdate struct {
	Title           *string               `json:"title" validate:"omitnil,min=1,max=200"`
	Description     *string               `json:"description" validate:"omitnil,min=1,max=5000"`
	Status          *domain.IssueStatus   `json:"status" validate:"omitnil,oneof=new in_progress awaiting_customer resolved closed"`
	Priority        *domain.IssuePriority `json:"priority" validate:"omitnil,oneof=critical high medium low"`
	Category        *string               `json:"category" validate:"omitnil,max=100"`
	ApplicationID   *string               `json:"applicationId"`
	CustomerID      *string               `json:"customerId" validate:"omitnil,min=1"`
	AssignedToID    *string               `json:"assignedToId"`
	ResolutionNotes *string               `json:"resolutionNotes" validate:"omitnil,max=2000"`
}

func (u IssueUpdate) empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil &&
		u.Category == nil && u.ApplicationID == nil && u.CustomerID == nil &&
		u.AssignedToID == nil && u.ResolutionNotes == nil
}

// BulkUpdateResult reports how far a bulk update got before stopping.
type BulkUpdateResult struct {
	Updated  int      `json:"updated"`
	IssueIDs []string `json:"issueIds"`
}

// CreateIssue files an issue for a customer of the caller's organization.
func (s *IssueService) CreateIssue(ctx context.Context, input CreateIssueInput) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	orgID := session.OrganizationID
	if _, err := s.customers.Get(ctx, input.CustomerID, orgID); err != nil {
		return nil, notFoundOr(err, "customer", input.CustomerID)
	}
	if err := s.checkReferences(ctx, orgID, input.ApplicationID, input.Category, input.AssignedToID); err != nil {
		return nil, err
	}

	issue := &domain.Issue{
		Meta:          domain.Meta{OrganizationID: orgID},
		Title:         input.Title,
		Description:   input.Description,
		Status:        domain.IssueStatusNew,
		Priority:      input.Priority,
		Category:      input.Category,
		ApplicationID: input.ApplicationID,
		CustomerID:    input.CustomerID,
		AssignedToID:  input.AssignedToID,
		CreatedBy:     session.UserID,
		Attachments:   input.Attachments,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}
	defer s.stats.Invalidate(ctx, orgID)

	// The issue exists from here on; a failed counter write is surfaced, not undone.
	if err := s.adjustCustomerIssues(ctx, orgID, issue.CustomerID, 1); err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activities, s.logger, session, domain.ActivityIssueCreated, issue.ID,
		"New issue: "+issue.Title, fmt.Sprintf("Issue #%s was created", issue.ID))
	publish(ctx, s.dispatcher, session, events.EventIssueCreated, issue.ID, events.IssueCreatedPayload{
		Title:      issue.Title,
		Priority:   issue.Priority,
		CustomerID: issue.CustomerID,
	}, s.now().UTC())
	return issue, nil
}

func (s *IssueService) GetIssue(ctx context.Context, id string) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "issue", id)
	}
	return issue, nil
}

// IssuePage is one page of a filtered listing.
type IssuePage struct {
	Items []*domain.Issue `json:"items"`
	Total int             `json:"total"`
}

// ListIssues filters, sorts and pages issues of the caller's organization.
func (s *IssueService) ListIssues(ctx context.Context, filter repository.IssueFilter) (*IssuePage, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	if err := validateIssueFilter(filter); err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = pageBounds(filter.Limit, filter.Offset, 20, 100)

	items, err := s.issues.List(ctx, session.OrganizationID, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := s.issues.Count(ctx, session.OrganizationID, countFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &IssuePage{Items: items, Total: total}, nil
}

func validateIssueFilter(filter repository.IssueFilter) error {
	fields := map[string]string{}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			fields["status"] = "unknown status " + string(st)
		}
	}
	for _, p := range filter.Priorities {
		if !p.Valid() {
			fields["priority"] = "unknown priority " + string(p)
		}
	}
	if filter.SortBy != "" {
		known := false
		for _, f := range repository.IssueSortFields {
			known = known || f == filter.SortBy
		}
		if !known {
			fields["sortBy"] = "must be one of: " + strings.Join(repository.IssueSortFields, " ")
		}
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedTo.Before(*filter.CreatedFrom) {
		fields["createdTo"] = "must not be before createdFrom"
	}
	if len(fields) > 0 {
		return apperrors.NewFieldValidationError(fields)
	}
	return nil
}

// UpdateIssue merges the provided fields into the issue.
func (s *IssueService) UpdateIssue(ctx context.Context, id string, update IssueUpdate) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, session, id, update, "")
}

// ChangeStatus moves the issue to status.
func (s *IssueService) ChangeStatus(ctx context.Context, id string, status domain.IssueStatus) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, session, id, IssueUpdate{Status: &status}, "status")
}

// AssignIssue sets the assignee; an empty userID unassigns.
func (s *IssueService) AssignIssue(ctx context.Context, id, userID string) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, session, id, IssueUpdate{AssignedToID: &userID}, "assign")
}

// BulkUpdateIssues applies update to each issue in order and stops at the
// first failure. Issues before the failing one stay updated.
func (s *IssueService) BulkUpdateIssues(ctx context.Context, ids []string, update IssueUpdate) (*BulkUpdateResult, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apperrors.NewFieldValidationError(map[string]string{"issueIds": "at least one issue must be selected"})
	}
	if update.empty() {
		return nil, apperrors.NewValidationError("at least one field must be updated", nil)
	}

	result := &BulkUpdateResult{IssueIDs: []string{}}
	for _, id := range ids {
		if _, err := s.applyUpdate(ctx, session, id, update, ""); err != nil {
			s.logger.Warn("bulk update stopped",
				zap.String("organization_id", session.OrganizationID),
				zap.String("issue_id", id),
				zap.Int("updated", result.Updated),
				zap.Error(err),
			)
			return result, err
		}
		result.Updated++
		result.IssueIDs = append(result.IssueIDs, id)
	}
	return result, nil
}

func (s *IssueService) applyUpdate(ctx context.Context, session *domain.Session, id string, update IssueUpdate, kind string) (*domain.Issue, error) {
	trimPtr(update.Title)
	trimPtr(update.Description)
	trimPtr(update.Category)
	if err := validateInput(update); err != nil {
		return nil, err
	}

	orgID := session.OrganizationID
	var issue *domain.Issue
	var oldCustomer string
	var oldStatus domain.IssueStatus
	for attempt := 0; ; attempt++ {
		if attempt == counterRetries {
			return nil, apperrors.NewConflict("issue is being modified concurrently, please retry", nil)
		}
		current, err := s.issues.Get(ctx, id, orgID)
		if err != nil {
			return nil, notFoundOr(err, "issue", id)
		}
		if err := s.checkUpdateReferences(ctx, orgID, current, update); err != nil {
			return nil, err
		}

		oldCustomer, oldStatus = current.CustomerID, current.Status
		mergeIssue(current, update)
		if current.Status == domain.IssueStatusResolved && oldStatus != domain.IssueStatusResolved && current.ResolvedAt == nil {
			resolvedAt := s.now().UTC()
			current.ResolvedAt = &resolvedAt
		}

		// Conditional so a concurrent escalation stamp or resolution is merged, not overwritten.
		err = s.issues.UpdateIfUnchanged(ctx, current)
		if err == nil {
			issue = current
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, notFoundOr(err, "issue", id)
		}
	}
	defer s.stats.Invalidate(ctx, orgID)

	if issue.CustomerID != oldCustomer {
		if err := s.adjustCustomerIssues(ctx, orgID, oldCustomer, -1); err != nil {
			return nil, err
		}
		if err := s.adjustCustomerIssues(ctx, orgID, issue.CustomerID, 1); err != nil {
			return nil, err
		}
	}

	title, description := "Issue updated: "+issue.Title, fmt.Sprintf("Issue #%s was updated", issue.ID)
	switch kind {
	case "assign":
		title, description = "Issue assigned: "+issue.Title, fmt.Sprintf("Issue #%s was assigned to a team member", issue.ID)
	case "status":
		title = fmt.Sprintf("Issue %s: %s", issue.Status, issue.Title)
		description = fmt.Sprintf("Issue #%s status changed to %s", issue.ID, issue.Status)
	}
	recordActivity(ctx, s.activities, s.logger, session, domain.ActivityIssueUpdated, issue.ID, title, description)

	now := s.now().UTC()
	publish(ctx, s.dispatcher, session, events.EventIssueUpdated, issue.ID, events.IssueUpdatedPayload{
		OldStatus:    oldStatus,
		NewStatus:    issue.Status,
		AssignedToID: issue.AssignedToID,
	}, now)

	if issue.Status == domain.IssueStatusResolved && oldStatus != domain.IssueStatusResolved {
		recordActivity(ctx, s.activities, s.logger, session, domain.ActivityIssueResolved, issue.ID,
			"Issue resolved: "+issue.Title, fmt.Sprintf("Issue #%s was resolved", issue.ID))
		publish(ctx, s.dispatcher, session, events.EventIssueResolved, issue.ID, events.IssueUpdatedPayload{
			OldStatus: oldStatus,
			NewStatus: issue.Status,
		}, now)
	}
	return issue, nil
}

// checkUpdateReferences validates only the references the update changes.
func (s *IssueService) checkUpdateReferences(ctx context.Context, orgID string, issue *domain.Issue, update IssueUpdate) error {
	appID, category, assignee := "", "", ""
	if update.ApplicationID != nil && *update.ApplicationID != issue.ApplicationID {
		appID = *update.ApplicationID
	}
	if update.Category != nil && *update.Category != issue.Category {
		category = *update.Category
	}
	if update.AssignedToID != nil && *update.AssignedToID != issue.AssignedToID {
		assignee = *update.AssignedToID
	}
	if err := s.checkReferences(ctx, orgID, appID, category, assignee); err != nil {
		return err
	}
	if update.CustomerID != nil && *update.CustomerID != issue.CustomerID {
		if _, err := s.customers.Get(ctx, *update.CustomerID, orgID); err != nil {
			return notFoundOr(err, "customer", *update.CustomerID)
		}
	}
	return nil
}

func mergeIssue(issue *domain.Issue, update IssueUpdate) {
	if update.Title != nil {
		issue.Title = *update.Title
	}
	if update.Description != nil {
		issue.Description = *update.Description
	}
	if update.Status != nil {
		issue.Status = *update.Status
	}
	if update.Priority != nil {
		issue.Priority = *update.Priority
	}
	if update.Category != nil {
		issue.Category = *update.Category
	}
	if update.ApplicationID != nil {
		issue.ApplicationID = *update.ApplicationID
	}
	if update.CustomerID != nil {
		issue.CustomerID = *update.CustomerID
	}
	if update.AssignedToID != nil {
		issue.AssignedToID = *update.AssignedToID
	}
	if update.ResolutionNotes != nil {
		issue.ResolutionNotes = *update.ResolutionNotes
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// DeleteIssue removes the issue and decrements its customer's counter.
// Comments stay in place and remain queryable by issue id.
func (s *IssueService) DeleteIssue(ctx context.Context, id string) error {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesDelete)
	if err != nil {
		return err
	}
	orgID := session.OrganizationID
	issue, err := s.issues.Get(ctx, id, orgID)
	if err != nil {
		return notFoundOr(err, "issue", id)
	}
	if err := s.issues.Delete(ctx, id, orgID); err != nil {
		return notFoundOr(err, "issue", id)
	}
	defer s.stats.Invalidate(ctx, orgID)

	if err := s.adjustCustomerIssues(ctx, orgID, issue.CustomerID, -1); err != nil {
		return err
	}
	publish(ctx, s.dispatcher, session, events.EventIssueDeleted, issue.ID, events.IssueCreatedPayload{
		Title:      issue.Title,
		Priority:   issue.Priority,
		CustomerID: issue.CustomerID,
	}, s.now().UTC())
	return nil
}

// GenerateBugReport drafts a developer report for the issue.
func (s *IssueService) GenerateBugReport(ctx context.Context, id string) (*domain.BugReport, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesRead)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.Get(ctx, id, session.OrganizationID)
	if err != nil {
		return nil, notFoundOr(err, "issue", id)
	}
	if s.reporter == nil {
		return nil, apperrors.NewExternalServiceFailure("bug report assistant", errors.New("assistant not configured"))
	}
	// The report is still useful without the customer name.
	customer, _ := s.customers.Get(ctx, issue.CustomerID, session.OrganizationID)
	report, err := s.reporter.GenerateBugReport(ctx, issue, customer)
	if err != nil {
		s.logger.Error("bug report generation failed", zap.String("issue_id", id), zap.Error(err))
		return nil, apperrors.NewExternalServiceFailure("bug report assistant", err)
	}
	return report, nil
}

// checkReferences verifies optional references live in the same organization.
// Empty ids are skipped.
func (s *IssueService) checkReferences(ctx context.Context, orgID, applicationID, categoryID, assigneeID string) error {
	if applicationID != "" {
		if _, err := s.apps.Get(ctx, applicationID, orgID); err != nil {
			return notFoundOr(err, "application", applicationID)
		}
	}
	if categoryID != "" {
		if _, err := s.categories.Get(ctx, categoryID, orgID); err != nil {
			return notFoundOr(err, "category", categoryID)
		}
	}
	if assigneeID != "" {
		user, err := s.users.Get(ctx, assigneeID, orgID)
		if err != nil {
			return notFoundOr(err, "user", assigneeID)
		}
		if !user.IsActive {
			return apperrors.NewFieldValidationError(map[string]string{"assignedToId": "user is not active"})
		}
	}
	return nil
}

// adjustCustomerIssues applies delta to the customer's issue counter with
// conditional writes, never going below zero. A failure is counted as drift
// for the reconciler to repair.
func (s *IssueService) adjustCustomerIssues(ctx context.Context, orgID, customerID string, delta int) error {
	err := adjustCustomerCounter(ctx, s.customers, orgID, customerID, delta)
	if err != nil {
		s.metrics.RecordCounterDrift("customer_total_issues")
		s.logger.Error("customer issue counter not updated",
			zap.String("organization_id", orgID),
			zap.String("customer_id", customerID),
			zap.Int("delta", delta),
			zap.Error(err),
		)
		return apperrors.MapError(err)
	}
	return nil
}

func adjustCustomerCounter(ctx context.Context, customers repository.CustomerRepository, orgID, customerID string, delta int) error {
	for attempt := 0; attempt < counterRetries; attempt++ {
		customer, err := customers.Get(ctx, customerID, orgID)
		if err != nil {
			return err
		}
		customer.TotalIssues += delta
		if customer.TotalIssues < 0 {
			customer.TotalIssues = 0
		}
		err = customers.UpdateIfUnchanged(ctx, customer)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return repository.ErrVersionConflict
}
