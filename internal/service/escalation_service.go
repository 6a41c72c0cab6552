package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/integrations/jira"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

const (
	trackerService = "issue tracker"

	// DefaultEscalationClaimLease bounds how long an unfinished escalation
	// blocks new attempts. It must exceed the tracker client timeout.
	DefaultEscalationClaimLease = 10 * time.Minute

	claimWriteTimeout = 5 * time.Second
)

// IssueTracker is the remote tracker issues are escalated to.
type IssueTracker interface {
	CreateIssue(ctx context.Context, req jira.CreateIssueRequest) (*jira.CreatedIssue, error)
	GetProjects(ctx context.Context) ([]jira.Project, error)
	GetIssueTypes(ctx context.Context, projectKey string) ([]jira.IssueType, error)
	Diagnose(ctx context.Context, projectKey string) *jira.Diagnosis
}

var trackerPriorities = map[domain.IssuePriority]string{
	domain.IssuePriorityCritical: "1",
	domain.IssuePriorityHigh:     "2",
	domain.IssuePriorityMedium:   "3",
	domain.IssuePriorityLow:      "4",
}

// EscalationService pushes support issues to the remote tracker.
type EscalationService struct {
	guard      *auth.Guard
	issues     repository.IssueRepository
	customers  repository.CustomerRepository
	apps       repository.ApplicationRepository
	tracker    IssueTracker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	claimLease time.Duration
}

// EscalationDependencies bundles collaborators. A nil Tracker disables escalation.
type EscalationDependencies struct {
	Guard        *auth.Guard
	Repositories *repository.Repositories
	Tracker      IssueTracker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
	// ClaimLease defaults to DefaultEscalationClaimLease.
	ClaimLease time.Duration
}

func NewEscalationService(deps EscalationDependencies) *EscalationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lease := deps.ClaimLease
	if lease <= 0 {
		lease = DefaultEscalationClaimLease
	}
	return &EscalationService{
		guard:      deps.Guard,
		issues:     deps.Repositories.Issues,
		customers:  deps.Repositories.Customers,
		apps:       deps.Repositories.Applications,
		tracker:    deps.Tracker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        now,
		claimLease: lease,
	}
}

// EscalateInput selects the remote issue type and attaches an optional report.
type EscalateInput struct {
	IssueTypeID string            `json:"issueTypeId"`
	Report      *domain.BugReport `json:"report"`
}

// Escalate creates a remote issue for a support issue at most once. The issue
// is claimed with a conditional write before the remote call, so a second
// concurrent attempt sees the claim and fails with a conflict. A claim older
// than the lease is treated as abandoned.
func (s *EscalationService) Escalate(ctx context.Context, issueID string, input EscalateInput) (*domain.Issue, error) {
	session, err := s.guard.RequirePermission(ctx, domain.PermIssuesWrite)
	if err != nil {
		return nil, err
	}
	if !session.HasRole(domain.RoleAdmin, domain.RoleSupportAgent) {
		return nil, apperrors.NewForbidden("only admins and support agents can escalate issues")
	}
	ctx, span := observability.StartEscalationSpan(ctx, session.OrganizationID, issueID)
	defer span.End()

	orgID := session.OrganizationID
	issue, err := s.issues.Get(ctx, issueID, orgID)
	if err != nil {
		return nil, notFoundOr(err, "issue", issueID)
	}
	if issue.Escalated() {
		s.metrics.RecordEscalation("already_escalated")
		return nil, apperrors.NewConflict("issue is already escalated", map[string]any{"jiraIssueKey": issue.JiraIssueKey})
	}
	claimedAt := s.now().UTC()
	if issue.EscalationClaimHeld(claimedAt, s.claimLease) {
		s.metrics.RecordEscalation("in_progress")
		return nil, apperrors.NewConflict("issue escalation is already in progress", nil)
	}
	if issue.EscalationPending() {
		s.logger.Warn("taking over abandoned escalation claim",
			zap.String("issue_id", issueID),
			zap.String("previous_claimant", issue.EscalatedBy),
		)
	}
	if issue.ApplicationID == "" {
		return nil, apperrors.NewConflict("issue has no application with a project key", nil)
	}
	app, err := s.apps.Get(ctx, issue.ApplicationID, orgID)
	if err != nil {
		return nil, notFoundOr(err, "application", issue.ApplicationID)
	}
	if !app.CanEscalate() {
		return nil, apperrors.NewConflict("application has no project key configured", map[string]any{"applicationId": app.ID})
	}
	if s.tracker == nil {
		return nil, apperrors.NewExternalServiceFailure(trackerService, errors.New("issue tracker not configured"))
	}

	issue.EscalatedBy = session.UserID
	issue.EscalatedAt = &claimedAt
	if err := s.issues.UpdateIfUnchanged(ctx, issue); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.metrics.RecordEscalation("conflict")
			return nil, apperrors.NewConflict("issue changed during escalation, please retry", nil)
		}
		return nil, notFoundOr(err, "issue", issueID)
	}

	created, err := s.createRemote(ctx, issue, app, input)
	if err != nil {
		s.releaseClaim(ctx, issue, session.UserID, claimedAt)
		s.metrics.RecordEscalation("failed")
		s.logger.Error("escalation failed",
			zap.String("organization_id", orgID),
			zap.String("issue_id", issueID),
			zap.String("project_key", app.JiraProjectKey),
			zap.Error(err),
		)
		return nil, apperrors.NewExternalServiceFailure(trackerService, err)
	}

	if err := s.stamp(ctx, issue, session.UserID, claimedAt, created); err != nil {
		s.metrics.RecordEscalation("stamp_failed")
		s.logger.Error("remote issue created but not recorded",
			zap.String("organization_id", orgID),
			zap.String("issue_id", issueID),
			zap.String("jira_issue_key", created.Key),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordEscalation("ok")

	publish(ctx, s.dispatcher, session, events.EventIssueEscalated, issue.ID, events.IssueEscalatedPayload{
		JiraIssueKey: issue.JiraIssueKey,
		JiraURL:      issue.JiraURL,
	}, s.now().UTC())
	return issue, nil
}

func (s *EscalationService) createRemote(ctx context.Context, issue *domain.Issue, app *domain.Application, input EscalateInput) (*jira.CreatedIssue, error) {
	issueTypeID := input.IssueTypeID
	if issueTypeID == "" {
		types, err := s.tracker.GetIssueTypes(ctx, app.JiraProjectKey)
		if err != nil {
			return nil, err
		}
		issueTypeID = pickIssueType(types)
		if issueTypeID == "" {
			return nil, fmt.Errorf("no issue types available in project %s", app.JiraProjectKey)
		}
	}

	customerName := "Unknown Customer"
	if customer, err := s.customers.Get(ctx, issue.CustomerID, issue.OrganizationID); err == nil {
		customerName = customer.CompanyName
	}

	priority, ok := trackerPriorities[issue.Priority]
	if !ok {
		priority = trackerPriorities[domain.IssuePriorityMedium]
	}
	return s.tracker.CreateIssue(ctx, jira.CreateIssueRequest{Fields: jira.IssueFields{
		Project:     jira.Ref{Key: app.JiraProjectKey},
		Summary:     "[SUPPORT] " + issue.Title,
		Description: escalationDescription(issue, customerName, input.Report),
		IssueType:   jira.Ref{ID: issueTypeID},
		Priority:    &jira.Ref{ID: priority},
	}})
}

// stamp records the remote key under the claim. Unrelated concurrent edits
// are retried; a claim taken over by someone else is a conflict. The remote
// issue already exists, so the write does not depend on the caller's context.
func (s *EscalationService) stamp(ctx context.Context, issue *domain.Issue, userID string, claimedAt time.Time, created *jira.CreatedIssue) error {
	ctx, cancel := detached(ctx)
	defer cancel()

	current := issue
	for attempt := 0; attempt < counterRetries; attempt++ {
		current.JiraIssueKey = created.Key
		current.JiraURL = created.URL
		err := s.issues.UpdateIfUnchanged(ctx, current)
		if err == nil {
			*issue = *current
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return notFoundOr(err, "issue", issue.ID)
		}
		fresh, getErr := s.issues.Get(ctx, issue.ID, issue.OrganizationID)
		if getErr != nil {
			return notFoundOr(getErr, "issue", issue.ID)
		}
		if fresh.Escalated() || !holdsClaim(fresh, userID, claimedAt) {
			return apperrors.NewConflict("issue was escalated concurrently", map[string]any{"jiraIssueKey": created.Key})
		}
		current = fresh
	}
	return apperrors.NewConflict("issue changed during escalation, please retry", nil)
}

// releaseClaim clears our claim so the escalation can be retried. It runs
// after the tracker call, which may have used up the request deadline.
func (s *EscalationService) releaseClaim(ctx context.Context, issue *domain.Issue, userID string, claimedAt time.Time) {
	ctx, cancel := detached(ctx)
	defer cancel()

	current := issue
	for attempt := 0; attempt < counterRetries; attempt++ {
		if current.Escalated() || !holdsClaim(current, userID, claimedAt) {
			return
		}
		current.EscalatedBy = ""
		current.EscalatedAt = nil
		err := s.issues.UpdateIfUnchanged(ctx, current)
		if err == nil {
			return
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Warn("escalation claim not released", zap.String("issue_id", issue.ID), zap.Error(err))
			return
		}
		fresh, getErr := s.issues.Get(ctx, issue.ID, issue.OrganizationID)
		if getErr != nil {
			s.logger.Warn("escalation claim not released", zap.String("issue_id", issue.ID), zap.Error(getErr))
			return
		}
		current = fresh
	}
	s.logger.Warn("escalation claim not released", zap.String("issue_id", issue.ID))
}

func holdsClaim(issue *domain.Issue, userID string, claimedAt time.Time) bool {
	return issue.EscalatedBy == userID && issue.EscalatedAt != nil && issue.EscalatedAt.Equal(claimedAt)
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), claimWriteTimeout)
}

// pickIssueType prefers a bug type, then a task type, then the first one.
func pickIssueType(types []jira.IssueType) string {
	for _, want := range []string{"bug", "task"} {
		for _, t := range types {
			if strings.Contains(strings.ToLower(t.Name), want) {
				return t.ID
			}
		}
	}
	if len(types) > 0 {
		return types[0].ID
	}
	return ""
}

func escalationDescription(issue *domain.Issue, customerName string, report *domain.BugReport) jira.ADF {
	blocks := []jira.ADFContent{
		jira.Heading(2, "Issue Description"),
		jira.Paragraph(issue.Description),
		jira.Heading(2, "Customer Information"),
		jira.LabeledParagraph("Customer", customerName),
		jira.LabeledParagraph("Priority", string(issue.Priority)),
		jira.LabeledParagraph("Created", issue.CreatedAt.Format("2006-01-02")),
	}
	if report != nil {
		blocks = append(blocks,
			jira.Heading(2, "Bug Report"),
			jira.LabeledParagraph("Summary", report.Summary),
			jira.Paragraph(report.Description),
		)
		if len(report.StepsToReproduce) > 0 {
			blocks = append(blocks, jira.Heading(3, "Steps to Reproduce"), jira.OrderedList(report.StepsToReproduce))
		}
		blocks = append(blocks,
			jira.LabeledParagraph("Expected", report.ExpectedBehavior),
			jira.LabeledParagraph("Actual", report.ActualBehavior),
			jira.LabeledParagraph("Impact", report.Impact),
		)
		if report.TechnicalNotes != "" {
			blocks = append(blocks, jira.LabeledParagraph("Technical notes", report.TechnicalNotes))
		}
	}
	return jira.Document(blocks...)
}

// ListProjects lists remote projects for settings screens.
func (s *EscalationService) ListProjects(ctx context.Context) ([]jira.Project, error) {
	if _, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead); err != nil {
		return nil, err
	}
	if s.tracker == nil {
		return nil, apperrors.NewExternalServiceFailure(trackerService, errors.New("issue tracker not configured"))
	}
	projects, err := s.tracker.GetProjects(ctx)
	if err != nil {
		s.logger.Error("list tracker projects", zap.Error(err))
		return nil, apperrors.NewExternalServiceFailure(trackerService, err)
	}
	return projects, nil
}

func (s *EscalationService) ListIssueTypes(ctx context.Context, projectKey string) ([]jira.IssueType, error) {
	if _, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead); err != nil {
		return nil, err
	}
	if s.tracker == nil {
		return nil, apperrors.NewExternalServiceFailure(trackerService, errors.New("issue tracker not configured"))
	}
	types, err := s.tracker.GetIssueTypes(ctx, projectKey)
	if err != nil {
		s.logger.Error("list tracker issue types", zap.String("project_key", projectKey), zap.Error(err))
		return nil, apperrors.NewExternalServiceFailure(trackerService, err)
	}
	return types, nil
}

// Diagnose reports connectivity and permissions for projectKey.
func (s *EscalationService) Diagnose(ctx context.Context, projectKey string) (*jira.Diagnosis, error) {
	if _, err := s.guard.RequirePermission(ctx, domain.PermSettingsRead); err != nil {
		return nil, err
	}
	if s.tracker == nil {
		return &jira.Diagnosis{Error: "issue tracker not configured"}, nil
	}
	return s.tracker.Diagnose(ctx, projectKey), nil
}
