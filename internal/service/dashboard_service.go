package service

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/cache"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

const (
	recentActivityCount = 10
	maxActivityLimit    = 100
	defaultTrendDays    = 30
	maxTrendDays        = 366
	trendDateLayout     = "2006-01-02"
)

// DashboardService computes read-only aggregates over an organization's issues.
type DashboardService struct {
	guard      *auth.Guard
	issues     repository.IssueRepository
	customers  repository.CustomerRepository
	apps       repository.ApplicationRepository
	activities repository.ActivityRepository
	stats      *cache.StatsCache
	logger     *zap.Logger
	now        func() time.Time
}

func NewDashboardService(guard *auth.Guard, repos *repository.Repositories, stats *cache.StatsCache, logger *zap.Logger, now func() time.Time) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardService{
		guard:      guard,
		issues:     repos.Issues,
		customers:  repos.Customers,
		apps:       repos.Applications,
		activities: repos.Activities,
		stats:      stats,
		logger:     logger,
		now:        now,
	}
}

// Stats aggregates issues created inside window. Results are cached per
// organization and window until the next issue write.
func (s *DashboardService) Stats(ctx context.Context, window domain.DateRange) (*domain.DashboardStats, error) {
	session, err := s.guard.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if !window.From.IsZero() && !window.To.IsZero() && window.To.Before(window.From) {
		return nil, apperrors.NewFieldValidationError(map[string]string{"to": "must not be before from"})
	}
	if cached, ok := s.stats.Get(ctx, session.OrganizationID, window); ok {
		s.logger.Debug("dashboard stats served from cache", zap.String("organization_id", session.OrganizationID))
		return cached, nil
	}

	issues, err := s.issues.List(ctx, session.OrganizationID, windowFilter(window))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	recent, err := s.activities.Recent(ctx, session.OrganizationID, recentActivityCount)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := summarize(issues)
	stats.Trend = s.trend(issues, window)
	stats.RecentActivity = derefAll(recent)
	stats.GeneratedAt = s.now().UTC()

	s.stats.Set(ctx, session.OrganizationID, window, stats)
	return stats, nil
}

// RecentActivity returns the newest activity entries, newest first.
func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityItem, error) {
	session, err := s.guard.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	if limit > maxActivityLimit {
		return nil, apperrors.NewFieldValidationError(map[string]string{"limit": "must be at most 100"})
	}
	limit, _ = pageBounds(limit, 0, recentActivityCount, maxActivityLimit)
	items, err := s.activities.Recent(ctx, session.OrganizationID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return derefAll(items), nil
}

// CustomerReport totals issues per customer, including customers without issues.
func (s *DashboardService) CustomerReport(ctx context.Context) ([]domain.ReportRow, error) {
	session, err := s.guard.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.List(ctx, session.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	issues, err := s.issues.List(ctx, session.OrganizationID, repository.IssueFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byCustomer := lo.GroupBy(issues, func(i *domain.Issue) string { return i.CustomerID })
	rows := lo.Map(customers, func(c *domain.Customer, _ int) domain.ReportRow {
		return reportRow(c.ID, c.CompanyName, byCustomer[c.ID])
	})
	sortRowsByTotal(rows)
	return rows, nil
}

// ApplicationReport totals issues per application, active or not.
func (s *DashboardService) ApplicationReport(ctx context.Context) ([]domain.ReportRow, error) {
	session, err := s.guard.RequireAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.List(ctx, session.OrganizationID, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	issues, err := s.issues.List(ctx, session.OrganizationID, repository.IssueFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byApp := lo.GroupBy(issues, func(i *domain.Issue) string { return i.ApplicationID })
	rows := lo.Map(apps, func(a *domain.Application, _ int) domain.ReportRow {
		return reportRow(a.ID, a.Name, byApp[a.ID])
	})
	sortRowsByTotal(rows)
	return rows, nil
}

func windowFilter(window domain.DateRange) repository.IssueFilter {
	var filter repository.IssueFilter
	if !window.From.IsZero() {
		from := window.From
		filter.CreatedFrom = &from
	}
	if !window.To.IsZero() {
		to := window.To
		filter.CreatedTo = &to
	}
	return filter
}

func summarize(issues []*domain.Issue) *domain.DashboardStats {
	stats := &domain.DashboardStats{
		IssuesByStatus:   make(map[domain.IssueStatus]int, len(domain.IssueStatuses)),
		IssuesByPriority: make(map[domain.IssuePriority]int, len(domain.IssuePriorities)),
		RecentActivity:   []domain.ActivityItem{},
	}
	for _, st := range domain.IssueStatuses {
		stats.IssuesByStatus[st] = 0
	}
	for _, p := range domain.IssuePriorities {
		stats.IssuesByPriority[p] = 0
	}

	var resolvedHours float64
	var resolvedCount int
	for _, issue := range issues {
		stats.TotalIssues++
		stats.IssuesByStatus[issue.Status]++
		stats.IssuesByPriority[issue.Priority]++
		if issue.Status.Open() {
			stats.OpenIssues++
		}
		if issue.Status == domain.IssueStatusResolved {
			stats.ResolvedIssues++
		}
		if issue.Priority == domain.IssuePriorityCritical {
			stats.CriticalIssues++
		}
		if issue.ResolvedAt != nil {
			resolvedHours += issue.ResolvedAt.Sub(issue.CreatedAt).Hours()
			resolvedCount++
		}
	}
	if resolvedCount > 0 {
		stats.AvgResolutionHours = resolvedHours / float64(resolvedCount)
	}
	return stats
}

// trend buckets creations and resolutions per UTC day. An open window ends
// today and starts defaultTrendDays back.
func (s *DashboardService) trend(issues []*domain.Issue, window domain.DateRange) []domain.TrendPoint {
	end := window.To
	if end.IsZero() {
		end = s.now()
	}
	start := window.From
	if start.IsZero() {
		start = end.AddDate(0, 0, -(defaultTrendDays - 1))
	}
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Sub(start) > maxTrendDays*24*time.Hour {
		start = end.AddDate(0, 0, -(maxTrendDays - 1))
	}

	created := map[string]int{}
	resolved := map[string]int{}
	for _, issue := range issues {
		created[issue.CreatedAt.UTC().Format(trendDateLayout)]++
		if issue.ResolvedAt != nil {
			resolved[issue.ResolvedAt.UTC().Format(trendDateLayout)]++
		}
	}

	points := []domain.TrendPoint{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(trendDateLayout)
		points = append(points, domain.TrendPoint{Date: key, Created: created[key], Resolved: resolved[key]})
	}
	return points
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func reportRow(id, name string, issues []*domain.Issue) domain.ReportRow {
	row := domain.ReportRow{ID: id, Name: name, Total: len(issues)}
	for _, issue := range issues {
		if issue.Status.Open() {
			row.Open++
		}
		if issue.Status == domain.IssueStatusResolved {
			row.Resolved++
		}
		if issue.Priority == domain.IssuePriorityCritical {
			row.Critical++
		}
	}
	return row
}

func derefAll[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}

// sortRowsByTotal orders report rows busiest first, then by name.
func sortRowsByTotal(rows []domain.ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Name < rows[j].Name
	})
}
