package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/domain"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

func seedDashboard(t *testing.T, f *fixture, a *actor) (acme, globex *domain.Customer) {
	t.Helper()
	acme = f.customer(t, a, "Acme")
	globex = f.customer(t, a, "Globex")
	f.customer(t, a, "Zeta")

	f.issue(t, a, acme.ID, "Data loss", domain.IssuePriorityCritical)
	slow := f.issue(t, a, acme.ID, "Slow", domain.IssuePriorityHigh)
	f.issue(t, a, globex.ID, "Typo", domain.IssuePriorityLow)

	f.clock.Advance(4 * time.Hour)
	_, err := f.issues.ChangeStatus(a.ctx(), slow.ID, domain.IssueStatusResolved)
	require.NoError(t, err)
	return acme, globex
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	agent := f.login(t, "org-a", "alice", domain.RoleSupportAgent)
	seedDashboard(t, f, agent)

	stats, err := f.dashboard.Stats(agent.ctx(), domain.DateRange{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalIssues)
	assert.Equal(t, 2, stats.OpenIssues)
	assert.Equal(t, 1, stats.ResolvedIssues)
	assert.Equal(t, 1, stats.CriticalIssues)
	assert.InDelta(t, 4.0, stats.AvgResolutionHours, 0.001)
	assert.Len(t, stats.IssuesByStatus, len(domain.IssueStatuses))
	assert.Equal(t, 0, stats.IssuesByStatus[domain.IssueStatusClosed])
	assert.Equal(t, 2, stats.IssuesByStatus[domain.IssueStatusNew])
	assert.Equal(t, 1, stats.IssuesByPriority[domain.IssuePriorityLow])
	assert.Equal(t, 0, stats.IssuesByPriority[domain.IssuePriorityMedium])
	assert.Equal(t, f.clock.Now(), stats.GeneratedAt)

	require.Len(t, stats.Trend, 30)
	today := stats.Trend[len(stats.Trend)-1]
	assert.Equal(t, "2024-03-04", today.Date)
	assert.Equal(t, 3, today.Created)
	assert.Equal(t, 1, today.Resolved)
	assert.Equal(t, "2024-02-04", stats.Trend[0].Date)

	// three creations, one update and one resolution
	assert.Len(t, stats.RecentActivity, 5)
}

func TestDashboardStatsWindow(t *testing.T) {
	f := newFixture(t)
	agent := f.login(t, "org-a", "alice", domain.RoleSupportAgent)
	start := f.clock.Now()
	seedDashboard(t, f, agent)

	stats, err := f.dashboard.Stats(agent.ctx(), domain.DateRange{From: start.Add(time.Hour)})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalIssues)
	assert.Zero(t, stats.AvgResolutionHours)
	require.Len(t, stats.Trend, 1)

	stats, err = f.dashboard.Stats(agent.ctx(), domain.DateRange{From: start.AddDate(0, 0, -2), To: start})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalIssues)
	assert.Len(t, stats.Trend, 3)

	_, err = f.dashboard.Stats(agent.ctx(), domain.DateRange{From: start, To: start.Add(-time.Minute)})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestDashboardRequiresSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.dashboard.Stats(context.Background(), domain.DateRange{})
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestRecentActivityLimit(t *testing.T) {
	f := newFixture(t)
	viewer := f.login(t, "org-a", "alice", domain.RoleReadOnly)
	agent := f.login(t, "org-a", "sam", domain.RoleSupportAgent)
	seedDashboard(t, f, agent)

	items, err := f.dashboard.RecentActivity(viewer.ctx(), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.ElementsMatch(t, []domain.ActivityType{domain.ActivityIssueUpdated, domain.ActivityIssueResolved},
		[]domain.ActivityType{items[0].Type, items[1].Type})

	items, err = f.dashboard.RecentActivity(viewer.ctx(), 0)
	require.NoError(t, err)
	assert.Len(t, items, 5)

	_, err = f.dashboard.RecentActivity(viewer.ctx(), 101)
	requireCode(t, err, apperrors.CodeValidation)
}

func TestCustomerAndApplicationReports(t *testing.T) {
	f := newFixture(t)
	agent := f.login(t, "org-a", "alice", domain.RoleSupportAgent)
	acme, globex := seedDashboard(t, f, agent)

	rows, err := f.dashboard.CustomerReport(agent.ctx())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.ReportRow{ID: acme.ID, Name: "Acme", Total: 2, Open: 1, Resolved: 1, Critical: 1}, rows[0])
	assert.Equal(t, globex.ID, rows[1].ID)
	assert.Equal(t, "Zeta", rows[2].Name)
	assert.Zero(t, rows[2].Total)

	rows, err = f.dashboard.ApplicationReport(agent.ctx())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
