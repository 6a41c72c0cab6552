package domain

import "time"

// BugReport is the structured write-up generated for an issue.
type BugReport struct {
	Summary          string   `json:"summary"`
	Description      string   `json:"description"`
	StepsToReproduce []string `json:"stepsToReproduce"`
	ExpectedBehavior string   `json:"expectedBehavior"`
	ActualBehavior   string   `json:"actualBehavior"`
	Impact           string   `json:"impact"`
	TechnicalNotes   string   `json:"technicalNotes,omitempty"`
}

// DateRange bounds a statistics window. Zero values are open ends.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// TrendPoint counts issue activity for one calendar day.
type TrendPoint struct {
	Date     string `json:"date"`
	Created  int    `json:"created"`
	Resolved int    `json:"resolved"`
}

// DashboardStats aggregates issue counts for one organization.
type DashboardStats struct {
	TotalIssues        int                   `json:"totalIssues"`
	OpenIssues         int                   `json:"openIssues"`
	ResolvedIssues     int                   `json:"resolvedIssues"`
	CriticalIssues     int                   `json:"criticalIssues"`
	AvgResolutionHours float64               `json:"averageResolutionTime"`
	IssuesByStatus     map[IssueStatus]int   `json:"issuesByStatus"`
	IssuesByPriority   map[IssuePriority]int `json:"issuesByPriority"`
	Trend              []TrendPoint          `json:"trendsData"`
	RecentActivity     []ActivityItem        `json:"recentActivity"`
	GeneratedAt        time.Time             `json:"generatedAt"`
}

// ReportRow summarizes issues for one customer or application.
type ReportRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Open     int    `json:"open"`
	Resolved int    `json:"resolved"`
	Critical int    `json:"critical"`
}
