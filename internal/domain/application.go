package domain

// Application is a product line issues can be filed against.
type Application struct {
	Meta
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	IsActive       bool   `json:"isActive"`
	JiraProjectKey string `json:"jiraProjectKey,omitempty"`
}

// CanEscalate reports whether issues of this application can be pushed to Jira.
func (a *Application) CanEscalate() bool {
	return a.JiraProjectKey != ""
}

// Category groups issues under one Application.
type Category struct {
	Meta
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Color         string `json:"color"`
	IsActive      bool   `json:"isActive"`
	ApplicationID string `json:"applicationId"`
}
