package dto

// ActivationResponse reports a user's activation state after a toggle.
type ActivationResponse struct {
	UserID   string `json:"userId"`
	IsActive bool   `json:"isActive"`
}

// DiagnosticsQuery selects the project checked by the Jira diagnostics endpoint.
type DiagnosticsQuery struct {
	ProjectKey string `query:"projectKey" validate:"omitempty,projectkey"`
}
