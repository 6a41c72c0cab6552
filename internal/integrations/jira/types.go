package jira

// ADF is a document in the Atlassian Document Format used for rich text fields.
type ADF struct {
	Version int          `json:"version"`
	Type    string       `json:"type"`
	Content []ADFContent `json:"content"`
}

type ADFContent struct {
	Type    string             `json:"type"`
	Text    string             `json:"text,omitempty"`
	Marks   []ADFMark          `json:"marks,omitempty"`
	Content []ADFContent       `json:"content,omitempty"`
	Attrs   *ADFMarkAttributes `json:"attrs,omitempty"`
}

type ADFMark struct {
	Type  string             `json:"type"`
	Attrs *ADFMarkAttributes `json:"attrs,omitempty"`
}

type ADFMarkAttributes struct {
	Level    int    `json:"level,omitempty"`
	Href     string `json:"href,omitempty"`
	Language string `json:"language,omitempty"`
}

// Project is a Jira project visible to the configured account.
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// IssueType is an issue type that can be created in a project.
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Subtask     bool   `json:"subtask"`
}

// Ref references a Jira object by key or id.
type Ref struct {
	Key string `json:"key,omitempty"`
	ID  string `json:"id,omitempty"`
}

// IssueFields is the subset of issue fields sent on creation.
type IssueFields struct {
	Project     Ref      `json:"project"`
	Summary     string   `json:"summary"`
	Description ADF      `json:"description"`
	IssueType   Ref      `json:"issuetype"`
	Priority    *Ref     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

type CreateIssueRequest struct {
	Fields IssueFields `json:"fields"`
}

// CreatedIssue is the remote issue returned by Jira.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
	URL  string `json:"url"`
}

// Account is the authenticated Jira user.
type Account struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Diagnosis reports whether the configured account can escalate into a project.
type Diagnosis struct {
	CanConnect          bool        `json:"canConnect"`
	Account             *Account    `json:"userInfo,omitempty"`
	HasProjectAccess    bool        `json:"hasProjectAccess"`
	AvailableProjects   []string    `json:"availableProjects,omitempty"`
	CanCreateIssues     bool        `json:"canCreateIssues"`
	AvailableIssueTypes []IssueType `json:"availableIssueTypes,omitempty"`
	Error               string      `json:"error,omitempty"`
}

type createMetaResponse struct {
	Projects []struct {
		Key        string      `json:"key"`
		IssueTypes []IssueType `json:"issuetypes"`
	} `json:"projects"`
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
