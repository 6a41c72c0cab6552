package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// APIError carries Jira's error payload. It is logged, never shown to end users.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("jira request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("jira request failed with status %d: %s", e.StatusCode, strings.Join(e.Messages, ", "))
}

type Client struct {
	BaseURL   string
	UserEmail string
	APIToken  string

	http   *http.Client
	logger *zap.Logger
}

func NewJiraClient(baseURL, userEmail, apiToken string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if baseURL == "" || userEmail == "" || apiToken == "" {
		return nil, fmt.Errorf("invalid Jira client parameters: baseURL, userEmail and apiToken must be provided")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		UserEmail: userEmail,
		APIToken:  apiToken,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// CreateIssue creates the remote issue and fills in its browse URL.
func (c *Client) CreateIssue(ctx context.Context, req CreateIssueRequest) (*CreatedIssue, error) {
	var created CreatedIssue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", req, http.StatusCreated, &created); err != nil {
		return nil, fmt.Errorf("failed to create jira issue: %w", err)
	}
	created.URL = c.IssueURL(created.Key)
	c.logger.Info("jira issue created", zap.String("key", created.Key), zap.String("project", req.Fields.Project.Key))
	return &created, nil
}

func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/project", nil, http.StatusOK, &projects); err != nil {
		return nil, fmt.Errorf("failed to fetch jira projects: %w", err)
	}
	return projects, nil
}

func (c *Client) GetIssueTypes(ctx context.Context, projectKey string) ([]IssueType, error) {
	path := "/rest/api/3/issue/createmeta?projectKeys=" + url.QueryEscape(projectKey) + "&expand=projects.issuetypes"
	var meta createMetaResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &meta); err != nil {
		return nil, fmt.Errorf("failed to fetch issue types for project %s: %w", projectKey, err)
	}
	for _, p := range meta.Projects {
		if p.Key == projectKey {
			return p.IssueTypes, nil
		}
	}
	return nil, fmt.Errorf("project %s not found or has no creatable issue types", projectKey)
}

func (c *Client) Myself(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil, http.StatusOK, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.Myself(ctx)
	return err == nil
}

// Diagnose checks connectivity, project visibility and create permissions in turn.
func (c *Client) Diagnose(ctx context.Context, projectKey string) *Diagnosis {
	diagnosis := &Diagnosis{}

	account, err := c.Myself(ctx)
	if err != nil {
		diagnosis.Error = "cannot connect to jira"
		c.logger.Warn("jira diagnosis: connection failed", zap.Error(err))
		return diagnosis
	}
	diagnosis.CanConnect = true
	diagnosis.Account = account

	projects, err := c.GetProjects(ctx)
	if err != nil {
		diagnosis.Error = "cannot access projects list"
		c.logger.Warn("jira diagnosis: projects failed", zap.Error(err))
		return diagnosis
	}
	for _, p := range projects {
		diagnosis.AvailableProjects = append(diagnosis.AvailableProjects, p.Key+": "+p.Name)
		if p.Key == projectKey {
			diagnosis.HasProjectAccess = true
		}
	}
	if !diagnosis.HasProjectAccess {
		return diagnosis
	}

	types, err := c.GetIssueTypes(ctx, projectKey)
	if err != nil {
		diagnosis.Error = "cannot access create metadata for project " + projectKey
		c.logger.Warn("jira diagnosis: createmeta failed", zap.Error(err))
		return diagnosis
	}
	diagnosis.CanCreateIssues = len(types) > 0
	diagnosis.AvailableIssueTypes = types
	return diagnosis
}

func (c *Client) IssueURL(key string) string {
	return c.BaseURL + "/browse/" + key
}

func (c *Client) do(ctx context.Context, method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.UserEmail, c.APIToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var parsed errorResponse
		if json.Unmarshal(raw, &parsed) == nil {
			apiErr.Messages = append(apiErr.Messages, parsed.ErrorMessages...)
			for field, msg := range parsed.Errors {
				apiErr.Messages = append(apiErr.Messages, field+": "+msg)
			}
		}
		c.logger.Error("jira request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(raw)),
		)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
