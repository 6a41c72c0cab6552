// Package assist generates structured bug reports from support issues using
// the Anthropic Messages API.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 1500
)

var (
	ErrEmptyResponse = errors.New("assistant returned no text content")
	ErrInvalidReport = errors.New("assistant returned an invalid bug report")
)

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    httpClient,
		logger:  logger,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

var promptTemplate = template.Must(template.New("bug-report").Parse(`You are a technical support expert analyzing a support issue to create a structured bug report for developers.

Issue Title: {{.Title}}
Issue Description: {{.Description}}
Priority: {{.Priority}}
Customer: {{.Customer}}
Created: {{.Created}}

Respond with a single JSON object:
{
  "summary": "Brief technical summary (1-2 sentences)",
  "description": "Detailed technical description",
  "stepsToReproduce": ["Step 1", "Step 2"],
  "expectedBehavior": "What should happen",
  "actualBehavior": "What actually happens",
  "impact": "low|medium|high|critical",
  "technicalNotes": "Additional technical context (optional)"
}

Be precise and actionable. If information is missing, make reasonable assumptions from the context.`))

// GenerateBugReport asks the model for a report on issue. customer may be nil.
func (c *Client) GenerateBugReport(ctx context.Context, issue *domain.Issue, customer *domain.Customer) (*domain.BugReport, error) {
	customerName := "Unknown"
	if customer != nil {
		customerName = customer.CompanyName
	}

	var prompt bytes.Buffer
	if err := promptTemplate.Execute(&prompt, map[string]string{
		"Title":       issue.Title,
		"Description": issue.Description,
		"Priority":    string(issue.Priority),
		"Customer":    customerName,
		"Created":     issue.CreatedAt.Format("2006-01-02"),
	}); err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	text, err := c.complete(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseReport(text)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("assist request failed", zap.Int("status", resp.StatusCode), zap.ByteString("response", data))
		return "", fmt.Errorf("assist API error %d", resp.StatusCode)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}

// parseReport extracts the outermost JSON object, tolerating markdown fences around it.
func parseReport(text string) (*domain.BugReport, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidReport)
	}

	var report domain.BugReport
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if report.Summary == "" || report.Description == "" || report.Impact == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidReport)
	}
	return &report, nil
}
