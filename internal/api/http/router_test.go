package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/service"
)

const testCookie = "session_jwt"

type testServer struct {
	app      *fiber.App
	verifier *identity.LocalVerifier
	repos    *repository.Repositories
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	repos := repository.NewRepositories(store, nil)
	verifier := identity.NewLocalVerifier("router-test-secret", time.Hour)
	metrics := observability.NewMetrics()
	guard := auth.NewGuard(auth.NewSessionResolver(auth.ResolverConfig{}, auth.ResolverDependencies{
		Verifier:      verifier,
		Organizations: repos.Organizations,
		Users:         repos.Users,
		Metrics:       metrics,
	}))
	dispatcher := events.NewInMemoryDispatcher(nil)

	issues := service.NewIssueService(service.IssueDependencies{Guard: guard, Repositories: repos, Dispatcher: dispatcher, Metrics: metrics})
	escalation := service.NewEscalationService(service.EscalationDependencies{Guard: guard, Repositories: repos, Dispatcher: dispatcher, Metrics: metrics})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, MiddlewareConfig{Timeout: 5 * time.Second, LoginURL: "/login"})
	RegisterRoutes(app, RouteConfig{
		Guard:        guard,
		Tokens:       auth.NewTokenMiddleware(testCookie),
		Metrics:      metrics,
		Health:       handlers.NewHealthHandler("issue-tracker", "test", nil, store, nil),
		Session:      handlers.NewSessionHandler(guard, testCookie, false),
		Issues:       handlers.NewIssuesHandler(issues, escalation),
		Customers:    handlers.NewCustomersHandler(service.NewCustomerService(guard, repos, nil)),
		Catalog:      handlers.NewCatalogHandler(service.NewCatalogService(guard, repos)),
		Users:        handlers.NewUsersHandler(service.NewUserService(guard, repos, verifier, nil)),
		Settings:     handlers.NewSettingsHandler(service.NewOrganizationService(guard, repos)),
		Dashboard:    handlers.NewDashboardHandler(service.NewDashboardService(guard, repos, nil, nil, nil)),
		Maintenance:  handlers.NewMaintenanceHandler(service.NewReconcileService(guard, repos, metrics, nil)),
		Integrations: handlers.NewIntegrationsHandler(escalation),
	})
	return &testServer{app: app, verifier: verifier, repos: repos}
}

func (s *testServer) token(t *testing.T, member string) string {
	t.Helper()
	token, _, err := s.verifier.Issue(identity.IssueInput{MemberID: member, OrganizationID: "org-test", Name: member})
	require.NoError(t, err)
	return token
}

type apiResponse struct {
	status int
	header map[string][]string
	body   map[string]any
}

func (r apiResponse) data() map[string]any {
	out, _ := r.body["data"].(map[string]any)
	return out
}

func (r apiResponse) errorCode() string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func (r apiResponse) errorDetails() map[string]any {
	errBody, _ := r.body["error"].(map[string]any)
	details, _ := errBody["details"].(map[string]any)
	return details
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) apiResponse {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode, header: resp.Header, body: map[string]any{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, "alive", resp.body["status"])

	resp = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	deps, _ := resp.body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["store"])
	assert.Equal(t, "disabled", deps["redis"])

	resp = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestAPIRejectsAnonymousRequests(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodGet, "/api/issues", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "UNAUTHORIZED", resp.errorCode())

	resp = s.do(t, fiber.MethodGet, "/api/issues", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	req := httptest.NewRequest(fiber.MethodGet, "/api/dashboard/stats", nil)
	req.Header.Set(fiber.HeaderAccept, "text/html,application/xhtml+xml")
	raw, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, raw.StatusCode)
	assert.Equal(t, "/login", raw.Header.Get(fiber.HeaderLocation))
}

func TestSessionCookieLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "alice")

	resp := s.do(t, fiber.MethodPost, "/auth/session", "", map[string]string{"token": token})
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, string(domain.RoleAdmin), resp.data()["role"])
	cookie := strings.Join(resp.header["Set-Cookie"], ";")
	assert.Contains(t, cookie, testCookie+"="+token)
	assert.Contains(t, strings.ToLower(cookie), "httponly")

	req := httptest.NewRequest(fiber.MethodGet, "/api/session", nil)
	req.Header.Set("Cookie", testCookie+"="+token)
	raw, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, raw.StatusCode)

	resp = s.do(t, fiber.MethodPost, "/auth/session", "", map[string]string{"token": "forged"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = s.do(t, fiber.MethodPost, "/auth/session", "", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())

	resp = s.do(t, fiber.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.status)
}

func TestIssueWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "alice")

	resp := s.do(t, fiber.MethodPost, "/api/customers", token, map[string]string{"companyName": "Acme"})
	require.Equal(t, fiber.StatusCreated, resp.status)
	customerID, _ := resp.data()["id"].(string)
	require.NotEmpty(t, customerID)

	resp = s.do(t, fiber.MethodPost, "/api/issues", token, map[string]any{
		"title":       "Checkout fails",
		"description": "Payment button does nothing",
		"priority":    "high",
		"customerId":  customerID,
	})
	require.Equal(t, fiber.StatusCreated, resp.status)
	issueID, _ := resp.data()["id"].(string)
	assert.Equal(t, "new", resp.data()["status"])

	resp = s.do(t, fiber.MethodGet, "/api/issues?status=new&page=1&page_size=10", token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.EqualValues(t, 1, resp.data()["total"])
	assert.EqualValues(t, 10, resp.data()["pageSize"])

	resp = s.do(t, fiber.MethodGet, "/api/issues?created_from=yesterday", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = s.do(t, fiber.MethodPost, "/api/issues/"+issueID+"/status", token, map[string]string{"status": "resolved"})
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.NotEmpty(t, resp.data()["resolvedAt"])

	resp = s.do(t, fiber.MethodPost, "/api/issues/"+issueID+"/status", token, map[string]string{"status": "archived"})
	assert.Equal(t, fiber.StatusBadRequest, resp.status)

	resp = s.do(t, fiber.MethodPost, "/api/issues/bulk", token, map[string]any{
		"issueIds": []string{issueID, "missing"},
		"updates":  map[string]string{"priority": "low"},
	})
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.EqualValues(t, 1, resp.errorDetails()["updated"])
	assert.Equal(t, []any{issueID}, resp.errorDetails()["issueIds"])

	resp = s.do(t, fiber.MethodPost, "/api/issues/"+issueID+"/comments", token, map[string]string{"content": "fixed in 2.3"})
	require.Equal(t, fiber.StatusCreated, resp.status)

	resp = s.do(t, fiber.MethodDelete, "/api/customers/"+customerID, token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.status)
	assert.EqualValues(t, 1, resp.errorDetails()["issueCount"])

	resp = s.do(t, fiber.MethodPost, "/api/issues/"+issueID+"/escalate", token, nil)
	assert.Equal(t, fiber.StatusConflict, resp.status)

	resp = s.do(t, fiber.MethodDelete, "/api/issues/"+issueID, token, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.status)

	resp = s.do(t, fiber.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	assert.EqualValues(t, 0, resp.data()["totalIssues"])
}

func TestPermissionsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "alice")
	viewer := s.token(t, "victor")
	require.Equal(t, fiber.StatusOK, s.do(t, fiber.MethodGet, "/api/session", admin, nil).status)

	resp := s.do(t, fiber.MethodPost, "/api/maintenance/reconcile", viewer, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.status)
	assert.Equal(t, "FORBIDDEN", resp.errorCode())

	resp = s.do(t, fiber.MethodPost, "/api/maintenance/reconcile", admin, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = s.do(t, fiber.MethodPost, "/api/customers", viewer, map[string]string{"companyName": "Nope"})
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = s.do(t, fiber.MethodGet, "/api/customers", viewer, nil)
	assert.Equal(t, fiber.StatusOK, resp.status)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode())
}
