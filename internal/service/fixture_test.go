package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// hookStore wraps the memory store the way a networked driver behaves: calls
// on a finished context fail. Hooks run before reads and writes so tests can
// inject failures or interleave a concurrent operation.
type hookStore struct {
	repository.Store

	mu           sync.Mutex
	beforeGet    func(ctx context.Context, collection, id string) error
	beforeUpdate func(ctx context.Context, collection string, rec repository.Record) error
}

func (s *hookStore) onGet(fn func(ctx context.Context, collection, id string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeGet = fn
}

func (s *hookStore) onUpdate(fn func(ctx context.Context, collection string, rec repository.Record) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeUpdate = fn
}

func (s *hookStore) Get(ctx context.Context, collection, id, orgID string) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return repository.Record{}, err
	}
	s.mu.Lock()
	hook := s.beforeGet
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, collection, id); err != nil {
			return repository.Record{}, err
		}
	}
	return s.Store.Get(ctx, collection, id, orgID)
}

func (s *hookStore) Update(ctx context.Context, collection string, rec repository.Record, expectedVersion int64) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return repository.Record{}, err
	}
	s.mu.Lock()
	hook := s.beforeUpdate
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, collection, rec); err != nil {
			return repository.Record{}, err
		}
	}
	return s.Store.Update(ctx, collection, rec, expectedVersion)
}

type fixture struct {
	clock      *testClock
	store      *hookStore
	metrics    *observability.Metrics
	repos      *repository.Repositories
	verifier   *identity.LocalVerifier
	guard      *auth.Guard
	dispatcher events.Dispatcher
	published  *recordedEvents

	issues    *IssueService
	customers *CustomerService
	users     *UserService
	catalog   *CatalogService
	orgs      *OrganizationService
	dashboard *DashboardService
	reconcile *ReconcileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	store := &hookStore{Store: repository.NewMemoryStore()}
	metrics := observability.NewMetrics()
	repos := repository.NewRepositories(store, clock.Now)
	verifier := identity.NewLocalVerifier("service-test-secret", time.Hour)
	resolver := auth.NewSessionResolver(auth.ResolverConfig{}, auth.ResolverDependencies{
		Verifier:      verifier,
		Organizations: repos.Organizations,
		Users:         repos.Users,
	})
	guard := auth.NewGuard(resolver)

	published := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, published.handle)
	}

	return &fixture{
		clock:      clock,
		store:      store,
		metrics:    metrics,
		repos:      repos,
		verifier:   verifier,
		guard:      guard,
		dispatcher: dispatcher,
		published:  published,
		issues: NewIssueService(IssueDependencies{
			Guard:        guard,
			Repositories: repos,
			Dispatcher:   dispatcher,
			Metrics:      metrics,
			Now:          clock.Now,
		}),
		customers: NewCustomerService(guard, repos, nil),
		users:     NewUserService(guard, repos, verifier, nil),
		catalog:   NewCatalogService(guard, repos),
		orgs:      NewOrganizationService(guard, repos),
		dashboard: NewDashboardService(guard, repos, nil, nil, clock.Now),
		reconcile: NewReconcileService(guard, repos, metrics, nil),
	}
}

// actor is a signed-in member. ctx returns a fresh request context so every
// call resolves the session again, like a new HTTP request would.
type actor struct {
	token   string
	session *domain.Session
}

func (a *actor) ctx() context.Context {
	return auth.WithToken(context.Background(), a.token)
}

// login signs member into org and forces role with its default permissions.
func (f *fixture) login(t *testing.T, org, member string, role domain.Role) *actor {
	t.Helper()
	token, _, err := f.verifier.Issue(identity.IssueInput{
		MemberID:       member,
		OrganizationID: org,
		Name:           member,
		Email:          member + "@example.test",
	})
	require.NoError(t, err)

	ctx := context.Background()
	session := f.guard.Session(auth.WithToken(ctx, token))
	require.NotNil(t, session, "member %s should resolve", member)

	if session.Role != role {
		user, err := f.repos.Users.Get(ctx, session.UserID, session.OrganizationID)
		require.NoError(t, err)
		user.Role = role
		user.Permissions = domain.DefaultPermissions(role)
		require.NoError(t, f.repos.Users.Update(ctx, user))
		session = f.guard.Session(auth.WithToken(ctx, token))
		require.NotNil(t, session)
	}
	return &actor{token: token, session: session}
}

// authContext is a request context for a member who has not signed in before.
func authContext(t *testing.T, f *fixture, org, member string) context.Context {
	t.Helper()
	token, _, err := f.verifier.Issue(identity.IssueInput{MemberID: member, OrganizationID: org, Name: member})
	require.NoError(t, err)
	return auth.WithToken(context.Background(), token)
}

func (f *fixture) customer(t *testing.T, a *actor, name string) *domain.Customer {
	t.Helper()
	customer, err := f.customers.CreateCustomer(a.ctx(), CustomerInput{CompanyName: name})
	require.NoError(t, err)
	return customer
}

func (f *fixture) issue(t *testing.T, a *actor, customerID, title string, priority domain.IssuePriority) *domain.Issue {
	t.Helper()
	issue, err := f.issues.CreateIssue(a.ctx(), CreateIssueInput{
		Title:       title,
		Description: "Steps: open the page",
		Priority:    priority,
		CustomerID:  customerID,
	})
	require.NoError(t, err)
	return issue
}

func (f *fixture) storedCustomer(t *testing.T, a *actor, id string) *domain.Customer {
	t.Helper()
	customer, err := f.repos.Customers.Get(context.Background(), id, a.session.OrganizationID)
	require.NoError(t, err)
	return customer
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func ptr[T any](v T) *T {
	return &v
}
