package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

const defaultOrganizationName = "Support Organization"

// Namespaces for deterministic ids, so concurrent first logins converge on one document.
var (
	organizationNamespace = uuid.MustParse("6f1c1f2e-3c55-4f0e-9b7a-0d1c9f3f8a10")
	userNamespace         = uuid.MustParse("a2b7c3e4-5d6f-4a8b-9c0d-1e2f3a4b5c6d")
)

// OrganizationID derives the internal organization id for an external one.
func OrganizationID(externalOrgID string) string {
	return uuid.NewSHA1(organizationNamespace, []byte(externalOrgID)).String()
}

// UserID derives the internal user id for a member of an organization.
func UserID(orgID, memberID string) string {
	return uuid.NewSHA1(userNamespace, []byte(orgID+"/"+memberID)).String()
}

// ResolverConfig constrains which external organizations may sign in.
type ResolverConfig struct {
	// ExternalOrganizationID, when set, is the only organization accepted.
	ExternalOrganizationID string
	// RequireOrganization rejects every session while ExternalOrganizationID is empty.
	RequireOrganization bool
}

// SessionResolver turns a raw token into a Session, provisioning the
// organization and user on first sight.
type SessionResolver struct {
	verifier identity.Verifier
	orgs     repository.OrganizationRepository
	users    repository.UserRepository
	cfg      ResolverConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// ResolverDependencies groups collaborators for the resolver.
type ResolverDependencies struct {
	Verifier      identity.Verifier
	Organizations repository.OrganizationRepository
	Users         repository.UserRepository
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Now           func() time.Time
}

func NewSessionResolver(cfg ResolverConfig, deps ResolverDependencies) *SessionResolver {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionResolver{
		verifier: deps.Verifier,
		orgs:     deps.Organizations,
		users:    deps.Users,
		cfg:      cfg,
		logger:   logger,
		metrics:  deps.Metrics,
		now:      now,
	}
}

// Resolve returns nil for every failure. Callers treat nil as unauthenticated.
func (r *SessionResolver) Resolve(ctx context.Context, token string) *domain.Session {
	if token == "" {
		return nil
	}
	ctx, span := observability.StartSessionSpan(ctx, r.verifier.Name())
	defer span.End()

	session, outcome := r.resolve(ctx, token)
	r.metrics.RecordSession(outcome)
	return session
}

func (r *SessionResolver) resolve(ctx context.Context, token string) (*domain.Session, string) {
	if r.cfg.RequireOrganization && r.cfg.ExternalOrganizationID == "" {
		r.logger.Error("external organization id is not configured; rejecting sessions")
		return nil, "misconfigured"
	}

	ident, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.logger.Debug("session token rejected", zap.Error(err))
		return nil, "invalid_token"
	}
	if r.cfg.ExternalOrganizationID != "" && ident.OrganizationID != r.cfg.ExternalOrganizationID {
		r.logger.Warn("session for foreign organization rejected", zap.String("external_org_id", ident.OrganizationID))
		return nil, "foreign_organization"
	}
	if !ident.ExpiresAt.IsZero() && !r.now().Before(ident.ExpiresAt) {
		return nil, "expired"
	}

	org, err := r.ensureOrganization(ctx, ident.OrganizationID)
	if err != nil {
		r.logger.Error("resolve organization", zap.Error(err), zap.String("external_org_id", ident.OrganizationID))
		return nil, "error"
	}
	if !org.IsActive {
		return nil, "organization_inactive"
	}

	details, err := r.verifier.LookupMember(ctx, ident.OrganizationID, ident.MemberID)
	if err != nil {
		r.logger.Warn("member details unavailable", zap.Error(err), zap.String("member_id", ident.MemberID))
		details = nil
	}

	user, err := r.ensureUser(ctx, org, ident, details)
	if err != nil {
		if errors.Is(err, errRegistrationClosed) {
			return nil, "registration_closed"
		}
		r.logger.Error("resolve user", zap.Error(err), zap.String("member_id", ident.MemberID))
		return nil, "error"
	}
	if !user.IsActive {
		return nil, "user_inactive"
	}

	loginAt := r.now().UTC()
	user.LastLoginAt = &loginAt
	if err := r.users.Update(ctx, user); err != nil {
		r.logger.Warn("update last login", zap.Error(err), zap.String("user_id", user.ID))
	}

	name := details.DisplayName(ident.MemberID)
	email := user.Email
	if details != nil && details.Email != "" {
		email = details.Email
	}
	return &domain.Session{
		UserID:                 user.ID,
		OrganizationID:         org.ID,
		ExternalOrganizationID: ident.OrganizationID,
		ExternalMemberID:       ident.MemberID,
		ExternalSessionID:      ident.SessionID,
		Role:                   user.Role,
		Permissions:            append([]string(nil), user.Permissions...),
		OrganizationName:       org.Name,
		UserName:               name,
		UserEmail:              email,
		ExpiresAt:              ident.ExpiresAt,
	}, "ok"
}

var errRegistrationClosed = errors.New("self registration disabled")

func (r *SessionResolver) ensureOrganization(ctx context.Context, externalOrgID string) (*domain.Organization, error) {
	org, err := r.orgs.GetByExternalID(ctx, externalOrgID)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	org = &domain.Organization{
		Meta:                   domain.Meta{ID: OrganizationID(externalOrgID)},
		Name:                   defaultOrganizationName,
		ExternalOrganizationID: externalOrgID,
		Settings:               domain.DefaultOrganizationSettings(),
		IsActive:               true,
	}
	if err := r.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return r.orgs.Get(ctx, org.ID)
		}
		return nil, err
	}
	r.logger.Info("organization created", zap.String("organization_id", org.ID), zap.String("external_org_id", externalOrgID))
	return org, nil
}

func (r *SessionResolver) ensureUser(ctx context.Context, org *domain.Organization, ident *identity.Identity, details *identity.MemberDetails) (*domain.User, error) {
	user, err := r.users.GetByMember(ctx, org.ID, ident.MemberID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	userID := UserID(org.ID, ident.MemberID)
	first, err := r.claimBootstrapAdmin(ctx, org, userID)
	if err != nil {
		return nil, err
	}
	if !first && !org.Settings.AllowSelfRegistration {
		return nil, errRegistrationClosed
	}

	role := org.Settings.DefaultUserRole
	if !role.Valid() {
		role = domain.RoleReadOnly
	}
	active := !org.Settings.RequireApproval
	if first {
		role = domain.RoleAdmin
		active = true
	}

	user = &domain.User{
		Meta:             domain.Meta{ID: userID, OrganizationID: org.ID},
		Name:             details.DisplayName(ident.MemberID),
		Role:             role,
		ExternalMemberID: ident.MemberID,
		Permissions:      domain.DefaultPermissions(role),
		IsActive:         active,
	}
	if details != nil {
		user.Email = details.Email
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return r.users.Get(ctx, userID, org.ID)
		}
		return nil, err
	}
	r.logger.Info("user provisioned",
		zap.String("organization_id", org.ID),
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("active", user.IsActive),
	)
	return user, nil
}

// claimBootstrapAdmin reports whether userID is the organization's first user.
// The claim is a conditional write on the organization, so two members signing
// in at once cannot both become admin.
func (r *SessionResolver) claimBootstrapAdmin(ctx context.Context, org *domain.Organization, userID string) (bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		if org.BootstrapAdminID != "" {
			return org.BootstrapAdminID == userID, nil
		}
		count, err := r.users.CountInOrganization(ctx, org.ID)
		if err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
		org.BootstrapAdminID = userID
		err = r.orgs.UpdateIfUnchanged(ctx, org)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return false, err
		}
		fresh, getErr := r.orgs.Get(ctx, org.ID)
		if getErr != nil {
			return false, getErr
		}
		*org = *fresh
	}
	return false, repository.ErrVersionConflict
}
