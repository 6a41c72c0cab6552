package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

const (
	stytchSessionClaim      = "https://stytch.com/session"
	stytchOrganizationClaim = "https://stytch.com/organization"
)

// StytchConfig configures the Stytch B2B adapter.
type StytchConfig struct {
	ProjectID      string
	Secret         string
	APIBaseURL     string
	MemberCacheTTL time.Duration
}

// StytchVerifier verifies Stytch B2B session JWTs locally against the
// project's JWKS and looks members up through the management API.
type StytchVerifier struct {
	cfg       StytchConfig
	client    *http.Client
	jwksURI   string
	jwksCache *jwk.Cache
	members   *ttlcache.Cache[string, MemberDetails]
	logger    *zap.Logger
}

// NewStytchVerifier registers the JWKS endpoint with a refreshing cache.
func NewStytchVerifier(ctx context.Context, cfg StytchConfig, client *http.Client, logger *zap.Logger) (*StytchVerifier, error) {
	if cfg.ProjectID == "" || cfg.Secret == "" {
		return nil, errors.New("stytch project id and secret are required")
	}
	if cfg.MemberCacheTTL <= 0 {
		cfg.MemberCacheTTL = 5 * time.Minute
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	jwksURI := fmt.Sprintf("%s/v1/b2b/sessions/jwks/%s", cfg.APIBaseURL, url.PathEscape(cfg.ProjectID))
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURI, jwk.WithMinRefreshInterval(15*time.Minute), jwk.WithHTTPClient(client)); err != nil {
		return nil, fmt.Errorf("register jwks: %w", err)
	}

	return &StytchVerifier{
		cfg:       cfg,
		client:    client,
		jwksURI:   jwksURI,
		jwksCache: cache,
		members: ttlcache.New[string, MemberDetails](
			ttlcache.WithTTL[string, MemberDetails](cfg.MemberCacheTTL),
			ttlcache.WithCapacity[string, MemberDetails](10000),
		),
		logger: logger,
	}, nil
}

func (v *StytchVerifier) Name() string {
	return "stytch"
}

func (v *StytchVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	parsed, err := v.parse(ctx, token)
	if err != nil {
		return nil, err
	}

	identity := &Identity{MemberID: parsed.Subject(), ExpiresAt: parsed.Expiration()}
	if session, ok := claimMap(parsed, stytchSessionClaim); ok {
		identity.SessionID, _ = session["id"].(string)
		if raw, ok := session["expires_at"].(string); ok {
			if expiresAt, err := time.Parse(time.RFC3339, raw); err == nil {
				identity.ExpiresAt = expiresAt
			}
		}
	}
	if org, ok := claimMap(parsed, stytchOrganizationClaim); ok {
		identity.OrganizationID, _ = org["organization_id"].(string)
	}

	if identity.MemberID == "" || identity.OrganizationID == "" {
		return nil, fmt.Errorf("%w: missing member or organization claim", ErrInvalidToken)
	}
	if !identity.ExpiresAt.IsZero() && time.Now().After(identity.ExpiresAt) {
		return nil, fmt.Errorf("%w: session expired", ErrInvalidToken)
	}
	return identity, nil
}

// parse retries once with a refreshed key set so rotated signing keys are picked up.
func (v *StytchVerifier) parse(ctx context.Context, token string) (jwt.Token, error) {
	keySet, err := v.jwksCache.Get(ctx, v.jwksURI)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set from cache: %w", err)
	}
	options := []jwt.ParseOption{
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithAudience(v.cfg.ProjectID),
	}
	parsed, err := jwt.Parse([]byte(token), options...)
	if err == nil {
		return parsed, nil
	}

	if _, refreshErr := v.jwksCache.Refresh(ctx, v.jwksURI); refreshErr == nil {
		if keySet, retryErr := v.jwksCache.Get(ctx, v.jwksURI); retryErr == nil {
			options[0] = jwt.WithKeySet(keySet)
			if parsed, retryErr = jwt.Parse([]byte(token), options...); retryErr == nil {
				return parsed, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

type stytchMemberResponse struct {
	Member MemberDetails `json:"member"`
}

func (v *StytchVerifier) LookupMember(ctx context.Context, externalOrgID, memberID string) (*MemberDetails, error) {
	key := memberKey(externalOrgID, memberID)
	if item := v.members.Get(key); item != nil {
		details := item.Value()
		return &details, nil
	}

	details, err := v.getMember(ctx, externalOrgID, url.Values{"member_id": {memberID}})
	if err != nil {
		return nil, err
	}
	v.members.Set(key, *details, ttlcache.DefaultTTL)
	return details, nil
}

// SearchMemberByEmail only queries the provider for complete-looking addresses.
func (v *StytchVerifier) SearchMemberByEmail(ctx context.Context, externalOrgID, email string) (*MemberDetails, error) {
	if !searchableEmail(email) {
		return nil, ErrMemberNotFound
	}
	return v.getMember(ctx, externalOrgID, url.Values{"email_address": {email}})
}

func (v *StytchVerifier) getMember(ctx context.Context, externalOrgID string, params url.Values) (*MemberDetails, error) {
	endpoint := fmt.Sprintf("%s/v1/b2b/organizations/%s/member?%s", v.cfg.APIBaseURL, url.PathEscape(externalOrgID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(v.cfg.ProjectID, v.cfg.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stytch member lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrMemberNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		v.logger.Warn("stytch member lookup failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("stytch member lookup: unexpected status %d", resp.StatusCode)
	}

	var payload stytchMemberResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stytch member: %w", err)
	}
	if payload.Member.MemberID == "" {
		return nil, ErrMemberNotFound
	}
	return &payload.Member, nil
}

func claimMap(token jwt.Token, name string) (map[string]any, bool) {
	raw, ok := token.Get(name)
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}
