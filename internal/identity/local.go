package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LocalVerifier issues and validates HS256 tokens. It stands in for the
// external provider in development and tests.
type LocalVerifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	members map[string]MemberDetails
}

// NewLocalVerifier builds a verifier signing with secret.
func NewLocalVerifier(secret string, ttl time.Duration) *LocalVerifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalVerifier{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		members: make(map[string]MemberDetails),
	}
}

// Claims describes the local token payload.
type Claims struct {
	OrganizationID string `json:"org"`
	SessionID      string `json:"sid"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IssueInput describes the member a local token is minted for.
type IssueInput struct {
	MemberID       string
	OrganizationID string
	Name           string
	Email          string
}

func (v *LocalVerifier) Name() string {
	return "local"
}

// Issue signs a token for the member and registers their details for lookups.
func (v *LocalVerifier) Issue(in IssueInput) (string, time.Time, error) {
	if in.MemberID == "" || in.OrganizationID == "" {
		return "", time.Time{}, errors.New("member and organization are required")
	}
	now := v.now()
	expiresAt := now.Add(v.ttl)
	claims := &Claims{
		OrganizationID: in.OrganizationID,
		SessionID:      uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   in.MemberID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	v.register(in.OrganizationID, MemberDetails{MemberID: in.MemberID, Name: in.Name, Email: in.Email, Status: "active"})
	return tokenString, expiresAt, nil
}

func (v *LocalVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.OrganizationID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := v.LookupMember(ctx, claims.OrganizationID, claims.Subject); err != nil {
		v.register(claims.OrganizationID, MemberDetails{MemberID: claims.Subject, Name: claims.Name, Email: claims.Email, Status: "active"})
	}

	return &Identity{
		MemberID:       claims.Subject,
		OrganizationID: claims.OrganizationID,
		SessionID:      claims.SessionID,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

func (v *LocalVerifier) LookupMember(ctx context.Context, externalOrgID, memberID string) (*MemberDetails, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	details, ok := v.members[memberKey(externalOrgID, memberID)]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return &details, nil
}

func (v *LocalVerifier) SearchMemberByEmail(ctx context.Context, externalOrgID, email string) (*MemberDetails, error) {
	if !searchableEmail(email) {
		return nil, ErrMemberNotFound
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	prefix := externalOrgID + "/"
	for key, details := range v.members {
		if strings.HasPrefix(key, prefix) && strings.EqualFold(details.Email, email) {
			found := details
			return &found, nil
		}
	}
	return nil, ErrMemberNotFound
}

// Register makes a member known without issuing a token.
func (v *LocalVerifier) Register(externalOrgID string, details MemberDetails) {
	v.register(externalOrgID, details)
}

func (v *LocalVerifier) register(externalOrgID string, details MemberDetails) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.members[memberKey(externalOrgID, details.MemberID)] = details
}

func memberKey(orgID, memberID string) string {
	return orgID + "/" + memberID
}
