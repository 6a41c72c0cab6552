// Package identity adapts external identity providers to a single
// verify-and-lookup contract used by the session layer.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidToken covers malformed, expired and unverifiable tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrMemberNotFound is returned when the provider has no such member.
	ErrMemberNotFound = errors.New("member not found")
)

// Identity is a verified member session.
type Identity struct {
	MemberID       string
	OrganizationID string
	SessionID      string
	ExpiresAt      time.Time
}

// MemberDetails is best-effort profile data for a member.
type MemberDetails struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Email    string `json:"email_address"`
	Status   string `json:"status"`
}

// DisplayName falls back from name to email to member id.
func (m *MemberDetails) DisplayName(memberID string) string {
	if m != nil && m.Name != "" {
		return m.Name
	}
	if m != nil && m.Email != "" {
		return m.Email
	}
	return memberID
}

// Verifier is implemented by every identity provider adapter.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
	LookupMember(ctx context.Context, externalOrgID, memberID string) (*MemberDetails, error)
	SearchMemberByEmail(ctx context.Context, externalOrgID, email string) (*MemberDetails, error)
	Name() string
}

// searchableEmail rejects inputs that cannot be a full address.
func searchableEmail(email string) bool {
	if len(email) < 5 {
		return false
	}
	for _, r := range email {
		if r == '@' {
			return true
		}
	}
	return false
}
