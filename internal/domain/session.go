package domain

import (
	"time"

	"github.com/samber/lo"
)

// Session is the authenticated caller for the duration of one request.
type Session struct {
	UserID                 string
	OrganizationID         string
	ExternalOrganizationID string
	ExternalMemberID       string
	ExternalSessionID      string
	Role                   Role
	Permissions            []string
	OrganizationName       string
	UserName               string
	UserEmail              string
	ExpiresAt              time.Time
}

func (s *Session) HasPermission(p Permission) bool {
	return lo.Contains(s.Permissions, string(p))
}

func (s *Session) HasRole(roles ...Role) bool {
	return lo.Contains(roles, s.Role)
}
