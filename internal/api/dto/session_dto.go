package dto

import (
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// SessionRequest exchanges an identity provider token for a session cookie.
type SessionRequest struct {
	Token string `json:"token" validate:"required"`
}

// SessionResponse describes the signed-in caller.
type SessionResponse struct {
	UserID           string      `json:"userId"`
	OrganizationID   string      `json:"organizationId"`
	OrganizationName string      `json:"organizationName"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	Permissions      []string    `json:"permissions"`
	ExpiresAt        *time.Time  `json:"expiresAt,omitempty"`
}

func NewSessionResponse(session *domain.Session) SessionResponse {
	resp := SessionResponse{
		UserID:           session.UserID,
		OrganizationID:   session.OrganizationID,
		OrganizationName: session.OrganizationName,
		Name:             session.UserName,
		Email:            session.UserEmail,
		Role:             session.Role,
		Permissions:      session.Permissions,
	}
	if !session.ExpiresAt.IsZero() {
		expires := session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}
