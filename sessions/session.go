package sessions

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-surface-auth/users"
)

// Origin records how a session became authenticated.
type Origin string

const OriginDirect Origin = "direct"

const handoffOriginPrefix = "handoff:"

// HandoffOrigin is the origin of sessions established by redeeming a token from surface.
func HandoffOrigin(surface string) Origin {
	return Origin(handoffOriginPrefix + surface)
}

// IsHandoff reports whether the session came from a handoff token.
func (o Origin) IsHandoff() bool {
	return strings.HasPrefix(string(o), handoffOriginPrefix)
}

// Session is the server-side state of one authenticated browsing context. ID is the cookie value.
type Session struct {
	ID          string         `json:"id"`
	UserID      int64          `json:"user_id"`
	LoginName   string         `json:"login_name"`
	Role        users.RoleType `json:"role"`
	DisplayName string         `json:"display_name"`
	CreatedAt   time.Time      `json:"created_at"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
	Origin      Origin         `json:"origin"`
}

// Identity returns the account view of the session. The password hash is never carried.
func (s *Session) Identity() *users.User {
	return &users.User{
		ID:          s.UserID,
		LoginName:   s.LoginName,
		DisplayName: s.DisplayName,
		Role:        s.Role,
		Active:      true,
	}
}
