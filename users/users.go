package users

import (
	"fmt"
	"strings"
)

// RoleType is the role an account holds on one surface.
type RoleType string

const (
	RoleClient     RoleType = "client"      // Portal customer
	RoleStaff      RoleType = "staff"       // Field and office staff
	RoleAdmin      RoleType = "admin"       // Administrator, satisfies every role check
	RoleSuperAdmin RoleType = "super_admin" // Can manage administrators, satisfies every role check
)

// roleRank orders the roles. Higher ranks are supersets of lower ranks.
var roleRank = map[RoleType]int{
	RoleClient:     1,
	RoleStaff:      2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// ParseRole converts a stored role string into a RoleType.
func ParseRole(role string) (RoleType, error) {
	r := RoleType(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r RoleType) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// IsAdmin returns true for admin and super_admin.
func (r RoleType) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Satisfies reports whether r meets a minimum role requirement.
// Administrators satisfy any requirement.
func (r RoleType) Satisfies(min RoleType) bool {
	if !r.Valid() {
		return false
	}
	if r.IsAdmin() {
		return true
	}
	return roleRank[r] >= roleRank[min]
}

// In reports whether r is a member of the allow-set.
func (r RoleType) In(set []RoleType) bool {
	for _, role := range set {
		if r == role {
			return true
		}
	}
	return false
}

// User is one account on one surface. It is owned by the credential store and read-only to
// the authentication layer.
type User struct {
	ID           int64    `json:"id"`                     // Unique identifier on this surface
	LoginName    string   `json:"login_name"`             // Login identifier, unique per surface
	DisplayName  string   `json:"display_name,omitempty"` // Name shown in the UI
	Role         RoleType `json:"role"`                   // Role on this surface
	PasswordHash string   `json:"-"`                      // Salted password hash - never serialize
	Active       bool     `json:"active"`                 // Inactive accounts can not sign in
}

// NormalizeLogin folds a login identifier into the form used for lookups and lockout accounting.
func NormalizeLogin(loginName string) string {
	return strings.ToLower(strings.TrimSpace(loginName))
}

// CheckPassword checks a password against the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
