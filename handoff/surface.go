// Package handoff moves an authenticated identity from one surface to another through a short
// lived signed token carried in a redirect URL.
package handoff

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-surface-auth/users"
	"github.com/pkg/errors"
)

// Surface names one independently deployed application boundary.
type Surface string

const (
	SurfaceAdminConsole Surface = "admin_console"
	SurfaceClientPortal Surface = "client_portal"
)

// RedeemPath is where every surface accepts handoff tokens.
const RedeemPath = "/handoff/redeem"

// Policy holds the role rules for handing off into Surface.
type Policy struct {
	Surface Surface
	// IssuerRoles may request a handoff into Surface.
	IssuerRoles []users.RoleType
	// AccountRoles may hold a session on Surface. Checked at issue and again at redemption.
	AccountRoles []users.RoleType
}

// DefaultPolicies returns the policies for the admin console and client portal.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Surface:      SurfaceAdminConsole,
			IssuerRoles:  []users.RoleType{users.RoleAdmin, users.RoleSuperAdmin},
			AccountRoles: []users.RoleType{users.RoleAdmin, users.RoleSuperAdmin},
		},
		{
			Surface:      SurfaceClientPortal,
			IssuerRoles:  []users.RoleType{users.RoleAdmin, users.RoleSuperAdmin, users.RoleClient},
			AccountRoles: []users.RoleType{users.RoleClient, users.RoleAdmin, users.RoleSuperAdmin},
		},
	}
}

// PolicyFor returns the default policy for surface.
func PolicyFor(surface Surface) (Policy, bool) {
	for _, p := range DefaultPolicies() {
		if p.Surface == surface {
			return p, true
		}
	}
	return Policy{}, false
}

// Target is a surface as seen from the issuing side: its policy, its credential store and where
// its redeem endpoint lives.
type Target struct {
	Policy  Policy
	Users   users.UserRepo
	BaseURL string
}

// RedirectURL builds the redeem URL on the target surface carrying raw.
func (t Target) RedirectURL(raw string) (string, error) {
	if t.BaseURL == "" {
		return "", errors.Errorf("[Target.RedirectURL] no base url for surface %q", t.Policy.Surface)
	}
	u, err := url.Parse(strings.TrimRight(t.BaseURL, "/") + RedeemPath)
	if err != nil {
		return "", errors.Wrap(err, "[Target.RedirectURL]")
	}
	q := u.Query()
	q.Set("token", raw)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
