package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/baca2-project/judgekeeper/internal/config"
)

// Role represents an authorization role. Admin is the grading
// platform's service account: it may post submissions. Operator is a
// human on duty: it may inspect sessions and intervene, but not
// submit.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// authConfig holds credentials loaded from environment variables.
type authConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// InitAuth loads keeper credentials from BACA_ADMIN_USER/PASS and
// BACA_OPERATOR_USER/PASS, each supporting the *_FILE secret-mount
// convention. With no admin credentials set, authentication is
// disabled entirely (dev-friendly).
func InitAuth() {
	cred := func(envName string) string {
		value, err := config.ResolveSecret(envName)
		if err != nil {
			log.Fatalf("failed to resolve %s: %v", envName, err)
		}
		return value
	}

	adminUser := cred("BACA_ADMIN_USER")
	adminPass := cred("BACA_ADMIN_PASS")

	auth = &authConfig{
		adminUser:    adminUser,
		adminPass:    adminPass,
		operatorUser: cred("BACA_OPERATOR_USER"),
		operatorPass: cred("BACA_OPERATOR_PASS"),
		enabled:      adminUser != "" && adminPass != "",
	}
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate checks basic auth credentials and returns the role if
// valid, empty string otherwise. Without configured auth every caller
// is an admin.
func authenticate(r *http.Request) Role {
	if auth == nil || !auth.enabled {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if auth.adminUser != "" && auth.adminPass != "" {
		if secureCompare(user, auth.adminUser) && secureCompare(pass, auth.adminPass) {
			return RoleAdmin
		}
	}

	if auth.operatorUser != "" && auth.operatorPass != "" {
		if secureCompare(user, auth.operatorUser) && secureCompare(pass, auth.operatorPass) {
			return RoleOperator
		}
	}

	return ""
}

// secureCompare performs constant-time string comparison to prevent timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// requireAuth returns 401 Unauthorized with WWW-Authenticate header.
func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Judge Keeper"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}

		// Authenticated, but the role may not touch this endpoint.
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring the platform service account.
// Submission intake uses this: operators inspect and intervene, the
// platform submits.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
