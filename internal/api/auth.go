package api

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig holds OIDC authentication settings.
type OIDCConfig struct {
	IssuerURL string
	Audience  string
	Enabled   bool
	// WriteGroups gates POST routes. Empty allows any verified caller.
	WriteGroups []string
}

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxGroups contextKey = "groups"
)

// UserFromContext extracts the user ID from the request context.
func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// GroupsFromContext extracts the token's group claims from the request context.
func GroupsFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(ctxGroups).([]string)
	return v
}

// oidcAuth returns middleware that verifies JWT Bearer tokens using OIDC discovery.
// The /health endpoint bypasses authentication. Requests that start work
// additionally need a group in writeGroups, when any are configured.
func oidcAuth(provider *oidc.Provider, audience string, writeGroups []string) func(http.Handler) http.Handler {
	verifier := provider.Verifier(&oidc.Config{ClientID: audience})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/health" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			token, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
				return
			}

			var claims struct {
				Sub    string   `json:"sub"`
				Email  string   `json:"email"`
				Groups []string `json:"groups"`
			}
			if err := token.Claims(&claims); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			ctx := r.Context()
			userID := claims.Sub
			if userID == "" {
				userID = claims.Email
			}
			if userID != "" {
				ctx = context.WithValue(ctx, ctxUserID, userID)
			}
			if len(claims.Groups) > 0 {
				ctx = context.WithValue(ctx, ctxGroups, claims.Groups)
			}
			if r.Method == http.MethodPost && !inAnyGroup(claims.Groups, writeGroups) {
				writeError(w, http.StatusForbidden, "starting audits requires one of groups: "+strings.Join(writeGroups, ", "))
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// inAnyGroup reports whether have shares a group with want. An empty want
// matches everyone.
func inAnyGroup(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, g := range have {
		if slices.Contains(want, g) {
			return true
		}
	}
	return false
}
