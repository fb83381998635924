// Package auth verifies the HS256 tokens that gate room creation and
// issues the room-scoped invite tokens accepted at join time. When no
// signing secret is configured, verification is disabled and every
// principal is implicitly authorized.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors. Their names double as the wire error codes the
// dispatcher reports to clients.
var (
	ErrAuthRequired       = errors.New("auth_required")
	ErrTokenExpired       = errors.New("token_expired")
	ErrTokenInvalid       = errors.New("token_invalid")
	ErrInviteRequired     = errors.New("invite_required")
	ErrInviteInvalid      = errors.New("invite_invalid")
	ErrInviteRoomMismatch = errors.New("invite_room_mismatch")
	ErrInviteDisabled     = errors.New("invite_disabled")
)

// Verifier validates auth tokens and issues invites.
type Verifier struct {
	secret    []byte
	audience  string
	issuer    string
	inviteTTL time.Duration
}

// NewVerifier creates a Verifier. An empty secret disables verification.
func NewVerifier(secret, audience, issuer string, inviteTTL time.Duration) *Verifier {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Verifier{
		secret:    key,
		audience:  audience,
		issuer:    issuer,
		inviteTTL: inviteTTL,
	}
}

// Enabled reports whether a signing secret is configured.
func (v *Verifier) Enabled() bool {
	return v.secret != nil
}

// Verify parses and validates a token. With verification disabled it
// accepts anything and returns nil claims.
func (v *Verifier) Verify(tokenString string) (jwt.MapClaims, error) {
	if !v.Enabled() {
		return nil, nil
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Roles extracts the union of the "role" and "roles" claims as a set of
// lowercase strings. Each claim may be a string, a comma-separated
// string, or an array of strings.
func Roles(claims jwt.MapClaims) map[string]bool {
	roles := make(map[string]bool)
	for _, key := range []string{"role", "roles"} {
		switch val := claims[key].(type) {
		case string:
			for _, part := range strings.Split(val, ",") {
				if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
					roles[part] = true
				}
			}
		case []interface{}:
			for _, item := range val {
				if s, ok := item.(string); ok {
					if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
						roles[s] = true
					}
				}
			}
		}
	}
	return roles
}

// RequireRoles reports whether the claims hold at least one of the
// required roles. An empty requirement always passes.
func RequireRoles(claims jwt.MapClaims, required []string) bool {
	if len(required) == 0 {
		return true
	}
	roles := Roles(claims)
	for _, want := range required {
		if roles[want] {
			return true
		}
	}
	return false
}

// Username returns the "username" claim, if present.
func Username(claims jwt.MapClaims) string {
	if claims == nil {
		return ""
	}
	if name, ok := claims["username"].(string); ok {
		return name
	}
	return ""
}
