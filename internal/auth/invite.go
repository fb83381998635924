package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Invite is a signed, room-scoped, time-limited credential accepted in
// lieu of an auth token at join.
type Invite struct {
	Token     string `json:"invite_token"`
	ExpiresAt int64  `json:"expires_at"`
}

// IssueInvite signs an invite token for the room. A zero ttl uses the
// configured default.
func (v *Verifier) IssueInvite(roomID string, ttl time.Duration) (*Invite, error) {
	if !v.Enabled() {
		return nil, ErrInviteDisabled
	}
	if ttl <= 0 {
		ttl = v.inviteTTL
	}
	expiresAt := time.Now().Add(ttl).Unix()

	claims := jwt.MapClaims{
		"type": "invite",
		"room": roomID,
		"exp":  expiresAt,
	}
	if v.audience != "" {
		claims["aud"] = v.audience
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return nil, err
	}
	return &Invite{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyInvite validates an invite token and checks it is scoped to the
// expected room.
func (v *Verifier) VerifyInvite(tokenString, expectedRoom string) (jwt.MapClaims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if !v.Enabled() {
		return nil, nil
	}
	if typ, _ := claims["type"].(string); typ != "invite" {
		return nil, ErrInviteInvalid
	}
	if room, _ := claims["room"].(string); room != expectedRoom {
		return nil, ErrInviteRoomMismatch
	}
	return claims, nil
}
