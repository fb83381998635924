// Package api holds the HTTP handlers that sit next to the session
// channel: invite minting and not much else.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/observer/syncparty/internal/auth"
	"github.com/observer/syncparty/internal/metrics"
	"github.com/observer/syncparty/internal/middleware"
	"github.com/observer/syncparty/internal/session"
)

// InviteHandler mints room-scoped invite tokens for bearer principals
// holding an invite (or host) role.
type InviteHandler struct {
	verifier    *auth.Verifier
	registry    *session.Registry
	hostRoles   []string
	inviteRoles []string
	limiter     *middleware.RateLimiter
	logger      *slog.Logger
}

// NewInviteHandler creates the POST /invite handler.
func NewInviteHandler(verifier *auth.Verifier, registry *session.Registry, hostRoles, inviteRoles []string, limiter *middleware.RateLimiter, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		verifier:    verifier,
		registry:    registry,
		hostRoles:   hostRoles,
		inviteRoles: inviteRoles,
		limiter:     limiter,
		logger:      logger,
	}
}

type inviteRequest struct {
	Room      string `json:"room"`
	ExpiresIn int64  `json:"expires_in,omitempty"` // seconds
}

// CreateInvite issues an invite token scoped to an existing room.
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	if !h.verifier.Enabled() {
		writeError(w, http.StatusBadRequest, "JWT_SECRET required")
		return
	}

	authorization := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	token := strings.TrimSpace(authorization[len("bearer "):])

	claims, err := h.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if !h.limiter.Allow(principalKey(claims)) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
		return
	}

	required := h.inviteRoles
	if len(required) == 0 {
		required = h.hostRoles
	}
	if !auth.RequireRoles(claims, required) {
		writeError(w, http.StatusForbidden, "insufficient role")
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Room == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, ok := h.registry.Room(req.Room); !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	invite, err := h.verifier.IssueInvite(req.Room, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		h.logger.Error("failed to issue invite", "error", err, "room", req.Room)
		writeError(w, http.StatusInternalServerError, "failed to issue invite")
		return
	}

	metrics.InvitesIssued.Inc()
	h.logger.Info("invite issued", "room", req.Room, "principal", principalKey(claims))
	writeJSON(w, http.StatusOK, invite)
}

// principalKey identifies a bearer for rate limiting.
func principalKey(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if name := auth.Username(claims); name != "" {
		return name
	}
	return "anonymous"
}
