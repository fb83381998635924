package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observer/syncparty/internal/api"
	"github.com/observer/syncparty/internal/config"
	"github.com/observer/syncparty/internal/session"
)

// Dependencies holds all service dependencies for the server
type Dependencies struct {
	Hub           *session.Hub
	WSHandler     *session.Handler
	InviteHandler *api.InviteHandler
	Logger        *slog.Logger
}

// New creates an HTTP server with all routes configured.
func New(cfg *config.Config, deps *Dependencies) *http.Server {
	mux := http.NewServeMux()

	registerRoutes(mux, deps)

	// Wrap with middleware
	handler := chainMiddleware(mux,
		requestIDMiddleware,
		corsMiddleware(cfg),
		loggingMiddleware(deps.Logger),
		recoverMiddleware(deps.Logger),
	)

	return &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     handler,
		ReadTimeout: 0, // session channels are long-lived
		IdleTimeout: 60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check - essential for docker, k8s, load balancers
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","rooms":%d}`, deps.Hub.Registry().RoomCount())
	})

	// Invite minting
	mux.HandleFunc("POST /invite", deps.InviteHandler.CreateInvite)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	// Session channel
	mux.Handle("GET /ws", deps.WSHandler)
}
