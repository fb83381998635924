// syncparty-mpv bridges a local mpv instance to a playback session server.
//
// Start mpv with --input-ipc-server=/tmp/mpv-socket, then run this adapter
// pointing at the same socket and a room on the server. With --host the
// adapter creates the room and drives playback; without it the adapter
// joins and follows the host.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/observer/syncparty/internal/adapter"
)

func main() {
	var cfg adapter.Config
	flag.StringVar(&cfg.ServerURL, "ws", "ws://localhost:8999/ws", "session server WebSocket URL")
	flag.StringVar(&cfg.Room, "room", "", "room ID (required)")
	flag.StringVar(&cfg.Name, "name", "MPV", "display name shown to other participants")
	flag.StringVar(&cfg.ClientID, "client-id", "", "client ID override")
	flag.StringVar(&cfg.SocketPath, "mpv-socket", "/tmp/mpv-socket", "mpv JSON IPC socket path")
	flag.BoolVar(&cfg.Host, "host", false, "create the room and act as host")
	flag.StringVar(&cfg.MediaURL, "media-url", "", "media URL announced when creating the room")
	flag.StringVar(&cfg.AuthToken, "auth-token", "", "JWT auth token")
	flag.StringVar(&cfg.InviteToken, "invite-token", "", "invite token for joining")
	flag.Parse()

	if cfg.Room == "" {
		fmt.Fprintln(os.Stderr, "error: --room is required")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("mpv-%d", time.Now().Unix())
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting mpv adapter",
		"server", cfg.ServerURL,
		"room", cfg.Room,
		"client_id", cfg.ClientID,
		"host", cfg.Host,
	)

	if err := adapter.Run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		logger.Error("adapter stopped", "error", err)
		os.Exit(1)
	}
}
