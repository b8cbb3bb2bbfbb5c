package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"otrio-lite/apps/server/internal/gateway"
	"otrio-lite/apps/server/internal/lobby"
	"otrio-lite/apps/server/internal/room"
)

func main() {
	cfg := room.Config{
		TurnTimeout:      envDuration("TURN_TIMEOUT_MS", room.DefaultTurnTimeout),
		ReplayVoteWindow: envDuration("REPLAY_VOTE_TIMEOUT_MS", room.DefaultReplayVoteWindow),
		RoomTTL:          envDuration("ROOM_TTL_MS", room.DefaultRoomTTL),
		ReconnectGrace:   envDuration("RECONNECT_GRACE_MS", room.DefaultReconnectGrace),
		SkipLimit:        envInt("CONSECUTIVE_SKIP_LIMIT", room.DefaultSkipLimit),
	}
	sweepEvery := envDuration("CLEANUP_SWEEP_MS", lobby.DefaultSweepInterval)

	lby := lobby.New(cfg, sweepEvery)
	defer lby.Stop()
	gw := gateway.New(lby)
	lobbyHTTP := lobby.NewHTTPHandler(lby)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	lobbyHTTP.RegisterRoutes(mux)

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("[Server] Turn timeout: %s, skip limit: %d", cfg.TurnTimeout, cfg.SkipLimit)
	log.Printf("[Server] Starting WebSocket server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("[Server] Ignoring invalid %s=%q", key, raw)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		log.Printf("[Server] Ignoring invalid %s=%q", key, raw)
		return fallback
	}
	return n
}
