package lobby

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPHandler serves the read-only side-channel: a health check and
// the room listing used by lobby browsers that are not yet on a
// websocket.
type HTTPHandler struct {
	lobby *Lobby
	start time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(lobby *Lobby) *HTTPHandler {
	return &HTTPHandler{lobby: lobby, start: time.Now()}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/rooms", h.handleRooms)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"rooms":         h.lobby.RoomCount(),
		"uptimeSeconds": int(time.Since(h.start).Seconds()),
	})
}

// handleRooms lists joinable rooms by default; query parameters open
// up the full filter/sort/page surface.
func (h *HTTPHandler) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()

	if len(q) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"items": h.lobby.Joinable(),
		})
		return
	}

	opts := ListOptions{
		Status: strings.TrimSpace(q.Get("status")),
		Name:   q.Get("name"),
		SortBy: strings.TrimSpace(q.Get("sort")),
		Desc:   strings.EqualFold(q.Get("order"), "desc"),
		Offset: parseInt(q.Get("offset"), 0),
		Limit:  parseInt(q.Get("limit"), 0),
	}
	if raw := q.Get("isPrivate"); raw != "" {
		v := raw == "true"
		opts.IsPrivate = &v
	}
	if raw := q.Get("hasSpace"); raw != "" {
		v := raw == "true"
		opts.HasSpace = &v
	}

	items, total, hasMore := h.lobby.List(opts)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   items,
		"total":   total,
		"hasMore": hasMore,
	})
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
