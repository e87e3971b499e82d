package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/zsiec/omafgen/pkg/version"
)

type statusBody struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is the body of /health.
type Response struct {
	statusBody
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]*Check `json:"checks,omitempty"`
}

// Handler serves /health, /ready and /live on the status server.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager, startTime: time.Now()}
}

// HandleHealth re-runs the tool checks.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := h.manager.RunChecks(r.Context())
	status := h.manager.GetOverallStatus()

	h.reply(w, status, Response{
		statusBody: statusBody{Status: status, Timestamp: time.Now()},
		Version:    version.Version,
		Uptime:     h.uptime(),
		Checks:     checks,
	})
}

// HandleReady answers from the last check run; before the preflight has run
// the status server reports not ready.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.manager.GetOverallStatus()
	h.reply(w, status, statusBody{Status: status, Timestamp: time.Now()})
}

func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.reply(w, StatusOK, statusBody{Status: "alive", Timestamp: time.Now()})
}

func (h *Handler) uptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}

func (h *Handler) reply(w http.ResponseWriter, status Status, body interface{}) {
	code := http.StatusOK
	if status == StatusDown {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
