package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	pinger  Pinger
	version string
	storage string
}

// NewHealthHandler создает новый handler для health check.
// pinger may be nil for backends without a connection to check
func NewHealthHandler(logger *slog.Logger, version, storage string, pinger Pinger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		pinger:  pinger,
		version: version,
		storage: storage,
	}
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Storage string `json:"storage,omitempty"`
}

// Health обрабатывает GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Storage: h.storage,
	}

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.ErrorContext(ctx, "storage health check failed", slog.Any("error", err))
			resp.Status = "unavailable"
			SendJSON(h.logger, w, resp, http.StatusServiceUnavailable)
			return
		}
	}

	SendJSON(h.logger, w, resp, http.StatusOK)
}
