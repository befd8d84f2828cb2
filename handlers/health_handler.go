package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/utils"
)

// ProviderStatus reports the provider queue of the compose service
type ProviderStatus interface {
	// Order returns the configured provider priority
	Order() []string
	// Available returns the providers a compose request would try
	Available() []string
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProviderInfo describes one provider in the status response
type ProviderInfo struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// StatusResponse represents the application status response
type StatusResponse struct {
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Providers   []ProviderInfo `json:"providers"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	providers   ProviderStatus
	version     string
	environment string
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(providers ProviderStatus, version, environment string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		providers:   providers,
		version:     version,
		environment: environment,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}

// HandleReadiness handles GET /readyz
// Ready when at least one provider has an API key
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "ready"
	httpStatus := http.StatusOK

	if len(h.providers.Available()) == 0 {
		checks["providers"] = "none_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["providers"] = "configured"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
// Providers are listed in priority order
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	available := make(map[string]bool)
	for _, name := range h.providers.Available() {
		available[name] = true
	}

	order := h.providers.Order()
	infos := make([]ProviderInfo, 0, len(order))
	for _, name := range order {
		infos = append(infos, ProviderInfo{Name: name, Configured: available[name]})
	}

	response := StatusResponse{
		Version:     h.version,
		Environment: h.environment,
		Providers:   infos,
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write status response", zap.Error(err))
	}
}
