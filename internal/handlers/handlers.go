package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/llanen/nl.eneco.toon/internal/core"
	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/internal/session"
)

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Path      string      `json:"path"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// loginRequest is the body of POST /api/v1/login: true logs in, false
// logs out.
type loginRequest struct {
	State *bool `json:"state"`
}

// callbackRequest is the body of POST /api/v1/login/callback, carrying
// the authorization code from the OAuth2 redirect.
type callbackRequest struct {
	Code string `json:"code"`
}

// Handler serves the webhook receiver and the login endpoints.
type Handler struct {
	registry *session.Registry
	metrics  *core.MetricsCollector
	logger   *slog.Logger
}

// New creates an HTTP handler set around the session registry.
func New(registry *session.Registry, metrics *core.MetricsCollector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = core.NewMetricsCollector()
	}
	return &Handler{
		registry: registry,
		metrics:  metrics,
		logger:   logger.With("component", "handlers"),
	}
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// API routes
	mux.HandleFunc("/api/v1/webhook", h.handleWebhook)
	mux.HandleFunc("/api/v1/login", h.handleLogin)
	mux.HandleFunc("/api/v1/login/callback", h.handleLoginCallback)
	mux.HandleFunc("/api/v1/health", h.handleHealth)
	mux.HandleFunc("/api/v1/metrics", h.handleMetrics)

	// Catch-all handler for undefined routes
	mux.HandleFunc("/", handleNotFound)
}

// handleWebhook receives vendor push notifications and routes them to
// the devices bound to the reported display.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", r.URL.Path)
		return
	}

	h.metrics.RecordWebhook()

	var payload toon.StatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.metrics.RecordWebhookError()
		sendErrorResponse(w, http.StatusBadRequest, "Invalid body", r.URL.Path)
		return
	}
	if payload.CommonName == "" {
		h.metrics.RecordWebhookError()
		sendErrorResponse(w, http.StatusBadRequest, "Missing commonName", r.URL.Path)
		return
	}

	devices := h.registry.DevicesByCommonName(payload.CommonName)
	if len(devices) == 0 {
		h.logger.Debug("Webhook for unknown display", "common_name", payload.CommonName)
	}
	for _, device := range devices {
		if err := device.ProcessStatusUpdate(payload); err != nil {
			h.metrics.RecordWebhookError()
			h.logger.Error("Failed to process webhook payload", "common_name", payload.CommonName, "error", err)
		}
	}

	sendJSONResponse(w, http.StatusOK, Response{
		Success:   true,
		Timestamp: time.Now(),
		Path:      r.URL.Path,
	})
}

// handleLogin reports the authenticated state on GET and starts a login
// or performs a logout on POST.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sendJSONResponse(w, http.StatusOK, Response{
			Success:   true,
			Data:      map[string]interface{}{"authenticated": h.registry.IsAuthenticated()},
			Timestamp: time.Now(),
			Path:      r.URL.Path,
		})

	case http.MethodPost:
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.State == nil {
			sendErrorResponse(w, http.StatusBadRequest, "Body must contain a boolean state", r.URL.Path)
			return
		}

		if *req.State {
			authorizeURL, err := h.registry.Login(r.Context())
			if err != nil {
				sendErrorResponse(w, http.StatusInternalServerError, err.Error(), r.URL.Path)
				return
			}
			sendJSONResponse(w, http.StatusOK, Response{
				Success:   true,
				Message:   "Visit the authorize URL to complete login",
				Data:      map[string]interface{}{"authorize_url": authorizeURL},
				Timestamp: time.Now(),
				Path:      r.URL.Path,
			})
			return
		}

		if err := h.registry.Logout(r.Context()); err != nil {
			sendErrorResponse(w, http.StatusInternalServerError, err.Error(), r.URL.Path)
			return
		}
		sendJSONResponse(w, http.StatusOK, Response{
			Success:   true,
			Message:   "Logged out",
			Timestamp: time.Now(),
			Path:      r.URL.Path,
		})

	default:
		sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", r.URL.Path)
	}
}

// handleLoginCallback completes a login with the authorization code.
func (h *Handler) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", r.URL.Path)
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		sendErrorResponse(w, http.StatusBadRequest, "Body must contain an authorization code", r.URL.Path)
		return
	}

	sess, err := h.registry.CompleteLogin(r.Context(), req.Code)
	if err != nil {
		var exchangeErr *toon.AuthExchangeError
		if errors.As(err, &exchangeErr) {
			sendErrorResponse(w, http.StatusUnauthorized, exchangeErr.Error(), r.URL.Path)
			return
		}
		sendErrorResponse(w, http.StatusInternalServerError, err.Error(), r.URL.Path)
		return
	}

	sendJSONResponse(w, http.StatusOK, Response{
		Success:   true,
		Message:   "Login completed",
		Data:      map[string]interface{}{"session_id": sess.ID},
		Timestamp: time.Now(),
		Path:      r.URL.Path,
	})
}

// handleHealth handles the health endpoint
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", r.URL.Path)
		return
	}

	devices := make([]map[string]interface{}, 0)
	for _, device := range h.registry.Devices() {
		binding := device.Binding()
		availability := device.Availability()
		devices = append(devices, map[string]interface{}{
			"agreement_id": binding.AgreementID,
			"common_name":  binding.DisplayCommonName,
			"available":    availability.Available,
			"reason":       availability.Reason,
		})
	}

	sendJSONResponse(w, http.StatusOK, Response{
		Success: true,
		Message: "Service is running",
		Data: map[string]interface{}{
			"status":        "healthy",
			"authenticated": h.registry.IsAuthenticated(),
			"devices":       devices,
		},
		Timestamp: time.Now(),
		Path:      r.URL.Path,
	})
}

// handleMetrics exposes the process counters.
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", r.URL.Path)
		return
	}

	sendJSONResponse(w, http.StatusOK, Response{
		Success:   true,
		Data:      h.metrics.GetMetrics(),
		Timestamp: time.Now(),
		Path:      r.URL.Path,
	})
}

// handleNotFound handles undefined routes
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	sendErrorResponse(w, http.StatusNotFound, "Endpoint not found", r.URL.Path)
}

// sendJSONResponse sends a JSON response with the given status code and data
func sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sendErrorResponse sends an error response with the given status code and message
func sendErrorResponse(w http.ResponseWriter, statusCode int, message, path string) {
	response := ErrorResponse{
		Success:   false,
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now(),
		Path:      path,
	}

	sendJSONResponse(w, statusCode, response)
}
