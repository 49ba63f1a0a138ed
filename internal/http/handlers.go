package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/awerner/weatherquery/internal/client"
	"github.com/awerner/weatherquery/internal/service"
	"github.com/awerner/weatherquery/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	client         client.WeatherQuerier
	defaultUnits   client.Units
	logger         *zap.Logger
}

// NewHandler returns a new Handler. defaultUnits applies when a request does
// not carry a units query parameter.
func NewHandler(weatherService *service.WeatherService, c client.WeatherQuerier, defaultUnits client.Units, logger *zap.Logger) *Handler {
	return &Handler{
		weatherService: weatherService,
		client:         c,
		defaultUnits:   defaultUnits,
		logger:         logger,
	}
}

// GetWeather handles GET /weather/{city}?units=metric|imperial|standard.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(mux.Vars(r)["city"])

	units := h.defaultUnits
	if raw := r.URL.Query().Get("units"); raw != "" {
		parsed, err := client.ParseUnits(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_UNITS", err.Error())
			return
		}
		units = parsed
	}

	record, err := h.weatherService.Query(r.Context(), city, units)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetStatistics handles GET /statistics over the records accumulated since
// process start.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.weatherService.Statistics())
}

// GetHealth handles GET /health. The service is degraded when the upstream
// rejects the configured API key.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := map[string]string{"weatherApi": "healthy"}

	if err := h.client.ValidateAPIKey(r.Context()); err != nil {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
		checks["weatherApi"] = "unhealthy"
		h.logger.Warn("health check failed", zap.Error(err))
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weatherquery",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeQueryError maps a classified lookup failure onto the serve surface.
// City-not-found passes through as 404; other upstream statuses and
// transport or parse failures surface as 502 with the category in the body.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, validation.ErrCityEmpty) || errors.Is(err, validation.ErrCityTooLong) || errors.Is(err, validation.ErrCityInvalidChars) {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}

	var se *client.StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", se.Message)
		return
	}

	category := string(client.CategorizeError(err))
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.String("category", category), zap.Error(err))
	}
	writeError(w, r, http.StatusBadGateway, "UPSTREAM_ERROR", "Unable to fetch weather data ("+category+")")
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID, _ = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
