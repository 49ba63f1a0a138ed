package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/awerner/weatherquery/internal/client"
	"github.com/awerner/weatherquery/internal/models"
	"github.com/awerner/weatherquery/internal/service"
)

// stubQuerier serves canned lookups for handler tests.
type stubQuerier struct {
	record      models.WeatherRecord
	err         error
	validateErr error
}

func (s *stubQuerier) FetchWeather(ctx context.Context, city string, units client.Units) (models.WeatherRecord, []byte, error) {
	if s.err != nil {
		return models.WeatherRecord{}, nil, s.err
	}
	return s.record, []byte(`{}`), nil
}

func (s *stubQuerier) ValidateAPIKey(ctx context.Context) error { return s.validateErr }

func newTestRouter(stub *stubQuerier, limiter *rate.Limiter) *mux.Router {
	logger := zap.NewNop()
	svc := service.NewWeatherService(stub, nil, logger)
	handler := NewHandler(svc, stub, client.UnitsMetric, logger)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.HandleFunc("/statistics", handler.GetStatistics).Methods("GET")
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(RateLimitMiddleware(limiter))
	weatherRouter.HandleFunc("/{city}", handler.GetWeather).Methods("GET")
	return router
}

func TestGetWeather_Success(t *testing.T) {
	stub := &stubQuerier{
		record: models.WeatherRecord{
			City:        "London",
			Country:     "GB",
			Temperature: 15.0,
			Description: "cloudy",
			Timestamp:   time.Now(),
		},
	}
	router := newTestRouter(stub, nil)

	req := httptest.NewRequest("GET", "/weather/London", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var got models.WeatherRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.City != "London" || got.Country != "GB" || got.Temperature != 15.0 {
		t.Errorf("record = %+v, want London/GB/15.0", got)
	}
}

func TestGetWeather_InvalidUnits(t *testing.T) {
	router := newTestRouter(&stubQuerier{}, nil)

	req := httptest.NewRequest("GET", "/weather/London?units=kelvin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetWeather_InvalidCity(t *testing.T) {
	router := newTestRouter(&stubQuerier{}, nil)

	req := httptest.NewRequest("GET", "/weather/%20%20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
	}
}

func TestGetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "city not found passes through as 404",
			err:        &client.StatusError{Status: 404, Message: "City not found."},
			wantStatus: http.StatusNotFound,
			wantCode:   "CITY_NOT_FOUND",
		},
		{
			name:       "upstream auth failure is a gateway error",
			err:        &client.StatusError{Status: 401, Message: "Authentication error. Please verify your API key."},
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
		{
			name:       "transport failure is a gateway error",
			err:        client.ErrTransport,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
		{
			name:       "malformed response is a gateway error",
			err:        client.ErrMalformedResponse,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubQuerier{err: tt.err}, nil)

			req := httptest.NewRequest("GET", "/weather/London", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body struct {
				Error struct {
					Code      string `json:"code"`
					RequestID string `json:"requestId"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if body.Error.RequestID == "" {
				t.Error("requestId is empty, want correlation ID")
			}
		})
	}
}

func TestGetWeather_RateLimited(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	stub := &stubQuerier{record: models.WeatherRecord{City: "London"}}
	router := newTestRouter(stub, limiter)

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/weather/London", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("GET", "/weather/London", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestGetStatistics(t *testing.T) {
	stub := &stubQuerier{record: models.WeatherRecord{City: "London", Temperature: 15.0}}
	router := newTestRouter(stub, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/statistics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var empty map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("statistics before any query = %v, want empty", empty)
	}

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/weather/London", nil))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/statistics", nil))
	var stats map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats["total_cities_queried"] != 1 {
		t.Errorf("total_cities_queried = %f, want 1", stats["total_cities_queried"])
	}
	if stats["average_temperature"] != 15.0 {
		t.Errorf("average_temperature = %f, want 15.0", stats["average_temperature"])
	}
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name        string
		validateErr error
		wantStatus  int
		wantHealth  string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"degraded on bad key", &client.StatusError{Status: 401, Message: "bad key"}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubQuerier{validateErr: tt.validateErr}, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantHealth {
				t.Errorf("health status = %q, want %q", body.Status, tt.wantHealth)
			}
		})
	}
}
