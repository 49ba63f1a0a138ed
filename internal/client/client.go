package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/awerner/weatherquery/internal/models"
	"github.com/awerner/weatherquery/internal/observability"
)

// Units selects the measurement convention for the upstream query.
type Units string

const (
	UnitsMetric   Units = "metric"   // Celsius, m/s
	UnitsImperial Units = "imperial" // Fahrenheit, mph
	UnitsStandard Units = "standard" // Kelvin, m/s
)

// ParseUnits validates a unit-system string.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case UnitsMetric, UnitsImperial, UnitsStandard:
		return Units(s), nil
	}
	return "", fmt.Errorf("unknown unit system %q (want metric, imperial or standard)", s)
}

var (
	ErrMissingAPIKey     = errors.New("API key is required")
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is a classified non-200 response from the weather endpoint.
// Message is the canned text for the status code, extended with the
// remote-provided detail when the error body carries one.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// statusMessages is the static classification table for non-200 responses.
var statusMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication error. Please verify your API key.",
	http.StatusNotFound:            "City not found.",
	http.StatusTooManyRequests:     "Too many requests. API limit exceeded.",
	http.StatusInternalServerError: "Weather service server error.",
	http.StatusServiceUnavailable:  "Service temporarily unavailable.",
}

const genericStatusMessage = "Unknown error."

// DefaultTimeout bounds a single weather lookup.
const DefaultTimeout = 10 * time.Second

// WeatherQuerier is the lookup contract implemented by WeatherQueryClient.
type WeatherQuerier interface {
	FetchWeather(ctx context.Context, city string, units Units) (models.WeatherRecord, []byte, error)
	ValidateAPIKey(ctx context.Context) error
}

// WeatherQueryClient performs single, synchronous current-weather lookups
// against a fixed endpoint. It holds no connection state between calls and
// never retries; failure classification is returned to the caller, which
// decides on logging or printing.
type WeatherQueryClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewWeatherQueryClient constructs a client. The API key is a required
// injected value; there is no compiled-in default credential.
func NewWeatherQueryClient(apiKey, apiURL string, timeout time.Duration) (*WeatherQueryClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WeatherQueryClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

// weatherResponse mirrors the upstream payload. Required nested fields are
// pointers so a missing key is distinguishable from a zero value.
type weatherResponse struct {
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *int     `json:"humidity"`
		Pressure  *int     `json:"pressure"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// FetchWeather issues one GET to the weather endpoint for city and maps the
// payload into a WeatherRecord. The raw response body is returned alongside
// the record so callers that archive responses can do so without a second
// request. Errors are ErrTransport, *StatusError or ErrMalformedResponse;
// a failed call never yields a partially populated record.
func (c *WeatherQueryClient) FetchWeather(ctx context.Context, city string, units Units) (models.WeatherRecord, []byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, city, units)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)
		return models.WeatherRecord{}, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherRecord{}, nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode != http.StatusOK {
		return models.WeatherRecord{}, nil, classifyStatus(resp.StatusCode, body)
	}

	var payload weatherResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.WeatherRecord{}, nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	record, err := c.mapResponse(payload, city)
	if err != nil {
		return models.WeatherRecord{}, nil, err
	}
	return record, body, nil
}

func (c *WeatherQueryClient) buildRequest(ctx context.Context, city string, units Units) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", c.apiKey)
	params.Set("units", string(units))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// classifyStatus maps a non-200 response to a StatusError using the static
// message table, appending the remote message field when the error body
// decodes and carries one.
func classifyStatus(statusCode int, body []byte) *StatusError {
	msg, ok := statusMessages[statusCode]
	if !ok {
		msg = genericStatusMessage
	}

	var remote errorResponse
	if err := json.Unmarshal(body, &remote); err == nil && remote.Message != "" {
		msg = fmt.Sprintf("%s Details: %s", msg, remote.Message)
	}

	return &StatusError{Status: statusCode, Message: msg}
}

// mapResponse builds a WeatherRecord from a decoded payload, checking that
// every required nested field was present. sys.country is the one optional
// field and falls back to the placeholder.
func (c *WeatherQueryClient) mapResponse(payload weatherResponse, city string) (models.WeatherRecord, error) {
	missing := func(field string) (models.WeatherRecord, error) {
		return models.WeatherRecord{}, fmt.Errorf("%w: missing field %s", ErrMalformedResponse, field)
	}

	if payload.Main == nil {
		return missing("main")
	}
	if payload.Main.Temp == nil {
		return missing("main.temp")
	}
	if payload.Main.FeelsLike == nil {
		return missing("main.feels_like")
	}
	if payload.Main.Humidity == nil {
		return missing("main.humidity")
	}
	if payload.Main.Pressure == nil {
		return missing("main.pressure")
	}
	if payload.Main.TempMin == nil {
		return missing("main.temp_min")
	}
	if payload.Main.TempMax == nil {
		return missing("main.temp_max")
	}
	if payload.Wind == nil || payload.Wind.Speed == nil {
		return missing("wind.speed")
	}
	if len(payload.Weather) == 0 || payload.Weather[0].Description == nil {
		return missing("weather[0].description")
	}

	country := payload.Sys.Country
	if country == "" {
		country = models.CountryUnknown
	}

	return models.WeatherRecord{
		City:        city,
		Country:     country,
		Temperature: *payload.Main.Temp,
		FeelsLike:   *payload.Main.FeelsLike,
		Humidity:    *payload.Main.Humidity,
		Pressure:    *payload.Main.Pressure,
		TempMin:     *payload.Main.TempMin,
		TempMax:     *payload.Main.TempMax,
		WindSpeed:   *payload.Wind.Speed,
		Description: *payload.Weather[0].Description,
		Timestamp:   c.now(),
	}, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// ValidateAPIKey probes the endpoint with a known city to distinguish a bad
// credential from other failures. Used by the serve-mode health check.
func (c *WeatherQueryClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London", UnitsMetric)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return &StatusError{Status: resp.StatusCode, Message: statusMessages[http.StatusUnauthorized]}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
