package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/awerner/weatherquery/internal/archive"
	"github.com/awerner/weatherquery/internal/client"
	"github.com/awerner/weatherquery/internal/models"
	"github.com/awerner/weatherquery/internal/observability"
	"github.com/awerner/weatherquery/internal/validation"
)

// WeatherService orchestrates weather lookups: input validation, the single
// upstream call, accumulation of successful records for statistics, and
// optional archiving of raw responses. Failed queries contribute nothing to
// the accumulated list; the error returns to the caller, which decides
// whether to log, print or keep going.
type WeatherService struct {
	client  client.WeatherQuerier
	archive *archive.Writer // nil when response archiving is disabled
	logger  *zap.Logger

	// mu guards records. The CLI path is sequential, but serve mode calls
	// Query from concurrent handlers.
	mu      sync.Mutex
	records []models.WeatherRecord
}

// NewWeatherService creates a WeatherService. archiveWriter may be nil to
// disable raw-response archiving.
func NewWeatherService(c client.WeatherQuerier, archiveWriter *archive.Writer, logger *zap.Logger) *WeatherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{
		client:  c,
		archive: archiveWriter,
		logger:  logger,
	}
}

// Query fetches current weather for city and, on success, appends the record
// to the in-process ordered result list. When archiving is enabled the raw
// response body is written to the output directory; an archive failure is
// logged but does not fail the query, since the record itself is sound.
func (s *WeatherService) Query(ctx context.Context, city string, units client.Units) (models.WeatherRecord, error) {
	city, err := validation.ValidateCity(city)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("validation: %w", err)
	}

	observability.RecordWeatherQuery(city)
	s.logger.Info("querying weather", zap.String("city", city), zap.String("units", string(units)))

	record, raw, err := s.client.FetchWeather(ctx, city, units)
	if err != nil {
		observability.WeatherQueryErrorsTotal.WithLabelValues(string(client.CategorizeError(err))).Inc()
		return models.WeatherRecord{}, err
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()

	if s.archive != nil {
		path, err := s.archive.Save(city, raw)
		if err != nil {
			s.logger.Warn("archive raw response", zap.String("city", city), zap.Error(err))
		} else {
			s.logger.Info("saved raw response", zap.String("path", path))
		}
	}

	return record, nil
}

// Records returns a copy of the accumulated records in query order.
func (s *WeatherService) Records() []models.WeatherRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WeatherRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Statistics computes summary statistics over the accumulated records.
// Returns an empty map when no records exist. Pure over the list; successful
// queries are the only ones recorded, so the success count equals the total.
func (s *WeatherService) Statistics() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return map[string]float64{}
	}

	sum := 0.0
	max := s.records[0].Temperature
	min := s.records[0].Temperature
	for _, r := range s.records {
		sum += r.Temperature
		if r.Temperature > max {
			max = r.Temperature
		}
		if r.Temperature < min {
			min = r.Temperature
		}
	}

	return map[string]float64{
		"average_temperature":  sum / float64(len(s.records)),
		"max_temperature":      max,
		"min_temperature":      min,
		"total_cities_queried": float64(len(s.records)),
		"successful_queries":   float64(len(s.records)),
	}
}
