package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/awerner/weatherquery/internal/archive"
	"github.com/awerner/weatherquery/internal/client"
	"github.com/awerner/weatherquery/internal/config"
	httphandler "github.com/awerner/weatherquery/internal/http"
	"github.com/awerner/weatherquery/internal/models"
	"github.com/awerner/weatherquery/internal/observability"
	"github.com/awerner/weatherquery/internal/service"
)

func main() {
	citiesFlag := flag.String("cities", "", "comma-separated city names (default: cities from config)")
	unitsFlag := flag.String("units", "", "unit system: metric, imperial or standard (default: config)")
	saveFlag := flag.Bool("save", false, "save raw responses to the output directory")
	serveFlag := flag.Bool("serve", false, "run as an HTTP service instead of a one-shot query")
	flag.Parse()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	unitsStr := cfg.Units
	if *unitsFlag != "" {
		unitsStr = *unitsFlag
	}
	units, err := client.ParseUnits(unitsStr)
	if err != nil {
		logger.Fatal("units", zap.Error(err))
	}

	weatherClient, err := client.NewWeatherQueryClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	var archiveWriter *archive.Writer
	if *saveFlag || cfg.SaveResponses {
		archiveWriter = archive.NewWriter(cfg.OutputDir)
	}
	weatherService := service.NewWeatherService(weatherClient, archiveWriter, logger)

	if len(cfg.TrackedCities) > 0 {
		observability.SetTrackedCities(cfg.TrackedCities)
	}

	if *serveFlag {
		runServer(cfg, weatherService, weatherClient, units, logger)
		return
	}

	cities := cfg.Cities
	if *citiesFlag != "" {
		cities = splitCities(*citiesFlag)
	}
	if len(cities) == 0 {
		logger.Fatal("no cities given (use -cities or the cities list in config)")
	}

	runQueries(weatherService, cities, units, logger)
}

// runQueries performs one sequential lookup per city. A failed city is
// logged with its classification and the loop continues; failures contribute
// nothing to the statistics.
func runQueries(weatherService *service.WeatherService, cities []string, units client.Units, logger *zap.Logger) {
	ctx := context.Background()

	for _, city := range cities {
		record, err := weatherService.Query(ctx, city, units)
		if err != nil {
			logger.Error("query failed",
				zap.String("city", city),
				zap.String("category", string(client.CategorizeError(err))),
				zap.Error(err))
			continue
		}
		printRecord(record, units)
	}

	stats := weatherService.Statistics()
	if len(stats) == 0 {
		fmt.Println("No successful queries.")
		return
	}
	fmt.Println("Statistics:")
	for _, key := range []string{"average_temperature", "max_temperature", "min_temperature", "total_cities_queried", "successful_queries"} {
		fmt.Printf("  %-22s %.2f\n", strings.ReplaceAll(key, "_", " ")+":", stats[key])
	}
}

// printRecord writes a human-readable reading to stdout.
func printRecord(r models.WeatherRecord, units client.Units) {
	tempUnit, speedUnit := unitSuffixes(units)
	fmt.Printf("%s, %s\n", r.City, r.Country)
	fmt.Printf("  temperature: %.1f%s (feels like %.1f%s)\n", r.Temperature, tempUnit, r.FeelsLike, tempUnit)
	fmt.Printf("  min/max:     %.1f%s / %.1f%s\n", r.TempMin, tempUnit, r.TempMax, tempUnit)
	fmt.Printf("  humidity:    %d%%\n", r.Humidity)
	fmt.Printf("  pressure:    %d hPa\n", r.Pressure)
	fmt.Printf("  wind:        %.1f %s\n", r.WindSpeed, speedUnit)
	fmt.Printf("  conditions:  %s\n", r.Description)
}

func unitSuffixes(units client.Units) (temp, speed string) {
	switch units {
	case client.UnitsImperial:
		return "°F", "mph"
	case client.UnitsStandard:
		return "K", "m/s"
	default:
		return "°C", "m/s"
	}
}

func splitCities(s string) []string {
	var cities []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cities = append(cities, c)
		}
	}
	return cities
}

// runServer exposes the lookup over HTTP with metrics and health endpoints,
// shutting down gracefully on SIGINT/SIGTERM.
func runServer(cfg *config.Config, weatherService *service.WeatherService, weatherClient *client.WeatherQueryClient, units client.Units, logger *zap.Logger) {
	handler := httphandler.NewHandler(weatherService, weatherClient, units, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.HandleFunc("/statistics", handler.GetStatistics).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	weatherRouter := router.PathPrefix("/weather").Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.HandleFunc("/{city}", handler.GetWeather).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
