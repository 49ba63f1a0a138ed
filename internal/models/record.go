package models

import "time"

// CountryUnknown is substituted when the upstream payload omits sys.country.
const CountryUnknown = "unknown"

// WeatherRecord is one normalized weather reading produced from a successful
// query. Records are value types and never mutated after construction.
type WeatherRecord struct {
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feelsLike"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	TempMin     float64   `json:"tempMin"`
	TempMax     float64   `json:"tempMax"`
	WindSpeed   float64   `json:"windSpeed"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}
