package ingestrestaurants

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultCitySlug string
	IndexName       string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         5 * time.Minute,
		DefaultCitySlug: "london",
		IndexName:       "restaurants",
	}
}
