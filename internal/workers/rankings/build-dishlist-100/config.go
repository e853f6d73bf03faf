package builddishlist100

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultCitySlug string
	Threshold       float64
	Limit           int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DefaultCitySlug: "london",
		Threshold:       8.0,
		Limit:           100,
	}
}
