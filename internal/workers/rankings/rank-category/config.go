package rankcategory

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultCitySlug string
	DefaultLimit    int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         15 * time.Second,
		DefaultCitySlug: "london",
		DefaultLimit:    50,
	}
}
