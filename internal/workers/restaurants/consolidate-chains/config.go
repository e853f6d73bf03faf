package consolidatechains

import "time"

type Config struct {
	Timeout         time.Duration
	DefaultCitySlug string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DefaultCitySlug: "london",
	}
}
