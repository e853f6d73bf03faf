package submitrating

import "time"

type Config struct {
	Timeout         time.Duration
	MaxReviewLength int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		MaxReviewLength: 2000,
	}
}
