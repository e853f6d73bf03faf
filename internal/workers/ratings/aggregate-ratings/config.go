package aggregateratings

import "time"

type Config struct {
	Timeout time.Duration
	MaxIDs  int
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		MaxIDs:  500,
	}
}
