package searchplaces

import "time"

type Config struct {
	Timeout               time.Duration
	MinRating             float64
	MaxResults            int
	CacheTTL              time.Duration
	FallbackNeighbourhood string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:               60 * time.Second,
		MinRating:             3.5,
		MaxResults:            100,
		CacheTTL:              time.Hour,
		FallbackNeighbourhood: "London",
	}
}
