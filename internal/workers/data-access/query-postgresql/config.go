package querypostgresql

import (
	"time"

	"dishlist-workers/internal/workers/data-access/query-postgresql/queries"
)

type Config struct {
	Timeout         time.Duration
	TopRatingsLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		TopRatingsLimit: queries.DefaultTopRatings,
	}
}
