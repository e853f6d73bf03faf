// internal/workers/data-access/query-elasticsearch/config.go
package queryelasticsearch

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultIndex string
	DefaultCity  string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		DefaultIndex: "restaurants",
		DefaultCity:  "london",
	}
}
