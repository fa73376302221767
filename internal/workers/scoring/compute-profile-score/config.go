// internal/workers/scoring/compute-profile-score/config.go
package computeprofilescore

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		CacheTTL: 24 * time.Hour,
	}
}
