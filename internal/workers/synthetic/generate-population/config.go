// internal/workers/synthetic/generate-population/config.go
package generatepopulation

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Stress runs write up to twenty batches plus a scoring pass.
		Timeout: 5 * time.Minute,
	}
}
