// internal/workers/synthetic/purge-expired-sessions/config.go
package purgeexpiredsessions

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
