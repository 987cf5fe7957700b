package resilience

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BreakerThreshold int           `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`

	MaxRetries uint          `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay  time.Duration `envconfig:"RETRY_BASE_DELAY" default:"100ms"`
	MaxDelay   time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`

	// DefaultResource names the breaker guarding plain database calls.
	DefaultResource string `envconfig:"BREAKER_DEFAULT_RESOURCE" default:"connection"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// RetryPolicy bounds the retry executor.
type RetryPolicy struct {
	MaxRetries uint          // total attempts, including the first
	BaseDelay  time.Duration // first backoff step
	MaxDelay   time.Duration // backoff cap
}

func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
		MaxDelay:   c.MaxDelay,
	}
}
