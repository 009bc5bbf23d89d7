package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// NotifyConfig configures the best-effort webhook publisher that fans
// out session events. Disabled by default; admission never depends on
// delivery.
type NotifyConfig struct {
	Enabled        bool          `env:"NOTIFY_ENABLED" envDefault:"false"`
	WebhookURLs    []string      `env:"NOTIFY_WEBHOOK_URLS" envSeparator:","`
	Secret         string        `env:"NOTIFY_SECRET"`
	Workers        int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	Buffer         int           `env:"NOTIFY_BUFFER" envDefault:"2048"`
	RetryMax       int           `env:"NOTIFY_RETRY_MAX" envDefault:"3"`
	RetryBase      time.Duration `env:"NOTIFY_RETRY_BASE" envDefault:"500ms"`
	RequestTimeout time.Duration `env:"NOTIFY_REQUEST_TIMEOUT" envDefault:"5s"`

	FailureThreshold    int           `env:"NOTIFY_FAILURE_THRESHOLD" envDefault:"3"`
	CircuitOpenDuration time.Duration `env:"NOTIFY_CIRCUIT_OPEN_DURATION" envDefault:"30s"`
}

func LoadNotify() (NotifyConfig, error) {
	var cfg NotifyConfig
	err := env.Parse(&cfg)
	return cfg, err
}
