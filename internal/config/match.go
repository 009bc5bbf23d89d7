package config

import "github.com/caarlos0/env/v11"

// MatchConfig carries the entitlement economics: how many matches the
// tiers grant and what paid actions cost.
type MatchConfig struct {
	InitialFreeMatches int   `env:"INITIAL_FREE_MATCHES" envDefault:"5"`
	CostPerMatch       int64 `env:"COST_PER_MATCH" envDefault:"5"`
	InitialFreeCredits int64 `env:"INITIAL_FREE_CREDITS" envDefault:"50"`

	CostPerMessage     int64 `env:"COST_PER_MESSAGE" envDefault:"1"`
	FreeMessagesPerDay int   `env:"FREE_MESSAGES_PER_DAY" envDefault:"10"`
}

func LoadMatch() (MatchConfig, error) {
	var cfg MatchConfig
	err := env.Parse(&cfg)
	return cfg, err
}
