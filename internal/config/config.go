package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DiscordToken  string `env:"BARKEEP_DISCORD_TOKEN"`
	DatabaseURL   string `env:"DATABASE_URL"`
	Store         string `env:"BARKEEP_STORE" envDefault:"postgres"`
	APIAddr       string `env:"BARKEEP_API_ADDR" envDefault:":8080"`
	BotName       string `env:"BARKEEP_BOT_NAME" envDefault:"barkeep"`
	CommandPrefix string `env:"BARKEEP_COMMAND_PREFIX" envDefault:"!"`

	TheftCooldown time.Duration `env:"BARKEEP_THEFT_COOLDOWN" envDefault:"13m"`
	PlayCooldown  time.Duration `env:"BARKEEP_PLAY_COOLDOWN" envDefault:"13m"`
	FilterExpiry  time.Duration `env:"BARKEEP_FILTER_EXPIRY" envDefault:"90m"`
	MaxItems      int           `env:"BARKEEP_MAX_ITEMS" envDefault:"10"`
	MaxBeverages  int           `env:"BARKEEP_MAX_BEVERAGES" envDefault:"4"`
	StealOdds     int           `env:"BARKEEP_STEAL_ODDS" envDefault:"5"`

	// Chat platform ids allowed to forge treasures.
	Operators []string `env:"BARKEEP_OPERATORS" envSeparator:","`
	// Extra names never eligible as resolution candidates; the bot's own
	// name is always included.
	Reserved []string `env:"BARKEEP_RESERVED_NAMES" envSeparator:","`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	switch cfg.Store {
	case "postgres", "memory":
	default:
		return cfg, fmt.Errorf("BARKEEP_STORE must be postgres or memory, got %q", cfg.Store)
	}
	if cfg.Store == "postgres" && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required with the postgres store")
	}
	return cfg, nil
}

// IsOperator reports whether a chat platform id may run operator commands.
func (c Config) IsOperator(platformID string) bool {
	for _, op := range c.Operators {
		if strings.TrimSpace(op) == platformID {
			return true
		}
	}
	return false
}

// ReservedNames is the full reserved-identifier list, bot name included.
func (c Config) ReservedNames() []string {
	out := []string{strings.ToLower(c.BotName)}
	for _, r := range c.Reserved {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
