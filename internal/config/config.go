package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/engine"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Addr       string `env:"ADDR"        envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT"  envDefault:"json"`
	RosterPath string `env:"ROSTER_PATH" envDefault:"players.json"`

	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	RetentionWindow   time.Duration `env:"RETENTION_WINDOW"   envDefault:"90s"`
	RTMWindow         time.Duration `env:"RTM_WINDOW"         envDefault:"30s"`
	PresentationDelay time.Duration `env:"PRESENTATION_DELAY" envDefault:"3s"`

	SquadSize            int    `env:"SQUAD_SIZE"              envDefault:"25"`
	TotalPurse           string `env:"TOTAL_PURSE"             envDefault:"100"`
	MaxIndianSlots       int    `env:"MAX_INDIAN_SLOTS"        envDefault:"4"`
	MaxOverseasSlots     int    `env:"MAX_OVERSEAS_SLOTS"      envDefault:"3"`
	RTMCards             int    `env:"RTM_CARDS"               envDefault:"2"`
	EnforceCapsInAuction bool   `env:"ENFORCE_CAPS_IN_AUCTION" envDefault:"false"`
	UncategorizedPolicy  string `env:"UNCATEGORIZED_POLICY"    envDefault:"exclude"`
}

// Load reads a .env file from the working directory when one exists, then
// parses the environment. Variables already set win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Rules(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Rules builds the default rules new rooms start with.
func (c Config) Rules() (engine.Rules, error) {
	purse, err := decimal.NewFromString(c.TotalPurse)
	if err != nil {
		return engine.Rules{}, fmt.Errorf("TOTAL_PURSE: %w", err)
	}
	rules := engine.Rules{
		SquadSize:            c.SquadSize,
		TotalPurse:           purse,
		MaxIndianSlots:       c.MaxIndianSlots,
		MaxOverseasSlots:     c.MaxOverseasSlots,
		RTMCards:             c.RTMCards,
		EnforceCapsInAuction: c.EnforceCapsInAuction,
		Uncategorized:        engine.UncategorizedPolicy(c.UncategorizedPolicy),
	}
	if err := rules.Validate(); err != nil {
		return engine.Rules{}, fmt.Errorf("default rules: %w", err)
	}
	return rules, nil
}

func (c Config) Timing() engine.Timing {
	return engine.Timing{
		RetentionWindow:   c.RetentionWindow,
		RTMWindow:         c.RTMWindow,
		PresentationDelay: c.PresentationDelay,
	}
}
