package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CreditsConfig is the operator-tunable credit policy: how many trial
// credits a new account receives, how the debit entry point is throttled,
// and what each paid action costs.
type CreditsConfig struct {
	TrialGrant           int              `mapstructure:"trialGrant"`
	DefaultCost          int64            `mapstructure:"defaultCost"`
	RateLimitWindowSecs  int              `mapstructure:"rateLimitWindowSeconds"`
	RateLimitMaxAttempts int              `mapstructure:"rateLimitMaxAttempts"`
	Costs                map[string]int64 `mapstructure:"costs"`
}

func (c CreditsConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

// CostFor returns the configured cost of an action, falling back to the
// default cost for unknown actions.
func (c CreditsConfig) CostFor(action string) int64 {
	if cost, ok := c.Costs[strings.ToLower(strings.TrimSpace(action))]; ok && cost >= 1 {
		return cost
	}
	return c.DefaultCost
}

func DefaultCreditsConfig() CreditsConfig {
	return CreditsConfig{
		TrialGrant:           3,
		DefaultCost:          1,
		RateLimitWindowSecs:  60,
		RateLimitMaxAttempts: 3,
		Costs:                map[string]int64{},
	}
}

// CreditsHolder exposes the current credit policy with hot reload.
type CreditsHolder struct {
	current atomic.Value // holds CreditsConfig
}

// NewCreditsHolder loads credits.yml (volume mount, /etc/verdant, or cwd)
// and watches it for changes. Missing file falls back to defaults.
func NewCreditsHolder() (*CreditsHolder, error) {
	v := viper.New()

	v.SetConfigName("credits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/verdant/config")
	v.AddConfigPath("/etc/verdant")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VERDANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCreditsConfig()
	v.SetDefault("credits.trialGrant", defaults.TrialGrant)
	v.SetDefault("credits.defaultCost", defaults.DefaultCost)
	v.SetDefault("credits.rateLimitWindowSeconds", defaults.RateLimitWindowSecs)
	v.SetDefault("credits.rateLimitMaxAttempts", defaults.RateLimitMaxAttempts)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg CreditsConfig
	if err := v.UnmarshalKey("credits", &cfg); err != nil {
		return nil, err
	}
	if cfg.Costs == nil {
		cfg.Costs = map[string]int64{}
	}
	if err := validateCreditsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CreditsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CreditsConfig
		if err := v.UnmarshalKey("credits", &updated); err != nil {
			log.Printf("[credits-config] reload failed: %v", err)
			return
		}
		if updated.Costs == nil {
			updated.Costs = map[string]int64{}
		}
		if err := validateCreditsConfig(updated); err != nil {
			log.Printf("[credits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
	})

	return holder, nil
}

// NewStaticCreditsHolder pins the holder to a fixed policy. Used by tests
// and tools that must not depend on files on disk.
func NewStaticCreditsHolder(cfg CreditsConfig) *CreditsHolder {
	if cfg.Costs == nil {
		cfg.Costs = map[string]int64{}
	}
	holder := &CreditsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CreditsHolder) Current() CreditsConfig {
	return h.current.Load().(CreditsConfig)
}

func validateCreditsConfig(cfg CreditsConfig) error {
	if cfg.TrialGrant < 0 {
		return errors.New("credits: trialGrant must not be negative")
	}
	if cfg.DefaultCost < 1 {
		return errors.New("credits: defaultCost must be >= 1")
	}
	if cfg.RateLimitWindowSecs <= 0 {
		return errors.New("credits: rateLimitWindowSeconds must be positive")
	}
	if cfg.RateLimitMaxAttempts <= 0 {
		return errors.New("credits: rateLimitMaxAttempts must be positive")
	}
	for action, cost := range cfg.Costs {
		if strings.TrimSpace(action) == "" {
			return errors.New("credits: cost entry with empty action")
		}
		if cost < 1 {
			return errors.New("credits: cost for " + action + " must be >= 1")
		}
	}
	return nil
}
