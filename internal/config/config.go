package config

import (
	"fmt"
	"strings"
	"time"

	"tradewatch/internal/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EngineKindCommand = "command"
	EngineKindOpenAI  = "openai-chat"
)

func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if strings.TrimSpace(c.Engine.Kind) == "" {
		c.Engine.Kind = EngineKindCommand
	}
	if c.Engine.Command.TimeoutSeconds <= 0 {
		c.Engine.Command.TimeoutSeconds = 180
	}
	if c.Engine.OpenAI.TimeoutSeconds <= 0 {
		c.Engine.OpenAI.TimeoutSeconds = 120
	}
	if c.Cycle.IntervalMinutes <= 0 {
		c.Cycle.IntervalMinutes = 4
	}
	if strings.TrimSpace(c.Market.QuoteAsset) == "" {
		c.Market.QuoteAsset = "USDT"
	}
	if strings.TrimSpace(c.Prompt.Template) == "" {
		c.Prompt.Template = "default"
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = ":8080"
	}
}

// Interval returns the configured cycle interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Cycle.IntervalMinutes) * time.Minute
}

func validate(c *Config) error {
	switch c.Engine.Kind {
	case EngineKindCommand:
		if strings.TrimSpace(c.Engine.Command.Path) == "" {
			return fmt.Errorf("engine.command.path is required for kind=%s", EngineKindCommand)
		}
	case EngineKindOpenAI:
		if strings.TrimSpace(c.Engine.OpenAI.Model) == "" {
			return fmt.Errorf("engine.openai.model is required for kind=%s", EngineKindOpenAI)
		}
	default:
		return fmt.Errorf("unknown engine.kind %q (want %s or %s)", c.Engine.Kind, EngineKindCommand, EngineKindOpenAI)
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}
