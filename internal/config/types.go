package config

// Config is the root of the YAML configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Engine EngineConfig `yaml:"engine"`
	Cycle  CycleConfig  `yaml:"cycle"`
	Market MarketConfig `yaml:"market"`
	Prompt PromptConfig `yaml:"prompt"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	EngineFile string `yaml:"engine_file"`
}

// EngineConfig selects and configures the decision engine. Kind is either
// "command" or "openai-chat".
type EngineConfig struct {
	Kind    string        `yaml:"kind"`
	Command CommandConfig `yaml:"command"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

type CommandConfig struct {
	Path           string   `yaml:"path"`
	Args           []string `yaml:"args"`
	Dir            string   `yaml:"dir"`
	Env            []string `yaml:"env"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type OpenAIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxRetries     int     `yaml:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type CycleConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// MarketConfig controls the market data fed into the prompt. Disabled means
// the engine gets only the invocation header and account section.
type MarketConfig struct {
	Enabled    bool     `yaml:"enabled"`
	BaseURL    string   `yaml:"base_url"`
	QuoteAsset string   `yaml:"quote_asset"`
	Symbols    []string `yaml:"symbols"`
}

type PromptConfig struct {
	File     string `yaml:"file"`
	Template string `yaml:"template"`
}

// StoreConfig enables SQLite persistence when Path is set.
type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}
