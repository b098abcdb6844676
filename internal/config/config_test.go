package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  file: logs/tradewatch.log
engine:
  kind: openai-chat
  openai:
    base_url: https://gw.example.com/v1
    api_key: sk-test
    model: gpt-test
cycle:
  interval_minutes: 10
market:
  enabled: true
  symbols: [BTC, ETH]
store:
  path: data/tradewatch.db
server:
  enabled: true
  listen: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, EngineKindOpenAI, cfg.Engine.Kind)
	assert.Equal(t, "gpt-test", cfg.Engine.OpenAI.Model)
	assert.Equal(t, 10*time.Minute, cfg.Interval())
	assert.True(t, cfg.Market.Enabled)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Market.Symbols)
	assert.Equal(t, ":9090", cfg.Server.Listen)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  command:
    path: ./engine.sh
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, EngineKindCommand, cfg.Engine.Kind)
	assert.Equal(t, 180, cfg.Engine.Command.TimeoutSeconds)
	assert.Equal(t, 4*time.Minute, cfg.Interval())
	assert.Equal(t, "USDT", cfg.Market.QuoteAsset)
	assert.Equal(t, "default", cfg.Prompt.Template)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoad_WeakTyping(t *testing.T) {
	// Quoted numbers still parse.
	path := writeConfig(t, `
engine:
  command:
    path: ./engine.sh
    timeout_seconds: "60"
cycle:
  interval_minutes: "7"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Engine.Command.TimeoutSeconds)
	assert.Equal(t, 7*time.Minute, cfg.Interval())
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  kind: command\n"))
	assert.ErrorContains(t, err, "engine.command.path")

	_, err = Load(writeConfig(t, "engine:\n  kind: openai-chat\n"))
	assert.ErrorContains(t, err, "engine.openai.model")

	_, err = Load(writeConfig(t, "engine:\n  kind: teapot\n"))
	assert.ErrorContains(t, err, "unknown engine.kind")

	_, err = Load(writeConfig(t, "engine:\n  command:\n    path: x\nlog:\n  level: loud\n"))
	assert.ErrorContains(t, err, "unknown log.level")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}
