package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradewatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Engine.Kind = config.EngineKindCommand
	cfg.Engine.Command.Path = "sh"
	cfg.Engine.Command.Args = []string{"-c", `echo '{"reasoning": "ok", "history": [{"timestamp": "2026-08-30T12:00:00Z", "value": "10000"}]}'`}
	cfg.Engine.Command.TimeoutSeconds = 30
	cfg.Cycle.IntervalMinutes = 60
	return cfg
}

func TestApp_RunsOneCycle(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Store.Path = filepath.Join(t.TempDir(), "tradewatch.db")

	a, err := NewApp(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case res := <-a.Runner().Results():
		require.NoError(t, res.Err)
		assert.Equal(t, "json", res.Snapshot.Strategy)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first cycle")
	}
	cancel()
	require.NoError(t, <-done)

	// The cycle persisted the series; a fresh app seeds from it.
	b, err := NewApp(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, b.History().Len())
}

func TestApp_RequiresConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestApp_UnknownEngineKind(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Engine.Kind = "teapot"
	_, err := NewApp(cfg)
	assert.Error(t, err)
}
