package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tradewatch/internal/market"
	"tradewatch/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Candle), args.Error(1)
}

func (m *MockSource) FetchPrices(ctx context.Context, symbols []string) ([]market.Quote, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]market.Quote), args.Error(1)
}

func candlesRising(n int, start float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Close: start + float64(i)}
	}
	return out
}

func TestBuilder_Build(t *testing.T) {
	src := new(MockSource)
	src.On("FetchKlines", mock.Anything, "BTC", "3m", 100).Return(candlesRising(40, 10000), nil)
	src.On("FetchKlines", mock.Anything, "BTC", "4h", 100).Return(candlesRising(40, 9000), nil)

	b := NewBuilder(BuilderOptions{Source: src, Symbols: []string{"BTC"}})
	b.Account = func() *snapshot.Snapshot {
		return &snapshot.Snapshot{
			PortfolioSummary: map[string]string{
				"Available Cash":        "4200.00",
				"Current Account Value": "10500.25",
			},
			Positions: []snapshot.Position{
				{Side: "long", Coin: "BTC", Leverage: "2", Notional: "6300", UnrealizedPnl: "120.50"},
			},
		}
	}

	p, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.User, "You have been invoked 1 times.")
	assert.Contains(t, p.User, "--- MARKET DATA ---")
	assert.Contains(t, p.User, "BTC:")
	assert.Contains(t, p.User, "Current Price: 10039.00")
	assert.Contains(t, p.User, "Intraday RSI(7)")
	assert.Contains(t, p.User, "Long-Term EMA(20)")
	assert.Contains(t, p.User, "--- ACCOUNT & PERFORMANCE ---")
	assert.Contains(t, p.User, "Available Cash: 4200.00")
	assert.Contains(t, p.User, "unreal_pnl=120.50")

	// Invocation counter advances per build.
	p, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.User, "invoked 2 times")
}

func TestBuilder_SkipsFailedSymbols(t *testing.T) {
	src := new(MockSource)
	src.On("FetchKlines", mock.Anything, "BTC", "3m", 100).Return(nil, errors.New("rate limited"))
	src.On("FetchKlines", mock.Anything, "ETH", "3m", 100).Return(candlesRising(40, 2000), nil)
	src.On("FetchKlines", mock.Anything, "ETH", "4h", 100).Return(candlesRising(40, 1900), nil)

	b := NewBuilder(BuilderOptions{Source: src, Symbols: []string{"BTC", "ETH"}})
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, p.User, "BTC:")
	assert.Contains(t, p.User, "ETH:")
}

func TestBuilder_AllSymbolsFailed(t *testing.T) {
	src := new(MockSource)
	src.On("FetchKlines", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	b := NewBuilder(BuilderOptions{Source: src, Symbols: []string{"BTC"}})
	_, err := b.Build(context.Background())
	assert.Error(t, err)
}

func TestBuilder_NoAccountData(t *testing.T) {
	src := new(MockSource)
	src.On("FetchKlines", mock.Anything, "BTC", "3m", 100).Return(candlesRising(40, 10000), nil)
	src.On("FetchKlines", mock.Anything, "BTC", "4h", 100).Return(candlesRising(40, 9000), nil)

	b := NewBuilder(BuilderOptions{Source: src, Symbols: []string{"BTC"}})
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.User, "No account data yet.")
}

func TestBuilder_NoSourceBuildsHeaderOnly(t *testing.T) {
	b := NewBuilder(BuilderOptions{})
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.User, "It has been")
	assert.Contains(t, p.User, "No account data yet.")
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	content := `prompts:
  default:
    description: baseline prompt
    system: You are a disciplined portfolio manager.
    header: Review the market data below and decide.
  aggressive:
    id: aggressive
    version: 2
    system: Take risks.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := NewRegistry(path)
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Len(t, snap.Templates, 2)
	assert.EqualValues(t, 1, snap.Version)

	tpl, ok := reg.Template("default")
	require.True(t, ok)
	assert.Equal(t, "baseline prompt", tpl.Description)
	assert.Equal(t, 1, tpl.Version)

	tpl, ok = reg.Template("aggressive")
	require.True(t, ok)
	assert.Equal(t, 2, tpl.Version)

	_, ok = reg.Template("missing")
	assert.False(t, ok)
}

func TestRegistry_RequiresPath(t *testing.T) {
	_, err := NewRegistry("  ")
	assert.Error(t, err)
}

func TestBuilder_UsesRegistryTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	content := `prompts:
  default:
    system: You are a disciplined portfolio manager.
    header: Custom header line.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	b := NewBuilder(BuilderOptions{Registry: reg})
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You are a disciplined portfolio manager.", p.System)
	assert.Contains(t, p.User, "Custom header line.")
}
