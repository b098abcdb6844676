package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceSource_Pair(t *testing.T) {
	s := NewBinanceSource(BinanceOptions{})

	pair, err := s.pair("btc")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", pair)

	pair, err = s.pair("ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", pair)

	pair, err = s.pair("SOLUSDT")
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", pair)

	_, err = s.pair("  ")
	assert.Error(t, err)
}

func TestBinanceSource_PairCustomQuote(t *testing.T) {
	s := NewBinanceSource(BinanceOptions{QuoteAsset: "usdc"})
	pair, err := s.pair("BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDC", pair)
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 105.25, parseFloat(" 105.25 "))
	assert.Equal(t, 0.0, parseFloat("garbage"))
}
