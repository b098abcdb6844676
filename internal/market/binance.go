package market

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
)

const maxKlineLimit = 1000

// BinanceSource implements Source against the Binance spot REST API. Only
// public endpoints are used, so no credentials are required.
type BinanceSource struct {
	client *binance.Client
	quote  string
}

type BinanceOptions struct {
	BaseURL     string
	QuoteAsset  string // pairs are formed as SYMBOL+quote, default USDT
	HTTPTimeout time.Duration
}

func NewBinanceSource(opts BinanceOptions) *BinanceSource {
	client := binance.NewClient("", "")
	if url := strings.TrimSpace(opts.BaseURL); url != "" {
		client.BaseURL = url
	}
	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client.HTTPClient = &http.Client{Timeout: timeout}
	quote := strings.ToUpper(strings.TrimSpace(opts.QuoteAsset))
	if quote == "" {
		quote = "USDT"
	}
	return &BinanceSource{client: client, quote: quote}
}

func (s *BinanceSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	pair, err := s.pair(symbol)
	if err != nil {
		return nil, err
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(pair).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *BinanceSource) FetchPrices(ctx context.Context, symbols []string) ([]Quote, error) {
	want := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		pair, err := s.pair(sym)
		if err != nil {
			continue
		}
		want[pair] = strings.ToUpper(strings.TrimSpace(sym))
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("no valid symbols")
	}
	prices, err := s.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Quote, 0, len(want))
	for _, p := range prices {
		if p == nil {
			continue
		}
		sym, ok := want[p.Symbol]
		if !ok {
			continue
		}
		out = append(out, Quote{Symbol: sym, Price: parseFloat(p.Price)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no prices returned for requested symbols")
	}
	return out, nil
}

// pair forms the exchange pair from a bare asset, e.g. BTC -> BTCUSDT.
// Symbols already carrying the quote suffix pass through unchanged.
func (s *BinanceSource) pair(symbol string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return "", fmt.Errorf("symbol is required")
	}
	sym = strings.ReplaceAll(sym, "/", "")
	if strings.HasSuffix(sym, s.quote) {
		return sym, nil
	}
	return sym + s.quote, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
