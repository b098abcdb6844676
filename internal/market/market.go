package market

import "context"

// Candle is one closed kline.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Quote is a spot price sample.
type Quote struct {
	Symbol string
	Price  float64
}

// Source provides the market context fed to the decision engine.
type Source interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	FetchPrices(ctx context.Context, symbols []string) ([]Quote, error)
}
