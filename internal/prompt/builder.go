package prompt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"tradewatch/internal/engine"
	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/snapshot"

	talib "github.com/markcheno/go-talib"
)

var defaultSymbols = []string{"BTC", "ETH", "SOL", "BNB", "XRP", "DOGE"}

const (
	intradayInterval = "3m"
	longTermInterval = "4h"
	klineLimit       = 100
	defaultTemplate  = "default"
)

// indicatorSet carries the per-symbol numbers rendered into the prompt.
type indicatorSet struct {
	Price        float64
	EMA20        float64
	MACDHist     float64
	RSI7         float64
	RSI14        float64
	LongTermEMA  float64
	longTermOK   bool
	intradayBars int
}

// Builder assembles the per-cycle user prompt: an invocation header, one
// indicator block per symbol, and the account section from the latest
// snapshot. Symbols whose market data cannot be fetched are skipped for that
// cycle rather than failing the build.
type Builder struct {
	source   market.Source
	registry *Registry
	template string
	symbols  []string

	// Account returns the latest snapshot for the account section. Set after
	// construction, once the cycle runner exists.
	Account func() *snapshot.Snapshot

	startedAt   time.Time
	invocations atomic.Int64
}

type BuilderOptions struct {
	Source   market.Source
	Registry *Registry
	Template string
	Symbols  []string
}

func NewBuilder(opts BuilderOptions) *Builder {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = defaultSymbols
	}
	tpl := strings.TrimSpace(opts.Template)
	if tpl == "" {
		tpl = defaultTemplate
	}
	return &Builder{
		source:    opts.Source,
		registry:  opts.Registry,
		template:  tpl,
		symbols:   symbols,
		startedAt: time.Now(),
	}
}

func (b *Builder) Build(ctx context.Context) (engine.Prompt, error) {
	count := b.invocations.Add(1)
	minutes := int(time.Since(b.startedAt).Minutes())

	tpl := b.activeTemplate()

	var user strings.Builder
	fmt.Fprintf(&user, "It has been %d minutes since you started. You have been invoked %d times.\n", minutes, count)
	if header := strings.TrimSpace(tpl.Header); header != "" {
		user.WriteString(header + "\n")
	} else {
		user.WriteString("Analyze the provided market data and account status to make trading decisions.\n")
	}
	user.WriteString("\n--- MARKET DATA ---\n")

	rendered := 0
	for _, symbol := range b.symbols {
		set, err := b.fetchIndicators(ctx, symbol)
		if err != nil {
			logger.Warnf("market data for %s unavailable: %v", symbol, err)
			continue
		}
		writeSymbolBlock(&user, symbol, set)
		rendered++
	}
	if rendered == 0 && b.source != nil {
		return engine.Prompt{}, fmt.Errorf("no market data available for any symbol")
	}

	user.WriteString("--- ACCOUNT & PERFORMANCE ---\n")
	writeAccountSection(&user, b.lastSnapshot())

	return engine.Prompt{System: tpl.System, User: user.String()}, nil
}

func (b *Builder) activeTemplate() Template {
	if b.registry != nil {
		if tpl, ok := b.registry.Template(b.template); ok {
			return tpl
		}
	}
	return Template{ID: defaultTemplate}
}

func (b *Builder) lastSnapshot() *snapshot.Snapshot {
	if b.Account == nil {
		return nil
	}
	return b.Account()
}

func (b *Builder) fetchIndicators(ctx context.Context, symbol string) (indicatorSet, error) {
	if b.source == nil {
		return indicatorSet{}, fmt.Errorf("no market source configured")
	}
	intraday, err := b.source.FetchKlines(ctx, symbol, intradayInterval, klineLimit)
	if err != nil {
		return indicatorSet{}, err
	}
	closes := closePrices(intraday)
	if len(closes) < 27 {
		return indicatorSet{}, fmt.Errorf("not enough intraday bars (%d)", len(closes))
	}

	set := indicatorSet{
		Price:        closes[len(closes)-1],
		EMA20:        lastValue(talib.Ema(closes, 20)),
		RSI7:         lastValue(talib.Rsi(closes, 7)),
		RSI14:        lastValue(talib.Rsi(closes, 14)),
		intradayBars: len(closes),
	}
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	set.MACDHist = lastValue(hist)

	longTerm, err := b.source.FetchKlines(ctx, symbol, longTermInterval, klineLimit)
	if err == nil {
		if ltCloses := closePrices(longTerm); len(ltCloses) >= 20 {
			set.LongTermEMA = lastValue(talib.Ema(ltCloses, 20))
			set.longTermOK = true
		}
	}
	return set, nil
}

func writeSymbolBlock(w *strings.Builder, symbol string, set indicatorSet) {
	fmt.Fprintf(w, "%s:\n", strings.ToUpper(symbol))
	fmt.Fprintf(w, "  - Current Price: %.2f\n", set.Price)
	fmt.Fprintf(w, "  - Intraday EMA(20): %.2f\n", set.EMA20)
	fmt.Fprintf(w, "  - Intraday MACD Hist: %.4f\n", set.MACDHist)
	fmt.Fprintf(w, "  - Intraday RSI(7): %.2f\n", set.RSI7)
	fmt.Fprintf(w, "  - Intraday RSI(14): %.2f\n", set.RSI14)
	if set.longTermOK {
		fmt.Fprintf(w, "  - Long-Term EMA(20): %.2f\n", set.LongTermEMA)
	}
	w.WriteString("\n")
}

func writeAccountSection(w *strings.Builder, snap *snapshot.Snapshot) {
	if snap == nil || len(snap.PortfolioSummary) == 0 {
		w.WriteString("No account data yet.\n")
		return
	}
	keys := make([]string, 0, len(snap.PortfolioSummary))
	for k := range snap.PortfolioSummary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, snap.PortfolioSummary[k])
	}
	if len(snap.Positions) > 0 {
		w.WriteString("Open positions:\n")
		for _, pos := range snap.Positions {
			fmt.Fprintf(w, "  - %s %s leverage=%s notional=%s unreal_pnl=%s\n",
				pos.Side, pos.Coin, pos.Leverage, pos.Notional, pos.UnrealizedPnl)
		}
	}
}

func closePrices(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
