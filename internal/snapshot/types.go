package snapshot

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the typed result of one decision-engine invocation. Either the
// whole snapshot was recovered from structured output, or it is a degraded
// reasoning-only snapshot (Degraded=true); fields are never silently half
// populated from broken input without the flag being set.
type Snapshot struct {
	Reasoning        string            `json:"reasoning"`
	Decisions        []Decision        `json:"decisions"`
	PortfolioSummary map[string]string `json:"portfolio_summary"`
	Positions        []Position        `json:"portfolio_positions"`
	History          []HistoryPoint    `json:"history"`
	TradeLog         []TradeRecord     `json:"trade_history"`

	// Degraded marks an opaque-text fallback: the engine produced output we
	// could not recognize, so everything landed in Reasoning.
	Degraded bool `json:"degraded,omitempty"`
	// Strategy names the extraction strategy that produced this snapshot.
	Strategy string `json:"strategy,omitempty"`
	// Warnings carries soft shape-validation findings for operator display.
	Warnings []string `json:"warnings,omitempty"`
}

// Decision is one per-symbol instruction from the engine. Action is kept as an
// open string because the engine vocabulary has grown over time (buy/sell/hold
// today, close and friends in newer variants).
type Decision struct {
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
	Quantity   string `json:"quantity"`
	ExitPlan   string `json:"exit_plan,omitempty"`
}

// Position mirrors the engine's detailed position rows.
type Position struct {
	Side          string `json:"side"`
	Coin          string `json:"coin"`
	Leverage      string `json:"leverage"`
	Notional      string `json:"notional"`
	UnrealizedPnl string `json:"unreal_pnl"`
	ExitPlan      string `json:"exit_plan,omitempty"`
}

// HistoryPoint is one portfolio-value sample.
type HistoryPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// TradeRecord is one archived decision round as reported by the engine.
type TradeRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	Decisions      []Decision      `json:"decisions"`
	Reasoning      string          `json:"reasoning"`
}

// ParseFailure is a hard extraction failure. The only reason emitted today is
// empty output; everything else degrades instead of failing.
type ParseFailure struct {
	Reason string
}

func (e *ParseFailure) Error() string {
	return "snapshot parse failed: " + e.Reason
}

// ErrEmptyOutput is returned when the raw engine output is empty or
// whitespace-only. Empty output usually means the engine died before printing
// anything, which is worth treating differently from printable garbage.
var ErrEmptyOutput = &ParseFailure{Reason: "empty output"}
