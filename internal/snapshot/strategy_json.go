package snapshot

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// extractStructuredJSON handles the current engine format: a single JSON
// object on stdout, possibly preceded by diagnostic lines. Everything from
// the first '{' to end-of-text must parse as one object; recognized keys map
// to snapshot fields and missing keys default to their empty values. A
// malformed sub-field degrades to empty rather than sinking the whole parse.
func extractStructuredJSON(raw string) (*Snapshot, bool) {
	idx := strings.Index(raw, "{")
	if idx == -1 {
		return nil, false
	}
	payload := strings.TrimSpace(raw[idx:])
	if !gjson.Valid(payload) {
		return nil, false
	}
	parsed := gjson.Parse(payload)
	if !parsed.IsObject() {
		return nil, false
	}
	snap := &Snapshot{
		Reasoning:        parsed.Get("reasoning").String(),
		Decisions:        decodeDecisions(parsed.Get("decisions")),
		PortfolioSummary: decodeSummary(parsed.Get("portfolio_summary")),
		Positions:        decodePositions(parsed.Get("portfolio_positions")),
		History:          decodeHistory(parsed.Get("history")),
		TradeLog:         decodeTrades(parsed.Get("trade_history")),
		Warnings:         shapeWarnings(payload),
	}
	return snap, true
}

func decodeDecisions(res gjson.Result) []Decision {
	if !res.IsArray() {
		return nil
	}
	var out []Decision
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		out = append(out, Decision{
			Symbol:     item.Get("symbol").String(),
			Action:     item.Get("action").String(),
			Confidence: item.Get("confidence").String(),
			Quantity:   item.Get("quantity").String(),
			ExitPlan:   item.Get("exit_plan").String(),
		})
		return true
	})
	return out
}

func decodeSummary(res gjson.Result) map[string]string {
	if !res.IsObject() {
		return nil
	}
	out := make(map[string]string)
	res.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.String()
		return true
	})
	return out
}

func decodePositions(res gjson.Result) []Position {
	if !res.IsArray() {
		return nil
	}
	var out []Position
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		out = append(out, Position{
			Side:          item.Get("side").String(),
			Coin:          item.Get("coin").String(),
			Leverage:      item.Get("leverage").String(),
			Notional:      item.Get("notional").String(),
			UnrealizedPnl: item.Get("unreal_pnl").String(),
			ExitPlan:      item.Get("exit_plan").String(),
		})
		return true
	})
	return out
}

func decodeHistory(res gjson.Result) []HistoryPoint {
	if !res.IsArray() {
		return nil
	}
	var out []HistoryPoint
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		ts, ok := parseTimestamp(item.Get("timestamp").String())
		if !ok {
			return true
		}
		val, err := decimal.NewFromString(item.Get("value").String())
		if err != nil {
			return true
		}
		out = append(out, HistoryPoint{Timestamp: ts, Value: val})
		return true
	})
	return normalizeHistory(out)
}

func decodeTrades(res gjson.Result) []TradeRecord {
	if !res.IsArray() {
		return nil
	}
	var out []TradeRecord
	res.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		ts, ok := parseTimestamp(item.Get("timestamp").String())
		if !ok {
			return true
		}
		rec := TradeRecord{
			Timestamp: ts,
			Decisions: decodeDecisions(item.Get("decisions")),
			Reasoning: item.Get("reasoning").String(),
		}
		if val, err := decimal.NewFromString(item.Get("portfolio_value").String()); err == nil {
			rec.PortfolioValue = val
		}
		out = append(out, rec)
		return true
	})
	return out
}

// parseTimestamp accepts the ISO-8601 variants the engine has produced over
// time (with and without fractional seconds or explicit offset).
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// normalizeHistory sorts ascending by timestamp and resolves duplicate
// timestamps keep-latest (last report wins).
func normalizeHistory(points []HistoryPoint) []HistoryPoint {
	if len(points) < 2 {
		return points
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(p.Timestamp) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
