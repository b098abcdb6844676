package chart

import (
	"time"

	"tradewatch/internal/snapshot"
)

// Trend classifies one segment between two consecutive portfolio-value
// samples.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Point is one render-ready sample. Value is a float because that is what
// the chart axis needs; the exact decimal stays in the history series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is the derived render form of the portfolio history: the points
// plus one trend per segment between consecutive points. A series with fewer
// than two points has no segments.
type Series struct {
	Points []Point `json:"points"`
	Trends []Trend `json:"trends"`
}

// BuildSeries derives the render series from history points. The input is
// assumed already ordered, which the accumulator guarantees.
func BuildSeries(points []snapshot.HistoryPoint) Series {
	s := Series{Points: make([]Point, len(points))}
	for i, p := range points {
		val, _ := p.Value.Float64()
		s.Points[i] = Point{Timestamp: p.Timestamp, Value: val}
	}
	if len(points) < 2 {
		return s
	}
	s.Trends = make([]Trend, len(points)-1)
	for i := 1; i < len(points); i++ {
		switch points[i].Value.Cmp(points[i-1].Value) {
		case 1:
			s.Trends[i-1] = TrendUp
		case -1:
			s.Trends[i-1] = TrendDown
		default:
			s.Trends[i-1] = TrendFlat
		}
	}
	return s
}
