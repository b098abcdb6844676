package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorUp            = "#34d399"
	colorDown          = "#f87171"
	colorFlat          = "#9ca3af"

	chartWidthPx  = 1400
	chartHeightPx = 560
)

// BuildEquityHTML renders the portfolio-value series into a standalone HTML
// page. The base line carries every point; three overlay series re-draw each
// segment in its trend color, nil-padded outside their own spans.
func BuildEquityHTML(s Series, title string) ([]byte, error) {
	if len(s.Points) == 0 {
		return nil, fmt.Errorf("no points to render")
	}
	if title == "" {
		title = "Portfolio Value"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      title,
			Left:       "left",
			Top:        "10",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)

	xAxis := make([]string, len(s.Points))
	base := make([]opts.LineData, len(s.Points))
	for i, p := range s.Points {
		xAxis[i] = p.Timestamp.UTC().Format("01-02 15:04")
		base[i] = opts.LineData{Value: p.Value}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Value", base,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorTextSecondary, Width: 1, Opacity: opts.Float(0.4)}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	for _, overlay := range []struct {
		name  string
		trend Trend
		color string
	}{
		{"Up", TrendUp, colorUp},
		{"Down", TrendDown, colorDown},
		{"Flat", TrendFlat, colorFlat},
	} {
		line.AddSeries(overlay.name, trendOverlay(s, overlay.trend),
			charts.WithLineStyleOpts(opts.LineStyle{Color: overlay.color, Width: 3}),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// trendOverlay keeps both endpoints of every segment carrying the given
// trend and nils everything else, so echarts draws only those spans.
func trendOverlay(s Series, trend Trend) []opts.LineData {
	data := make([]opts.LineData, len(s.Points))
	for i := range data {
		data[i] = opts.LineData{Value: nil}
	}
	for i, t := range s.Trends {
		if t != trend {
			continue
		}
		data[i] = opts.LineData{Value: s.Points[i].Value}
		data[i+1] = opts.LineData{Value: s.Points[i+1].Value}
	}
	return data
}

// WindowTitle names a chart for the span it covers.
func WindowTitle(hours int, asOf time.Time) string {
	if hours <= 0 {
		return fmt.Sprintf("Portfolio Value (all, as of %s)", asOf.UTC().Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("Portfolio Value (last %dh, as of %s)", hours, asOf.UTC().Format("2006-01-02 15:04"))
}
