package livehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tradewatch/internal/chart"
	"tradewatch/internal/cycle"
	"tradewatch/internal/history"
	"tradewatch/internal/snapshot"

	"github.com/gin-gonic/gin"
)

// CycleController is the runner surface the API needs.
type CycleController interface {
	Running() bool
	Cycles() uint64
	LastRun() time.Time
	LastError() error
	Interval() time.Duration
	CurrentSnapshot() *snapshot.Snapshot
	Trigger() error
}

// HistoryReader provides windows over the accumulated value series.
type HistoryReader interface {
	Window(w history.Window) []snapshot.HistoryPoint
	Len() int
}

// TradeLister reads the persisted trade log. Nil when persistence is off.
type TradeLister interface {
	ListTrades(ctx context.Context, limit int) ([]snapshot.TradeRecord, error)
}

type Router struct {
	runner  CycleController
	history HistoryReader
	trades  TradeLister
}

func NewRouter(runner CycleController, hist HistoryReader, trades TradeLister) *Router {
	return &Router{runner: runner, history: hist, trades: trades}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/history", r.handleHistory)
	group.GET("/trades", r.handleTrades)
	group.GET("/chart", r.handleChart)
	group.GET("/chart.png", r.handleChartPNG)
	group.POST("/trigger", r.handleTrigger)
}

func (r *Router) handleStatus(c *gin.Context) {
	resp := gin.H{
		"running":          r.runner.Running(),
		"cycles":           r.runner.Cycles(),
		"interval_seconds": int(r.runner.Interval().Seconds()),
	}
	if last := r.runner.LastRun(); !last.IsZero() {
		resp["last_run"] = last.UTC()
	}
	if err := r.runner.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}
	if r.history != nil {
		resp["series_points"] = r.history.Len()
	}
	if snap := r.runner.CurrentSnapshot(); snap != nil {
		resp["snapshot"] = gin.H{
			"strategy":          snap.Strategy,
			"degraded":          snap.Degraded,
			"reasoning":         snap.Reasoning,
			"decisions":         snap.Decisions,
			"portfolio_summary": snap.PortfolioSummary,
			"positions":         snap.Positions,
			"warnings":          snap.Warnings,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history not enabled"})
		return
	}
	series := chart.BuildSeries(r.history.Window(windowFromQuery(c)))
	c.JSON(http.StatusOK, gin.H{
		"points": series.Points,
		"trends": series.Trends,
	})
}

func (r *Router) handleTrades(c *gin.Context) {
	if r.trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := r.trades.ListTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (r *Router) handleChart(c *gin.Context) {
	series, hours, ok := r.chartSeries(c)
	if !ok {
		return
	}
	html, err := chart.BuildEquityHTML(series, chart.WindowTitle(hours, time.Now()))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleChartPNG(c *gin.Context) {
	series, hours, ok := r.chartSeries(c)
	if !ok {
		return
	}
	png, err := chart.RenderPNG(c.Request.Context(), series, chart.WindowTitle(hours, time.Now()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (r *Router) handleTrigger(c *gin.Context) {
	if err := r.runner.Trigger(); err != nil {
		if errors.Is(err, cycle.ErrCycleRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

func (r *Router) chartSeries(c *gin.Context) (chart.Series, int, bool) {
	if r.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history not enabled"})
		return chart.Series{}, 0, false
	}
	hours := hoursFromQuery(c)
	window := history.All()
	if hours > 0 {
		window = history.LastNHours(hours)
	}
	return chart.BuildSeries(r.history.Window(window)), hours, true
}

func windowFromQuery(c *gin.Context) history.Window {
	if hours := hoursFromQuery(c); hours > 0 {
		return history.LastNHours(hours)
	}
	return history.All()
}

func hoursFromQuery(c *gin.Context) int {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "0"))
	if err != nil || hours < 0 {
		return 0
	}
	return hours
}
