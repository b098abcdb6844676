package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/cycle"
	"tradewatch/internal/engine"
	"tradewatch/internal/history"
	"tradewatch/internal/logger"
	"tradewatch/internal/market"
	"tradewatch/internal/prompt"
	"tradewatch/internal/store/gormstore"
	livehttp "tradewatch/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App owns the wired components: the cycle runner, optional persistence and
// the optional HTTP server.
type App struct {
	cfg    *config.Config
	runner *cycle.Runner
	acc    *history.Accumulator
	store  *gormstore.Store
	server *livehttp.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{cfg: cfg, acc: history.NewAccumulator()}

	eng, err := buildEngine(cfg)
	if err != nil {
		return nil, err
	}

	var sinks []cycle.Sink
	if cfg.Store.Path != "" {
		store, err := gormstore.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store failed: %w", err)
		}
		a.store = store
		sinks = append(sinks, store)
		if points, err := store.LoadSeries(context.Background()); err != nil {
			logger.Warnf("seeding series from store failed: %v", err)
		} else if len(points) > 0 {
			a.acc.Seed(points)
			logger.Infof("seeded %d series points from store", len(points))
		}
	}

	builder, err := buildPrompts(cfg)
	if err != nil {
		return nil, err
	}

	a.runner = cycle.NewRunner(cycle.Options{
		Engine:   eng,
		Prompts:  promptBuilderOrNil(builder),
		History:  a.acc,
		Sinks:    sinks,
		Interval: cfg.Interval(),
	})
	if builder != nil {
		builder.Account = a.runner.CurrentSnapshot
	}

	if cfg.Server.Enabled {
		var trades livehttp.TradeLister
		if a.store != nil {
			trades = a.store
		}
		server, err := livehttp.NewServer(livehttp.ServerConfig{
			Addr:    cfg.Server.Listen,
			Runner:  a.runner,
			History: a.acc,
			Trades:  trades,
		})
		if err != nil {
			return nil, err
		}
		a.server = server
	}
	return a, nil
}

// Run blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.runner.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if a.server != nil {
		logger.Infof("live http server listening on %s", a.server.Addr())
		g.Go(func() error {
			return a.server.Start(gctx)
		})
	}
	err := g.Wait()
	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			logger.Errorf("closing store failed: %v", cerr)
		}
	}
	return err
}

// Runner exposes the cycle runner, mainly for tests.
func (a *App) Runner() *cycle.Runner { return a.runner }

// History exposes the value-series accumulator.
func (a *App) History() *history.Accumulator { return a.acc }

func buildEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case config.EngineKindCommand:
		return engine.NewCommandEngine(engine.CommandOptions{
			Path:    cfg.Engine.Command.Path,
			Args:    cfg.Engine.Command.Args,
			Dir:     cfg.Engine.Command.Dir,
			Env:     cfg.Engine.Command.Env,
			Timeout: time.Duration(cfg.Engine.Command.TimeoutSeconds) * time.Second,
		}), nil
	case config.EngineKindOpenAI:
		return engine.NewOpenAIEngine(engine.OpenAIOptions{
			BaseURL:     cfg.Engine.OpenAI.BaseURL,
			APIKey:      cfg.Engine.OpenAI.APIKey,
			Model:       cfg.Engine.OpenAI.Model,
			Temperature: cfg.Engine.OpenAI.Temperature,
			MaxRetries:  cfg.Engine.OpenAI.MaxRetries,
			Timeout:     time.Duration(cfg.Engine.OpenAI.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

// buildPrompts returns nil when neither market data nor a prompt file is
// configured; the engine then runs with an empty prompt.
func buildPrompts(cfg *config.Config) (*prompt.Builder, error) {
	var source market.Source
	if cfg.Market.Enabled {
		source = market.NewBinanceSource(market.BinanceOptions{
			BaseURL:    cfg.Market.BaseURL,
			QuoteAsset: cfg.Market.QuoteAsset,
		})
	}
	var registry *prompt.Registry
	if cfg.Prompt.File != "" {
		reg, err := prompt.NewRegistry(cfg.Prompt.File)
		if err != nil {
			return nil, fmt.Errorf("prompt registry failed: %w", err)
		}
		registry = reg
	}
	if source == nil && registry == nil {
		return nil, nil
	}
	return prompt.NewBuilder(prompt.BuilderOptions{
		Source:   source,
		Registry: registry,
		Template: cfg.Prompt.Template,
		Symbols:  cfg.Market.Symbols,
	}), nil
}

// promptBuilderOrNil keeps a typed-nil *prompt.Builder from sneaking into
// the PromptBuilder interface.
func promptBuilderOrNil(b *prompt.Builder) cycle.PromptBuilder {
	if b == nil {
		return nil
	}
	return b
}

var _ cycle.Sink = (*gormstore.Store)(nil)
var _ livehttp.CycleController = (*cycle.Runner)(nil)
var _ livehttp.HistoryReader = (*history.Accumulator)(nil)
var _ cycle.PromptBuilder = (*prompt.Builder)(nil)
