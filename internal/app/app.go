// Package app assembles the order-processing pipeline from configuration:
// gateways, circuit breakers, store, risk engine, router, executor and the
// operational HTTP surface.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tradepipe/internal/config"
	"tradepipe/internal/executor"
	"tradepipe/internal/gateway"
	"tradepipe/internal/gateway/brokerauth"
	"tradepipe/internal/gateway/portfolio"
	"tradepipe/internal/gateway/sim"
	"tradepipe/internal/logger"
	"tradepipe/internal/pipeline"
	"tradepipe/internal/pkg/circuit"
	"tradepipe/internal/risk"
	"tradepipe/internal/router"
	"tradepipe/internal/scheduler"
	"tradepipe/internal/store/gormstore"
	"tradepipe/internal/transport/http/ops"
	"tradepipe/internal/validator"
)

type App struct {
	cfg      *config.Config
	cfgPath  string
	pipeline *pipeline.Pipeline
	engine   *risk.Engine
	opsSrv   *ops.Server
	resetJob *scheduler.DailyScheduler
}

// New builds the application from config without starting anything.
func New(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	loc, err := time.LoadLocation(cfg.Risk.CounterTimezone)
	if err != nil {
		return nil, fmt.Errorf("load counter timezone %q: %w", cfg.Risk.CounterTimezone, err)
	}

	portfolioClient, authClient, err := buildGateways(cfg)
	if err != nil {
		return nil, err
	}

	store, err := gormstore.New(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open order store: %w", err)
	}

	breakerCfg := circuit.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Window:           cfg.Breaker.Window(),
		Cooldown:         cfg.Breaker.Cooldown(),
	}
	registry := circuit.NewRegistry()
	portfolioBreaker := circuit.NewBreaker("portfolio", breakerCfg)
	routingBreaker := circuit.NewBreaker("broker-auth", breakerCfg)
	executionBreaker := circuit.NewBreaker("broker-exec", breakerCfg)
	registry.Register(portfolioBreaker)
	registry.Register(routingBreaker)
	registry.Register(executionBreaker)

	counter := risk.NewDailyCounter(loc)
	engine := risk.NewEngine(portfolioClient, portfolioBreaker, counter, risk.LimitsFromConfig(cfg.Risk))
	rt := router.New(cfg.Routing, authClient, routingBreaker)
	exec := executor.New(authClient, executionBreaker, cfg.Execution)
	val := validator.New(validator.NewStaticDirectory(defaultInstruments()), validator.AllowAll{})
	pipe := pipeline.New(val, engine, rt, exec, store)

	return &App{
		cfg:      cfg,
		cfgPath:  cfgPath,
		pipeline: pipe,
		engine:   engine,
		opsSrv:   ops.NewServer(cfg.App.OpsAddr, engine, registry, store),
		resetJob: scheduler.NewDailyScheduler("daily-counter-reset", loc),
	}, nil
}

// Pipeline exposes the assembled pipeline for embedding callers.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Run starts the ops server, the counter reset job and the config watcher,
// blocking until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.opsSrv.Start(ctx); err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.resetJob.Start(ctx, func() {
			pruned := a.engine.Counter().Prune()
			logger.Infof("daily counter rollover: pruned %d stale account slots", pruned)
		})
		return nil
	})

	if a.cfgPath != "" {
		group.Go(func() error {
			err := config.Watch(ctx, a.cfgPath, func(next *config.Config) {
				a.engine.UpdateLimits(risk.LimitsFromConfig(next.Risk))
				logger.SetLevel(next.App.LogLevel)
				logger.Infof("risk limits reloaded from %s", a.cfgPath)
			})
			if err != nil {
				logger.Warnf("config watcher stopped: %v", err)
			}
			return nil
		})
	}

	logger.Infof("tradepipe started (env=%s, gateway=%s)", a.cfg.App.Env, a.cfg.Gateway.Mode)
	return group.Wait()
}

func buildGateways(cfg *config.Config) (gateway.PortfolioClient, gateway.BrokerAuthClient, error) {
	switch cfg.Gateway.Mode {
	case "sim":
		pf := sim.NewPortfolio()
		primary := sim.NewBroker(cfg.Routing.PrimaryBroker)
		fallback := sim.NewBroker(cfg.Routing.FallbackBroker)
		return pf, sim.NewBrokerNet(primary, fallback), nil
	case "http", "":
		pf, err := portfolio.NewClient(cfg.Gateway.PortfolioURL, cfg.Gateway.Timeout())
		if err != nil {
			return nil, nil, fmt.Errorf("portfolio client: %w", err)
		}
		auth, err := brokerauth.NewClient(cfg.Gateway.BrokerAuthURL, cfg.Gateway.Timeout())
		if err != nil {
			return nil, nil, fmt.Errorf("broker auth client: %w", err)
		}
		return pf, auth, nil
	default:
		return nil, nil, fmt.Errorf("unknown gateway mode %q", cfg.Gateway.Mode)
	}
}
