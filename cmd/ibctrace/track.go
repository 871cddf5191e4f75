package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ibctrace/internal/aggregate"
	"ibctrace/internal/config"
	"ibctrace/internal/denom"
	"ibctrace/internal/lcd"
	"ibctrace/internal/model"
	"ibctrace/internal/observability"
	"ibctrace/internal/resolver"
	"ibctrace/internal/storage"
	"ibctrace/internal/storage/badgerstore"
	"ibctrace/internal/storage/postgres"
	"ibctrace/internal/topology"
)

func runTrack(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	origin, err := cfg.Origin()
	if err != nil {
		return err
	}
	known, err := cfg.KnownDenoms()
	if err != nil {
		return err
	}
	accounts := cfg.Accounts()
	if len(accounts) == 0 {
		return fmt.Errorf("no addresses configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("ibctrace", reg)
	if cfg.MetricsAddr != "" {
		observability.Serve(ctx, cfg.MetricsAddr, reg, logger)
	}

	search, topo, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}
	codec := denom.NewCodec(topo)
	cache, err := resolver.NewCache(search, cfg.CacheSize)
	if err != nil {
		return err
	}
	if cfg.ResolutionDB != "" {
		db, err := badgerstore.Open(cfg.ResolutionDB, logger.Named("badger"))
		if err != nil {
			return err
		}
		defer db.Close()
		scope := search.Scope(topo.Fingerprint())
		cache.WithBacking(db, scope, logger.Named("cache"))
		if n, err := db.Count(scope); err == nil {
			logger.Info("resolution db opened", zap.String("path", cfg.ResolutionDB), zap.String("scope", scope), zap.Int("entries", n))
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	clients := make(map[model.ChainID]*lcd.Client)
	for chain, endpoint := range cfg.Endpoints() {
		clients[chain] = lcd.NewClient(endpoint, httpClient)
	}

	var sinks []aggregate.Sink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, codec)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, store)
	}

	runner := aggregate.NewRunner(aggregate.RunConfig{
		Origin:       origin,
		Known:        known,
		Accounts:     accounts,
		Concurrency:  cfg.Concurrency,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, lcd.NewSource(clients), aggregate.NewAggregator(cache, logger.Named("aggregate"), metrics), sinks, logger, metrics)

	logger.Info("track start",
		zap.String("origin", string(origin)),
		zap.Int("accounts", len(accounts)),
		zap.Int("denoms", len(known)),
		zap.Int("max_hops", cfg.MaxHops),
		zap.String("resolve_mode", cfg.ResolveMode),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	result, runErr := runner.Run(ctx)
	if runErr != nil && len(result.Chains) == 0 {
		return runErr
	}
	logger.Debug("resolution cache", zap.Int("entries", cache.Len()))
	if err := writeResult(cmd.OutOrStdout(), cfg.Format, result, known); err != nil {
		return err
	}
	return runErr
}

// buildResolver wires topology, codec and search from cfg.
func buildResolver(cfg config.Config, logger *zap.Logger) (*resolver.Resolver, *topology.Topology, error) {
	topo, err := cfg.Topology()
	if err != nil {
		return nil, nil, err
	}
	rc, err := cfg.ResolverConfig()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("topology loaded",
		zap.Int("chains", topo.Len()),
		zap.String("orientation", cfg.ChannelOrientation),
		zap.String("fingerprint", topo.Fingerprint()),
	)
	return resolver.New(rc, topo, denom.NewCodec(topo), logger.Named("resolver")), topo, nil
}
