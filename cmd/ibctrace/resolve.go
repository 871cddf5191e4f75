package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ibctrace/internal/config"
)

func runResolve(cmd *cobra.Command, args []string) error {
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
	search, _, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observed := strings.TrimSpace(args[0])
	res, err := search.Resolve(ctx, observed, origin, known)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", observed, err)
	}
	logger.Debug("search finished",
		zap.Int64("steps", res.Stats.Steps),
		zap.Int64("comparisons", res.Stats.Comparisons),
		zap.Int64("pruned", res.Stats.Pruned),
	)
	return writeResolution(cmd.OutOrStdout(), cfg.Format, res)
}
