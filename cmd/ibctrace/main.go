package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ibctrace",
		Short:        "Trace IBC denominations back to their origin chain",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	trackCmd := &cobra.Command{
		Use:   "track",
		Short: "Fetch balances on every configured chain and resolve their provenance",
		RunE:  runTrack,
	}

	addResolverFlags(trackCmd)
	trackCmd.Flags().StringSlice("track-chains", nil, "only query these chain ids (comma-separated)")
	trackCmd.Flags().Int("concurrency", 4, "parallel balance queries")
	trackCmd.Flags().Int("max-retries", 3, "maximum retry attempts per balance query")
	trackCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	trackCmd.Flags().Duration("http-timeout", 15*time.Second, "timeout of a single REST request")
	trackCmd.Flags().Int("cache-size", 4096, "resolved denoms kept in memory")
	trackCmd.Flags().String("resolution-db", "", "Badger directory that keeps resolutions across runs")
	trackCmd.Flags().String("out", "", "append balance records to this JSONL file")
	trackCmd.Flags().String("pg-dsn", "", "Postgres DSN for persisting runs")
	trackCmd.Flags().Bool("migrate", false, "create Postgres tables before saving")
	trackCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")

	root.AddCommand(trackCmd)

	resolveCmd := &cobra.Command{
		Use:   "resolve <ibc/HASH>",
		Short: "Resolve one hashed denomination to its hop sequence",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}

	addResolverFlags(resolveCmd)

	root.AddCommand(resolveCmd)

	encodeCmd := &cobra.Command{
		Use:   "encode <chain> [chain...]",
		Short: "Compute the hashed denomination of a hop sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEncode,
	}

	encodeCmd.Flags().String("denom", "", "base denom or configured logical name")
	encodeCmd.Flags().String("channel-orientation", "receiver", "channel table orientation (receiver, sender)")
	encodeCmd.Flags().String("format", "text", "output format (text, json)")

	root.AddCommand(encodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addResolverFlags(cmd *cobra.Command) {
	cmd.Flags().String("origin-chain", "", "chain where the tracked denoms were minted")
	cmd.Flags().String("channel-orientation", "receiver", "channel table orientation (receiver, sender)")
	cmd.Flags().Int("max-hops", 5, "longest hop sequence to search")
	cmd.Flags().Int64("step-budget", 0, "maximum search steps per denom, 0 means unlimited")
	cmd.Flags().Duration("resolve-timeout", 30*time.Second, "time limit per denom search, 0 means none")
	cmd.Flags().String("resolve-mode", "first", "ambiguity handling (first, all)")
	cmd.Flags().Int("workers", 4, "parallel denom candidates per search depth")
	cmd.Flags().String("format", "text", "output format (text, json)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
