package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ibctrace/internal/model"
	"ibctrace/internal/observability"
)

// BalanceSource fetches the balances an address holds on a chain.
type BalanceSource interface {
	Balances(ctx context.Context, chain model.ChainID, address string) (map[string]*big.Int, error)
}

// Sink persists the result of a run.
type Sink interface {
	Save(ctx context.Context, runID string, result model.ResolutionResult) error
}

// BalanceSourceError reports a chain whose balances could not be fetched.
type BalanceSourceError struct {
	Chain model.ChainID
	Err   error
}

func (e *BalanceSourceError) Error() string {
	return fmt.Sprintf("fetch balances on %s: %v", e.Chain, e.Err)
}

func (e *BalanceSourceError) Unwrap() error {
	return e.Err
}

// Account is an address to track on a chain.
type Account struct {
	Chain   model.ChainID
	Address string
}

// RunConfig holds runtime settings for a tracking run.
type RunConfig struct {
	Origin       model.ChainID
	Known        []model.KnownDenom
	Accounts     []Account
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner fetches balances for every account, aggregates them and writes the
// result to the configured sinks.
type Runner struct {
	cfg        RunConfig
	source     BalanceSource
	aggregator *Aggregator
	sinks      []Sink
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, source BalanceSource, aggregator *Aggregator, sinks []Sink, logger *zap.Logger, metrics *observability.Metrics) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		aggregator: aggregator,
		sinks:      sinks,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one tracking run. The result is complete even when some
// chains fail; the returned error only reports context cancellation or sink failures.
func (r *Runner) Run(ctx context.Context) (model.ResolutionResult, error) {
	if r.source == nil {
		return model.ResolutionResult{}, fmt.Errorf("balance source is nil")
	}
	if r.aggregator == nil {
		return model.ResolutionResult{}, fmt.Errorf("aggregator is nil")
	}
	if r.cfg.Origin == "" {
		return model.ResolutionResult{}, fmt.Errorf("origin chain is required")
	}

	snapshots, failures := r.fetchAll(ctx)
	if err := ctx.Err(); err != nil {
		return model.ResolutionResult{}, err
	}

	result := r.aggregator.Aggregate(ctx, snapshots, r.cfg.Origin, r.cfg.Known)
	for chain, err := range failures {
		result.Failures[chain] = err.Error()
		if _, ok := result.Chains[chain]; !ok {
			result.Chains[chain] = []model.BalanceRecord{}
		}
	}

	runID := uuid.NewString()
	r.logger.Info("run complete",
		zap.String("run_id", runID),
		zap.Int("chains", len(result.Chains)),
		zap.Int("failed_chains", len(result.Failures)),
		zap.Int("unresolved", result.Unresolved),
	)

	var sinkErrs []error
	for _, sink := range r.sinks {
		if err := sink.Save(ctx, runID, result); err != nil {
			sinkErrs = append(sinkErrs, err)
		}
	}
	return result, errors.Join(sinkErrs...)
}

// fetchAll queries every account concurrently. A failed account never
// aborts the others; its chain is reported in the failures map.
func (r *Runner) fetchAll(ctx context.Context) (map[model.ChainID]map[string]*big.Int, map[model.ChainID]error) {
	var mu sync.Mutex
	snapshots := make(map[model.ChainID]map[string]*big.Int, len(r.cfg.Accounts))
	failures := make(map[model.ChainID]error)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for _, acct := range r.cfg.Accounts {
		g.Go(func() error {
			balances, err := r.fetchWithRetry(ctx, acct)
			r.metrics.ObserveFetch(string(acct.Chain), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[acct.Chain] = &BalanceSourceError{Chain: acct.Chain, Err: err}
				r.logger.Warn("balance fetch failed",
					zap.String("chain", string(acct.Chain)),
					zap.String("address", acct.Address),
					zap.Error(err),
				)
				return nil
			}
			merged, ok := snapshots[acct.Chain]
			if !ok {
				merged = make(map[string]*big.Int, len(balances))
				snapshots[acct.Chain] = merged
			}
			for d, amt := range balances {
				if amt == nil {
					continue
				}
				if cur, ok := merged[d]; ok {
					merged[d] = new(big.Int).Add(cur, amt)
					continue
				}
				merged[d] = amt
			}
			r.logger.Debug("balances fetched",
				zap.String("chain", string(acct.Chain)),
				zap.Int("denoms", len(balances)),
			)
			return nil
		})
	}
	_ = g.Wait()

	for chain := range failures {
		delete(snapshots, chain)
	}
	return snapshots, failures
}

func (r *Runner) fetchWithRetry(ctx context.Context, acct Account) (map[string]*big.Int, error) {
	var balances map[string]*big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		balances, err = r.source.Balances(ctx, acct.Chain, acct.Address)
		if err != nil {
			r.logger.Debug("balance query failed", zap.String("chain", string(acct.Chain)), zap.Error(err))
		}
		return err
	})
	return balances, err
}
