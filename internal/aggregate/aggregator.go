package aggregate

import (
	"context"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"ibctrace/internal/denom"
	"ibctrace/internal/model"
	"ibctrace/internal/observability"
	"ibctrace/internal/resolver"
)

const (
	outcomeNative     = "native"
	outcomeResolved   = "resolved"
	outcomeUnresolved = "unresolved"
	outcomeFailed     = "failed"
)

// Resolver recovers the provenance of an observed denomination.
type Resolver interface {
	Resolve(ctx context.Context, observed string, origin model.ChainID, known []model.KnownDenom) (resolver.Resolution, error)
}

// Aggregator classifies per-chain balances and accumulates per-denom totals.
type Aggregator struct {
	resolver Resolver
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewAggregator(res Resolver, logger *zap.Logger, metrics *observability.Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{resolver: res, logger: logger, metrics: metrics}
}

// Aggregate turns balance snapshots into a ResolutionResult. It always
// returns a complete result: balances whose origin cannot be recovered, and
// negative balances, are recorded under model.UnknownName with an empty
// trace and left out of the totals.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	snapshots map[model.ChainID]map[string]*big.Int,
	origin model.ChainID,
	known []model.KnownDenom,
) model.ResolutionResult {
	result := model.NewResolutionResult()

	byDenom := make(map[string]string, len(known))
	for _, k := range known {
		if _, dup := byDenom[k.Denom]; !dup {
			byDenom[k.Denom] = k.Name
		}
	}

	for _, chain := range sortedChains(snapshots) {
		balances := snapshots[chain]
		records := make([]model.BalanceRecord, 0, len(balances))

		for _, d := range sortedDenoms(balances) {
			amount := balances[d]
			if amount == nil {
				amount = new(big.Int)
			}
			if amount.Sign() < 0 {
				a.logger.Warn("negative balance flagged", zap.String("chain", string(chain)), zap.String("denom", d))
				a.metrics.ObserveRecord(model.UnknownName)
				records = append(records, model.BalanceRecord{
					Chain:         chain,
					ObservedDenom: d,
					Name:          model.UnknownName,
					Amount:        new(big.Int).Set(amount),
					Trace:         model.HopSequence{},
				})
				continue
			}

			rec := a.classify(ctx, chain, d, amount, origin, known, byDenom)
			if rec.Resolved() {
				result.AddTotal(rec.Name, rec.Amount)
			} else if denom.IsOpaque(d) {
				result.Unresolved++
			}
			a.metrics.ObserveRecord(rec.Name)
			records = append(records, rec)
		}

		result.Chains[chain] = records
	}

	return result
}

func (a *Aggregator) classify(
	ctx context.Context,
	chain model.ChainID,
	observed string,
	amount *big.Int,
	origin model.ChainID,
	known []model.KnownDenom,
	byDenom map[string]string,
) model.BalanceRecord {
	rec := model.BalanceRecord{
		Chain:         chain,
		ObservedDenom: observed,
		Amount:        new(big.Int).Set(amount),
	}

	if name, ok := byDenom[observed]; ok {
		rec.OriginDenom = observed
		rec.Name = name
		rec.Trace = model.HopSequence{chain}
		return rec
	}

	if !denom.IsOpaque(observed) {
		rec.OriginDenom = observed
		rec.Name = model.UnknownName
		rec.Trace = model.HopSequence{chain}
		return rec
	}

	started := time.Now()
	res, err := a.resolver.Resolve(ctx, observed, origin, known)
	elapsed := time.Since(started)

	rec.Trace = model.HopSequence{}
	rec.Name = model.UnknownName
	switch {
	case err != nil:
		a.metrics.ObserveResolution(outcomeFailed, res.Stats.Steps, elapsed)
		a.logger.Warn("resolve denom failed",
			zap.String("chain", string(chain)),
			zap.String("denom", observed),
			zap.Error(err),
		)
	case res.Resolved && !res.Native:
		a.metrics.ObserveResolution(outcomeResolved, res.Stats.Steps, elapsed)
		rec.OriginDenom = res.BaseDenom
		rec.Name = res.Name
		rec.Trace = res.Trace.Clone()
	case res.Native:
		a.metrics.ObserveResolution(outcomeNative, 0, elapsed)
	default:
		a.metrics.ObserveResolution(outcomeUnresolved, res.Stats.Steps, elapsed)
		a.logger.Info("denom unresolved",
			zap.String("chain", string(chain)),
			zap.String("denom", observed),
			zap.Int64("steps", res.Stats.Steps),
		)
	}
	return rec
}

func sortedChains(snapshots map[model.ChainID]map[string]*big.Int) []model.ChainID {
	out := make([]model.ChainID, 0, len(snapshots))
	for c := range snapshots {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedDenoms(balances map[string]*big.Int) []string {
	out := make([]string, 0, len(balances))
	for d := range balances {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
