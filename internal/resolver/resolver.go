// Package resolver recovers the hop sequence behind a hashed IBC denomination.
//
// The hash is order sensitive, so the search space is walks through the
// channel graph rather than subsets of chains. Walks are enumerated depth
// first with connectivity pruning, shortest first.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ibctrace/internal/denom"
	"ibctrace/internal/model"
)

// DefaultMaxHops bounds the walk length when Config.MaxHops is unset.
const DefaultMaxHops = 5

// ctxCheckInterval is how many steps a worker takes between context checks.
const ctxCheckInterval = 1024

// ErrBudgetExhausted is returned when a search exceeds Config.StepBudget.
var ErrBudgetExhausted = errors.New("search step budget exhausted")

// Mode selects how ambiguous results are reported.
type Mode string

const (
	// ModeFirst returns only the first match in enumeration order.
	ModeFirst Mode = "first"
	// ModeAll also returns every other match at the minimal hop count.
	ModeAll Mode = "all"
)

// ParseMode validates a mode name. Empty means ModeFirst.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFirst:
		return ModeFirst, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", fmt.Errorf("unknown resolve mode %q", s)
	}
}

// Graph is the view of the channel topology the search walks.
type Graph interface {
	denom.ChannelLookup
	NeighborsExcluding(exclude ...model.ChainID) []model.ChainID
}

// Config controls search bounds.
type Config struct {
	MaxHops int
	// StepBudget caps the steps spent on each known denom candidate across
	// all depths of one resolution. Zero means unlimited.
	StepBudget int64
	Timeout    time.Duration
	Mode       Mode
	Workers    int
}

// Match is one trace that reproduces the observed denomination.
type Match struct {
	Name  string           `json:"name"`
	Trace model.DenomTrace `json:"trace"`
}

// Stats counts the work done by a single resolution.
type Stats struct {
	Steps       int64 `json:"steps"`
	Comparisons int64 `json:"comparisons"`
	Pruned      int64 `json:"pruned"`
}

// Resolution is the outcome of resolving one observed denomination.
// Resolved=false with a nil error is the legitimate "unresolved" outcome.
type Resolution struct {
	Observed     string            `json:"observed"`
	Origin       model.ChainID     `json:"origin"`
	Native       bool              `json:"native"`
	Resolved     bool              `json:"resolved"`
	Name         string            `json:"name,omitempty"`
	BaseDenom    string            `json:"base_denom,omitempty"`
	Path         string            `json:"path,omitempty"`
	Trace        model.HopSequence `json:"trace"`
	Alternatives []Match           `json:"alternatives,omitempty"`
	Stats        Stats             `json:"stats"`
}

// Resolver searches the channel graph for traces matching a hashed denom.
// It keeps no state between calls and is safe for concurrent use.
type Resolver struct {
	cfg    Config
	graph  Graph
	codec  *denom.Codec
	logger *zap.Logger
}

func New(cfg Config, graph Graph, codec *denom.Codec, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeFirst
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Resolver{cfg: cfg, graph: graph, codec: codec, logger: logger}
}

// Resolve finds a trace starting at origin whose encoding equals observed.
// Denoms without the ibc/ prefix are native and resolve to [origin] without searching.
func (r *Resolver) Resolve(ctx context.Context, observed string, origin model.ChainID, known []model.KnownDenom) (res Resolution, err error) {
	res = Resolution{Observed: observed, Origin: origin}

	if !denom.IsOpaque(observed) {
		res.Native = true
		res.Resolved = true
		res.Trace = model.HopSequence{origin}
		res.BaseDenom = observed
		for _, k := range known {
			if k.Denom == observed {
				res.Name = k.Name
				break
			}
		}
		return res, nil
	}

	if _, err := denom.ParseOpaque(observed); err != nil {
		r.logger.Debug("malformed hashed denom", zap.String("denom", observed), zap.Error(err))
		return res, nil
	}
	if len(known) == 0 {
		return res, nil
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	counters := newCounters(r.cfg.StepBudget, len(known))
	defer func() {
		res.Stats = counters.snapshot()
	}()

	pool := r.graph.NeighborsExcluding(origin)
	closing := r.graph.NeighborsExcluding()

	for k := 1; k <= r.cfg.MaxHops; k++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		matches, err := r.searchDepth(ctx, observed, origin, known, pool, closing, k, counters)
		if err != nil {
			return res, err
		}
		if len(matches) == 0 {
			continue
		}

		best := matches[0]
		res.Resolved = true
		res.Name = best.Name
		res.BaseDenom = best.Trace.BaseDenom
		res.Trace = best.Trace.Hops.Clone()
		if path, err := r.codec.FullPath(best.Trace); err == nil {
			res.Path = path
		}
		if r.cfg.Mode == ModeAll {
			res.Alternatives = matches
		}
		r.logger.Debug("denom resolved",
			zap.String("denom", observed),
			zap.String("name", best.Name),
			zap.Int("hops", k),
			zap.Stringer("trace", best.Trace.Hops),
			zap.Int("matches", len(matches)),
		)
		return res, nil
	}

	r.logger.Debug("denom unresolved",
		zap.String("denom", observed),
		zap.String("origin", string(origin)),
		zap.Int("max_hops", r.cfg.MaxHops),
	)
	return res, nil
}

// searchDepth runs one denom candidate per worker at a fixed hop count and
// returns the matches ordered by candidate index, then walk order.
func (r *Resolver) searchDepth(
	ctx context.Context,
	target string,
	origin model.ChainID,
	known []model.KnownDenom,
	pool []model.ChainID,
	closing []model.ChainID,
	hops int,
	counters *counters,
) ([]Match, error) {
	found := make([][]Match, len(known))
	errs := make([]error, len(known))
	var firstHit atomic.Int64
	firstHit.Store(int64(len(known)))

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	for i, cand := range known {
		g.Go(func() error {
			w := &walker{
				ctx:      ctx,
				codec:    r.codec,
				target:   target,
				base:     cand.Denom,
				origin:   origin,
				hops:     hops,
				pool:     pool,
				closing:  closing,
				all:      r.cfg.Mode == ModeAll,
				counters: counters,
				spent:    &counters.spent[i],
				index:    int64(i),
				firstHit: &firstHit,
				visited:  make(map[model.ChainID]bool, hops),
			}
			path := make(model.HopSequence, 1, hops+1)
			path[0] = origin
			if err := w.walk(path, ""); err != nil && !errors.Is(err, errSuperseded) {
				errs[i] = err
				return nil
			}
			for _, hs := range w.found {
				found[i] = append(found[i], Match{Name: cand.Name, Trace: model.DenomTrace{Hops: hs, BaseDenom: cand.Denom}})
			}
			return nil
		})
	}
	_ = g.Wait()

	// Candidates are settled in index order so the outcome never depends on
	// which worker finished first. A failed candidate only matters when no
	// earlier candidate matched.
	var out []Match
	for i, ms := range found {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if len(ms) == 0 {
			continue
		}
		if r.cfg.Mode != ModeAll {
			return ms[:1], nil
		}
		out = append(out, ms...)
	}
	return out, nil
}

// errSuperseded stops a worker whose candidate can no longer win.
var errSuperseded = errors.New("superseded by earlier candidate")

// counters aggregates work across workers. The step budget is charged per
// candidate so one candidate can never starve another.
type counters struct {
	budget      int64
	spent       []atomic.Int64
	steps       atomic.Int64
	comparisons atomic.Int64
	pruned      atomic.Int64
}

func newCounters(budget int64, candidates int) *counters {
	return &counters{budget: budget, spent: make([]atomic.Int64, candidates)}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Steps:       c.steps.Load(),
		Comparisons: c.comparisons.Load(),
		Pruned:      c.pruned.Load(),
	}
}

type walker struct {
	ctx      context.Context
	codec    *denom.Codec
	target   string
	base     string
	origin   model.ChainID
	hops     int
	pool     []model.ChainID
	closing  []model.ChainID
	all      bool
	counters *counters
	spent    *atomic.Int64
	index    int64
	firstHit *atomic.Int64
	visited  map[model.ChainID]bool
	found    []model.HopSequence
	local    int64
}

// walk extends path one hop at a time. Intermediate chains are distinct and
// never the origin; the last hop may return to the origin once the walk has
// left its first neighbour, since an immediate return would unwind the trace.
func (w *walker) walk(path model.HopSequence, prefix string) error {
	depth := len(path) - 1
	if depth == w.hops {
		w.counters.comparisons.Add(1)
		if denom.HashPath(prefix, w.base) == w.target {
			w.found = append(w.found, path.Clone())
			if !w.all {
				w.claim()
				return errSuperseded
			}
		}
		return nil
	}

	cur := path[depth]
	last := depth == w.hops-1
	candidates := w.pool
	if last && w.hops >= 3 {
		candidates = w.closing
	}

	for _, next := range candidates {
		if next == cur || w.visited[next] {
			continue
		}
		if next == w.origin && !last {
			continue
		}
		if err := w.step(); err != nil {
			return err
		}
		extended, err := w.codec.Step(prefix, cur, next)
		if err != nil {
			var hopErr *denom.DisconnectedHopError
			if errors.As(err, &hopErr) {
				w.counters.pruned.Add(1)
				continue
			}
			return err
		}

		w.visited[next] = true
		err = w.walk(append(path, next), extended)
		delete(w.visited, next)
		if err != nil {
			return err
		}
	}
	return nil
}

// step charges one unit of work against the candidate's budget and polls
// for cancellation. A candidate behind an earlier match stops before paying.
func (w *walker) step() error {
	if !w.all && w.index > w.firstHit.Load() {
		return errSuperseded
	}
	w.counters.steps.Add(1)
	if n := w.spent.Add(1); w.counters.budget > 0 && n > w.counters.budget {
		return ErrBudgetExhausted
	}
	w.local++
	if w.local%ctxCheckInterval == 0 {
		if err := w.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// claim records that this candidate found a match so later candidates can stop.
func (w *walker) claim() {
	for {
		cur := w.firstHit.Load()
		if w.index >= cur || w.firstHit.CompareAndSwap(cur, w.index) {
			return
		}
	}
}
