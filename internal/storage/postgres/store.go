package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ibctrace/internal/denom"
	"ibctrace/internal/model"
	"ibctrace/internal/storage"
)

//go:embed schema.sql
var schema string

// PathEncoder renders the ICS-20 path of a trace.
type PathEncoder interface {
	FullPath(trace model.DenomTrace) (string, error)
}

// Store provides Postgres persistence for tracking runs.
type Store struct {
	pool  *pgxpool.Pool
	paths PathEncoder
}

func NewStore(ctx context.Context, dsn string, paths PathEncoder) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, paths: paths}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Save writes the run, its records and totals in one transaction, and
// upserts every resolved hashed denom into ibc_denoms.
func (s *Store) Save(ctx context.Context, runID string, result model.ResolutionResult) error {
	failures, err := json.Marshal(result.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO tracking_runs (run_id, unresolved, failures, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (run_id) DO UPDATE SET
			unresolved = EXCLUDED.unresolved,
			failures = EXCLUDED.failures
	`, runID, result.Unresolved, string(failures))

	for _, row := range storage.Rows(runID, result) {
		batch.Queue(`
			INSERT INTO balance_records (
				run_id, chain_id, observed_denom, origin_denom, name, amount, trace, resolved
			) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
			ON CONFLICT (run_id, chain_id, observed_denom)
			DO UPDATE SET
				origin_denom = EXCLUDED.origin_denom,
				name = EXCLUDED.name,
				amount = EXCLUDED.amount,
				trace = EXCLUDED.trace,
				resolved = EXCLUDED.resolved
		`,
			row.RunID,
			row.Chain,
			row.ObservedDenom,
			row.OriginDenom,
			row.Name,
			row.Amount,
			row.Trace,
			row.Resolved,
		)
	}

	for _, t := range totalRows(result) {
		batch.Queue(`
			INSERT INTO denom_totals (run_id, name, amount)
			VALUES ($1, $2, $3::numeric)
			ON CONFLICT (run_id, name) DO UPDATE SET amount = EXCLUDED.amount
		`, runID, t.name, t.amount)
	}

	for _, d := range s.denomRows(result) {
		batch.Queue(`
			INSERT INTO ibc_denoms (hash, path, base_denom, trace, first_seen, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (hash) DO UPDATE SET
				path = EXCLUDED.path,
				base_denom = EXCLUDED.base_denom,
				trace = EXCLUDED.trace,
				updated_at = now()
		`, d.hash, d.path, d.baseDenom, d.trace)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("save run %s: %w", runID, err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type totalRow struct {
	name   string
	amount string
}

func totalRows(result model.ResolutionResult) []totalRow {
	names := make([]string, 0, len(result.Totals))
	for name := range result.Totals {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]totalRow, 0, len(names))
	for _, name := range names {
		out = append(out, totalRow{name: name, amount: result.Totals[name].String()})
	}
	return out
}

type denomRow struct {
	hash      string
	path      string
	baseDenom string
	trace     []string
}

// denomRows returns one row per distinct resolved hashed denom.
func (s *Store) denomRows(result model.ResolutionResult) []denomRow {
	if s.paths == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []denomRow
	for _, rec := range result.Records() {
		if !rec.Resolved() || !denom.IsOpaque(rec.ObservedDenom) {
			continue
		}
		if _, ok := seen[rec.ObservedDenom]; ok {
			continue
		}
		path, err := s.paths.FullPath(model.DenomTrace{Hops: rec.Trace, BaseDenom: rec.OriginDenom})
		if err != nil {
			continue
		}
		seen[rec.ObservedDenom] = struct{}{}
		trace := make([]string, 0, len(rec.Trace))
		for _, c := range rec.Trace {
			trace = append(trace, string(c))
		}
		out = append(out, denomRow{
			hash:      rec.ObservedDenom,
			path:      path,
			baseDenom: rec.OriginDenom,
			trace:     trace,
		})
	}
	return out
}
