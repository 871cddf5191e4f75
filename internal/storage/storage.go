// Package storage writes tracking results to durable sinks.
package storage

import (
	"ibctrace/internal/model"
)

// RecordRow is one balance record tagged with the run that produced it.
type RecordRow struct {
	RunID         string   `json:"run_id"`
	Chain         string   `json:"chain"`
	ObservedDenom string   `json:"observed_denom"`
	OriginDenom   string   `json:"origin_denom,omitempty"`
	Name          string   `json:"name"`
	Amount        string   `json:"amount"`
	Trace         []string `json:"trace"`
	Resolved      bool     `json:"resolved"`
}

// Rows flattens a result into rows ordered by chain, then observed denom.
func Rows(runID string, result model.ResolutionResult) []RecordRow {
	records := result.Records()
	out := make([]RecordRow, 0, len(records))
	for _, rec := range records {
		amount := "0"
		if rec.Amount != nil {
			amount = rec.Amount.String()
		}
		trace := make([]string, 0, len(rec.Trace))
		for _, c := range rec.Trace {
			trace = append(trace, string(c))
		}
		out = append(out, RecordRow{
			RunID:         runID,
			Chain:         string(rec.Chain),
			ObservedDenom: rec.ObservedDenom,
			OriginDenom:   rec.OriginDenom,
			Name:          rec.Name,
			Amount:        amount,
			Trace:         trace,
			Resolved:      rec.Resolved(),
		})
	}
	return out
}
