package model

import (
	"encoding/json"
	"math/big"
	"sort"
)

// ResolutionResult is the output of one tracking run.
type ResolutionResult struct {
	Chains     map[ChainID][]BalanceRecord `json:"chains"`
	Totals     map[string]*big.Int         `json:"totals"`
	Failures   map[ChainID]string          `json:"failures,omitempty"`
	Unresolved int                         `json:"unresolved"`
}

// NewResolutionResult returns an empty result ready for accumulation.
func NewResolutionResult() ResolutionResult {
	return ResolutionResult{
		Chains:   make(map[ChainID][]BalanceRecord),
		Totals:   make(map[string]*big.Int),
		Failures: make(map[ChainID]string),
	}
}

// AddTotal accumulates amount under a logical denom name.
func (r *ResolutionResult) AddTotal(name string, amount *big.Int) {
	if amount == nil {
		return
	}
	cur, ok := r.Totals[name]
	if !ok {
		cur = new(big.Int)
		r.Totals[name] = cur
	}
	cur.Add(cur, amount)
}

// Total returns the accumulated amount for name, zero when absent.
func (r ResolutionResult) Total(name string) *big.Int {
	if v, ok := r.Totals[name]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// SortedChains returns the chain ids in lexical order.
func (r ResolutionResult) SortedChains() []ChainID {
	out := make([]ChainID, 0, len(r.Chains))
	for c := range r.Chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Records flattens all per-chain records in chain order.
func (r ResolutionResult) Records() []BalanceRecord {
	var out []BalanceRecord
	for _, c := range r.SortedChains() {
		out = append(out, r.Chains[c]...)
	}
	return out
}

// MarshalJSON encodes totals as decimal strings.
func (r ResolutionResult) MarshalJSON() ([]byte, error) {
	type Alias ResolutionResult
	totals := make(map[string]string, len(r.Totals))
	for k, v := range r.Totals {
		totals[k] = v.String()
	}
	return json.Marshal(struct {
		Alias
		Totals map[string]string `json:"totals"`
	}{Alias: Alias(r), Totals: totals})
}
