package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// UnknownName is the logical name given to balances whose origin could not be resolved.
const UnknownName = "unknown"

// BalanceRecord is one classified balance held on a chain.
type BalanceRecord struct {
	Chain         ChainID     `json:"chain"`
	ObservedDenom string      `json:"observed_denom"`
	OriginDenom   string      `json:"origin_denom"`
	Name          string      `json:"name"`
	Amount        *big.Int    `json:"amount"`
	Trace         HopSequence `json:"trace"`
}

// Resolved reports whether the record carries a known provenance.
func (r BalanceRecord) Resolved() bool {
	return r.Name != UnknownName && len(r.Trace) > 0
}

// MarshalJSON encodes Amount as a decimal string so large balances survive
// consumers that parse JSON numbers as float64.
func (r BalanceRecord) MarshalJSON() ([]byte, error) {
	type Alias BalanceRecord
	amount := "0"
	if r.Amount != nil {
		amount = r.Amount.String()
	}
	return json.Marshal(struct {
		Alias
		Amount string `json:"amount"`
	}{Alias: Alias(r), Amount: amount})
}

// UnmarshalJSON decodes a BalanceRecord with a string amount.
func (r *BalanceRecord) UnmarshalJSON(data []byte) error {
	type Alias BalanceRecord
	var aux struct {
		Alias
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = BalanceRecord(aux.Alias)
	r.Amount = new(big.Int)
	if aux.Amount == "" {
		return nil
	}
	if _, ok := r.Amount.SetString(aux.Amount, 10); !ok {
		return fmt.Errorf("invalid amount: %s", aux.Amount)
	}
	return nil
}
