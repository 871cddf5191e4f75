package model

import "strings"

// ChainID identifies a blockchain network (e.g. "osmosis-1").
type ChainID string

// ChannelID identifies the channel a chain uses to forward tokens to a peer.
type ChannelID string

// HopSequence is the ordered list of chains a token traversed, origin first.
type HopSequence []ChainID

// Origin returns the first chain of the sequence or "" when empty.
func (h HopSequence) Origin() ChainID {
	if len(h) == 0 {
		return ""
	}
	return h[0]
}

// Hops returns the number of transfers in the sequence.
func (h HopSequence) Hops() int {
	if len(h) == 0 {
		return 0
	}
	return len(h) - 1
}

// Clone returns a copy that does not share the backing array.
func (h HopSequence) Clone() HopSequence {
	if h == nil {
		return nil
	}
	out := make(HopSequence, len(h))
	copy(out, h)
	return out
}

func (h HopSequence) String() string {
	parts := make([]string, 0, len(h))
	for _, c := range h {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, " -> ")
}

// DenomTrace is the full provenance of a token: the hops it took and the
// denomination as minted on the origin chain.
type DenomTrace struct {
	Hops      HopSequence `json:"hops"`
	BaseDenom string      `json:"base_denom"`
}

// KnownDenom maps a logical asset name to its canonical denom on the origin chain.
type KnownDenom struct {
	Name  string `json:"name"`
	Denom string `json:"denom"`
}
