// Package testutil provides a fixed six-chain Cosmos channel table for tests.
package testutil

import (
	"testing"

	"ibctrace/internal/model"
	"ibctrace/internal/topology"
)

const (
	Origin = model.ChainID("neutron-1")
	DAsset = "factory/neutron1lzecpea0qxw5xae92xkm3vaddeszr278k7w20c/dAsset"
	LAsset = "factory/neutron1lzecpea0qxw5xae92xkm3vaddeszr278k7w20c/lAsset"
)

// Chains returns the chain set of the fixture.
func Chains() []model.ChainID {
	return []model.ChainID{"neutron-1", "osmosis-1", "phoenix-1", "stargaze-1", "cosmoshub-4", "stride-1"}
}

// ChannelEnds returns the registry-keyed channel table: ends[x][y] is x's channel to y.
func ChannelEnds() map[model.ChainID]map[model.ChainID]model.ChannelID {
	return map[model.ChainID]map[model.ChainID]model.ChannelID{
		"neutron-1": {
			"osmosis-1": "channel-10", "phoenix-1": "channel-25", "stargaze-1": "channel-18",
			"cosmoshub-4": "channel-1", "stride-1": "channel-8",
		},
		"osmosis-1": {
			"neutron-1": "channel-874", "phoenix-1": "channel-251", "stargaze-1": "channel-75",
			"cosmoshub-4": "channel-0", "stride-1": "channel-326",
		},
		"phoenix-1": {
			"neutron-1": "channel-229", "osmosis-1": "channel-1", "stargaze-1": "channel-324",
			"cosmoshub-4": "channel-0", "stride-1": "channel-46",
		},
		"stargaze-1": {
			"neutron-1": "channel-191", "osmosis-1": "channel-0", "phoenix-1": "channel-266",
			"cosmoshub-4": "channel-239", "stride-1": "channel-106",
		},
		"cosmoshub-4": {
			"neutron-1": "channel-569", "osmosis-1": "channel-141", "phoenix-1": "channel-339",
			"stargaze-1": "channel-730", "stride-1": "channel-391",
		},
		"stride-1": {
			"neutron-1": "channel-123", "osmosis-1": "channel-5", "phoenix-1": "channel-52",
			"stargaze-1": "channel-19", "cosmoshub-4": "channel-0",
		},
	}
}

// KnownDenoms returns the two factory assets minted on neutron-1.
func KnownDenoms() []model.KnownDenom {
	return []model.KnownDenom{
		{Name: "dAsset", Denom: DAsset},
		{Name: "lAsset", Denom: LAsset},
	}
}

// Topology builds the fixture topology with receiver orientation.
func Topology(t testing.TB) *topology.Topology {
	t.Helper()
	topo, err := topology.FromTable(Chains(), ChannelEnds(), topology.Receiver)
	if err != nil {
		t.Fatalf("fixture topology: %v", err)
	}
	return topo
}
