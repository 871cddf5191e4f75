package denom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibctrace/internal/model"
	"ibctrace/internal/testutil"
	"ibctrace/internal/topology"
)

func testTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(
		[]model.ChainID{"neutron-1", "osmosis-1", "stargaze-1", "cosmoshub-4", "stride-1"},
		map[model.ChainID]map[model.ChainID]model.ChannelID{
			"neutron-1":   {"osmosis-1": "channel-10", "stride-1": "channel-8"},
			"osmosis-1":   {"stargaze-1": "channel-75", "neutron-1": "channel-874"},
			"stargaze-1":  {"neutron-1": "channel-191"},
			"cosmoshub-4": {"osmosis-1": "channel-141"},
			"stride-1":    {"osmosis-1": "channel-5"},
		},
	)
	require.NoError(t, err)
	return topo
}

func TestEncodeSingleHop(t *testing.T) {
	codec := NewCodec(testTopology(t))

	got, err := codec.Encode(model.DenomTrace{
		Hops:      model.HopSequence{"cosmoshub-4", "osmosis-1"},
		BaseDenom: "uosmo",
	})
	require.NoError(t, err)
	assert.Equal(t, "ibc/14F9BC3E44B8A9C1BE1FB08980FAB87034C9905EF17CF2F5008FC085218811CC", got)
}

func TestEncodeMultiHopJourney(t *testing.T) {
	codec := NewCodec(testutil.Topology(t))
	trace := model.DenomTrace{
		Hops:      model.HopSequence{"neutron-1", "stride-1", "osmosis-1", "stargaze-1", "neutron-1"},
		BaseDenom: testutil.DAsset,
	}

	prefix, err := codec.EncodePrefix(trace.Hops)
	require.NoError(t, err)
	assert.Equal(t, "transfer/channel-18/transfer/channel-0/transfer/channel-326/transfer/channel-123/", prefix)

	got, err := codec.Encode(trace)
	require.NoError(t, err)
	assert.Equal(t, "ibc/C4A3E0BDA2A18D39FCB66C1D2945F6BF5A9714F0E5221D5E98976196B99F26E8", got)
	assert.True(t, codec.Matches(trace, got))
}

func TestPrefixOrderIsLoadBearing(t *testing.T) {
	codec := NewCodec(testTopology(t))
	hops := model.HopSequence{"neutron-1", "osmosis-1", "stargaze-1"}

	prefix, err := codec.EncodePrefix(hops)
	require.NoError(t, err)
	assert.Equal(t, "transfer/channel-75/transfer/channel-10/", prefix)

	forward := HashPath(prefix, "uosmo")
	reversed := HashPath("transfer/channel-10/transfer/channel-75/", "uosmo")
	assert.NotEqual(t, forward, reversed)
}

func TestEncodeRegistryOrientation(t *testing.T) {
	codec := NewCodec(testutil.Topology(t))

	got, err := codec.Encode(model.DenomTrace{
		Hops:      model.HopSequence{"osmosis-1", "cosmoshub-4"},
		BaseDenom: "uosmo",
	})
	require.NoError(t, err)
	assert.Equal(t, "ibc/14F9BC3E44B8A9C1BE1FB08980FAB87034C9905EF17CF2F5008FC085218811CC", got)
}

func TestEncodeNativeTrace(t *testing.T) {
	codec := NewCodec(testTopology(t))
	got, err := codec.Encode(model.DenomTrace{Hops: model.HopSequence{"neutron-1"}, BaseDenom: "untrn"})
	require.NoError(t, err)
	assert.Equal(t, "untrn", got)

	_, err = codec.Encode(model.DenomTrace{BaseDenom: "untrn"})
	assert.Error(t, err)
}

func TestEncodeDisconnectedHop(t *testing.T) {
	codec := NewCodec(testTopology(t))
	trace := model.DenomTrace{
		Hops:      model.HopSequence{"neutron-1", "stargaze-1"},
		BaseDenom: "untrn",
	}

	_, err := codec.Encode(trace)
	var hopErr *DisconnectedHopError
	require.True(t, errors.As(err, &hopErr))
	assert.Equal(t, model.ChainID("neutron-1"), hopErr.From)
	assert.Equal(t, model.ChainID("stargaze-1"), hopErr.To)

	assert.False(t, codec.Matches(trace, "ibc/00"))
}

func TestFullPath(t *testing.T) {
	codec := NewCodec(testTopology(t))
	path, err := codec.FullPath(model.DenomTrace{
		Hops:      model.HopSequence{"cosmoshub-4", "osmosis-1"},
		BaseDenom: "uatom",
	})
	require.NoError(t, err)
	assert.Equal(t, "transfer/channel-141/uatom", path)
}

func TestParseOpaque(t *testing.T) {
	b, err := ParseOpaque("ibc/14F9BC3E44B8A9C1BE1FB08980FAB87034C9905EF17CF2F5008FC085218811CC")
	require.NoError(t, err)
	assert.Len(t, b, 32)

	for _, bad := range []string{
		"uosmo",
		"ibc/14F9",
		"ibc/14f9bc3e44b8a9c1be1fb08980fab87034c9905ef17cf2f5008fc085218811cc",
		"ibc/ZZF9BC3E44B8A9C1BE1FB08980FAB87034C9905EF17CF2F5008FC085218811CC",
	} {
		_, err := ParseOpaque(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsOpaque(t *testing.T) {
	assert.True(t, IsOpaque("ibc/ABC"))
	assert.False(t, IsOpaque("uatom"))
	assert.False(t, IsOpaque("factory/ibc/x"))
}
