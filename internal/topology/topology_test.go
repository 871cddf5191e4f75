package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibctrace/internal/model"
)

func TestChannelForIsDirected(t *testing.T) {
	topo, err := New(
		[]model.ChainID{"osmosis-1", "cosmoshub-4"},
		map[model.ChainID]map[model.ChainID]model.ChannelID{
			"cosmoshub-4": {"osmosis-1": "channel-141"},
			"osmosis-1":   {"cosmoshub-4": "channel-0"},
		},
	)
	require.NoError(t, err)

	ch, ok := topo.ChannelFor("cosmoshub-4", "osmosis-1")
	require.True(t, ok)
	assert.Equal(t, model.ChannelID("channel-141"), ch)

	ch, ok = topo.ChannelFor("osmosis-1", "cosmoshub-4")
	require.True(t, ok)
	assert.Equal(t, model.ChannelID("channel-0"), ch)

	_, ok = topo.ChannelFor("osmosis-1", "stride-1")
	assert.False(t, ok)
	_, ok = topo.ChannelFor("stride-1", "osmosis-1")
	assert.False(t, ok)
}

func TestNeighborsExcludingSorted(t *testing.T) {
	topo, err := New([]model.ChainID{"stride-1", "neutron-1", "osmosis-1", "neutron-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, topo.Len())
	assert.Equal(t, []model.ChainID{"osmosis-1", "stride-1"}, topo.NeighborsExcluding("neutron-1"))
	assert.Equal(t, []model.ChainID{"neutron-1", "osmosis-1", "stride-1"}, topo.NeighborsExcluding())
	assert.True(t, topo.Has("stride-1"))
	assert.False(t, topo.Has("juno-1"))
}

func TestNewRejectsUndeclaredChains(t *testing.T) {
	_, err := New([]model.ChainID{"a"}, map[model.ChainID]map[model.ChainID]model.ChannelID{
		"a": {"b": "channel-1"},
	})
	assert.Error(t, err)

	_, err = New([]model.ChainID{"a"}, map[model.ChainID]map[model.ChainID]model.ChannelID{
		"b": {"a": "channel-1"},
	})
	assert.Error(t, err)

	_, err = New([]model.ChainID{"a"}, map[model.ChainID]map[model.ChainID]model.ChannelID{
		"a": {"a": "channel-1"},
	})
	assert.Error(t, err)
}

func TestChainsReturnsCopy(t *testing.T) {
	topo, err := New([]model.ChainID{"b", "a"}, nil)
	require.NoError(t, err)

	chains := topo.Chains()
	chains[0] = "z"
	assert.Equal(t, []model.ChainID{"a", "b"}, topo.Chains())
}

func TestFromTableReceiverTransposes(t *testing.T) {
	table := map[model.ChainID]map[model.ChainID]model.ChannelID{
		"osmosis-1":   {"cosmoshub-4": "channel-0"},
		"cosmoshub-4": {"osmosis-1": "channel-141"},
	}
	chains := []model.ChainID{"osmosis-1", "cosmoshub-4"}

	recv, err := FromTable(chains, table, Receiver)
	require.NoError(t, err)
	ch, ok := recv.ChannelFor("osmosis-1", "cosmoshub-4")
	require.True(t, ok)
	assert.Equal(t, model.ChannelID("channel-141"), ch)

	send, err := FromTable(chains, table, Sender)
	require.NoError(t, err)
	ch, ok = send.ChannelFor("osmosis-1", "cosmoshub-4")
	require.True(t, ok)
	assert.Equal(t, model.ChannelID("channel-0"), ch)
}

func TestFromTableReceiverKeepsMissingPairsDisconnected(t *testing.T) {
	table := map[model.ChainID]map[model.ChainID]model.ChannelID{
		"a": {"b": "channel-1"},
	}
	topo, err := FromTable([]model.ChainID{"a", "b"}, table, Receiver)
	require.NoError(t, err)

	_, ok := topo.ChannelFor("b", "a")
	assert.True(t, ok)
	_, ok = topo.ChannelFor("a", "b")
	assert.False(t, ok)
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("")
	require.NoError(t, err)
	assert.Equal(t, Receiver, o)

	o, err = ParseOrientation("sender")
	require.NoError(t, err)
	assert.Equal(t, Sender, o)

	_, err = ParseOrientation("sideways")
	assert.Error(t, err)
}

func TestFingerprintTracksChannels(t *testing.T) {
	chains := []model.ChainID{"a-1", "b-1"}
	base, err := New(chains, map[model.ChainID]map[model.ChainID]model.ChannelID{"a-1": {"b-1": "channel-0"}})
	require.NoError(t, err)
	same, err := New([]model.ChainID{"b-1", "a-1"}, map[model.ChainID]map[model.ChainID]model.ChannelID{"a-1": {"b-1": "channel-0"}})
	require.NoError(t, err)
	other, err := New(chains, map[model.ChainID]map[model.ChainID]model.ChannelID{"a-1": {"b-1": "channel-1"}})
	require.NoError(t, err)

	assert.Equal(t, base.Fingerprint(), same.Fingerprint())
	assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
	assert.Len(t, base.Fingerprint(), 16)
}
