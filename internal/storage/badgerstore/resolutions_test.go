package badgerstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibctrace/internal/model"
	"ibctrace/internal/resolver"
)

func openMemory(t *testing.T) *ResolutionStore {
	t.Helper()
	store, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreAndLoad(t *testing.T) {
	store := openMemory(t)
	res := resolver.Resolution{
		Observed:  "ibc/ABCD",
		Origin:    "neutron-1",
		Resolved:  true,
		Name:      "dAsset",
		BaseDenom: "factory/x/dAsset",
		Path:      "transfer/channel-874/factory/x/dAsset",
		Trace:     model.HopSequence{"neutron-1", "osmosis-1"},
		Stats:     resolver.Stats{Steps: 12, Comparisons: 10},
	}
	require.NoError(t, store.Store("scope-a", res))

	got, ok, err := store.Load("scope-a", "neutron-1", "ibc/ABCD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res, got)

	n, err := store.Count("scope-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadIsScoped(t *testing.T) {
	store := openMemory(t)
	require.NoError(t, store.Store("scope-a", resolver.Resolution{Observed: "ibc/ABCD", Origin: "neutron-1"}))

	_, ok, err := store.Load("scope-b", "neutron-1", "ibc/ABCD")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Load("scope-a", "osmosis-1", "ibc/ABCD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnresolvedOutcomesRoundTrip(t *testing.T) {
	store := openMemory(t)
	res := resolver.Resolution{Observed: "ibc/FFFF", Origin: "neutron-1", Stats: resolver.Stats{Steps: 99}}
	require.NoError(t, store.Store("s", res))

	got, ok, err := store.Load("s", "neutron-1", "ibc/FFFF")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Resolved)
	assert.Equal(t, int64(99), got.Stats.Steps)
}

func TestOpenReportsPathWhenLocked(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(dir, nil)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), dir)
	assert.NotNil(t, errors.Unwrap(err))
}
