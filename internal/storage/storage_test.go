package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibctrace/internal/model"
)

func sampleResult() model.ResolutionResult {
	result := model.NewResolutionResult()
	result.Chains["osmosis-1"] = []model.BalanceRecord{
		{
			Chain:         "osmosis-1",
			ObservedDenom: "ibc/AAA",
			OriginDenom:   "factory/x/dAsset",
			Name:          "dAsset",
			Amount:        big.NewInt(7),
			Trace:         model.HopSequence{"neutron-1", "osmosis-1"},
		},
		{
			Chain:         "osmosis-1",
			ObservedDenom: "ibc/BBB",
			Name:          model.UnknownName,
			Amount:        big.NewInt(3),
			Trace:         model.HopSequence{},
		},
	}
	result.Chains["neutron-1"] = []model.BalanceRecord{
		{
			Chain:         "neutron-1",
			ObservedDenom: "factory/x/dAsset",
			OriginDenom:   "factory/x/dAsset",
			Name:          "dAsset",
			Amount:        big.NewInt(5),
			Trace:         model.HopSequence{"neutron-1"},
		},
	}
	result.AddTotal("dAsset", big.NewInt(12))
	result.Unresolved = 1
	return result
}

func TestRowsOrderAndFields(t *testing.T) {
	rows := Rows("run-1", sampleResult())
	require.Len(t, rows, 3)

	assert.Equal(t, "neutron-1", rows[0].Chain)
	assert.Equal(t, "ibc/AAA", rows[1].ObservedDenom)
	assert.Equal(t, []string{"neutron-1", "osmosis-1"}, rows[1].Trace)
	assert.True(t, rows[1].Resolved)

	assert.False(t, rows[2].Resolved)
	assert.Equal(t, []string{}, rows[2].Trace)
	assert.Equal(t, "3", rows[2].Amount)
	for _, r := range rows {
		assert.Equal(t, "run-1", r.RunID)
	}
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")
	sink := NewJsonlStorage(path)

	require.NoError(t, sink.Save(context.Background(), "run-1", sampleResult()))
	require.NoError(t, sink.Save(context.Background(), "run-2", sampleResult()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var rows []RecordRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row RecordRow
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, rows, 6)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Equal(t, "run-2", rows[5].RunID)
	assert.Equal(t, "5", rows[0].Amount)
}

func TestJsonlStorageSkipsEmptyResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, NewJsonlStorage(path).Save(context.Background(), "run-1", model.NewResolutionResult()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
