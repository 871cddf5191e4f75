package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ibctrace/internal/model"
	"ibctrace/internal/resolver"
)

func reportResult() model.ResolutionResult {
	result := model.NewResolutionResult()
	result.Chains["osmosis-1"] = []model.BalanceRecord{
		{Chain: "osmosis-1", ObservedDenom: "ibc/AAA", OriginDenom: "f/dAsset", Name: "dAsset", Amount: big.NewInt(7), Trace: model.HopSequence{"neutron-1", "osmosis-1"}},
		{Chain: "osmosis-1", ObservedDenom: "ibc/BBB", Name: model.UnknownName, Amount: big.NewInt(2), Trace: model.HopSequence{}},
	}
	result.Chains["stride-1"] = []model.BalanceRecord{}
	result.Failures["stride-1"] = "fetch balances on stride-1: timeout"
	result.AddTotal("dAsset", big.NewInt(7))
	result.Unresolved = 1
	return result
}

func TestWriteResultText(t *testing.T) {
	known := []model.KnownDenom{{Name: "dAsset", Denom: "f/dAsset"}, {Name: "lAsset", Denom: "f/lAsset"}}
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", reportResult(), known))

	out := buf.String()
	assert.Contains(t, out, "neutron-1 -> osmosis-1")
	assert.Contains(t, out, "failed: fetch balances on stride-1: timeout")
	assert.Regexp(t, `lAsset\s+0`, out)
	assert.Regexp(t, `dAsset\s+7`, out)
	assert.Regexp(t, `unresolved\s+1`, out)
}

func TestWriteResultJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "json", reportResult(), nil))

	var decoded struct {
		Totals     map[string]string `json:"totals"`
		Unresolved int               `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "7", decoded.Totals["dAsset"])
	assert.Equal(t, 1, decoded.Unresolved)
}

func TestWriteResultUnknownFormat(t *testing.T) {
	assert.Error(t, writeResult(&bytes.Buffer{}, "xml", reportResult(), nil))
}

func TestWriteResolutionText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResolution(&buf, "text", resolver.Resolution{Observed: "ibc/FF", Stats: resolver.Stats{Steps: 12}}))
	assert.Contains(t, buf.String(), "unresolved (12 steps")

	buf.Reset()
	require.NoError(t, writeResolution(&buf, "text", resolver.Resolution{Observed: "uatom", Origin: "cosmoshub-4", Native: true, Resolved: true}))
	assert.Contains(t, buf.String(), "native to cosmoshub-4")
}
