package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ibctrace/internal/config"
	"ibctrace/internal/denom"
	"ibctrace/internal/model"
)

type encodeOutput struct {
	Trace model.HopSequence `json:"trace"`
	Path  string            `json:"path"`
	Denom string            `json:"denom"`
}

func runEncode(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("denom")
	if base == "" {
		return fmt.Errorf("--denom is required")
	}
	for _, d := range cfg.Denoms {
		if d.Name == base {
			base = d.Denom
			break
		}
	}

	topo, err := cfg.Topology()
	if err != nil {
		return err
	}
	codec := denom.NewCodec(topo)

	hops := make(model.HopSequence, 0, len(args))
	for _, a := range args {
		hops = append(hops, model.ChainID(a))
	}
	trace := model.DenomTrace{Hops: hops, BaseDenom: base}

	encoded, err := codec.Encode(trace)
	if err != nil {
		return err
	}
	path, err := codec.FullPath(trace)
	if err != nil {
		return err
	}

	return writeEncoded(cmd.OutOrStdout(), cfg.Format, encodeOutput{Trace: hops, Path: path, Denom: encoded})
}
