package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"ibctrace/internal/model"
	"ibctrace/internal/resolver"
)

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func checkFormat(format string) error {
	switch format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeResult prints a tracking run: records per chain, failures, then the
// totals of every known denom in config order.
func writeResult(w io.Writer, format string, result model.ResolutionResult, known []model.KnownDenom) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return encodeJSON(w, result)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, chain := range result.SortedChains() {
		fmt.Fprintf(tw, "%s\n", chain)
		if msg, failed := result.Failures[chain]; failed {
			fmt.Fprintf(tw, "  failed: %s\n", msg)
			continue
		}
		records := result.Chains[chain]
		if len(records) == 0 {
			fmt.Fprintf(tw, "  (no balances)\n")
			continue
		}
		for _, rec := range records {
			trace := "-"
			if len(rec.Trace) > 0 {
				trace = rec.Trace.String()
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", rec.Name, rec.Amount, rec.ObservedDenom, trace)
		}
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "totals")
	seen := make(map[string]struct{}, len(known))
	for _, k := range known {
		seen[k.Name] = struct{}{}
		fmt.Fprintf(tw, "  %s\t%s\n", k.Name, result.Total(k.Name))
	}
	var extra []string
	for name := range result.Totals {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		fmt.Fprintf(tw, "  %s\t%s\n", name, result.Total(name))
	}
	fmt.Fprintf(tw, "unresolved\t%d\n", result.Unresolved)
	return tw.Flush()
}

func writeResolution(w io.Writer, format string, res resolver.Resolution) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return encodeJSON(w, res)
	}

	switch {
	case res.Native:
		fmt.Fprintf(w, "%s is native to %s\n", res.Observed, res.Origin)
		return nil
	case !res.Resolved:
		fmt.Fprintf(w, "%s: unresolved (%d steps, %d comparisons)\n", res.Observed, res.Stats.Steps, res.Stats.Comparisons)
		return nil
	}

	fmt.Fprintf(w, "%s\n  name   %s\n  base   %s\n  path   %s\n  trace  %s\n",
		res.Observed, res.Name, res.BaseDenom, res.Path, res.Trace)
	if len(res.Alternatives) > 1 {
		fmt.Fprintf(w, "  %d traces match at %d hops:\n", len(res.Alternatives), res.Trace.Hops())
		for _, m := range res.Alternatives {
			fmt.Fprintf(w, "    %s  %s\n", m.Name, m.Trace.Hops)
		}
	}
	_, err := fmt.Fprintf(w, "  stats  %d steps, %d comparisons, %d pruned\n",
		res.Stats.Steps, res.Stats.Comparisons, res.Stats.Pruned)
	return err
}

func writeEncoded(w io.Writer, format string, out encodeOutput) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if format == "json" {
		return encodeJSON(w, out)
	}
	_, err := fmt.Fprintf(w, "%s\n  trace  %s\n  path   %s\n", out.Denom, out.Trace, out.Path)
	return err
}
