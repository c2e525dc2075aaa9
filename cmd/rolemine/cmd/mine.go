package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spcon-go/rolemine/internal/abi"
	"github.com/spcon-go/rolemine/internal/crawler"
	"github.com/spcon-go/rolemine/internal/rolemine"
	"github.com/spcon-go/rolemine/internal/workspace"
	"github.com/spcon-go/rolemine/pkg/models"
)

var (
	flagAddress     string
	flagDate        string
	flagSimRatio    float64
	flagGenerations int
	flagPopulation  int
	flagMiner       string
	flagReport      bool
	flagBitqueryKey string
)

// mineCmd is the direct translation of the original argparse surface's
// Mode_RoleMining path: crawl (or reuse a cached) call history for one
// contract address, mine roles, derive policies, and print or persist
// the result.
var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine access-control roles and security policies for a single contract address",
	RunE:  runMine,
}

func init() {
	mineCmd.Flags().StringVar(&flagAddress, "address", "", "contract address to mine (required)")
	mineCmd.Flags().StringVar(&flagDate, "date", "latest", "ISO8601 date cutoff for the call-history crawl")
	mineCmd.Flags().Float64Var(&flagSimRatio, "simratio", 0.40, "GA fitness weight (alpha) between similarity and generalization error")
	mineCmd.Flags().IntVar(&flagGenerations, "generations", 100, "GA generation count")
	mineCmd.Flags().IntVar(&flagPopulation, "population", 100, "GA population size")
	mineCmd.Flags().StringVar(&flagMiner, "miner", rolemine.MinerGA, "role-clustering strategy: ga, hierarchical-merge, hierarchical-partition, orca, greedy-overlap")
	mineCmd.Flags().BoolVar(&flagReport, "report", false, "print a tabular summary of mined roles instead of JSON")
	mineCmd.Flags().StringVar(&flagBitqueryKey, "bitquery-api-key", os.Getenv("BITQUERY_API_KEY"), "BitQuery API key; if empty, a cached all_txs.json in the workspace is used instead")
	_ = mineCmd.MarkFlagRequired("address")
}

func runMine(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ws, err := workspace.For(flagWorkspace, flagAddress)
	if err != nil {
		return fmt.Errorf("preparing workspace: %w", err)
	}

	var doc models.CallHistoryDocument
	if flagBitqueryKey != "" {
		client := crawler.NewClient(flagBitqueryKey, nil)
		result, err := client.FetchHistory(ctx, flagAddress, flagDate)
		if err != nil {
			return fmt.Errorf("crawling call history: %w", err)
		}
		if !result.Usable {
			fmt.Fprintln(os.Stderr, "warning: fewer than 50 unique calls reported; mining may be unreliable")
		}
		doc = result.AllTxs
		_ = ws.WriteAllTxs(doc)
	} else {
		doc, err = ws.ReadAllTxs()
		if err != nil {
			return fmt.Errorf("no cached call history found and no --bitquery-api-key supplied: %w", err)
		}
	}

	var resolve rolemine.SelectorResolver
	if abiBytes, err := ws.FindABI(); err == nil {
		if resolver, err := abi.Parse(abiBytes); err == nil {
			resolve = resolver.Resolve
		}
	}

	records := rolemine.RecordsFromDocument(doc, resolve)
	history := rolemine.NewStaticHistorySource(records)
	rwSource := rolemine.NewStaticRWSummarySource(models.RWSummary{})

	cfg := rolemine.DefaultConfig()
	cfg.SimRatio = flagSimRatio
	cfg.Generations = flagGenerations
	cfg.Population = flagPopulation
	cfg.Seed = flagSeed
	cfg.Miner = flagMiner

	run, err := rolemine.Run(ctx, flagAddress, history, rwSource, cfg)
	if err != nil {
		return fmt.Errorf("mining roles: %w", err)
	}

	if err := ws.WriteManifest(models.ResultManifest{
		Address:     flagAddress,
		GeneratedAt: run.FinishedAt,
		Roles:       run.Roles,
		Policies:    run.Policies,
		Warnings:    run.Warnings,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write manifest: %v\n", err)
	}

	if flagReport {
		printRoleReport(run)
		return nil
	}

	return printJSON(run)
}

// printRoleReport renders a basic-roles summary with text/tabwriter,
// mirroring the PrettyTable output the Python reference printed to
// stdout (original_source's reliance on the `prettytable` package).
func printRoleReport(run *models.MiningRun) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tUSERS\tFUNCTIONS")
	for i, role := range run.Roles {
		fmt.Fprintf(w, "role_%d\t%d\t%d\n", i, len(role.Users), len(role.Functions))
	}
	w.Flush()

	if len(run.Warnings) > 0 {
		fmt.Println("\nwarnings:")
		for _, warn := range run.Warnings {
			fmt.Printf("  - %s: %s\n", warn.Kind, warn.Message)
		}
	}
}
