// Package cmd is the role-mining engine's command-line surface.
//
// Grounded on the original argparse flags (original_source/
// spcontoolplus/__main__.py): --contract_address becomes --address, and
// --simratio and --date reappear as cobra flags on the `mine`
// subcommand; --workspace is a persistent flag on the root command.
// --blockchain, --mode, --symEngine and --gene_encoding are not carried
// over.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagWorkspace string
	flagSeed      int64
)

// rootCmd is the entry point cobra.Command; main.go calls Execute().
var rootCmd = &cobra.Command{
	Use:   "rolemine",
	Short: "History-driven role mining and security policy derivation for smart contracts",
	Long: `rolemine infers access-control roles from a contract's observed
caller-to-function call history and derives integrity and
separation-of-duty security policies from those roles plus a static
read/write summary.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "./workspace", "root directory for per-address crawl/ABI/manifest artifacts")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 2022, "seed for the deterministic lattice sampler and GA")

	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
