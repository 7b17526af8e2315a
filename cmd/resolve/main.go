// Command resolve is the curator-facing CLI for running permission
// resolution and debugging ownerDefinition path expressions.
package main

import (
	"github.com/spf13/cobra"
)

var cliName = "resolve"

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "resolve runs the permission resolution engine",
	Long:  `resolve loads a discovered on-chain snapshot and a curator overrides document and produces a resolved ownership document`,
	Args:  cobra.ExactArgs(0),
}

func main() {
	rootCmd.Execute() //nolint
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalPathCmd)

	runCmd.Flags().String("discovered", "discovered.json", "path to the discovered snapshot file")
	runCmd.Flags().String("overrides", "permission-overrides.json", "path to the curator overrides document")
	runCmd.Flags().String("out", "resolved.json", "path to write the resolved document to")
	runCmd.Flags().String("cache", "", "path to the discovered-snapshot memoization cache (defaults alongside --discovered)")
	runCmd.Flags().String("solver-url", "", "if set, resolve via the external logic solver at this URL instead of the native engine")
	runCmd.Flags().Float64("solver-rps", 5, "max outbound requests per second to the logic solver")

	evalPathCmd.Flags().String("discovered", "discovered.json", "path to the discovered snapshot file")
	evalPathCmd.Flags().String("contract", "", "the contract address the path is evaluated relative to")
	evalPathCmd.Flags().String("path", "", "the ownerDefinition path expression to evaluate")
	_ = evalPathCmd.MarkFlagRequired("contract")
	_ = evalPathCmd.MarkFlagRequired("path")
}
