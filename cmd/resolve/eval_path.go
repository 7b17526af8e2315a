package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/internal/permission/impl"
	"github.com/onchainwatch/permresolve/pkg/discoveredstore"
)

var evalPathCmd = &cobra.Command{
	Use:   "eval-path",
	Short: "Evaluate a single ownerDefinition path against a discovered snapshot",
	Long:  `Runs only the Path Evaluator against a loaded snapshot and prints the result, for curators authoring ownerDefinitions`,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		discoveredPath, err := cmd.Flags().GetString("discovered")
		if err != nil {
			return fmt.Errorf("discovered flag: %s", err)
		}
		contractStr, err := cmd.Flags().GetString("contract")
		if err != nil {
			return fmt.Errorf("contract flag: %s", err)
		}
		path, err := cmd.Flags().GetString("path")
		if err != nil {
			return fmt.Errorf("path flag: %s", err)
		}

		contract, ok := permission.ParseQualifiedAddress(contractStr)
		if !ok {
			return fmt.Errorf("%q is not a valid chain-qualified address", contractStr)
		}

		store, err := discoveredstore.Open(discoveredPath+".eval-cache.sqlite", discoveredPath)
		if err != nil {
			return fmt.Errorf("opening discovered store: %s", err)
		}
		defer store.Close()

		snapshot, err := store.Load(context.Background())
		if err != nil {
			return fmt.Errorf("loading discovered snapshot: %s", err)
		}

		result := impl.NewEvaluator(snapshot).Evaluate(contract, path)
		return printPathResult(result)
	},
}

func printPathResult(result impl.PathResult) error {
	if result.Err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", result.Err)
		return result.Err
	}

	out := struct {
		Addresses  []string              `json:"addresses,omitempty"`
		Structured *permission.FieldValue `json:"structured,omitempty"`
	}{
		Structured: result.Structured,
	}
	for _, a := range result.Addresses {
		out.Addresses = append(out.Addresses, a.String())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
