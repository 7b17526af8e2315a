package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onchainwatch/permresolve/buildinfo"
	"github.com/onchainwatch/permresolve/internal/permission"
	"github.com/onchainwatch/permresolve/internal/permission/impl"
	"github.com/onchainwatch/permresolve/pkg/discoveredstore"
	"github.com/onchainwatch/permresolve/pkg/logging"
	"github.com/onchainwatch/permresolve/pkg/logicsolver"
	"github.com/onchainwatch/permresolve/pkg/metrics"
	"github.com/onchainwatch/permresolve/pkg/overridesstore"
	"github.com/onchainwatch/permresolve/pkg/resolvedstore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one permission resolution",
	Long:  `Loads a discovered snapshot and an overrides document, resolves ultimate ownership, and writes the resolved document`,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setupConfig()
		logging.SetupLogger(buildinfo.GitCommit, cfg.Log.Debug, cfg.Log.Human)
		if err := metrics.SetupInstrumentation(":"+cfg.Metrics.Port, permission.ServiceName); err != nil {
			log.Error().Err(err).Msg("could not setup instrumentation, continuing without metrics")
		}

		discoveredPath, err := cmd.Flags().GetString("discovered")
		if err != nil {
			return fmt.Errorf("discovered flag: %s", err)
		}
		overridesPath, err := cmd.Flags().GetString("overrides")
		if err != nil {
			return fmt.Errorf("overrides flag: %s", err)
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return fmt.Errorf("out flag: %s", err)
		}
		cachePath, err := cmd.Flags().GetString("cache")
		if err != nil {
			return fmt.Errorf("cache flag: %s", err)
		}
		if cachePath == "" {
			cachePath = filepath.Join(filepath.Dir(discoveredPath), ".discovered-cache.sqlite")
		}
		solverURL, err := cmd.Flags().GetString("solver-url")
		if err != nil {
			return fmt.Errorf("solver-url flag: %s", err)
		}
		solverRPS, err := cmd.Flags().GetFloat64("solver-rps")
		if err != nil {
			return fmt.Errorf("solver-rps flag: %s", err)
		}

		ctx := context.Background()

		discovered, err := discoveredstore.Open(cachePath, discoveredPath)
		if err != nil {
			return fmt.Errorf("opening discovered store: %s", err)
		}
		defer discovered.Close()

		overrides := overridesstore.New(overridesPath)
		resolved := resolvedstore.New(outPath)

		overridesDoc, err := overrides.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading overrides: %s", err)
		}
		snapshot, err := discovered.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading discovered snapshot: %s", err)
		}

		var resolvedDoc permission.ResolvedDocument
		if solverURL != "" {
			client, err := logicsolver.NewClient(solverURL, uint64(solverRPS))
			if err != nil {
				return fmt.Errorf("creating logic solver client: %s", err)
			}
			resolvedDoc, err = client.Resolve(ctx, overridesDoc, snapshot)
			if err != nil {
				return fmt.Errorf("resolving via logic solver: %s", err)
			}
		} else {
			engine, err := impl.NewInstrumentedEngine(impl.NewEngine())
			if err != nil {
				return fmt.Errorf("instrumenting engine: %s", err)
			}
			resolvedDoc, err = engine.Resolve(ctx, overridesDoc, snapshot)
			if err != nil {
				return fmt.Errorf("resolving: %s", err)
			}
		}

		if err := resolved.Save(ctx, resolvedDoc); err != nil {
			return fmt.Errorf("saving resolved document: %s", err)
		}

		log.Info().
			Int("contracts", len(resolvedDoc.Contracts)).
			Str("out", outPath).
			Msg("resolution complete")
		return nil
	},
}
