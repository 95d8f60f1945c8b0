// Package main provides a CLI tool for seeding the catalog from a YAML file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repocatalog/internal/app"
	"repocatalog/internal/config"
	"repocatalog/internal/domain/catalog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		notify     bool
	)

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load repositories from a YAML file into the catalog",
		Long: `Reads a list of repositories and creates each one through the registry
service. Names that already exist are reported and skipped.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, args[0], notify)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CATALOG_CONFIG"), "path to the service config file")
	cmd.Flags().BoolVar(&notify, "notify", false, "dispatch creation notifications for seeded records")
	return cmd
}

func run(ctx context.Context, configPath, seedPath string, notify bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	entries, err := loadSeedFile(seedPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	notifier := catalog.NopNotifier
	if notify {
		notifier = a.Notifier()
	}

	result, err := seedRecords(ctx, a.Service(notifier), entries, a.Log)
	if err != nil {
		return err
	}

	a.Log.Infow("seeding completed",
		"created", result.Created,
		"skipped", result.Skipped,
		"notify_failed", result.NotifyFailed,
	)
	fmt.Printf("created %d, skipped %d\n", result.Created, result.Skipped)
	return nil
}
