package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"planets-engine/internal/app"
	"planets-engine/internal/shared/clock"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"
	"planets-engine/internal/shared/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	infoColor    = color.New(color.FgYellow)
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "planetsctl",
		Short:         "Operate a planets engine database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(); err != nil {
				return err
			}
			logger.Init()
			return nil
		},
	}

	rootCmd.AddCommand(
		newMigrateCmd(),
		newSeedCmd(),
		newTickCmd(),
		newCatalogCmd(),
		newEstimateCmd(),
		newSnapshotsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

// withApp opens the configured database, migrates it and hands the wired
// application to fn.
func withApp(fn func(a *app.App) error) error {
	db, err := database.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := app.New(config.GlobalConfig, db, nil, clock.System{}, slog.Default())
	if err != nil {
		return err
	}
	return fn(a)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect()
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := db.RunMigrations(); err != nil {
				return err
			}
			successColor.Println("Migrations applied")
			return nil
		},
	}
}
