package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"planets-engine/internal/app"
	"planets-engine/internal/catalog"
	"planets-engine/internal/fleet"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/spatial"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick at the current time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				report, err := a.Scheduler.TickNow(cmd.Context())
				if err != nil {
					return err
				}

				successColor.Printf("Tick %d at %s\n", report.TickCount, report.At.Format("2006-01-02 15:04:05.000"))
				infoColor.Printf("  advanced %d, completed %d, arrived %d\n",
					report.Advanced, len(report.Completed), report.Arrived)
				if report.SnapshotID != "" {
					infoColor.Printf("  snapshot %s\n", report.SnapshotID)
				}
				for _, c := range report.Completed {
					fmt.Printf("  %-9s %-22s -> %d  (base %s)\n", c.Kind, c.CatalogKey, c.TargetLevel, c.BaseID)
				}
				return nil
			})
		},
	}
}

func newCatalogCmd() *cobra.Command {
	var kindName string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the production catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(config.GlobalConfig.Catalog.Path)
			if err != nil {
				return err
			}

			entries := cat.Entries()
			if kindName != "" {
				kind, err := catalog.ParseKind(kindName)
				if err != nil {
					return err
				}
				entries = cat.ByKind(kind)
			}

			titleColor.Printf("Catalog (%d entries, baseline energy %d)\n\n", len(entries), cat.BaselineEnergy)
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Key", "Kind", "Cost", "Duration", "Energy", "Area", "Speed", "Requires"}),
			)
			for _, e := range entries {
				speed := ""
				if e.Speed > 0 {
					speed = strconv.FormatFloat(e.Speed, 'f', -1, 64)
				}
				requires := make([]string, 0, len(e.Requires))
				for key, lvl := range e.Requires {
					requires = append(requires, fmt.Sprintf("%s:%d", key, lvl))
				}
				sort.Strings(requires)
				_ = table.Append([]string{
					e.Key,
					e.Kind.String(),
					strconv.FormatInt(e.CostFor(1), 10),
					fmt.Sprintf("%dms", e.DurationFor(1)),
					strconv.Itoa(e.EnergyPerLevel()),
					strconv.Itoa(e.Area),
					speed,
					strings.Join(requires, " "),
				})
			}
			return table.Render()
		},
	}

	cmd.Flags().StringVarP(&kindName, "kind", "k", "", "Only show one kind (structure, tech, unit, defense)")
	return cmd
}

func newEstimateCmd() *cobra.Command {
	var from, to, units string

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate travel between two coordinates for a set of units",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GlobalConfig

			origin, err := spatial.ParseCoordinate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			destination, err := spatial.ParseCoordinate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			counts, err := parseCounts(units)
			if err != nil {
				return fmt.Errorf("--units: %w", err)
			}

			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			speed, err := fleet.CalculateFleetSpeed(counts, cat)
			if err != nil {
				return err
			}
			if speed <= 0 {
				return fmt.Errorf("no units given")
			}

			distance := spatial.MetricFromConfig(cfg.Movement).CalculateDistance(origin, destination)
			hours := fleet.CalculateTravelTime(distance, speed, cfg.Movement.MinTravelHours)

			titleColor.Printf("%s -> %s\n", origin, destination)
			infoColor.Printf("  distance %.3f\n  speed    %g\n", distance, speed)
			successColor.Printf("  travel   %.4fh (%s)\n", hours, fleet.TravelDuration(hours))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Origin coordinate (RR:SS:BB)")
	cmd.Flags().StringVar(&to, "to", "", "Destination coordinate (RR:SS:BB)")
	cmd.Flags().StringVar(&units, "units", "", "Units as key=count pairs")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("units")
	return cmd
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect ledger snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Walk the snapshot hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				n, err := a.Snapshots.Verify(cmd.Context())
				if err != nil {
					return fmt.Errorf("chain broken after %d snapshots: %w", n, err)
				}
				successColor.Printf("%d snapshots verified\n", n)

				latest, err := a.Snapshots.Latest(cmd.Context())
				if err != nil {
					return err
				}
				if latest != nil {
					infoColor.Printf("  latest tick %d, %d bases, hash %s\n", latest.TickCount, latest.BaseCount, latest.Hash)
				}
				return nil
			})
		},
	})
	return cmd
}
