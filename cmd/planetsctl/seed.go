package main

import (
	"fmt"
	"strconv"
	"strings"

	"planets-engine/internal/app"
	"planets-engine/internal/auth"
	"planets-engine/internal/base"
	"planets-engine/internal/empire"
	"planets-engine/internal/shared/config"
	"planets-engine/internal/shared/database"

	"github.com/spf13/cobra"
)

type seedOptions struct {
	empireName  string
	credits     int64
	role        string
	baseName    string
	coordinate  string
	environment string
	area        int
	population  int
	structures  string
	units       string
	fleetUnits  string
}

func newSeedCmd() *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an empire with a starting base and print a token for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				return runSeed(cmd, a, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.empireName, "empire", "Sol Directorate", "Empire name")
	f.Int64Var(&opts.credits, "credits", 5000, "Starting credits")
	f.StringVar(&opts.role, "role", "user", "Empire role (user or admin)")
	f.StringVar(&opts.baseName, "base", "Homeworld", "Base name")
	f.StringVar(&opts.coordinate, "coord", "01:01:01", "Base coordinate (RR:SS:BB)")
	f.StringVar(&opts.environment, "environment", "standard", "Base environment")
	f.IntVar(&opts.area, "area", 30, "Total base area")
	f.IntVar(&opts.population, "population", 20, "Base population")
	f.StringVar(&opts.structures, "structures", "solar_plant=2,shipyard=1", "Starting structures as key=level pairs")
	f.StringVar(&opts.units, "units", "fighter=10", "Starting units as key=count pairs")
	f.StringVar(&opts.fleetUnits, "fleet", "", "Form a fleet from these units, e.g. fighter=5")
	return cmd
}

func runSeed(cmd *cobra.Command, a *app.App, opts seedOptions) error {
	ctx := cmd.Context()

	structures, err := parseCounts(opts.structures)
	if err != nil {
		return fmt.Errorf("--structures: %w", err)
	}
	units, err := parseCounts(opts.units)
	if err != nil {
		return fmt.Errorf("--units: %w", err)
	}
	fleetUnits, err := parseCounts(opts.fleetUnits)
	if err != nil {
		return fmt.Errorf("--fleet: %w", err)
	}

	role := empire.ParseRole(opts.role)

	var e *empire.Empire
	var b *base.Base
	err = a.DB.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		e, err = a.Empires.CreateEmpire(ctx, opts.empireName, opts.credits, role, tx)
		if err != nil {
			return err
		}
		b, err = a.Bases.CreateBase(ctx, base.CreateParams{
			EmpireID:    e.ID,
			Name:        opts.baseName,
			Coordinate:  opts.coordinate,
			Environment: opts.environment,
			TotalArea:   opts.area,
			Population:  opts.population,
			Structures:  structures,
			Units:       units,
		}, tx)
		return err
	})
	if err != nil {
		return err
	}

	successColor.Printf("Empire %s (%s)\n", e.Name, e.ID)
	infoColor.Printf("  base   %s at %s (%s)\n", b.ID, b.Coordinate, b.Environment)
	infoColor.Printf("  energy %d produced / %d consumed\n", b.EnergyProduced, b.EnergyConsumed)

	if len(fleetUnits) > 0 {
		fl, err := a.Fleets.Form(ctx, b.ID, "First Fleet", fleetUnits)
		if err != nil {
			return fmt.Errorf("failed to form fleet: %w", err)
		}
		infoColor.Printf("  fleet  %s with %d ships\n", fl.ID, fl.Size)
	}

	cfg := config.GlobalConfig.Auth
	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.TokenExpiration)
	if err != nil {
		return err
	}
	token, err := signer.GenerateJWT(e.ID, e.Role.String())
	if err != nil {
		return err
	}
	titleColor.Println("\nBearer token:")
	fmt.Println(token)
	return nil
}

// parseCounts reads "key=n,key=n" into counts. An empty string yields an
// empty set.
func parseCounts(s string) (database.Counts, error) {
	out := database.Counts{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key=count, got %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count in %q", pair)
		}
		out[strings.TrimSpace(key)] = n
	}
	return out, nil
}
