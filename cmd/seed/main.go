package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/revue-tickets/internal/config"
	"github.com/iliyamo/revue-tickets/internal/database"
	"github.com/iliyamo/revue-tickets/internal/logger"
	"github.com/iliyamo/revue-tickets/internal/repository"
	"github.com/iliyamo/revue-tickets/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	layout := seed.DefaultLayout
	var dates []string
	var vip string

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringSliceVar(&dates, "date", []string{"2025-08-14", "2025-08-15", "2025-08-16"}, "performance date to seed (repeatable, YYYY-MM-DD)")
	flagSet.IntVar(&layout.Rows, "rows", layout.Rows, "number of rows")
	flagSet.IntVar(&layout.SeatsPerRow, "seats-per-row", layout.SeatsPerRow, "seats in each row")
	flagSet.StringVar(&vip, "vip-rows", strings.Join(layout.VIPRows, ","), "comma separated row labels sold as VIP")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	layout.VIPRows = nil
	for _, r := range strings.Split(vip, ",") {
		if r = strings.TrimSpace(r); r != "" {
			layout.VIPRows = append(layout.VIPRows, r)
		}
	}

	cfg := config.Load()
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	n, err := seed.Run(ctx, repository.NewSeatRepo(db), dates, layout, zl)
	if err != nil {
		return err
	}
	zl.Info("seeding finished", zap.Int("dates_seeded", n), zap.Int("dates_requested", len(dates)))
	return nil
}
