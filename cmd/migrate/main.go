package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk; empty uses the embedded ledger migrations")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	// create and validate work offline and do not need config
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name, time.Now())
		exitOn(err, "create migration")
		fmt.Println("created migration:", path)
		return
	case "validate":
		files, err := migrate.Files(*dir)
		exitOn(err, "open migrations")
		exitOn(migrate.ValidateFS(files), "validate migrations")
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	exitOn(err, "load config")
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(err, "connect database")
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(err, "extract sql.DB")
	files, err := migrate.Files(*dir)
	exitOn(err, "open migrations")

	var steps []migrate.Step
	switch *cmd {
	case "up":
		steps, err = migrate.Up(ctx, sqlDB, files)
	case "down":
		steps, err = migrate.Down(ctx, sqlDB, files)
	case "version":
		if *version == "" {
			exitOn(fmt.Errorf("missing -version"), "migrate to version")
		}
		steps, err = migrate.MigrateToVersion(ctx, sqlDB, files, *version)
	case "status":
		statuses, statusErr := migrate.Status(ctx, sqlDB, files)
		exitOn(statusErr, "migration status")
		for _, st := range statuses {
			applied := "pending"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-16d %-10s %s\n", st.Source.Version, applied, st.Source.Path)
		}
		return
	default:
		exitOn(fmt.Errorf("unknown -cmd value %q", *cmd), "migrate")
	}

	for _, step := range steps {
		fmt.Printf("%s %d %s (%s)\n", step.Direction, step.Version, step.Path, step.Duration.Round(time.Millisecond))
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migration complete")
}

func exitOn(err error, what string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
