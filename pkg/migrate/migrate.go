package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `-cmd=create` writes new migrations.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Step describes one applied or rolled back migration.
type Step struct {
	Version   int64
	Path      string
	Direction string
	Duration  time.Duration
}

// Files returns the migration set to run. An empty dir selects the
// migrations compiled into the binary.
func Files(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return sub, nil
}

func newProvider(db *sql.DB, files fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if files == nil {
		return nil, fmt.Errorf("migration files are required")
	}
	// the SQL migrations use plpgsql triggers and enum types
	provider, err := goose.NewProvider(goose.DialectPostgres, db, files)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}

func Up(ctx context.Context, db *sql.DB, files fs.FS) ([]Step, error) {
	provider, err := newProvider(db, files)
	if err != nil {
		return nil, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return toSteps(results), fmt.Errorf("goose up: %w", err)
	}
	return toSteps(results), nil
}

// Down rolls back the most recent migration only.
func Down(ctx context.Context, db *sql.DB, files fs.FS) ([]Step, error) {
	provider, err := newProvider(db, files)
	if err != nil {
		return nil, err
	}
	result, err := provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return toSteps([]*goose.MigrationResult{result}), nil
}

func Status(ctx context.Context, db *sql.DB, files fs.FS) ([]*goose.MigrationStatus, error) {
	provider, err := newProvider(db, files)
	if err != nil {
		return nil, err
	}
	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// MigrateToVersion moves the schema up or down to targetVersion (YYYYMMDDHHMMSS).
func MigrateToVersion(ctx context.Context, db *sql.DB, files fs.FS, targetVersion string) ([]Step, error) {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	provider, err := newProvider(db, files)
	if err != nil {
		return nil, err
	}
	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = provider.UpTo(ctx, target)
	default:
		results, err = provider.DownTo(ctx, target)
	}
	if err != nil {
		return toSteps(results), fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return toSteps(results), nil
}

func toSteps(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration,
		})
	}
	return steps
}
