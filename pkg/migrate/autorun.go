package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"gorm.io/gorm"
)

// LedgerModels lists every persisted model in dependency order.
func LedgerModels() []any {
	return []any{
		&models.Vendor{},
		&models.CashEvent{},
		&models.Settlement{},
		&models.WithdrawalRequest{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
		&models.Notification{},
	}
}

// AutoMigrateModels builds the schema from the gorm models. It is used for
// sqlite databases, which cannot run the postgres SQL migrations.
func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.AutoMigrate(LedgerModels()...); err != nil {
		return fmt.Errorf("auto-migrate ledger models: %w", err)
	}
	return nil
}

// MaybeRunDev executes migrations automatically when the app is running in dev mode and
// the feature flag is enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == config.DriverSQLite {
		logg.Info(ctx, "auto-migrating sqlite schema from models")
		return AutoMigrateModels(client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	files, err := Files("")
	if err != nil {
		return err
	}

	steps, err := Up(ctx, sqlDB, files)
	if err != nil {
		return fmt.Errorf("running embedded migrations: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(steps)), "embedded migrations applied")
	return nil
}
