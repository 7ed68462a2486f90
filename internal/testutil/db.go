// Package testutil holds helpers shared by repository and service tests.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/db/models"
	"github.com/angelmondragon/vendorledger/pkg/enums"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
	"github.com/angelmondragon/vendorledger/pkg/outbox"
)

// NewDB opens an isolated in-memory sqlite database with the ledger schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// NewClient wraps NewDB in a db.Client so services get the production WithTx.
func NewClient(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := NewDB(t)
	return db.NewFromConn(conn), conn
}

// SeedVendor inserts a vendor with the given limit and balances.
func SeedVendor(t *testing.T, conn *gorm.DB, limitCents, dueCents, walletCents int64) models.Vendor {
	t.Helper()
	vendor := models.Vendor{
		ID:                  uuid.New(),
		Name:                "vendor-" + uuid.NewString()[:8],
		CashLimitCents:      limitCents,
		DueBalanceCents:     dueCents,
		WalletEarningsCents: walletCents,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&vendor).Error)
	return vendor
}

// ReloadVendor reads the vendor row back from the database.
func ReloadVendor(t *testing.T, conn *gorm.DB, id uuid.UUID) models.Vendor {
	t.Helper()
	var vendor models.Vendor
	require.NoError(t, conn.First(&vendor, "id = ?", id).Error)
	return vendor
}

// NewOutbox returns an outbox service writing to conn.
func NewOutbox(conn *gorm.DB) *outbox.Service {
	return outbox.NewService(outbox.NewRepository(conn), nil)
}

// OutboxEventTypes lists queued outbox event types in insertion order.
func OutboxEventTypes(t *testing.T, conn *gorm.DB) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}
