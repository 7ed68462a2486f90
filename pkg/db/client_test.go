package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Where("name = ?", "panicked").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, found %d rows", count)
	}
}

func TestDialectorFor(t *testing.T) {
	if d, err := dialectorFor(config.DBConfig{Driver: config.DriverSQLite, DSN: "file::memory:"}); err != nil || d.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %v (%v)", d, err)
	}
	if d, err := dialectorFor(config.DBConfig{DSN: "postgres://localhost/db"}); err != nil || d.Name() != "postgres" {
		t.Fatalf("expected postgres dialector, got %v (%v)", d, err)
	}
	if _, err := dialectorFor(config.DBConfig{Driver: "mysql", DSN: "x"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	q := newQueryLogger(logg, 50*time.Millisecond)
	stmt := func() (string, int64) { return "SELECT * FROM vendors", 3 }

	q.Trace(context.Background(), time.Now(), stmt, nil)
	q.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("fast and not-found statements should be quiet, got %s", buf.String())
	}

	q.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), "db.slow_query") || !strings.Contains(buf.String(), `"rows":3`) {
		t.Fatalf("expected slow query entry, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(context.Background(), time.Now(), stmt, errors.New("relation does not exist"))
	if !strings.Contains(buf.String(), "db.query_failed") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}

	if newQueryLogger(nil, time.Second) == nil {
		t.Fatal("expected discard logger when no service logger is set")
	}
}
