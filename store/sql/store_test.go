package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func newSQLiteStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:integrations-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(db)
	if err != nil {
		t.Fatalf("new sql store: %v", err)
	}
	clock := &testClock{current: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)}
	store.now = clock.Now
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store, clock
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

func TestStore_SetGetConsume(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, found, err := store.Get(ctx, "k1")
	if err != nil || !found || string(value) != "v1" {
		t.Fatalf("expected hit with v1, got %q found=%v err=%v", value, found, err)
	}

	value, found, err = store.Consume(ctx, "k1")
	if err != nil || !found || string(value) != "v1" {
		t.Fatalf("expected consume hit, got %q found=%v err=%v", value, found, err)
	}

	if _, found, _ := store.Consume(ctx, "k1"); found {
		t.Fatalf("second consume must miss")
	}
	if _, found, _ := store.Get(ctx, "k1"); found {
		t.Fatalf("get after consume must miss")
	}
}

func TestStore_SetOverwritesExistingKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := store.Set(ctx, "k1", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("second set: %v", err)
	}

	value, found, err := store.Get(ctx, "k1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if string(value) != "v2" {
		t.Fatalf("expected latest value, got %s", value)
	}
}

func TestStore_ExpiredRowsAreInvisible(t *testing.T) {
	ctx := context.Background()
	store, clock := newSQLiteStore(t)

	if err := store.Set(ctx, "k1", []byte("v1"), 90*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}

	clock.Advance(2 * time.Minute)

	if _, found, _ := store.Get(ctx, "k1"); found {
		t.Fatalf("expired row must read as absent")
	}
	if err := store.Set(ctx, "k2", []byte("v2"), 90*time.Second); err != nil {
		t.Fatalf("set second key: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, found, _ := store.Consume(ctx, "k2"); found {
		t.Fatalf("expired row must not be consumable")
	}
}

func TestStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store, clock := newSQLiteStore(t)

	if err := store.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set short: %v", err)
	}
	if err := store.Set(ctx, "long", []byte("v"), time.Hour); err != nil {
		t.Fatalf("set long: %v", err)
	}

	clock.Advance(time.Minute)

	removed, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one reclaimed row, got %d", removed)
	}
	if _, found, _ := store.Get(ctx, "long"); !found {
		t.Fatalf("live row must survive the sweep")
	}
}
