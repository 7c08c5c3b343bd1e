package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSQLStore(t *testing.T) (*SQLStore, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: silentLogger()})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	store, err := OpenSQLStore(WithExistingDB(db))
	if err != nil {
		t.Fatalf("open sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, db
}

func TestOpenSQLStoreRequiresConnection(t *testing.T) {
	if _, err := OpenSQLStore(); err == nil {
		t.Fatal("expected error without dialector or connection")
	}
}

func TestOpenSQLStoreWithoutMigration(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: silentLogger()})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	store, err := OpenSQLStore(WithExistingDB(db), WithAutoMigrate(false))
	if err != nil {
		t.Fatalf("open sql store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if db.Migrator().HasTable(&domainRow{}) {
		t.Fatal("schema was migrated although auto migration is off")
	}
	if _, _, err := store.Lookup(context.Background(), "evil.example"); err == nil {
		t.Fatal("expected lookup to fail against an unmigrated database")
	}
}

func TestSQLStoreAppendAndLookup(t *testing.T) {
	ctx := context.Background()
	store, _ := setupSQLStore(t)

	if _, ok, err := store.Lookup(ctx, "evil.example"); err != nil || ok {
		t.Fatalf("lookup before append = (%v, %v), want (false, nil)", ok, err)
	}

	first, err := store.Append(ctx, "evil.example", query("8.8.8.8", "2023-01-01 12:00:00"))
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if first.Count != 1 || first.Queries[0].IP != "8.8.8.8" {
		t.Fatalf("unexpected first record: %+v", first)
	}

	if _, err := store.Append(ctx, "evil.example", query("1.1.1.1", "2022-06-01 00:00:00")); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if _, err := store.Append(ctx, "evil.example", query("", "2023-02-01 00:00:00")); err != nil {
		t.Fatalf("third append: %v", err)
	}

	rec, ok, err := store.Lookup(ctx, "evil.example")
	if err != nil || !ok {
		t.Fatalf("lookup = (%v, %v)", ok, err)
	}
	if rec.Count != 3 || len(rec.Queries) != 3 {
		t.Fatalf("expected 3 queries, got %+v", rec)
	}

	want := []string{"2023-01-01 12:00:00", "2022-06-01 00:00:00", "2023-02-01 00:00:00"}
	for i, q := range rec.Queries {
		if q.Time.String() != want[i] {
			t.Fatalf("query %d time = %s, want %s (append order must be kept)", i, q.Time, want[i])
		}
	}
	if last, _ := rec.Last(); last.IP != "" {
		t.Fatalf("expected absent IP on last query, got %q", last.IP)
	}
}

func TestSQLStoreDetectsCountMismatch(t *testing.T) {
	ctx := context.Background()
	store, db := setupSQLStore(t)

	if _, err := store.Append(ctx, "a.com", query("8.8.8.8", "2023-01-01 00:00:00")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := db.Model(&domainRow{}).Where("domain = ?", "a.com").Update("count", 5).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, _, err := store.Lookup(ctx, "a.com"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("lookup: expected ErrCorrupt, got %v", err)
	}
	if _, err := store.Append(ctx, "a.com", query("8.8.8.8", "2023-01-02 00:00:00")); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("append: expected ErrCorrupt, got %v", err)
	}
}
