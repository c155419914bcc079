package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestListingsMigrationContainsSchema(t *testing.T) {
	matches, err := fs.Glob(Embedded(), "*_create_listings_table.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one listings migration, got %v", matches)
	}

	data, err := fs.ReadFile(Embedded(), matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS listings",
		"price numeric(12,2) NOT NULL CHECK (price > 0)",
		"images jsonb NOT NULL",
		"tags text[]",
		"search_vector tsvector GENERATED ALWAYS AS",
		"CREATE INDEX IF NOT EXISTS idx_listings_search_vector ON listings USING GIN (search_vector)",
		"CREATE INDEX IF NOT EXISTS idx_listings_category",
		"CREATE INDEX IF NOT EXISTS idx_listings_created_at_id",
		"CREATE INDEX IF NOT EXISTS idx_listings_expires_at",
		"DROP TABLE IF EXISTS listings",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateFS(Embedded()); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestValidateFSRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateFS(os.DirFS(dir)); err == nil {
		t.Fatal("expected invalid filename to fail")
	}
}

func TestValidateFSRequiresDownSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := ValidateFS(os.DirFS(dir))
	if err == nil || !strings.Contains(err.Error(), "-- +goose Down") {
		t.Fatalf("expected missing down error, got %v", err)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "Add Listing Slug!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301120000_add_listing_slug.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateFS(os.DirFS(dir)); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := createSQLMigration(dir, "add  listing-slug", now.Add(time.Hour)); err == nil {
		t.Fatal("expected a reused name to fail even with a new version")
	}
	if _, err := createSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected empty sanitized name to fail")
	}
}
