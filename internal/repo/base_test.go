package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil || withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	if withoutCtx := base.DB(nil); withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBasePostgresDetection(t *testing.T) {
	if NewBase(newTestDB(t)).Postgres() {
		t.Fatalf("sqlite connection reported as postgres")
	}
	if NewBase(nil).Postgres() {
		t.Fatalf("nil connection reported as postgres")
	}
}
