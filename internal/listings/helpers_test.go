package listings

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chromecollective/marketplace-backend/pkg/db/models"
)

const createListingsTableSQLite = `
CREATE TABLE listings (
  id          TEXT PRIMARY KEY,
  owner_id    TEXT NOT NULL,
  title       TEXT NOT NULL,
  description TEXT NOT NULL,
  price       NUMERIC NOT NULL,
  currency    TEXT NOT NULL DEFAULT 'USD',
  category    TEXT,
  condition   TEXT NOT NULL DEFAULT 'new',
  status      TEXT NOT NULL DEFAULT 'active',
  images      TEXT NOT NULL DEFAULT '[]',
  tags        TEXT,
  expires_at  DATETIME NOT NULL,
  created_at  DATETIME NOT NULL,
  updated_at  DATETIME NOT NULL
)`

var baseTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(createListingsTableSQLite).Error; err != nil {
		t.Fatalf("create listings table: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newTestService(t *testing.T, enforceOwnership bool) (*service, *Repository, *testClock) {
	t.Helper()
	repo := NewRepository(newTestDB(t))
	svc, err := NewService(repo, Options{TTL: 30 * 24 * time.Hour, EnforceOwnership: enforceOwnership})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	clock := &testClock{now: baseTime}
	impl := svc.(*service)
	impl.now = clock.Now
	return impl, repo, clock
}

func validCreateRequest() CreateListingRequest {
	return CreateListingRequest{
		Title:       "Cross Ring",
		Description: "Silver ring",
		Price:       Price("150.00"),
		Currency:    "USD",
		Category:    "Rings",
		Images:      nil,
	}
}

func countListings(t *testing.T, repo *Repository) int64 {
	t.Helper()
	var total int64
	if err := repo.DB(context.Background()).Model(&models.Listing{}).Count(&total).Error; err != nil {
		t.Fatalf("count listings: %v", err)
	}
	return total
}

type failingRepo struct {
	err error
}

func (f failingRepo) Create(context.Context, *models.Listing) error { return f.err }

func (f failingRepo) FindByID(context.Context, uuid.UUID) (*models.Listing, error) {
	return nil, f.err
}

func (f failingRepo) Save(context.Context, *models.Listing) error { return f.err }

func (f failingRepo) Delete(context.Context, uuid.UUID) error { return f.err }

func (f failingRepo) MarkExpired(context.Context, uuid.UUID, time.Time) error { return f.err }

func (f failingRepo) List(context.Context, ListQuery) ([]models.Listing, int64, error) {
	return nil, 0, f.err
}
