package repo

import (
	"context"

	"gorm.io/gorm"
)

const DialectPostgres = "postgres"

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Postgres reports whether the connection speaks the postgres dialect. Repositories use
// it to pick full-text features that sqlite test databases lack.
func (b Base) Postgres() bool {
	return b.db != nil && b.db.Dialector != nil && b.db.Dialector.Name() == DialectPostgres
}
