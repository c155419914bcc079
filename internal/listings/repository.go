package listings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chromecollective/marketplace-backend/internal/repo"
	"github.com/chromecollective/marketplace-backend/pkg/db/models"
	"github.com/chromecollective/marketplace-backend/pkg/enums"
)

// Repository persists listings with GORM.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.DB(ctx).Create(listing).Error
}

// FindByID loads one listing; a missing row surfaces as gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.DB(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *Repository) Save(ctx context.Context, listing *models.Listing) error {
	return r.DB(ctx).Save(listing).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).Where("id = ?", id).Delete(&models.Listing{}).Error
}

// MarkExpired flips a still-active listing to expired. Rows already moved on by
// another writer are left alone.
func (r *Repository) MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.DB(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(map[string]any{"status": enums.ListingStatusExpired, "updated_at": now}).
		Error
}

// ExpireDue flips every active listing whose expiry has passed and returns how many rows
// changed.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Listing{}).
		Where("status = ? AND expires_at <= ?", enums.ListingStatusActive, now).
		Updates(map[string]any{"status": enums.ListingStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// List returns one page of listings matching query plus the total match count.
func (r *Repository) List(ctx context.Context, query ListQuery) ([]models.Listing, int64, error) {
	var total int64
	if err := r.DB(ctx).Model(&models.Listing{}).Scopes(r.filters(query)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 || int64(query.Offset) >= total {
		return []models.Listing{}, total, nil
	}

	qb := r.DB(ctx).Scopes(r.filters(query)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: query.Column}, Desc: query.Desc})
	if query.Column != "created_at" {
		qb = qb.Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: query.Desc})
	}
	qb = qb.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: query.Desc})

	var rows []models.Listing
	if err := qb.Offset(query.Offset).Limit(query.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) filters(query ListQuery) func(*gorm.DB) *gorm.DB {
	return func(qb *gorm.DB) *gorm.DB {
		if query.Category != "" {
			qb = qb.Where("LOWER(category) = ?", strings.ToLower(query.Category))
		}
		if query.Search != "" {
			qb = r.search(qb, query.Search)
		}
		qb = statusFilter(qb, query.Status, query.Now)
		if query.MinPrice != nil {
			qb = qb.Where("price >= ?", *query.MinPrice)
		}
		if query.MaxPrice != nil {
			qb = qb.Where("price <= ?", *query.MaxPrice)
		}
		return qb
	}
}

func (r *Repository) search(qb *gorm.DB, term string) *gorm.DB {
	if r.Postgres() {
		return qb.Where("search_vector @@ plainto_tsquery('simple', ?)", term)
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return qb.Where(
		`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`,
		pattern, pattern, pattern,
	)
}

// statusFilter matches the status a reader would observe, so active rows past their
// expiry count as expired. Without an explicit status, deleted listings are hidden.
func statusFilter(qb *gorm.DB, status *enums.ListingStatus, now time.Time) *gorm.DB {
	if status == nil {
		return qb.Where("status <> ?", enums.ListingStatusDeleted)
	}
	switch *status {
	case enums.ListingStatusActive:
		return qb.Where("status = ? AND expires_at > ?", enums.ListingStatusActive, now)
	case enums.ListingStatusExpired:
		return qb.Where("(status = ? OR (status = ? AND expires_at <= ?))",
			enums.ListingStatusExpired, enums.ListingStatusActive, now)
	default:
		return qb.Where("status = ?", *status)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
