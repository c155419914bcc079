package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/chromecollective/marketplace-backend/pkg/enums"
	"github.com/chromecollective/marketplace-backend/pkg/types"
)

// Listing is a for-sale posting. Images reference objects already finalized in storage.
// Timestamps are set by the listings service so expiry and updatedAt share one clock.
type Listing struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     string                 `gorm:"column:owner_id;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Description string                 `gorm:"column:description;not null"`
	Price       decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    enums.Currency         `gorm:"column:currency;not null;default:USD"`
	Category    string                 `gorm:"column:category"`
	Condition   enums.ListingCondition `gorm:"column:condition;not null;default:new"`
	Status      enums.ListingStatus    `gorm:"column:status;not null;default:active"`
	Images      types.ImageRefs        `gorm:"column:images;type:jsonb;not null"`
	Tags        pq.StringArray         `gorm:"column:tags;type:text[]"`
	ExpiresAt   time.Time              `gorm:"column:expires_at;not null"`
	CreatedAt   time.Time              `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;not null"`
}

func (Listing) TableName() string {
	return "listings"
}

// IsExpiredAt reports whether an active listing has outlived its expiry at now.
func (l *Listing) IsExpiredAt(now time.Time) bool {
	return l.Status == enums.ListingStatusActive && !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}
