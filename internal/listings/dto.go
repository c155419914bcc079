package listings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/db/models"
	"github.com/chromecollective/marketplace-backend/pkg/pagination"
	"github.com/chromecollective/marketplace-backend/pkg/types"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxCategoryLength    = 100
	MaxImages            = 10
	MaxTags              = 20
	MaxTagLength         = 50
)

// PriceValue accepts a JSON number or a numeric string and keeps the raw text for
// decimal parsing.
type PriceValue struct {
	Raw string
	Set bool
}

func (p *PriceValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	p.Set = true
	if bytes.Equal(data, []byte("null")) {
		p.Raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Raw)
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("price must be a number or numeric string")
	}
	p.Raw = number.String()
	return nil
}

func (p PriceValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Raw)
}

// Price builds a PriceValue from its textual form.
func Price(raw string) PriceValue {
	return PriceValue{Raw: raw, Set: true}
}

// CreateListingRequest is the body of POST /api/listings.
type CreateListingRequest struct {
	Title       string           `json:"title" validate:"max=200"`
	Description string           `json:"description" validate:"max=2000"`
	Price       PriceValue       `json:"price"`
	Currency    string           `json:"currency,omitempty"`
	Category    string           `json:"category,omitempty" validate:"max=100"`
	Condition   string           `json:"condition,omitempty"`
	Images      []types.ImageRef `json:"images,omitempty" validate:"max=10"`
	Tags        []string         `json:"tags,omitempty" validate:"max=20,dive,max=50"`
}

// UpdateListingRequest is the body of PUT /api/listings/{id}. Nil fields are left untouched;
// images and tags are replaced as a whole when present.
type UpdateListingRequest struct {
	Title       *string           `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       *PriceValue       `json:"price,omitempty"`
	Currency    *string           `json:"currency,omitempty"`
	Category    *string           `json:"category,omitempty" validate:"omitempty,max=100"`
	Condition   *string           `json:"condition,omitempty"`
	Status      *string           `json:"status,omitempty"`
	Images      *[]types.ImageRef `json:"images,omitempty"`
	Tags        *[]string         `json:"tags,omitempty"`
}

// ListingDTO is the wire shape of a listing. Price is rendered as a JSON number.
type ListingDTO struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"ownerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Currency    string           `json:"currency"`
	Category    string           `json:"category"`
	Condition   string           `json:"condition"`
	Status      string           `json:"status"`
	Images      []types.ImageRef `json:"images"`
	Tags        []string         `json:"tags"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type ListResult struct {
	Listings   []ListingDTO    `json:"listings"`
	Pagination pagination.Meta `json:"pagination"`
}

func toDTO(listing *models.Listing) *ListingDTO {
	images := []types.ImageRef(listing.Images)
	if images == nil {
		images = []types.ImageRef{}
	}
	tags := []string(listing.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &ListingDTO{
		ID:          listing.ID.String(),
		OwnerID:     listing.OwnerID,
		Title:       listing.Title,
		Description: listing.Description,
		Price:       listing.Price.InexactFloat64(),
		Currency:    listing.Currency.String(),
		Category:    listing.Category,
		Condition:   listing.Condition.String(),
		Status:      listing.Status.String(),
		Images:      images,
		Tags:        tags,
		ExpiresAt:   listing.ExpiresAt,
		CreatedAt:   listing.CreatedAt,
		UpdatedAt:   listing.UpdatedAt,
	}
}
