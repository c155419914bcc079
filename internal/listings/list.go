package listings

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chromecollective/marketplace-backend/pkg/enums"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/pagination"
)

type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortPrice     SortField = "price"
	SortTitle     SortField = "title"
)

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortUpdatedAt: "updated_at",
	SortPrice:     "price",
	SortTitle:     "title",
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	Category string
	Search   string
	Status   string
	MinPrice string
	MaxPrice string
}

// ListInput captures the raw query of GET /api/listings.
type ListInput struct {
	Pagination pagination.Params
	Sort       string
	Order      string
	Filters    ListFilters
}

// ListQuery is the validated form handed to the repository.
type ListQuery struct {
	Category string
	Search   string
	Status   *enums.ListingStatus
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Column   string
	Desc     bool
	Offset   int
	Limit    int
	Now      time.Time
}

func buildListQuery(in ListInput, now time.Time) (ListQuery, error) {
	// totalPages is derived from the requested limit, so it is never clamped
	if in.Pagination.Limit > pagination.MaxLimit {
		return ListQuery{}, pkgerrors.FieldError("limit", fmt.Sprintf("must be at most %d", pagination.MaxLimit))
	}
	params := in.Pagination.Normalize()
	query := ListQuery{
		Category: strings.TrimSpace(in.Filters.Category),
		Search:   strings.Join(strings.Fields(in.Filters.Search), " "),
		Offset:   params.Offset(),
		Limit:    params.Limit,
		Now:      now,
	}

	sort := SortField(strings.TrimSpace(in.Sort))
	if sort == "" {
		sort = SortCreatedAt
	}
	column, ok := sortColumns[sort]
	if !ok {
		return ListQuery{}, pkgerrors.FieldError("sort", "must be one of createdAt, updatedAt, price, title")
	}
	query.Column = column

	switch SortOrder(strings.ToLower(strings.TrimSpace(in.Order))) {
	case "", OrderDesc:
		query.Desc = true
	case OrderAsc:
		query.Desc = false
	default:
		return ListQuery{}, pkgerrors.FieldError("order", "must be asc or desc")
	}

	if raw := strings.TrimSpace(in.Filters.Status); raw != "" {
		status, err := enums.ParseListingStatus(raw)
		if err != nil {
			return ListQuery{}, pkgerrors.FieldError("status", "is not a valid listing status")
		}
		query.Status = &status
	}

	var err error
	if query.MinPrice, err = parseBound("minPrice", in.Filters.MinPrice); err != nil {
		return ListQuery{}, err
	}
	if query.MaxPrice, err = parseBound("maxPrice", in.Filters.MaxPrice); err != nil {
		return ListQuery{}, err
	}
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return ListQuery{}, pkgerrors.FieldError("minPrice", "must not exceed maxPrice")
	}
	return query, nil
}

func parseBound(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return nil, pkgerrors.FieldError(field, "must be a non-negative number")
	}
	return &value, nil
}
