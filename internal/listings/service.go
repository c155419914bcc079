package listings

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/chromecollective/marketplace-backend/pkg/auth"
	"github.com/chromecollective/marketplace-backend/pkg/db"
	"github.com/chromecollective/marketplace-backend/pkg/db/models"
	"github.com/chromecollective/marketplace-backend/pkg/enums"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/chromecollective/marketplace-backend/pkg/pagination"
	"github.com/chromecollective/marketplace-backend/pkg/types"
)

// numeric(12,2) upper bound
var maxPrice = decimal.RequireFromString("9999999999.99")

// Service exposes listing persistence and browse operations. callerID is the
// authenticated user id or auth.AnonymousCallerID.
type Service interface {
	Create(ctx context.Context, callerID string, req CreateListingRequest) (*ListingDTO, error)
	Get(ctx context.Context, id string) (*ListingDTO, error)
	List(ctx context.Context, in ListInput) (*ListResult, error)
	Update(ctx context.Context, callerID, id string, req UpdateListingRequest) (*ListingDTO, error)
	Delete(ctx context.Context, callerID, id string) (*ListingDTO, error)
}

type repository interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Save(ctx context.Context, listing *models.Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
	MarkExpired(ctx context.Context, id uuid.UUID, now time.Time) error
	List(ctx context.Context, query ListQuery) ([]models.Listing, int64, error)
}

type Options struct {
	TTL              time.Duration
	EnforceOwnership bool
	Metrics          *metrics.Marketplace
	Logger           *logger.Logger
}

type service struct {
	repo  repository
	opts  Options
	logg  *logger.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

// NewService constructs a listing service instance.
func NewService(repo repository, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("listing ttl must be positive")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  repo,
		opts:  opts,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}, nil
}

func (s *service) Create(ctx context.Context, callerID string, req CreateListingRequest) (*ListingDTO, error) {
	title := strings.TrimSpace(req.Title)
	if err := requireText("title", title, MaxTitleLength); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(req.Description)
	if err := requireText("description", description, MaxDescriptionLength); err != nil {
		return nil, err
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	currency, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	category, err := parseCategory(req.Category)
	if err != nil {
		return nil, err
	}
	condition, err := parseCondition(req.Condition)
	if err != nil {
		return nil, err
	}
	images, err := validateImages(req.Images)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now()
	listing := &models.Listing{
		ID:          s.newID(),
		OwnerID:     normalizeCaller(callerID),
		Title:       title,
		Description: description,
		Price:       price,
		Currency:    currency,
		Category:    category,
		Condition:   condition,
		Status:      enums.ListingStatusActive,
		Images:      images,
		Tags:        tags,
		ExpiresAt:   now.Add(s.opts.TTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, listing.ID.String()), "listing.create_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create listing")
	}

	s.logg.Info(s.logg.WithFields(s.logg.WithListingID(ctx, listing.ID.String()), map[string]any{
		"owner_id": listing.OwnerID,
		"images":   len(listing.Images),
	}), "listing.created")
	return toDTO(listing), nil
}

func (s *service) Get(ctx context.Context, id string) (*ListingDTO, error) {
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if listing.IsExpiredAt(now) {
		listing.Status = enums.ListingStatusExpired
		listing.UpdatedAt = now
		s.opts.Metrics.IncListingExpired()
		if err := s.repo.MarkExpired(ctx, listing.ID, now); err != nil {
			warnCtx := s.logg.WithField(s.logg.WithListingID(ctx, listing.ID.String()), "error", err.Error())
			s.logg.Warn(warnCtx, "listing.expire_persist_failed")
		}
	}
	return toDTO(listing), nil
}

func (s *service) List(ctx context.Context, in ListInput) (*ListResult, error) {
	now := s.now()
	query, err := buildListQuery(in, now)
	if err != nil {
		return nil, err
	}
	rows, total, err := s.repo.List(ctx, query)
	if err != nil {
		s.logg.Error(ctx, "listing.list_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list listings")
	}

	items := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		if rows[i].IsExpiredAt(now) {
			rows[i].Status = enums.ListingStatusExpired
		}
		items = append(items, *toDTO(&rows[i]))
	}
	return &ListResult{
		Listings:   items,
		Pagination: pagination.BuildMeta(in.Pagination, total),
	}, nil
}

func (s *service) Update(ctx context.Context, callerID, id string, req UpdateListingRequest) (*ListingDTO, error) {
	patch, err := validatePatch(req)
	if err != nil {
		return nil, err
	}
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(callerID, listing); err != nil {
		return nil, err
	}

	now := s.now()
	if listing.IsExpiredAt(now) {
		listing.Status = enums.ListingStatusExpired
		s.opts.Metrics.IncListingExpired()
	}
	if patch.status != nil && !listing.Status.CanTransitionTo(*patch.status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "listing status transition not allowed").
			WithDetails(map[string]string{"from": listing.Status.String(), "to": patch.status.String()})
	}

	patch.apply(listing)
	listing.UpdatedAt = now
	if err := s.repo.Save(ctx, listing); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, listing.ID.String()), "listing.update_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update listing")
	}

	s.logg.Info(s.logg.WithListingID(ctx, listing.ID.String()), "listing.updated")
	return toDTO(listing), nil
}

func (s *service) Delete(ctx context.Context, callerID, id string) (*ListingDTO, error) {
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(callerID, listing); err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, listing.ID); err != nil {
		s.logg.Error(s.logg.WithListingID(ctx, listing.ID.String()), "listing.delete_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete listing")
	}

	s.logg.Info(s.logg.WithListingID(ctx, listing.ID.String()), "listing.deleted")
	return toDTO(listing), nil
}

func (s *service) load(ctx context.Context, rawID string) (*models.Listing, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load listing")
	}
	return listing, nil
}

// authorize compares owner and caller literally; an anonymous listing is only
// writable by anonymous callers.
func (s *service) authorize(callerID string, listing *models.Listing) error {
	if !s.opts.EnforceOwnership {
		return nil
	}
	if normalizeCaller(callerID) != listing.OwnerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this listing")
	}
	return nil
}

type listingPatch struct {
	title       *string
	description *string
	price       *decimal.Decimal
	currency    *enums.Currency
	category    *string
	condition   *enums.ListingCondition
	status      *enums.ListingStatus
	images      *types.ImageRefs
	tags        *pq.StringArray
}

func validatePatch(req UpdateListingRequest) (listingPatch, error) {
	var patch listingPatch
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if err := requireText("title", title, MaxTitleLength); err != nil {
			return patch, err
		}
		patch.title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if err := requireText("description", description, MaxDescriptionLength); err != nil {
			return patch, err
		}
		patch.description = &description
	}
	if req.Price != nil {
		price, err := parsePrice(*req.Price)
		if err != nil {
			return patch, err
		}
		patch.price = &price
	}
	if req.Currency != nil {
		currency, err := parseCurrency(*req.Currency)
		if err != nil {
			return patch, err
		}
		patch.currency = &currency
	}
	if req.Category != nil {
		category, err := parseCategory(*req.Category)
		if err != nil {
			return patch, err
		}
		patch.category = &category
	}
	if req.Condition != nil {
		condition, err := parseCondition(*req.Condition)
		if err != nil {
			return patch, err
		}
		patch.condition = &condition
	}
	if req.Status != nil {
		status, err := enums.ParseListingStatus(*req.Status)
		if err != nil {
			return patch, pkgerrors.FieldError("status", "is not a valid listing status")
		}
		patch.status = &status
	}
	if req.Images != nil {
		images, err := validateImages(*req.Images)
		if err != nil {
			return patch, err
		}
		patch.images = &images
	}
	if req.Tags != nil {
		tags, err := normalizeTags(*req.Tags)
		if err != nil {
			return patch, err
		}
		patch.tags = &tags
	}
	return patch, nil
}

func (p listingPatch) apply(listing *models.Listing) {
	if p.title != nil {
		listing.Title = *p.title
	}
	if p.description != nil {
		listing.Description = *p.description
	}
	if p.price != nil {
		listing.Price = *p.price
	}
	if p.currency != nil {
		listing.Currency = *p.currency
	}
	if p.category != nil {
		listing.Category = *p.category
	}
	if p.condition != nil {
		listing.Condition = *p.condition
	}
	if p.status != nil {
		listing.Status = *p.status
	}
	if p.images != nil {
		listing.Images = *p.images
	}
	if p.tags != nil {
		listing.Tags = *p.tags
	}
}

func normalizeCaller(callerID string) string {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return auth.AnonymousCallerID
	}
	return callerID
}

func requireText(field, value string, max int) error {
	if value == "" {
		return pkgerrors.FieldError(field, "is required")
	}
	if utf8.RuneCountInString(value) > max {
		return pkgerrors.FieldError(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func parsePrice(value PriceValue) (decimal.Decimal, error) {
	raw := strings.TrimSpace(value.Raw)
	if raw == "" {
		return decimal.Decimal{}, pkgerrors.FieldError("price", "is required")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, pkgerrors.FieldError("price", "must be a number")
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, pkgerrors.FieldError("price", "must be greater than zero")
	}
	price = price.Round(2)
	if !price.IsPositive() {
		return decimal.Decimal{}, pkgerrors.FieldError("price", "must be at least 0.01")
	}
	if price.GreaterThan(maxPrice) {
		return decimal.Decimal{}, pkgerrors.FieldError("price", "must be at most "+maxPrice.String())
	}
	return price, nil
}

func parseCurrency(raw string) (enums.Currency, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.DefaultCurrency, nil
	}
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return "", pkgerrors.FieldError("currency", "must be one of USD, EUR, GBP, JPY")
	}
	return currency, nil
}

func parseCategory(raw string) (string, error) {
	category := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return "", pkgerrors.FieldError("category", fmt.Sprintf("must be at most %d characters", MaxCategoryLength))
	}
	return category, nil
}

func parseCondition(raw string) (enums.ListingCondition, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.DefaultListingCondition, nil
	}
	condition, err := enums.ParseListingCondition(raw)
	if err != nil {
		return "", pkgerrors.FieldError("condition", "is not a valid listing condition")
	}
	return condition, nil
}

func validateImages(images []types.ImageRef) (types.ImageRefs, error) {
	if len(images) > MaxImages {
		return nil, pkgerrors.FieldError("images", fmt.Sprintf("must contain at most %d images", MaxImages))
	}
	refs := make(types.ImageRefs, 0, len(images))
	for i, image := range images {
		if !image.Complete() {
			return nil, pkgerrors.FieldError(fmt.Sprintf("images[%d]", i), "must include both key and url")
		}
		refs = append(refs, types.ImageRef{Key: strings.TrimSpace(image.Key), URL: strings.TrimSpace(image.URL)})
	}
	return refs, nil
}

func normalizeTags(tags []string) (pq.StringArray, error) {
	if len(tags) > MaxTags {
		return nil, pkgerrors.FieldError("tags", fmt.Sprintf("must contain at most %d tags", MaxTags))
	}
	out := make(pq.StringArray, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), " ")
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return nil, pkgerrors.FieldError("tags", fmt.Sprintf("each tag must be at most %d characters", MaxTagLength))
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}
