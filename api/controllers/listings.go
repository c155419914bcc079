package controllers

import (
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chromecollective/marketplace-backend/api/middleware"
	"github.com/chromecollective/marketplace-backend/api/responses"
	"github.com/chromecollective/marketplace-backend/api/validators"
	"github.com/chromecollective/marketplace-backend/internal/listings"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/pagination"
)

const (
	msgListingCreated = "Listing created successfully"
	msgListingUpdated = "Listing updated successfully"
	msgListingDeleted = "Listing deleted successfully"

	maxQueryValueLength = 200
)

func ListingCreate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		var payload listings.CreateListingRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), middleware.CallerIDFromContext(r.Context()), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, responses.Message{Message: msgListingCreated, Listing: listing})
	}
}

// ListingList serves the paginated browse query. Responses are never cached because
// expiry is evaluated at read time.
func ListingList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, math.MaxInt32)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), listings.ListInput{
			Pagination: pagination.Params{Page: page, Limit: limit},
			Sort:       validators.QueryString(r, "sort", maxQueryValueLength),
			Order:      validators.QueryString(r, "order", maxQueryValueLength),
			Filters: listings.ListFilters{
				Category: validators.QueryString(r, "category", maxQueryValueLength),
				Search:   validators.QueryString(r, "search", maxQueryValueLength),
				Status:   validators.QueryString(r, "status", maxQueryValueLength),
				MinPrice: validators.QueryString(r, "minPrice", maxQueryValueLength),
				MaxPrice: validators.QueryString(r, "maxPrice", maxQueryValueLength),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		id := chi.URLParam(r, "id")
		ctx := logg.WithListingID(r.Context(), id)
		listing, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"listing": listing})
	}
}

func ListingUpdate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		id := chi.URLParam(r, "id")
		ctx := logg.WithListingID(r.Context(), id)

		var payload listings.UpdateListingRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		listing, err := svc.Update(ctx, middleware.CallerIDFromContext(ctx), id, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, responses.Message{Message: msgListingUpdated, Listing: listing})
	}
}

func ListingDelete(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listing service unavailable"))
			return
		}

		id := chi.URLParam(r, "id")
		ctx := logg.WithListingID(r.Context(), id)
		listing, err := svc.Delete(ctx, middleware.CallerIDFromContext(ctx), id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, responses.Message{Message: msgListingDeleted, Listing: listing})
	}
}
