package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chromecollective/marketplace-backend/api/middleware"
	"github.com/chromecollective/marketplace-backend/internal/listings"
	"github.com/chromecollective/marketplace-backend/pkg/auth"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/pagination"
)

type stubListings struct {
	listing   *listings.ListingDTO
	list      *listings.ListResult
	err       error
	caller    string
	id        string
	createReq listings.CreateListingRequest
	updateReq listings.UpdateListingRequest
	listIn    listings.ListInput
}

func (s *stubListings) Create(_ context.Context, callerID string, req listings.CreateListingRequest) (*listings.ListingDTO, error) {
	s.caller, s.createReq = callerID, req
	return s.listing, s.err
}

func (s *stubListings) Get(_ context.Context, id string) (*listings.ListingDTO, error) {
	s.id = id
	return s.listing, s.err
}

func (s *stubListings) List(_ context.Context, in listings.ListInput) (*listings.ListResult, error) {
	s.listIn = in
	return s.list, s.err
}

func (s *stubListings) Update(_ context.Context, callerID, id string, req listings.UpdateListingRequest) (*listings.ListingDTO, error) {
	s.caller, s.id, s.updateReq = callerID, id, req
	return s.listing, s.err
}

func (s *stubListings) Delete(_ context.Context, callerID, id string) (*listings.ListingDTO, error) {
	s.caller, s.id = callerID, id
	return s.listing, s.err
}

func sampleListing() *listings.ListingDTO {
	return &listings.ListingDTO{ID: "8f7c1a52-3f7e-4a57-9a0e-2d6a2d1f0a11", Title: "Cross Ring", Price: 450, Currency: "USD", Status: "active"}
}

func TestListingCreate(t *testing.T) {
	svc := &stubListings{listing: sampleListing()}
	rec := serve(t, http.MethodPost, "/api/listings", "/api/listings",
		`{"title":"Cross Ring","description":"Sterling silver","price":"450.00","tags":["ring"]}`,
		ListingCreate(svc, logger.Nop()))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body struct {
		Message string              `json:"message"`
		Listing listings.ListingDTO `json:"listing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Listing created successfully", body.Message)
	require.Equal(t, "Cross Ring", body.Listing.Title)
	require.Equal(t, auth.AnonymousCallerID, svc.caller)
	require.Equal(t, "450.00", svc.createReq.Price.Raw)
}

func TestListingCreateRejectsUnknownFields(t *testing.T) {
	svc := &stubListings{listing: sampleListing()}
	rec := serve(t, http.MethodPost, "/api/listings", "/api/listings",
		`{"title":"Cross Ring","owner":"someone-else"}`, ListingCreate(svc, logger.Nop()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingListParsesQuery(t *testing.T) {
	svc := &stubListings{list: &listings.ListResult{
		Listings:   []listings.ListingDTO{*sampleListing()},
		Pagination: pagination.Meta{CurrentPage: 2, TotalPages: 3, TotalItems: 21, HasNextPage: true, HasPrevPage: true},
	}}
	rec := serve(t, http.MethodGet, "/api/listings",
		"/api/listings?page=2&limit=10&sort=price&order=asc&category=Rings&search=cross&minPrice=100",
		"", ListingList(svc, logger.Nop()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 2, svc.listIn.Pagination.Page)
	require.Equal(t, 10, svc.listIn.Pagination.Limit)
	require.Equal(t, "price", svc.listIn.Sort)
	require.Equal(t, "asc", svc.listIn.Order)
	require.Equal(t, "Rings", svc.listIn.Filters.Category)
	require.Equal(t, "cross", svc.listIn.Filters.Search)
	require.Equal(t, "100", svc.listIn.Filters.MinPrice)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "listings")
	require.Contains(t, body, "pagination")
}

func TestListingListRejectsBadPaging(t *testing.T) {
	for _, target := range []string{"/api/listings?page=0", "/api/listings?limit=abc", "/api/listings?limit=-5", "/api/listings?limit=200"} {
		svc := &stubListings{}
		rec := serve(t, http.MethodGet, "/api/listings", target, "", ListingList(svc, logger.Nop()))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
	}
}

func TestListingGet(t *testing.T) {
	svc := &stubListings{listing: sampleListing()}
	rec := serve(t, http.MethodGet, "/api/listings/{id}", "/api/listings/8f7c1a52-3f7e-4a57-9a0e-2d6a2d1f0a11", "", ListingGet(svc, logger.Nop()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "8f7c1a52-3f7e-4a57-9a0e-2d6a2d1f0a11", svc.id)
	var body map[string]listings.ListingDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Cross Ring", body["listing"].Title)
}

func TestListingGetNotFound(t *testing.T) {
	svc := &stubListings{err: pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")}
	rec := serve(t, http.MethodGet, "/api/listings/{id}", "/api/listings/missing", "", ListingGet(svc, logger.Nop()))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "listing not found", decodeError(t, rec).Error.Message)
}

func TestListingUpdateUsesAuthenticatedCaller(t *testing.T) {
	svc := &stubListings{listing: sampleListing()}
	handler := func(w http.ResponseWriter, r *http.Request) {
		ListingUpdate(svc, logger.Nop())(w, r.WithContext(middleware.WithUserID(r.Context(), "user-42")))
	}
	rec := serve(t, http.MethodPut, "/api/listings/{id}", "/api/listings/abc", `{"status":"sold","price":500}`, handler)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "user-42", svc.caller)
	require.Equal(t, "abc", svc.id)
	require.NotNil(t, svc.updateReq.Status)
	require.Equal(t, "sold", *svc.updateReq.Status)
	require.NotNil(t, svc.updateReq.Price)
	require.Equal(t, "500", svc.updateReq.Price.Raw)
	require.Contains(t, rec.Body.String(), "Listing updated successfully")
}

func TestListingUpdateForbidden(t *testing.T) {
	svc := &stubListings{err: pkgerrors.New(pkgerrors.CodeForbidden, "you do not own this listing")}
	rec := serve(t, http.MethodPut, "/api/listings/{id}", "/api/listings/abc", `{"title":"x"}`, ListingUpdate(svc, logger.Nop()))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "you do not own this listing", decodeError(t, rec).Error.Message)
}

func TestListingDelete(t *testing.T) {
	svc := &stubListings{listing: sampleListing()}
	rec := serve(t, http.MethodDelete, "/api/listings/{id}", "/api/listings/abc", "", ListingDelete(svc, logger.Nop()))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Listing deleted successfully")
	require.Equal(t, auth.AnonymousCallerID, svc.caller)
}
