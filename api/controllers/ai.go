package controllers

import (
	"net/http"

	"github.com/chromecollective/marketplace-backend/api/responses"
	"github.com/chromecollective/marketplace-backend/api/validators"
	"github.com/chromecollective/marketplace-backend/internal/descriptions"
	"github.com/chromecollective/marketplace-backend/internal/listings"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
)

// describeRequest mirrors the listing draft the seller is editing; price may arrive as a
// number or a string.
type describeRequest struct {
	Title     string              `json:"title"`
	Category  string              `json:"category,omitempty"`
	Condition string              `json:"condition,omitempty"`
	Price     listings.PriceValue `json:"price,omitempty"`
	Currency  string              `json:"currency,omitempty"`
	Notes     string              `json:"notes,omitempty" validate:"max=1000"`
}

func AIDescribe(svc descriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "description service unavailable"))
			return
		}

		var payload describeRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		description, err := svc.Describe(r.Context(), descriptions.Input{
			Title:     payload.Title,
			Category:  payload.Category,
			Condition: payload.Condition,
			Price:     payload.Price.Raw,
			Currency:  payload.Currency,
			Notes:     payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"description": description})
	}
}
