package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chromecollective/marketplace-backend/api/responses"
	"github.com/chromecollective/marketplace-backend/api/validators"
	"github.com/chromecollective/marketplace-backend/internal/uploads"
	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
)

type presignRequest struct {
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
	Prefix      string `json:"prefix,omitempty"`
}

// UploadPresign issues a single-object upload grant.
func UploadPresign(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		var payload presignRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grant, err := svc.RequestGrant(r.Context(), uploads.GrantInput{
			FileName:    payload.FileName,
			ContentType: payload.ContentType,
			Prefix:      payload.Prefix,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, grant)
	}
}

// UploadPublicURL resolves the public address of an uploaded object key.
func UploadPublicURL(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		publicURL, err := svc.PublicURL(chi.URLParam(r, "*"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"publicUrl": publicURL})
	}
}
