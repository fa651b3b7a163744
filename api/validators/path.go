package validators

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/ibizabroker/lms-backend/pkg/errors"
)

// ParsePathUUID reads a UUID route parameter from the request URL.
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}
