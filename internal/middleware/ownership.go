package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

// OwnerResolver returns the empire that owns the resource with the given id.
type OwnerResolver func(ctx context.Context, id string) (string, error)

// Ownership admits a request only when the {id} path value names a resource
// owned by the authenticated empire. Admins pass unconditionally.
type Ownership struct {
	resource string
	resolve  OwnerResolver
}

func NewOwnership(resource string, resolve OwnerResolver) *Ownership {
	return &Ownership{resource: resource, resolve: resolve}
}

func (m *Ownership) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := slog.With(
			"middleware", "ownership",
			"resource", m.resource,
			"method", r.Method,
			"path", r.URL.Path,
		)

		claims := GetUserFromContext(r)
		if claims == nil {
			response.Error(w, r, logger, errors.Unauthorized("authentication required"))
			return
		}

		if claims.Role == "admin" {
			next.ServeHTTP(w, r)
			return
		}

		id := r.PathValue("id")
		if id == "" {
			response.Error(w, r, logger, errors.Validationf("%s ID is required", m.resource))
			return
		}

		owner, err := m.resolve(r.Context(), id)
		if err != nil {
			response.Error(w, r, logger, err)
			return
		}

		if owner != claims.EmpireID {
			logger.Warn("Empire attempted to access a resource it does not own",
				"empire_id", claims.EmpireID,
				"resource_id", id)
			response.Error(w, r, logger, errors.Forbidden(m.resource+" belongs to another empire"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
