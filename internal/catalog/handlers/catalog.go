package handlers

import (
	"log/slog"
	"net/http"

	"planets-engine/internal/catalog"
	"planets-engine/internal/shared/errors"
	"planets-engine/internal/shared/response"
)

type CatalogResponse struct {
	BaselineEnergy int             `json:"baseline_energy"`
	Environments   []string        `json:"environments"`
	Entries        []catalog.Entry `json:"entries"`
}

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// ServeHTTP lists the catalog, optionally narrowed with ?kind=structure.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "catalog")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	entries := h.catalog.Entries()
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := catalog.ParseKind(raw)
		if err != nil {
			response.Error(w, r, logger, errors.WrapValidation("invalid kind", err))
			return
		}
		entries = h.catalog.ByKind(kind)
		if entries == nil {
			entries = []catalog.Entry{}
		}
	}

	response.Success(w, http.StatusOK, CatalogResponse{
		BaselineEnergy: h.catalog.BaselineEnergy,
		Environments:   h.catalog.Environments(),
		Entries:        entries,
	})
}
