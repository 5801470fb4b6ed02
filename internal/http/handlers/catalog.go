package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coverstack/rating-engine/internal/core"
	"github.com/coverstack/rating-engine/pkg/problem"
)

type CatalogHandler struct {
	Repo core.CatalogRepo
	Log  *slog.Logger
}

func NewCatalogHandler(repo core.CatalogRepo, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{Repo: repo, Log: log}
}

func (h *CatalogHandler) Mount(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/{product_id}/packages", h.ListPackages)
	})
}

// ListPackages returns a product's packages in catalog order.
// 200: JSON; 404: unknown product; 500: internal error.
func (h *CatalogHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Product ID", "Path parameter product_id is required.")
		return
	}

	packages, err := h.Repo.ListPackages(r.Context(), productID)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list packages")
		return
	}

	if err := json.NewEncoder(w).Encode(packages); err != nil {
		h.Log.Error("failed to encode packages", "product_id", productID, "err", err)
	}
}
