package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coverstack/rating-engine/internal/core"
	"github.com/coverstack/rating-engine/pkg/problem"
)

type QuoteHandler struct {
	Svc core.QuoteService
	Log *slog.Logger
}

func NewQuoteHandler(svc core.QuoteService, log *slog.Logger) *QuoteHandler {
	return &QuoteHandler{Svc: svc, Log: log}
}

func (h *QuoteHandler) Mount(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{quote_number}", h.Get)
	})
}

// Create prices a risk and persists an active quote.
// 201: JSON; 400: invalid input; 404: unknown product or package; 500: internal error.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in core.QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid Request Body", "Request body must be valid JSON.")
		return
	}

	quote, err := h.Svc.Generate(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to generate quote")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		h.Log.Error("failed to encode quote", "quote_number", quote.Number, "err", err)
	}
}

// Get retrieves a quote by its number.
// 200: JSON; 404: not found; 500: internal error.
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "quote_number")
	if number == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Quote Number", "Path parameter quote_number is required.")
		return
	}

	quote, err := h.Svc.Get(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get quote")
		return
	}

	if err := json.NewEncoder(w).Encode(quote); err != nil {
		h.Log.Error("failed to encode quote", "quote_number", number, "err", err)
	}
}
