package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coverstack/rating-engine/internal/core"
	"github.com/coverstack/rating-engine/pkg/problem"
)

type PolicyHandler struct {
	Svc core.PolicyService
	Log *slog.Logger
}

func NewPolicyHandler(svc core.PolicyService, log *slog.Logger) *PolicyHandler {
	return &PolicyHandler{Svc: svc, Log: log}
}

func (h *PolicyHandler) Mount(r chi.Router) {
	r.Route("/policies", func(r chi.Router) {
		r.Post("/", h.Issue)
		r.Get("/by-quote/{quote_number}", h.GetByQuote)
		r.Get("/{policy_number}", h.Get)
		r.Get("/{policy_number}/payment", h.GetPayment)
		r.Get("/", h.List)
	})
}

type issueRequest struct {
	QuoteNumber string            `json:"quote_number"`
	Payment     core.PaymentInput `json:"payment"`
}

// Issue converts an active quote into a policy plus a payment record.
// 201: JSON; 400: invalid input; 404: unknown quote; 409: quote already
// consumed; 422: quote expired; 503: storage unavailable.
func (h *PolicyHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, http.StatusBadRequest, "Invalid Request Body", "Request body must be valid JSON.")
		return
	}

	policy, err := h.Svc.Issue(r.Context(), req.QuoteNumber, req.Payment)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to issue policy")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_number", policy.Number, "err", err)
	}
}

// Get retrieves a policy by its number.
// 200: JSON; 400: missing number; 404: not found; 500: internal error.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "policy_number")
	if number == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Policy Number", "Path parameter policy_number is required.")
		return
	}

	policy, err := h.Svc.GetByNumber(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "policy_number", number, "err", err)
	}
}

// GetPayment returns the payment transaction recorded for a policy.
// 200: JSON; 404: policy or payment not found; 500: internal error.
func (h *PolicyHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "policy_number")
	if number == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Policy Number", "Path parameter policy_number is required.")
		return
	}

	payment, err := h.Svc.GetPayment(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get payment for policy")
		return
	}

	if err := json.NewEncoder(w).Encode(payment); err != nil {
		h.Log.Error("failed to encode payment", "policy_number", number, "err", err)
	}
}

// GetByQuote finds the policy issued from a quote. Useful for callers that
// lost an issuance race and need the winner's policy.
// 200: JSON; 404: no policy for quote; 500: internal error.
func (h *PolicyHandler) GetByQuote(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "quote_number")
	if number == "" {
		problem.Write(w, http.StatusBadRequest, "Missing Quote Number", "Path parameter quote_number is required.")
		return
	}

	policy, err := h.Svc.GetByQuote(r.Context(), number)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to get policy for quote")
		return
	}

	if err := json.NewEncoder(w).Encode(policy); err != nil {
		h.Log.Error("failed to encode policy", "quote_number", number, "err", err)
	}
}

// List returns policies with optional filtering and pagination.
// 200: JSON; 500: internal error.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	filter := core.PolicyFilter{
		ProductID: r.URL.Query().Get("product_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = core.PolicyStatus(status)
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	policies, total, err := h.Svc.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(r.Context(), h.Log, w, err, "Failed to list policies")
		return
	}

	// Return empty array instead of null
	if policies == nil {
		policies = []core.Policy{}
	}

	response := map[string]interface{}{
		"items":  policies,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.Log.Error("failed to encode policies", "err", err)
	}
}
