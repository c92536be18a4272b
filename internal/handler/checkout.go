package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/billing"
)

type CheckoutHandler struct {
	orchestrator *billing.Orchestrator
	logger       *slog.Logger
}

func NewCheckoutHandler(orchestrator *billing.Orchestrator, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Create starts a checkout for the chosen plan and returns the provider URL.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Plan == "" {
		req.Plan = string(billing.PlanMonthly)
	}
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	url, err := h.orchestrator.StartCheckout(r.Context(), ac.Username, plan)
	if err != nil {
		// Before any payment there is no fallback; the error is the answer.
		h.logger.Error("start checkout", "username", ac.Username, "error", err)
		if errors.Is(err, billing.ErrProviderUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment provider unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Return handles the redirect back from the provider's hosted page. The
// status query parameter is a hint only; a success is verified server-side
// before anything is granted.
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	status := r.URL.Query().Get("status")

	if status != "success" || sessionID == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}

	grant, err := h.orchestrator.CompleteCheckout(r.Context(), sessionID, ac.Username)
	if err != nil {
		h.logger.Error("complete checkout",
			"username", ac.Username,
			"session_id", sessionID,
			"error", err,
		)
		switch {
		case errors.Is(err, billing.ErrPaymentNotConfirmed):
			writeError(w, http.StatusPaymentRequired, "payment not confirmed")
		case errors.Is(err, billing.ErrProviderUnavailable):
			writeError(w, http.StatusServiceUnavailable, "could not confirm payment with provider, please retry")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "granted",
		"grant":  grant,
	})
}
