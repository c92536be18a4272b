package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/reset"
)

type ResetHandler struct {
	service *reset.Service
}

func NewResetHandler(service *reset.Service) *ResetHandler {
	return &ResetHandler{service: service}
}

// Request accepts a reset request. The response never reveals whether the
// email belongs to an account.
func (h *ResetHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	h.service.Request(req.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "if that email is registered, a reset link is on its way",
	})
}

// Redeem consumes a reset token and sets the new password.
func (h *ResetHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.Redeem(req.Token, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
	case errors.Is(err, reset.ErrExpiredToken):
		writeError(w, http.StatusBadRequest, "reset token expired")
	case errors.Is(err, reset.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "invalid reset token")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
