package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"radio-api/internal/service"
	"radio-api/internal/util"
)

// TokenHandler serves the CSRF token endpoints.
type TokenHandler struct {
	tokens *service.TokenService
}

func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// TokenResponse is the issuance payload.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// Issue mints a fresh single-use token for the caller.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	info := clientInfo(r)

	token, err := h.tokens.Issue(r.Context(), info.ClientID, info.IPAddress)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to issue token")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(TokenResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		ExpiresIn: int(h.tokens.TTL().Seconds()),
	}, "Token issued"))

	util.Debug("CSRF token issued",
		zap.String("ip_address", info.IPAddress))
}

// Validate reports whether a token would currently be accepted, without
// spending it.
func (h *TokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"csrf_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("csrf_token is required"), "Missing token")
		return
	}

	valid, err := h.tokens.Validate(r.Context(), req.Token)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to validate token")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]bool{"valid": valid}, "Token checked"))
}
