package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"radio-api/internal/limiter"
	"radio-api/internal/service"
)

// AdminHandler serves the moderation queue, comment search and rate-limit
// overrides. Routes are mounted behind the bearer-token middleware.
type AdminHandler struct {
	comments *service.CommentService
	windows  *limiter.SessionWindow
}

func NewAdminHandler(comments *service.CommentService, windows *limiter.SessionWindow) *AdminHandler {
	return &AdminHandler{comments: comments, windows: windows}
}

// Queue lists comments awaiting moderation, oldest first.
func (h *AdminHandler) Queue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	status := q.Get("status")

	comments, pagination, err := h.comments.ListModerationQueue(r.Context(), status, page, perPage)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to load moderation queue")
		return
	}

	payload := successResponse(comments, "Moderation queue retrieved")
	payload.Meta = &Meta{Pagination: pagination}
	respondWithJSON(w, http.StatusOK, payload)
}

// Approve publishes a pending comment.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, true)
}

// Reject declines a pending comment.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, false)
}

func (h *AdminHandler) moderate(w http.ResponseWriter, r *http.Request, approve bool) {
	info := clientInfo(r)

	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, errors.New("invalid comment id"), "Invalid comment id")
		return
	}

	if err := h.comments.Moderate(r.Context(), commentID, approve, info.ClientID, info.IPAddress); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to moderate comment")
		return
	}

	message := "Comment rejected"
	if approve {
		message = "Comment approved"
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, message))
}

// Search runs the full-text comment query.
func (h *AdminHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("query parameter q is required"), "Missing query")
		return
	}
	size, _ := strconv.Atoi(q.Get("size"))

	results, err := h.comments.Search(r.Context(), query, size)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Search failed")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(results, "Search completed"))
}

// ResetRateLimit clears a session window for one client and action, lifting
// an accidental lockout without waiting for the window to expire.
func (h *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action    string `json:"action"`
		ClientKey string `json:"client_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Action == "" || req.ClientKey == "" {
		respondWithError(w, http.StatusBadRequest,
			errors.New("action and client_key are required"), "Missing fields")
		return
	}

	if err := h.windows.Reset(r.Context(), req.Action, req.ClientKey); err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to reset rate limit")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil, "Rate limit window cleared"))
}
