package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"radio-api/internal/service"
	"radio-api/internal/util"
)

// CommentHandler serves the public comment surface: listing, submission,
// reactions and reports.
type CommentHandler struct {
	comments *service.CommentService
	validate *validator.Validate
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		validate: validator.New(),
	}
}

// CommentCreateRequest is the submission payload. Field limits mirror the
// service-side checks so most bad input is rejected before the gate runs.
type CommentCreateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Comment   string `json:"comment" validate:"required,min=10,max=2000"`
	Section   string `json:"section" validate:"omitempty,max=50"`
	CSRFToken string `json:"csrf_token" validate:"required,len=64,hexadecimal"`
}

// List returns approved comments, optionally filtered by section. With
// stats_only=true it returns the aggregate counters instead.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("stats_only") == "true" {
		stats, err := h.comments.Stats(r.Context())
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err, "Failed to load stats")
			return
		}
		respondCached(w, r, successResponse(stats, "Stats retrieved"))
		return
	}

	section := q.Get("section")
	if section == "" {
		section = "all"
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	order := q.Get("order")

	comments, pagination, err := h.comments.List(r.Context(), section, page, perPage, order)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to load comments")
		return
	}

	payload := successResponse(comments, "Comments retrieved")
	payload.Meta = &Meta{Pagination: pagination}
	respondCached(w, r, payload)
}

// Create runs the submission gate. The response does not distinguish a spam
// suppression from a real acceptance.
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	info := clientInfo(r)

	var req CommentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		resp := errorResponse(errors.New("validation failed"), "Invalid submission")
		resp.Details = validationDetails(err)
		respondWithJSON(w, http.StatusBadRequest, resp)
		return
	}

	id, err := h.comments.Submit(r.Context(), &service.SubmitRequest{
		Name:      req.Name,
		Email:     req.Email,
		Body:      req.Comment,
		Section:   req.Section,
		CSRFToken: req.CSRFToken,
		ClientID:  info.ClientID,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to submit comment")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(
		map[string]int64{"id": id},
		"Comment submitted and awaiting moderation"))

	util.Info("Comment submitted via HTTP",
		zap.Int64("id", id),
		zap.String("section", req.Section))
}

// React records a like, dislike or heart on an approved comment.
func (h *CommentHandler) React(w http.ResponseWriter, r *http.Request) {
	info := clientInfo(r)

	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, errors.New("invalid comment id"), "Invalid comment id")
		return
	}

	var req struct {
		ReactionType string `json:"reaction_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	counts, err := h.comments.React(r.Context(), commentID, info.ClientID, info.IPAddress, req.ReactionType)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to record reaction")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(counts, "Reaction recorded"))
}

// Report files a report against an approved comment.
func (h *CommentHandler) Report(w http.ResponseWriter, r *http.Request) {
	info := clientInfo(r)

	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, errors.New("invalid comment id"), "Invalid comment id")
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required,min=3,max=500"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, errors.New("reason must be 3-500 characters"), "Invalid report")
		return
	}

	if err := h.comments.Report(r.Context(), commentID, info.ClientID, info.IPAddress, req.Reason); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to report comment")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Report filed"))
}

// validationDetails flattens validator errors into field -> constraint pairs.
func validationDetails(err error) map[string]string {
	details := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}
