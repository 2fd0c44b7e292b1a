package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"radio-api/internal/service"
)

// StreamHandler serves the stream status and playlist endpoints.
type StreamHandler struct {
	stream   *service.StreamService
	validate *validator.Validate
}

func NewStreamHandler(stream *service.StreamService) *StreamHandler {
	return &StreamHandler{
		stream:   stream,
		validate: validator.New(),
	}
}

// TrackCreateRequest is the admin payload for appending a track.
type TrackCreateRequest struct {
	Title           string `json:"title" validate:"required,min=1,max=200"`
	Artist          string `json:"artist" validate:"required,min=1,max=200"`
	DurationSeconds int    `json:"duration_seconds" validate:"required,min=10,max=3600"`
}

// Status returns the live stream status with listener figures.
func (h *StreamHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.stream.Status(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to load stream status")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(status, "Stream status retrieved"))
}

// NowPlaying returns the track selected by wall-clock rotation.
func (h *StreamHandler) NowPlaying(w http.ResponseWriter, r *http.Request) {
	playing, err := h.stream.NowPlaying(r.Context())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err, "Now playing unavailable")
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(playing, "Now playing retrieved"))
}

// Playlist returns the full rotation.
func (h *StreamHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.stream.Playlist(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to load playlist")
		return
	}
	respondCached(w, r, successResponse(tracks, "Playlist retrieved"))
}

// AddTrack appends a track to the rotation. Admin only.
func (h *StreamHandler) AddTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid track")
		return
	}

	track, err := h.stream.AddTrack(r.Context(), req.Title, req.Artist, req.DurationSeconds)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to add track")
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(track, "Track added"))
}
