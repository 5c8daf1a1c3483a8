package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opennewsroom/storyreel/internal/domain"
	"github.com/opennewsroom/storyreel/internal/repositories/story"
	"github.com/opennewsroom/storyreel/internal/session"
)

type storyTile struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title"`
	MediaKind       domain.MediaKind `json:"media_kind"`
	MediaURL        string           `json:"media_url"`
	AuthorName      string           `json:"author_name,omitempty"`
	AuthorAvatarURL string           `json:"author_avatar_url,omitempty"`
	Badge           string           `json:"badge"`
	ViewCount       int              `json:"view_count"`
	CreatedAt       time.Time        `json:"created_at"`
}

type sessionResponse struct {
	ID              string        `json:"id"`
	State           session.State `json:"state"`
	Index           int           `json:"index"`
	Total           int           `json:"total"`
	ProgressPercent int           `json:"progress_percent"`
	DurationMS      int64         `json:"duration_ms"`
	Item            storyTile     `json:"item"`
}

type openSessionRequest struct {
	StartIndex int `json:"start_index"`
}

type sessionEventRequest struct {
	Type       string  `json:"type"`
	DeltaPX    float64 `json:"delta_px,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
}

type createStoryRequest struct {
	Title           string `json:"title"`
	ImageURL        string `json:"image_url"`
	VideoURL        string `json:"video_url"`
	AuthorName      string `json:"author_name"`
	AuthorAvatarURL string `json:"author_avatar_url"`
	BadgeLabel      string `json:"badge_label"`
}

func tileFromItem(item domain.StoryItem) storyTile {
	return storyTile{
		ID:              item.ID,
		Title:           item.Title,
		MediaKind:       item.Kind(),
		MediaURL:        item.MediaURL(),
		AuthorName:      item.AuthorName,
		AuthorAvatarURL: item.AuthorAvatarURL,
		Badge:           item.Badge(),
		ViewCount:       item.ViewCount,
		CreatedAt:       item.CreatedAt,
	}
}

func sessionFromSnapshot(snap session.Snapshot) sessionResponse {
	return sessionResponse{
		ID:              snap.ID,
		State:           snap.State,
		Index:           snap.Index,
		Total:           snap.Total,
		ProgressPercent: snap.ProgressPercent,
		DurationMS:      snap.DurationMS,
		Item:            tileFromItem(snap.Item),
	}
}

// handleListStories returns the feed tiles. An empty or failed load is
// an empty array, never an error: the client omits the strip entirely.
func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	items := s.feed.Load(r.Context())

	tiles := make([]storyTile, 0, len(items))
	for _, item := range items {
		tiles = append(tiles, tileFromItem(item))
	}
	s.respondJSON(w, http.StatusOK, tiles)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.manager.Open(r.Context(), req.StartIndex)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNothingToPlay):
			s.respondError(w, http.StatusConflict, "no stories to play")
		case errors.Is(err, session.ErrIndexOutOfRange):
			s.respondError(w, http.StatusBadRequest, "start index out of range")
		default:
			s.logger.Error("Failed to open session", "error", err)
			s.respondError(w, http.StatusInternalServerError, "failed to open session")
		}
		return
	}

	s.respondJSON(w, http.StatusCreated, sessionFromSnapshot(sess.Snapshot()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, sessionFromSnapshot(sess.Snapshot()))
}

func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var req sessionEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Type {
	case "tap":
		sess.HandleTap()
	case "touch":
		sess.HandleTouch(req.DeltaPX)
	case "next":
		sess.Next()
	case "prev":
		sess.Prev()
	case "media_loaded":
		sess.OnMediaLoaded(time.Duration(req.DurationMS) * time.Millisecond)
	case "media_ended":
		sess.OnMediaEnded()
	default:
		s.respondError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	s.respondJSON(w, http.StatusOK, sessionFromSnapshot(sess.Snapshot()))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.manager.Close(chi.URLParam(r, "sessionID")) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	item := domain.StoryItem{
		Title:           req.Title,
		ImageURL:        req.ImageURL,
		VideoURL:        req.VideoURL,
		AuthorName:      req.AuthorName,
		AuthorAvatarURL: req.AuthorAvatarURL,
		BadgeLabel:      req.BadgeLabel,
	}
	if !item.HasMedia() {
		s.respondError(w, http.StatusBadRequest, "an image or video URL is required")
		return
	}

	id, err := s.storyRepo.Create(r.Context(), item)
	if err != nil {
		s.logger.Error("Failed to create story", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to create story")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (s *Server) handleDeactivateStory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "storyID"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid story id")
		return
	}

	if err := s.storyRepo.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, story.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "story not found")
			return
		}
		s.logger.Error("Failed to deactivate story", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to deactivate story")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
