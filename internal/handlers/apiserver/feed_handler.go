package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"campusconnect/internal/middleware"
	"campusconnect/internal/services"
	"campusconnect/internal/storage"
)

// pagingParams reads optional limit/offset query parameters. Invalid
// or missing values come back as zero and the service applies its
// defaults.
func pagingParams(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// FeedHandler bundles the feed HTTP handlers.
type FeedHandler struct {
	FeedService services.FeedService
}

// NewFeedHandler creates a new FeedHandler instance.
func NewFeedHandler(feedService services.FeedService) *FeedHandler {
	return &FeedHandler{FeedService: feedService}
}

// CreatePostRequest is the post creation request body.
type CreatePostRequest struct {
	Content    string `json:"content"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// CreatePost publishes a new feed post.
func (h *FeedHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	post, err := h.FeedService.CreatePost(r.Context(), userID, req.Content, req.ImageURL, req.Visibility)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			writeJSONError(w, "failed to create post", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, post)
}

// GetFeed returns the posts visible to the caller, newest first.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	limit, offset := pagingParams(r)
	posts, err := h.FeedService.GetFeed(r.Context(), userID, limit, offset)
	if err != nil {
		writeJSONError(w, "failed to load feed", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, posts)
}

// GetPost returns a single post.
func (h *FeedHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	postID, err := storage.StrToUint(mux.Vars(r)["postId"])
	if err != nil {
		writeJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	post, err := h.FeedService.GetPost(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to load post", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, post)
}

// GetUserPosts returns an author's posts the caller may see.
func (h *FeedHandler) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	authorID, err := storage.StrToUint(mux.Vars(r)["userId"])
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	limit, offset := pagingParams(r)
	posts, err := h.FeedService.GetPostsByAuthor(r.Context(), userID, authorID, limit, offset)
	if err != nil {
		writeJSONError(w, "failed to load posts", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, posts)
}

// DeletePost deletes the caller's own post.
func (h *FeedHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	postID, err := storage.StrToUint(mux.Vars(r)["postId"])
	if err != nil {
		writeJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	if err := h.FeedService.DeletePost(r.Context(), userID, postID); err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotAuthor):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			writeJSONError(w, "failed to delete post", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "post deleted"})
}

// ToggleLike flips the caller's like on a post.
func (h *FeedHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	postID, err := storage.StrToUint(mux.Vars(r)["postId"])
	if err != nil {
		writeJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	post, err := h.FeedService.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to toggle like", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, post)
}

// AddComment appends a comment to a post.
func (h *FeedHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	postID, err := storage.StrToUint(mux.Vars(r)["postId"])
	if err != nil {
		writeJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	comment, err := h.FeedService.AddComment(r.Context(), userID, postID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyText):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrPostNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		default:
			writeJSONError(w, "failed to add comment", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, comment)
}

// GetComments returns a post's comments, oldest first.
func (h *FeedHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	postID, err := storage.StrToUint(mux.Vars(r)["postId"])
	if err != nil {
		writeJSONError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	comments, err := h.FeedService.GetComments(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to load comments", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, comments)
}
