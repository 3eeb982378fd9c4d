package reviews

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/readify/bookstore/internal/domain"
)

type Handler struct {
	repo   *ReviewRepository
	logger *slog.Logger
}

func NewHandler(repo *ReviewRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type createReviewRequest struct {
	UserID  string `json:"userId"`
	BookID  string `json:"bookId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.UserID == "" || req.BookID == "" {
		h.writeError(w, http.StatusBadRequest, "userId and bookId are required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		h.writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	review := &domain.Review{
		UserID:     req.UserID,
		BookID:     req.BookID,
		Rating:     req.Rating,
		ReviewText: req.Comment,
	}

	if err := h.repo.Create(r.Context(), review); err != nil {
		h.logger.Error("failed to create review", "error", err, "book_id", req.BookID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("review created", "review_id", review.ID, "book_id", review.BookID)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Review Added Successfully",
		"review":  review,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list reviews", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, reviews)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	review, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get review", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if review == nil {
		h.writeError(w, http.StatusNotFound, "Cannot find any review with ID "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, review)
}

func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	reviews, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list reviews by user", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(reviews) == 0 {
		h.writeError(w, http.StatusNotFound, "No reviews found for this user")
		return
	}

	h.writeJSON(w, http.StatusOK, reviews)
}

func (h *Handler) HandleListByBook(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("bookId")

	reviews, err := h.repo.ListByBook(r.Context(), bookID)
	if err != nil {
		h.logger.Error("failed to list reviews by book", "error", err, "book_id", bookID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(reviews) == 0 {
		h.writeError(w, http.StatusNotFound, "No reviews found for this book")
		return
	}

	h.writeJSON(w, http.StatusOK, reviews)
}

type updateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		h.writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	review, err := h.repo.Update(r.Context(), id, req.Rating, req.Comment)
	if err != nil {
		h.logger.Error("failed to update review", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if review == nil {
		h.writeError(w, http.StatusNotFound, "Cannot find any review with ID "+id)
		return
	}

	h.logger.Info("review updated", "review_id", review.ID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Review Updated Successfully",
		"review":  review,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete review", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !deleted {
		h.writeError(w, http.StatusNotFound, "Cannot find any review with ID "+id)
		return
	}

	h.logger.Info("review deleted", "review_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Review Deleted Successfully"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}
