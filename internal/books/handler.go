package books

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/readify/bookstore/internal/domain"
)

type Handler struct {
	repo   *BookRepository
	logger *slog.Logger
}

func NewHandler(repo *BookRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type bookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	Category      string `json:"category"`
	CoverImage    string `json:"cover_image"`
}

func (req *bookRequest) validate() string {
	switch {
	case req.Title == "":
		return "title is required"
	case req.Author == "":
		return "author is required"
	case req.Price < 0:
		return "price must not be negative"
	case req.StockQuantity < 0:
		return "stock quantity must not be negative"
	case !domain.ValidBookCategory(req.Category):
		return "unknown category: " + req.Category
	}
	return ""
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list books", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, books)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	book, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get book", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if book == nil {
		h.writeError(w, http.StatusNotFound, "Cannot find any book with ID "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	book := &domain.Book{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		CoverImage:    req.CoverImage,
	}

	if err := h.repo.Create(r.Context(), book); err != nil {
		h.logger.Error("failed to create book", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Book Added Successfully",
		"book":    book,
	})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	book, err := h.repo.Update(r.Context(), id, &domain.Book{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		Category:      req.Category,
		CoverImage:    req.CoverImage,
	})
	if err != nil {
		h.logger.Error("failed to update book", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if book == nil {
		h.writeError(w, http.StatusNotFound, "Cannot find any book with ID "+id)
		return
	}

	h.logger.Info("book updated", "book_id", book.ID)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book Updated Successfully",
		"book":    book,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	deleted, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete book", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !deleted {
		h.writeError(w, http.StatusNotFound, "Cannot find any book with ID "+id)
		return
	}

	h.logger.Info("book deleted", "book_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Book Deleted Successfully"})
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
