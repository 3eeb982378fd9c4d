package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// BookNotFoundError is returned when a placement references an unknown book.
type BookNotFoundError struct {
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("Book with ID %s not found", e.BookID)
}

// InsufficientStockError is returned when a book's stock cannot cover the
// requested quantity. It names the book by title, not id.
type InsufficientStockError struct {
	Title string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for book: %s", e.Title)
}
