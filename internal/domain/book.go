package domain

import "time"

// Categories a book can belong to. Mirrors the catalog's fixed set.
var BookCategories = []string{
	"Fiction", "Non-fiction", "Science", "Comics",
	"Romance", "Thriller", "Fantasy", "Children",
}

func ValidBookCategory(category string) bool {
	for _, c := range BookCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Book is a catalog entry. Price is in cents.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Price         int64     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	Category      string    `json:"category"`
	CoverImage    string    `json:"cover_image"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookSummary is the projection joined into order items and reviews.
type BookSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Category   string `json:"category,omitempty"`
	CoverImage string `json:"cover_image,omitempty"`
	Price      int64  `json:"price"`
}
