package domain

import "time"

type Review struct {
	ID         string       `json:"id"`
	UserID     string       `json:"user_id"`
	BookID     string       `json:"book_id"`
	Rating     int          `json:"rating"`
	ReviewText string       `json:"review_text"`
	User       *UserSummary `json:"user,omitempty"`
	Book       *BookSummary `json:"book,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
