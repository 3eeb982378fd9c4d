package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	MobileNumber string    `json:"mobile_number"`
	PasswordHash string    `json:"-"`
	UserRole     string    `json:"user_role"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the projection joined into orders and reviews.
type UserSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number,omitempty"`
}
