package reviews

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/readify/bookstore/internal/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `
	r.id, r.user_id, r.book_id, r.rating, r.review_text, r.created_at,
	u.username, u.email, u.mobile_number,
	b.title, b.price
`

func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	review.ID = uuid.New().String()

	return r.db.QueryRowContext(ctx, `
		INSERT INTO reviews (id, user_id, book_id, rating, review_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at
	`, review.ID, review.UserID, review.BookID, review.Rating, review.ReviewText,
	).Scan(&review.CreatedAt)
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	reviews, err := r.query(ctx, `WHERE r.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return nil, nil
	}
	return &reviews[0], nil
}

func (r *ReviewRepository) List(ctx context.Context) ([]domain.Review, error) {
	return r.query(ctx, ``)
}

func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	if uuid.Validate(userID) != nil {
		return []domain.Review{}, nil
	}
	return r.query(ctx, `WHERE r.user_id = $1`, userID)
}

func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string) ([]domain.Review, error) {
	if uuid.Validate(bookID) != nil {
		return []domain.Review{}, nil
	}
	return r.query(ctx, `WHERE r.book_id = $1`, bookID)
}

func (r *ReviewRepository) query(ctx context.Context, where string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN books b ON b.id = r.book_id
		`+where+`
		ORDER BY r.created_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	reviews := []domain.Review{}
	for rows.Next() {
		review := domain.Review{User: &domain.UserSummary{}, Book: &domain.BookSummary{}}
		if err := rows.Scan(
			&review.ID, &review.UserID, &review.BookID, &review.Rating, &review.ReviewText, &review.CreatedAt,
			&review.User.Username, &review.User.Email, &review.User.MobileNumber,
			&review.Book.Title, &review.Book.Price,
		); err != nil {
			return nil, err
		}
		review.User.ID = review.UserID
		review.Book.ID = review.BookID
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reviews, nil
}

// Update patches rating and text. Returns nil, nil for an unknown id.
func (r *ReviewRepository) Update(ctx context.Context, id string, rating int, reviewText string) (*domain.Review, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = $1, review_text = $2, updated_at = NOW()
		WHERE id = $3
	`, rating, reviewText, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM reviews WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
