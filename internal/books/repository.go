package books

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/readify/bookstore/internal/domain"
)

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	book.ID = uuid.New().String()

	return r.db.QueryRowContext(ctx, `
		INSERT INTO books (id, title, author, description, price, stock_quantity, category, cover_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at
	`, book.ID, book.Title, book.Author, book.Description, book.Price,
		book.StockQuantity, book.Category, book.CoverImage,
	).Scan(&book.CreatedAt, &book.UpdatedAt)
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	book := &domain.Book{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, description, price, stock_quantity, category, cover_image, created_at, updated_at
		FROM books
		WHERE id = $1
	`, id).Scan(
		&book.ID, &book.Title, &book.Author, &book.Description, &book.Price,
		&book.StockQuantity, &book.Category, &book.CoverImage, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return book, nil
}

func (r *BookRepository) List(ctx context.Context) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, author, description, price, stock_quantity, category, cover_image, created_at, updated_at
		FROM books
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	books := []domain.Book{}
	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(
			&book.ID, &book.Title, &book.Author, &book.Description, &book.Price,
			&book.StockQuantity, &book.Category, &book.CoverImage, &book.CreatedAt, &book.UpdatedAt,
		); err != nil {
			return nil, err
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return books, nil
}

// Update replaces every mutable field. Returns nil, nil for an unknown id.
func (r *BookRepository) Update(ctx context.Context, id string, book *domain.Book) (*domain.Book, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET title = $1, author = $2, description = $3, price = $4,
		    stock_quantity = $5, category = $6, cover_image = $7, updated_at = NOW()
		WHERE id = $8
	`, book.Title, book.Author, book.Description, book.Price,
		book.StockQuantity, book.Category, book.CoverImage, id)
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

func (r *BookRepository) Delete(ctx context.Context, id string) (bool, error) {
	if uuid.Validate(id) != nil {
		return false, nil
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM books WHERE id = $1
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
