package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/readify/bookstore/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// PlacementLine is one requested {book, quantity} pair.
type PlacementLine struct {
	BookID   string
	Quantity int
}

// PlaceOrder runs the whole placement as one transaction: the order header,
// every stock decrement and every line item either all commit or none do.
// The decrement itself is conditional (stock_quantity >= quantity), so two
// concurrent placements can never jointly overdraw a book.
func (r *OrderRepository) PlaceOrder(ctx context.Context, userID string, lines []PlacementLine, shippingAddress, billingAddress string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          userID,
		Items:           []domain.OrderItem{},
		Status:          domain.OrderStatusPending,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address, billing_address, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $6)
	`, order.ID, order.UserID, order.Status, order.ShippingAddress, order.BillingAddress, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	var total int64
	for position, line := range lines {
		if uuid.Validate(line.BookID) != nil {
			return nil, &BookNotFoundError{BookID: line.BookID}
		}

		var title string
		var price int64
		err := tx.QueryRowContext(ctx, `
			UPDATE books
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2
			RETURNING title, price
		`, line.BookID, line.Quantity).Scan(&title, &price)
		if err == sql.ErrNoRows {
			return nil, r.classifyStockFailure(ctx, tx, line.BookID)
		}
		if err != nil {
			return nil, err
		}

		item := domain.OrderItem{
			ID:       uuid.New().String(),
			BookID:   line.BookID,
			Quantity: line.Quantity,
			Price:    price,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, book_id, quantity, price, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, order.ID, item.BookID, item.Quantity, item.Price, position)
		if err != nil {
			return nil, err
		}

		order.Items = append(order.Items, item)
		total += price * int64(line.Quantity)
	}

	order.TotalAmount = total
	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET total_amount = $1, updated_at = NOW()
		WHERE id = $2
	`, total, order.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// classifyStockFailure distinguishes a missing book from an under-stocked one
// after the conditional decrement matched zero rows.
func (r *OrderRepository) classifyStockFailure(ctx context.Context, tx *sql.Tx, bookID string) error {
	var title string
	err := tx.QueryRowContext(ctx, `
		SELECT title FROM books WHERE id = $1
	`, bookID).Scan(&title)
	if err == sql.ErrNoRows {
		return &BookNotFoundError{BookID: bookID}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{Title: title}
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	order := &domain.Order{User: &domain.UserSummary{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.billing_address, o.created_at,
		       u.username, u.email, u.mobile_number
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id = $1
	`, id).Scan(
		&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
		&order.ShippingAddress, &order.BillingAddress, &order.CreatedAt,
		&order.User.Username, &order.User.Email, &order.User.MobileNumber,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	order.User.ID = order.UserID

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.billing_address, o.created_at,
		       u.username, u.email, u.mobile_number
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if uuid.Validate(userID) != nil {
		return []domain.Order{}, nil
	}

	return r.list(ctx, `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.billing_address, o.created_at,
		       u.username, u.email, u.mobile_number
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order := domain.Order{User: &domain.UserSummary{}, Items: []domain.OrderItem{}}
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
			&order.ShippingAddress, &order.BillingAddress, &order.CreatedAt,
			&order.User.Username, &order.User.Email, &order.User.MobileNumber,
		); err != nil {
			return nil, err
		}
		order.User.ID = order.UserID
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	items, err := r.loadItems(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		order := orderMap[id]
		if its := items[id]; its != nil {
			order.Items = its
		}
		orders = append(orders, *order)
	}

	return orders, nil
}

// loadItems fetches line items for the given orders in one query, each with
// its book summary joined in, preserving placement order.
func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.order_id, oi.id, oi.book_id, oi.quantity, oi.price,
		       b.title, b.category, b.cover_image, b.price
		FROM order_items oi
		JOIN books b ON b.id = oi.book_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.position
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var orderID string
		item := domain.OrderItem{Book: &domain.BookSummary{}}
		if err := rows.Scan(
			&orderID, &item.ID, &item.BookID, &item.Quantity, &item.Price,
			&item.Book.Title, &item.Book.Category, &item.Book.CoverImage, &item.Book.Price,
		); err != nil {
			return nil, err
		}
		item.Book.ID = item.BookID
		items[orderID] = append(items[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// UpdateStatus moves an order along the lifecycle. Cancelling a pending order
// restores the stock its items consumed, in the same transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrOrderNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if !current.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
	}

	if status == domain.OrderStatusCancelled {
		_, err = tx.ExecContext(ctx, `
			UPDATE books b
			SET stock_quantity = b.stock_quantity + oi.quantity, updated_at = NOW()
			FROM order_items oi
			WHERE oi.order_id = $1 AND b.id = oi.book_id
		`, id)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes an order; its line items go with it via the schema cascade.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrOrderNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM orders WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}
