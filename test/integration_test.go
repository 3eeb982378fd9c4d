//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/readify/bookstore/internal/auth"
	"github.com/readify/bookstore/internal/books"
	"github.com/readify/bookstore/internal/domain"
	"github.com/readify/bookstore/internal/messaging"
	"github.com/readify/bookstore/internal/orders"
	"github.com/readify/bookstore/internal/users"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, db *sql.DB) string {
	t.Helper()

	repo := users.NewUserRepository(db)
	user := &domain.User{
		Username:     "ana",
		Email:        "ana@example.com",
		MobileNumber: "555-0100",
		PasswordHash: "$2a$10$unused",
		UserRole:     "customer",
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user.ID
}

func seedBook(t *testing.T, db *sql.DB, title string, price int64, stock int) string {
	t.Helper()

	repo := books.NewBookRepository(db)
	book := &domain.Book{
		Title:         title,
		Author:        "Test Author",
		Description:   "seeded",
		Price:         price,
		StockQuantity: stock,
		Category:      "Fiction",
		CoverImage:    "cover.jpg",
	}
	if err := repo.Create(context.Background(), book); err != nil {
		t.Fatalf("failed to seed book %q: %v", title, err)
	}
	return book.ID
}

func bookStock(t *testing.T, db *sql.DB, bookID string) int {
	t.Helper()

	var stock int
	if err := db.QueryRow(`SELECT stock_quantity FROM books WHERE id = $1`, bookID).Scan(&stock); err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func TestPlaceOrderScenario(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	repo := orders.NewOrderRepository(db)
	order, err := repo.PlaceOrder(ctx, userID,
		[]orders.PlacementLine{{BookID: bookID, Quantity: 3}}, "12 Main St", "12 Main St")
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	if order.TotalAmount != 900 {
		t.Errorf("expected total 900, got %d", order.TotalAmount)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected status Pending, got %s", order.Status)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 3 || order.Items[0].Price != 300 {
		t.Errorf("unexpected item snapshot: %+v", order.Items[0])
	}

	if stock := bookStock(t, db, bookID); stock != 2 {
		t.Errorf("expected stock 2 after placement, got %d", stock)
	}

	fetched, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if fetched == nil {
		t.Fatal("order not found after placement")
	}
	if fetched.TotalAmount != 900 {
		t.Errorf("persisted total mismatch: %d", fetched.TotalAmount)
	}
	if fetched.User == nil || fetched.User.Username != "ana" {
		t.Errorf("expected joined user summary, got %+v", fetched.User)
	}
	if len(fetched.Items) != 1 || fetched.Items[0].Book == nil || fetched.Items[0].Book.Title != "Dune" {
		t.Errorf("expected joined book summary, got %+v", fetched.Items)
	}
}

func TestPlaceOrderPreservesLineOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	first := seedBook(t, db, "Dune", 300, 10)
	second := seedBook(t, db, "Hyperion", 450, 10)
	third := seedBook(t, db, "Solaris", 200, 10)

	repo := orders.NewOrderRepository(db)
	order, err := repo.PlaceOrder(ctx, userID, []orders.PlacementLine{
		{BookID: second, Quantity: 1},
		{BookID: third, Quantity: 2},
		{BookID: first, Quantity: 1},
	}, "a", "b")
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	if len(order.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(order.Items))
	}
	wantTotal := int64(450 + 2*200 + 300)
	if order.TotalAmount != wantTotal {
		t.Errorf("expected total %d, got %d", wantTotal, order.TotalAmount)
	}

	fetched, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	wantBooks := []string{second, third, first}
	for i, item := range fetched.Items {
		if item.BookID != wantBooks[i] {
			t.Errorf("item %d: expected book %s, got %s", i, wantBooks[i], item.BookID)
		}
	}
}

func TestPlaceOrderUnknownBookRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	repo := orders.NewOrderRepository(db)
	_, err := repo.PlaceOrder(ctx, userID, []orders.PlacementLine{
		{BookID: bookID, Quantity: 2},
		{BookID: "1b671a64-40d5-491e-99b0-da01ff1f3341", Quantity: 1},
	}, "a", "b")

	var notFound *orders.BookNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected BookNotFoundError, got %v", err)
	}

	if stock := bookStock(t, db, bookID); stock != 5 {
		t.Errorf("expected stock unchanged at 5, got %d", stock)
	}
	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("expected no order rows, got %d", n)
	}
	if n := countRows(t, db, "order_items"); n != 0 {
		t.Errorf("expected no order_items rows, got %d", n)
	}
}

func TestPlaceOrderInsufficientStockRollsBackEarlierLines(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	plenty := seedBook(t, db, "Dune", 300, 10)
	scarce := seedBook(t, db, "Hyperion", 450, 1)

	repo := orders.NewOrderRepository(db)
	_, err := repo.PlaceOrder(ctx, userID, []orders.PlacementLine{
		{BookID: plenty, Quantity: 4},
		{BookID: scarce, Quantity: 2},
	}, "a", "b")

	var noStock *orders.InsufficientStockError
	if !errors.As(err, &noStock) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if noStock.Title != "Hyperion" {
		t.Errorf("expected error to name Hyperion, got %q", noStock.Title)
	}

	if stock := bookStock(t, db, plenty); stock != 10 {
		t.Errorf("expected first book stock restored to 10, got %d", stock)
	}
	if stock := bookStock(t, db, scarce); stock != 1 {
		t.Errorf("expected second book stock unchanged at 1, got %d", stock)
	}
	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("expected no order rows, got %d", n)
	}
}

func TestConcurrentPlacementLastUnit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 1)

	repo := orders.NewOrderRepository(db)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.PlaceOrder(ctx, userID,
				[]orders.PlacementLine{{BookID: bookID, Quantity: 1}}, "a", "b")
			results[i] = err
		}(i)
	}
	wg.Wait()

	var successes, stockFailures int
	for _, err := range results {
		var noStock *orders.InsufficientStockError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &noStock):
			stockFailures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 || stockFailures != 1 {
		t.Fatalf("expected exactly one success and one stock failure, got %d/%d", successes, stockFailures)
	}
	if stock := bookStock(t, db, bookID); stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
	if n := countRows(t, db, "orders"); n != 1 {
		t.Errorf("expected exactly one order row, got %d", n)
	}
}

func TestStatusLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	repo := orders.NewOrderRepository(db)
	order, err := repo.PlaceOrder(ctx, userID,
		[]orders.PlacementLine{{BookID: bookID, Quantity: 3}}, "a", "b")
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	t.Run("rejects skipping ahead", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusShipped)
		if !errors.Is(err, orders.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("walks the happy path", func(t *testing.T) {
		for _, status := range []domain.OrderStatus{
			domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered,
		} {
			updated, err := repo.UpdateStatus(ctx, order.ID, status)
			if err != nil {
				t.Fatalf("transition to %s failed: %v", status, err)
			}
			if updated.Status != status {
				t.Fatalf("expected status %s, got %s", status, updated.Status)
			}
		}
	})

	t.Run("rejects leaving a terminal state", func(t *testing.T) {
		_, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled)
		if !errors.Is(err, orders.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestCancellationRestoresStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	repo := orders.NewOrderRepository(db)
	order, err := repo.PlaceOrder(ctx, userID,
		[]orders.PlacementLine{{BookID: bookID, Quantity: 3}}, "a", "b")
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}
	if stock := bookStock(t, db, bookID); stock != 2 {
		t.Fatalf("expected stock 2 after placement, got %d", stock)
	}

	updated, err := repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("cancellation failed: %v", err)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Errorf("expected status Cancelled, got %s", updated.Status)
	}

	if stock := bookStock(t, db, bookID); stock != 5 {
		t.Errorf("expected stock restored to 5, got %d", stock)
	}
}

func TestDeleteOrderCascadesItems(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	repo := orders.NewOrderRepository(db)
	order, err := repo.PlaceOrder(ctx, userID,
		[]orders.PlacementLine{{BookID: bookID, Quantity: 2}}, "a", "b")
	if err != nil {
		t.Fatalf("placement failed: %v", err)
	}

	if err := repo.Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if n := countRows(t, db, "orders"); n != 0 {
		t.Errorf("expected no order rows, got %d", n)
	}
	if n := countRows(t, db, "order_items"); n != 0 {
		t.Errorf("expected order items to cascade, got %d rows", n)
	}

	if err := repo.Delete(ctx, order.ID); !errors.Is(err, orders.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound on second delete, got %v", err)
	}
}

func TestOrderPlacementHTTPFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	userID := seedUser(t, db)
	bookID := seedBook(t, db, "Dune", 300, 5)

	handler := orders.NewHandler(orders.NewOrderRepository(db), nil, discardLogger())

	body := `{"user":"` + userID + `","orderItems":[{"bookId":"` + bookID + `","quantity":3}],"shippingAddress":"12 Main St","billingAddress":"12 Main St"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.HandlePlace(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string       `json:"message"`
		Order   domain.Order `json:"order"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Order Placed Successfully" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.Order.TotalAmount != 900 {
		t.Errorf("expected total 900, got %d", resp.Order.TotalAmount)
	}

	t.Run("insufficient stock surfaces as 400 naming the title", func(t *testing.T) {
		body := `{"user":"` + userID + `","orderItems":[{"bookId":"` + bookID + `","quantity":10}],"shippingAddress":"a","billingAddress":"b"}`
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandlePlace(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Insufficient stock for book: Dune") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("unknown book surfaces as 404", func(t *testing.T) {
		body := `{"user":"` + userID + `","orderItems":[{"bookId":"1b671a64-40d5-491e-99b0-da01ff1f3341","quantity":1}],"shippingAddress":"a","billingAddress":"b"}`
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandlePlace(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestUserRegistrationAndLogin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()
	db := OpenDB(t, pg.ConnStr)

	tokens := auth.NewTokenService("integration-secret")
	handler := users.NewHandler(users.NewUserRepository(db), tokens, discardLogger())

	register := `{"username":"ana","email":"Ana@Example.com","password":"secret1","mobileNumber":"555-0100","userRole":"customer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(register))
	rec := httptest.NewRecorder()
	handler.HandleRegister(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("duplicate email is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(register))
		rec := httptest.NewRecorder()
		handler.HandleRegister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("login yields a verifiable token", func(t *testing.T) {
		login := `{"email":"ana@example.com","password":"secret1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(login))
		rec := httptest.NewRecorder()
		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			Token string `json:"token"`
			User  struct {
				ID string `json:"id"`
			} `json:"user"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		claims, err := tokens.Verify(resp.Token)
		if err != nil {
			t.Fatalf("issued token failed verification: %v", err)
		}
		if claims.UserID != resp.User.ID {
			t.Errorf("token user %q does not match response user %q", claims.UserID, resp.User.ID)
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		login := `{"email":"ana@example.com","password":"wrong"}`
		req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(login))
		rec := httptest.NewRecorder()
		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	})
}

func TestOrderEventRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	producer := messaging.NewProducer(brokers, messaging.TopicOrderCreated)
	defer func() { _ = producer.Close() }()

	event := domain.OrderCreatedEvent{
		OrderID:     "order-1",
		UserID:      "user-1",
		Items:       []domain.OrderItem{{ID: "i1", BookID: "b1", Quantity: 3, Price: 300}},
		TotalAmount: 900,
		Timestamp:   time.Now().UTC(),
	}
	if err := producer.Publish(ctx, event.OrderID, event); err != nil {
		t.Fatalf("failed to publish event: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "integration-test", discardLogger())
	defer func() { _ = consumer.Close() }()

	received := make(chan domain.OrderCreatedEvent, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		_ = consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var got domain.OrderCreatedEvent
			if err := json.Unmarshal(payload, &got); err != nil {
				return err
			}
			received <- got
			return nil
		})
	}()

	select {
	case got := <-received:
		if got.OrderID != event.OrderID || got.TotalAmount != event.TotalAmount {
			t.Errorf("event mismatch: %+v", got)
		}
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for order.created event")
	}
}
