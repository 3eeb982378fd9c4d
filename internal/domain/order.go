package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// statusTransitions is the allowed order lifecycle. Cancellation is only
// reachable from Pending; Delivered and Cancelled are terminal.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is one line of an order. Price is the unit price in cents,
// snapshotted from the book at placement time.
type OrderItem struct {
	ID       string       `json:"id"`
	BookID   string       `json:"book_id"`
	Quantity int          `json:"quantity"`
	Price    int64        `json:"price"`
	Book     *BookSummary `json:"book,omitempty"`
}

type Order struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	User            *UserSummary `json:"user,omitempty"`
	Items           []OrderItem  `json:"order_items"`
	TotalAmount     int64        `json:"total_amount"`
	Status          OrderStatus  `json:"status"`
	ShippingAddress string       `json:"shipping_address"`
	BillingAddress  string       `json:"billing_address"`
	CreatedAt       time.Time    `json:"created_at"`
}
