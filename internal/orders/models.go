package orders

import "time"

// Order is immutable after creation except for its status and updated_at.
// Line prices are snapshots taken at creation time, so later catalog price
// edits never change order history.
type Order struct {
	ID              int64       `json:"id"`
	OrderNumber     string      `json:"order_number"`
	UserID          int64       `json:"user_id"`
	Status          Status      `json:"status"`
	TotalCents      int64       `json:"total_cents"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	Lines           []OrderLine `json:"lines"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderLine struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// Statistics is the per-user order summary.
type Statistics struct {
	TotalOrders     int   `json:"total_orders"`
	PendingOrders   int   `json:"pending_orders"`
	PaidOrders      int   `json:"paid_orders"`
	ShippedOrders   int   `json:"shipped_orders"`
	DeliveredOrders int   `json:"delivered_orders"`
	CancelledOrders int   `json:"cancelled_orders"`
	TotalCents      int64 `json:"total_cents"`
}
