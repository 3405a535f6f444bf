package redisx

import "time"

const (
	// Order status read cache: order_status:{order_id} -> {"status":"...","updated_at":"..."}
	KeyOrderStatus = "order_status:%d"

	// Cart badge cache: cart_count:{user_id} -> total quantity, dropped on any cart mutation
	KeyCartCount = "cart_count:%d"

	// Event dedup for consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLCartCount   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
