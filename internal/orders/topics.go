package orders

const (
	TopicOrderCreated = "order.created"
	TopicOrderStatus  = "order.status.changed"
)

// Partition key = order number so all events for one order keep their order.
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }
