package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// Topics lists everything the order-events projector subscribes to.
var Topics = []string{TopicOrderCreated, TopicOrderStatusChanged}

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
