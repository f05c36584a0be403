package messaging

// Topics carrying the order saga's events.
const (
	TopicOrderConfirmed     = "order.confirmed"
	TopicStockRestoreFailed = "stock.restore.failed"
)
