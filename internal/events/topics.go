package events

// Topic constants for domain events emitted by checkout.
const (
	TopicCheckoutCommitted    = "checkout.committed"
	TopicCheckoutFailed       = "checkout.failed"
	TopicCheckoutStockChanged = "checkout.stock_changed"
)

// DefaultTopics returns the topics the service emits.
func DefaultTopics() []string {
	return []string{
		TopicCheckoutCommitted,
		TopicCheckoutFailed,
		TopicCheckoutStockChanged,
	}
}
