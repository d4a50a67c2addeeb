package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated      = "order.created"
	TopicOrderPaid         = "order.paid"
	TopicOrderCancelled    = "order.cancelled"
	TopicPaymentFailed     = "payment.failed"
	TopicTemplateMigrated  = "template.migrated"
	TopicCartRepriced      = "cart.repriced"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCancelled,
		TopicPaymentFailed,
		TopicTemplateMigrated,
		TopicCartRepriced,
	}
}
