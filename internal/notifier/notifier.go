package notifier

import "context"

// Delivery is the payload handed to the downstream consumer for one
// dispatched batch. Address is opaque metadata from the destination
// registry; it is empty for the unassigned group.
type Delivery struct {
	BatchID string
	Label   string
	Address string
	URLs    []string
}

// Notifier is the outbound dispatch port. The engine calls it after the
// Sent transition has committed and never rolls that transition back on
// failure.
type Notifier interface {
	Deliver(ctx context.Context, delivery Delivery) (*DeliveryReceipt, error)
}

// DeliveryReceipt stores notifier call metadata for audit and logging.
type DeliveryReceipt struct {
	StatusCode int
	Body       string
	MessageID  string
}
