// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPaidQueue is the durable queue order confirmations are sent to.
const OrderPaidQueue = "order.paid"

// OrderPaidEvent is published once an order has been finalized.  It
// carries enough for a confirmation to be sent without reading the
// database again.
type OrderPaidEvent struct {
	OrderID         string   `json:"order_id"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Email           string   `json:"email"`
	ShowDate        string   `json:"show_date"`
	Seats           []string `json:"seats"`
	TotalPriceCents int64    `json:"total_price_cents"`
	PaidAt          string   `json:"paid_at"`
}
